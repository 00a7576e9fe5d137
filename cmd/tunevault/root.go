package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:           "tunevault",
		Short:         "Download, convert and file music into a local library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&ctx.configArg, "config", "c", "", "Configuration file path")
	flags.BoolVar(&ctx.jsonOut, "json", false, "Emit machine-readable JSON")

	for _, sub := range []func(*commandContext) *cobra.Command{
		newQueueCommand,
		newTaskCommand,
		newStatusCommand,
		newConfigCommand,
		newDaemonCommand,
		newLibraryCommand,
		newNotifyCommand,
	} {
		root.AddCommand(sub(ctx))
	}
	return root
}
