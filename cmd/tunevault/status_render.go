package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"tunevault/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

// statusStyles maps each kind to its badge text and ANSI color.
var statusStyles = map[statusKind]struct{ badge, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	line := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.badge)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// daemonLines describes whether the daemon answered and what it is doing.
func daemonLines(status api.DaemonStatus, colorize bool) []string {
	if !status.Running {
		return []string{renderStatusLine("Daemon", statusWarn, "Not running (start with `tunevault daemon start`)", colorize)}
	}
	lines := []string{renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize)}
	wf := status.Workflow
	lines = append(lines, renderStatusLine("Slots", statusInfo, fmt.Sprintf("%d of %d in use, %d in flight", wf.SlotsInUse, wf.Slots, wf.InFlight), colorize))
	if wf.LastItem != nil {
		lines = append(lines, renderStatusLine("Last job", statusInfo, fmt.Sprintf("#%d %s (%s)", wf.LastItem.ID, itemLabel(*wf.LastItem), wf.LastItem.Status), colorize))
	}
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, wf.LastError, colorize))
	}
	return lines
}

// dependencyLines lists every external tool; a missing required tool is an
// error and a missing optional one a warning.
func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	var missing []string
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func pathLines(status api.DaemonStatus, colorize bool) []string {
	return []string{
		renderStatusLine("Library", statusInfo, status.LibraryDir, colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Tracks", statusInfo, fmt.Sprintf("%d catalogued", status.Tracks), colorize),
	}
}

// buildQueueStatusRows returns one row per non-zero status in lifecycle order.
func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, key := range api.SortedStatusKeys(stats) {
		if stats[key] > 0 {
			rows = append(rows, []string{key, strconv.Itoa(stats[key])})
		}
	}
	return rows
}

func itemLabel(item api.QueueItem) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	return item.URL
}
