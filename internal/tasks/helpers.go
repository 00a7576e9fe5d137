package tasks

// Progress builds an Update for a milestone.
func Progress(status Status, percent int, message string) Update {
	return Update{Status: &status, Progress: &percent, Message: &message}
}

// Failed builds an Update that records err and forces StatusFailed.
func Failed(err string) Update {
	return Update{Error: &err}
}

// Completed builds the final Update carrying the produced track reference.
func Completed(message string, resultRef int64) Update {
	status := StatusCompleted
	percent := 100
	return Update{Status: &status, Progress: &percent, Message: &message, ResultRef: &resultRef}
}
