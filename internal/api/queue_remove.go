package api

import "context"

// QueueRemoveService captures queue operations needed by batch remove workflows.
type QueueRemoveService interface {
	Remove(ctx context.Context, url string) (bool, error)
}

type RemoveOutcome string

const (
	RemoveOutcomeRemoved RemoveOutcome = "removed"
	// RemoveOutcomeKept covers unknown URLs and jobs that are no longer PENDING.
	RemoveOutcomeKept RemoveOutcome = "kept"
)

type RemoveURLResult struct {
	URL     string        `json:"url"`
	Outcome RemoveOutcome `json:"outcome"`
}

type RemoveURLsResult struct {
	RemovedCount int               `json:"removed_count"`
	Items        []RemoveURLResult `json:"items"`
}

// RemoveURLs removes pending jobs one URL at a time so each URL reports its own outcome.
func RemoveURLs(ctx context.Context, service QueueRemoveService, urls []string) (RemoveURLsResult, error) {
	result := RemoveURLsResult{Items: make([]RemoveURLResult, 0, len(urls))}
	for _, url := range urls {
		removed, err := service.Remove(ctx, url)
		if err != nil {
			return RemoveURLsResult{}, err
		}
		if removed {
			result.RemovedCount++
			result.Items = append(result.Items, RemoveURLResult{URL: url, Outcome: RemoveOutcomeRemoved})
			continue
		}
		result.Items = append(result.Items, RemoveURLResult{URL: url, Outcome: RemoveOutcomeKept})
	}
	return result, nil
}
