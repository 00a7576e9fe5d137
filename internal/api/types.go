package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a job in a transport-friendly format.
type QueueItem struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Title     string `json:"title,omitempty"`
	TrackID   int64  `json:"track_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// EnqueueResult is the outcome of one enqueue request.
type EnqueueResult struct {
	QueueItem
	// Created is true only when a new PENDING row was inserted.
	Created bool `json:"created"`
	// InLibrary marks the synthetic result for an already catalogued URL.
	InLibrary bool `json:"in_library,omitempty"`
}

// QueueStatus summarizes job counts and whether this process is claiming work.
type QueueStatus struct {
	IsProcessing bool `json:"is_processing"`
	Pending      int  `json:"pending"`
	Processing   int  `json:"processing"`
	Completed    int  `json:"completed"`
	Failed       int  `json:"failed"`
	Total        int  `json:"total"`
}

// TaskView is the transport form of one execution attempt.
type TaskView struct {
	TaskID    string `json:"task_id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	TrackID   int64  `json:"track_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// TrackItem is the transport form of a catalogued track.
type TrackItem struct {
	ID           int64  `json:"id"`
	Artist       string `json:"artist"`
	Album        string `json:"album,omitempty"`
	Title        string `json:"title"`
	Year         int    `json:"year,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size,omitempty"`
	Source       string `json:"source,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
}

// WorkflowStatus summarizes scheduler state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Slots       int            `json:"slots"`
	SlotsInUse  int            `json:"slots_in_use"`
	InFlight    int            `json:"in_flight"`
	TrackedRuns int            `json:"tracked_tasks"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	LastItem    *QueueItem     `json:"last_item,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	LibraryDir   string             `json:"library_dir"`
	Tracks       int                `json:"tracks"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueListResponse wraps a collection of jobs.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// EnqueueBatchRequest is the body of a batch enqueue.
type EnqueueBatchRequest struct {
	URLs   []string `json:"urls"`
	Source string   `json:"source,omitempty"`
	Titles []string `json:"titles,omitempty"`
}

// EnqueueRequest is the body of a single enqueue.
type EnqueueRequest struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
}

// EnqueueBatchResponse wraps the per-URL results of a batch enqueue.
type EnqueueBatchResponse struct {
	Items []EnqueueResult `json:"items"`
}

// PlaylistEnqueueRequest is the body of an album or playlist enqueue.
type PlaylistEnqueueRequest struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// PlaylistEnqueueResponse reports the tracks found behind a playlist URL.
type PlaylistEnqueueResponse struct {
	Message   string          `json:"message"`
	URLsCount int             `json:"urls_count"`
	Created   int             `json:"created"`
	QueueSize int             `json:"queue_size"`
	Items     []EnqueueResult `json:"items"`
}

// ClearResponse reports how many jobs a bulk delete removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// SizeResponse reports the number of PENDING jobs.
type SizeResponse struct {
	Size int `json:"size"`
}

// TrackListResponse wraps catalogued tracks sorted by artist, album and title.
type TrackListResponse struct {
	Items []TrackItem `json:"items"`
	Total int         `json:"total"`
}

// LibraryStats summarizes the catalog.
type LibraryStats struct {
	TotalTracks    int     `json:"total_tracks"`
	TotalArtists   int     `json:"total_artists"`
	TotalAlbums    int     `json:"total_albums"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeGB    float64 `json:"total_size_gb"`
}

// TrackDeleteResponse echoes a removed track.
type TrackDeleteResponse struct {
	Message string    `json:"message"`
	Track   TrackItem `json:"track"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
