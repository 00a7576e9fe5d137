package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunevault/internal/api"
	"tunevault/internal/library"
	"tunevault/internal/queue"
	"tunevault/internal/tasks"
	"tunevault/internal/testsupport"
	"tunevault/internal/workflow"
)

type idleExecutor struct{}

func (idleExecutor) Execute(context.Context, *queue.Job, string) error { return nil }

type apiFixture struct {
	srv     *apiServer
	store   *queue.Store
	catalog *library.Catalog
	tracker *tasks.Tracker
}

func newAPIFixture(t *testing.T, token string, opts ...testsupport.ConfigOption) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIToken = token
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := library.Open(context.Background(), store.DB())
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	tracker := tasks.NewTracker()
	mgr := workflow.NewManager(cfg, store, tracker, idleExecutor{}, nil)
	d, err := New(cfg, store, catalog, mgr, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &apiFixture{srv: d.api, store: store, catalog: catalog, tracker: tracker}
}

func (f *apiFixture) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.srv.echo.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerEnqueueAndList(t *testing.T) {
	f := newAPIFixture(t, "")

	w := f.do(t, http.MethodPost, "/api/queue", `{"url":"https://youtu.be/one","title":"One"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[api.EnqueueResult](t, w)
	if !created.Created || created.Status != string(queue.StatusPending) {
		t.Fatalf("unexpected enqueue result: %+v", created)
	}

	w = f.do(t, http.MethodPost, "/api/queue", `{"url":"https://youtu.be/one"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", w.Code)
	}
	if dup := decode[api.EnqueueResult](t, w); dup.Created || dup.ID != created.ID {
		t.Fatalf("expected duplicate to return job %d, got %+v", created.ID, dup)
	}

	w = f.do(t, http.MethodGet, "/api/queue", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	list := decode[api.QueueListResponse](t, w)
	if len(list.Items) != 1 || list.Items[0].Title != "One" {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	w = f.do(t, http.MethodGet, "/api/queue?status=completed", "")
	if list := decode[api.QueueListResponse](t, w); len(list.Items) != 0 {
		t.Fatalf("expected no completed jobs, got %+v", list.Items)
	}

	w = f.do(t, http.MethodGet, "/api/queue?status=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestAPIServerEnqueueValidation(t *testing.T) {
	f := newAPIFixture(t, "")
	tests := []struct {
		name string
		path string
		body string
		kind string
	}{
		{name: "unsupported host", path: "/api/queue", body: `{"url":"https://example.com/x"}`, kind: "validation"},
		{name: "empty url", path: "/api/queue", body: `{"url":""}`, kind: "validation"},
		{name: "malformed body", path: "/api/queue", body: `{"url":`},
		{name: "empty batch", path: "/api/queue/batch", body: `{"urls":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			resp := decode[api.ErrorResponse](t, w)
			if resp.Error == "" || resp.Kind != tt.kind {
				t.Fatalf("unexpected error body: %+v", resp)
			}
		})
	}
}

func TestAPIServerBatchSizeAndStatus(t *testing.T) {
	f := newAPIFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/queue/batch",
		`{"urls":["https://youtu.be/a","https://soundcloud.com/b/c"],"titles":["A","C"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	batch := decode[api.EnqueueBatchResponse](t, w)
	if len(batch.Items) != 2 || batch.Items[1].Title != "C" {
		t.Fatalf("unexpected batch: %+v", batch.Items)
	}

	if size := decode[api.SizeResponse](t, f.do(t, http.MethodGet, "/api/queue/size", "")); size.Size != 2 {
		t.Fatalf("expected size 2, got %d", size.Size)
	}
	status := decode[api.QueueStatus](t, f.do(t, http.MethodGet, "/api/queue/status", ""))
	if status.Pending != 2 || status.Total != 2 || status.IsProcessing {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAPIServerRemoveAndClear(t *testing.T) {
	f := newAPIFixture(t, "")
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/a")
	testsupport.MustEnqueue(t, f.store, "https://youtu.be/b")

	if w := f.do(t, http.MethodDelete, "/api/queue", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", w.Code)
	}
	w := f.do(t, http.MethodDelete, "/api/queue?url=https://youtu.be/a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if removed := decode[api.RemoveURLsResult](t, w); removed.RemovedCount != 1 {
		t.Fatalf("unexpected remove result: %+v", removed)
	}

	w = f.do(t, http.MethodDelete, "/api/queue/all", "")
	if cleared := decode[api.ClearResponse](t, w); cleared.Removed != 1 {
		t.Fatalf("expected 1 cleared job, got %+v", cleared)
	}
}

func TestAPIServerQueueItemAndTask(t *testing.T) {
	f := newAPIFixture(t, "")
	job := testsupport.MustEnqueue(t, f.store, "https://youtu.be/item")

	w := f.do(t, http.MethodGet, "/api/queue/"+jsonNumber(job.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if item := decode[api.QueueItem](t, w); item.URL != job.URL {
		t.Fatalf("unexpected item: %+v", item)
	}
	if w := f.do(t, http.MethodGet, "/api/queue/999", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/queue/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	runID := f.tracker.Create(job.URL)
	f.tracker.Update(runID, tasks.Progress(tasks.StatusDownloading, 15, "downloading"))
	w = f.do(t, http.MethodGet, "/api/tasks/"+runID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	task := decode[api.TaskView](t, w)
	if task.TaskID != runID || task.Progress != 15 || task.Status != string(tasks.StatusDownloading) {
		t.Fatalf("unexpected task: %+v", task)
	}
	if w := f.do(t, http.MethodGet, "/api/tasks/unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerTracks(t *testing.T) {
	f := newAPIFixture(t, "")
	for _, title := range []string{"B Song", "A Song"} {
		if _, err := f.catalog.Upsert(context.Background(), library.Track{
			Artist: "Band", Title: title, FilePath: "/music/Band/Unknown Album/" + title + ".flac",
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	resp := decode[api.TrackListResponse](t, f.do(t, http.MethodGet, "/api/tracks?limit=1", ""))
	if resp.Total != 2 || len(resp.Items) != 1 || resp.Items[0].Title != "A Song" {
		t.Fatalf("unexpected tracks: %+v", resp)
	}
	if w := f.do(t, http.MethodGet, "/api/tracks?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerTrackSearchStatsDelete(t *testing.T) {
	f := newAPIFixture(t, "")
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Song.flac")
	testsupport.WriteFile(t, path, 1024)
	kept, err := f.catalog.Upsert(ctx, library.Track{Artist: "Band", Album: "Record", Title: "Song", FilePath: path, FileSize: 1024})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := f.catalog.Upsert(ctx, library.Track{Artist: "Other", Title: "Tune", FilePath: "/music/Other/Tune.flac"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	found := decode[api.TrackListResponse](t, f.do(t, http.MethodGet, "/api/tracks/search?q=record", ""))
	if found.Total != 1 || found.Items[0].ID != kept.ID {
		t.Fatalf("unexpected search result: %+v", found)
	}
	either := decode[api.TrackListResponse](t, f.do(t, http.MethodGet, "/api/tracks/search?artist=other&title=song", ""))
	if either.Total != 2 {
		t.Fatalf("expected both tracks for alternative filters, got %+v", either)
	}

	stats := decode[api.LibraryStats](t, f.do(t, http.MethodGet, "/api/tracks/stats", ""))
	if stats.TotalTracks != 2 || stats.TotalArtists != 2 || stats.TotalAlbums != 1 || stats.TotalSizeBytes != 1024 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	w := f.do(t, http.MethodDelete, "/api/tracks/"+jsonNumber(kept.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if deleted := decode[api.TrackDeleteResponse](t, w); deleted.Track.ID != kept.ID {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected audio file removed, stat err %v", err)
	}
	w = f.do(t, http.MethodDelete, "/api/tracks/"+jsonNumber(kept.ID), "")
	if w.Code != http.StatusNotFound || decode[api.ErrorResponse](t, w).Kind != "not_found" {
		t.Fatalf("expected 404 not_found, got %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodDelete, "/api/tracks/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestAPIServerEnqueuePlaylist(t *testing.T) {
	listing := `echo '{"id":"one","title":"First"}'
echo '{"id":"two","title":"Second"}'`
	f := newAPIFixture(t, "", testsupport.WithScript("yt-dlp", listing))

	w := f.do(t, http.MethodPost, "/api/queue/playlist", `{"url":"https://music.youtube.com/playlist?list=OLAK5"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.PlaylistEnqueueResponse](t, w)
	if resp.URLsCount != 2 || resp.QueueSize != 2 || resp.Items[1].URL != "https://music.youtube.com/watch?v=two" {
		t.Fatalf("unexpected playlist response: %+v", resp)
	}
	if resp.Items[0].Title != "First" {
		t.Fatalf("expected listed title, got %+v", resp.Items[0])
	}

	if w := f.do(t, http.MethodPost, "/api/queue/playlist", `{"url":"https://example.com/list"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown host, got %d", w.Code)
	}
}

func TestAPIServerEnqueuePlaylistWithoutTracks(t *testing.T) {
	f := newAPIFixture(t, "", testsupport.WithScript("yt-dlp", "echo 'ERROR: playlist does not exist' >&2\nexit 1"))
	w := f.do(t, http.MethodPost, "/api/queue/playlist", `{"url":"https://www.youtube.com/playlist?list=gone"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	if body := decode[api.ErrorResponse](t, w); body.Kind != "external_tool" || !strings.Contains(body.Error, "playlist does not exist") {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestAPIServerAuth(t *testing.T) {
	f := newAPIFixture(t, "secret")
	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "missing header", path: "/api/queue/size", want: http.StatusUnauthorized},
		{name: "wrong token", path: "/api/queue/size", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/api/queue/size", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/queue/size", header: "Bearer secret", want: http.StatusOK},
		{name: "health is public", path: "/health", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			w := f.do(t, http.MethodGet, tt.path, "", headers...)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPIServerRequestID(t *testing.T) {
	f := newAPIFixture(t, "")
	w := f.do(t, http.MethodGet, "/health", "")
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id header")
	}
	w = f.do(t, http.MethodGet, "/health", "", "X-Request-Id", "abc-123")
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = " "
	if srv := newAPIServer(cfg, nil, nil); srv != nil {
		t.Fatal("expected nil server without bind address")
	}
	var srv *apiServer
	if err := srv.start(context.Background()); err != nil {
		t.Fatalf("nil start should be a no-op: %v", err)
	}
	srv.stop()
	if srv.addr() != "" {
		t.Fatal("nil server should report no address")
	}
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
