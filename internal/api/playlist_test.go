package api_test

import (
	"context"
	"errors"
	"testing"

	"tunevault/internal/downloader"
	"tunevault/internal/services"
)

type stubExpander struct {
	entries []downloader.PlaylistEntry
	err     error
	calls   int
}

func (s *stubExpander) ExpandPlaylist(context.Context, string) ([]downloader.PlaylistEntry, error) {
	s.calls++
	return s.entries, s.err
}

func TestEnqueuePlaylistQueuesEachTrack(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.catalogue(t, "https://music.youtube.com/watch?v=have", "Owned")
	expander := &stubExpander{entries: []downloader.PlaylistEntry{
		{ID: "one", Title: "First", URL: "https://music.youtube.com/watch?v=one"},
		{ID: "have", Title: "Owned", URL: "https://music.youtube.com/watch?v=have"},
		{ID: "two", Title: "Second", URL: "https://music.youtube.com/watch?v=two"},
	}}
	f.svc.WithPlaylistExpander(expander)

	resp, err := f.svc.EnqueuePlaylist(ctx, "https://music.youtube.com/playlist?list=OLAK5", "")
	if err != nil {
		t.Fatalf("EnqueuePlaylist failed: %v", err)
	}
	if resp.URLsCount != 3 || resp.Created != 2 || resp.QueueSize != 2 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if resp.Message != "Queued 2 of 3 tracks" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Items[0].Title != "First" || !resp.Items[1].InLibrary || resp.Items[2].Title != "Second" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestEnqueuePlaylistErrors(t *testing.T) {
	ctx := context.Background()

	f := newServiceFixture(t)
	if _, err := f.svc.EnqueuePlaylist(ctx, "https://youtube.com/playlist?list=x", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without an expander, got %v", err)
	}

	expander := &stubExpander{}
	f.svc.WithPlaylistExpander(expander)
	if _, err := f.svc.EnqueuePlaylist(ctx, "https://example.com/list", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown host, got %v", err)
	}
	if expander.calls != 0 {
		t.Fatal("expander must not run for an invalid url")
	}

	expander.err = services.Wrap(services.ErrExternalTool, "download", "expand playlist", "no such playlist", nil)
	if _, err := f.svc.EnqueuePlaylist(ctx, "https://youtube.com/playlist?list=x", ""); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected expander error, got %v", err)
	}
	if size, _ := f.svc.Size(ctx); size != 0 {
		t.Fatalf("expected nothing queued, got %d", size)
	}
}
