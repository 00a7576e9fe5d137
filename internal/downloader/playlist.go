package downloader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	neturl "net/url"
	"os/exec"
	"strings"
	"time"

	"tunevault/internal/services"
)

// playlistTimeout bounds a flat listing; large albums take a while to page.
const playlistTimeout = 2 * time.Minute

// PlaylistEntry is one track of an album or playlist listing.
type PlaylistEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`
}

// ExpandPlaylist lists the tracks of an album or playlist URL with
// `yt-dlp --flat-playlist --dump-json`, which prints one JSON document per
// entry without resolving formats. A nonzero exit is tolerated when entries
// were still printed.
func (y *YtDlp) ExpandPlaylist(ctx context.Context, url string) ([]PlaylistEntry, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "expand playlist", "url must not be empty", nil)
	}
	runCtx, cancel := context.WithTimeout(ctx, playlistTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, y.binary, "--flat-playlist", "--dump-json", "--no-warnings", url)
	cmd.WaitDelay = processWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrTimeout, stageName, "expand playlist",
			fmt.Sprintf("listing exceeded %s", playlistTimeout), runCtx.Err())
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "expand playlist",
			fmt.Sprintf("%s is not installed or not on PATH", y.binary), runErr)
	}

	entries := ParsePlaylist(stdout.Bytes(), url)
	if len(entries) > 0 {
		return entries, nil
	}
	if runErr != nil {
		detail := strings.Join(FatalLines(stderr.String()), "\n")
		if detail == "" {
			detail = "yt-dlp returned an error and listed no tracks"
		}
		return nil, services.Wrap(services.ErrExternalTool, stageName, "expand playlist", detail, runErr)
	}
	return nil, services.Wrap(services.ErrValidation, stageName, "expand playlist", "no tracks found in playlist", nil)
}

// ParsePlaylist reads newline-delimited flat entries. Lines that are not
// JSON or carry neither an id nor an http URL are skipped. YouTube ids are
// turned into watch URLs on the same host family as playlistURL.
func ParsePlaylist(data []byte, playlistURL string) []PlaylistEntry {
	youtube := Detect(playlistURL) == SourceYouTube
	watchBase := "https://www.youtube.com/watch?v="
	if strings.Contains(strings.ToLower(playlistURL), "music.youtube.com") {
		watchBase = "https://music.youtube.com/watch?v="
	}

	var entries []PlaylistEntry
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry PlaylistEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entry.ID = strings.TrimSpace(entry.ID)
		entry.Title = strings.TrimSpace(entry.Title)
		if entry.ID == "" {
			entry.ID = watchID(entry.URL)
		}
		switch {
		case youtube && entry.ID != "":
			entry.URL = watchBase + entry.ID
		case strings.HasPrefix(entry.URL, "http://"), strings.HasPrefix(entry.URL, "https://"):
		default:
			continue
		}
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}
		entries = append(entries, entry)
	}
	return entries
}

func watchID(raw string) string {
	parsed, err := neturl.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("v")
}
