package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

//go:embed schema.sql
var schemaSQL string

const (
	trackColumns = "id, artist, album, title, year, genre, duration, file_path, file_size, source, source_url, downloaded_at, updated_at"
	timeLayout   = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidTrack is returned when a track lacks a required field.
var ErrInvalidTrack = errors.New("invalid track")

// Track is one filed audio file.
type Track struct {
	ID           int64     `json:"id"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album,omitempty"`
	Title        string    `json:"title"`
	Year         int       `json:"year,omitempty"`
	Genre        string    `json:"genre,omitempty"`
	Duration     int       `json:"duration,omitempty"`
	FilePath     string    `json:"file_path"`
	FileSize     int64     `json:"file_size,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Catalog persists tracks.
type Catalog struct {
	db *sql.DB
}

// Open creates the tracks table in db when missing.
func Open(ctx context.Context, db *sql.DB) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("library catalog: nil database")
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create tracks table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Upsert inserts track or updates the row that already holds its file path
// or source URL, preferring the file path match. The stored row is returned.
func (c *Catalog) Upsert(ctx context.Context, track Track) (*Track, error) {
	track.Artist = strings.TrimSpace(track.Artist)
	track.Title = strings.TrimSpace(track.Title)
	track.FilePath = strings.TrimSpace(track.FilePath)
	if track.Artist == "" || track.Title == "" || track.FilePath == "" {
		return nil, fmt.Errorf("%w: artist, title and file path are required", ErrInvalidTrack)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM tracks
         WHERE file_path = ? OR (? <> '' AND source_url = ?)
         ORDER BY CASE WHEN file_path = ? THEN 0 ELSE 1 END, id
         LIMIT 1`,
		track.FilePath, track.SourceURL, track.SourceURL, track.FilePath,
	).Scan(&id)
	stamp := time.Now().UTC().Format(timeLayout)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO tracks (artist, album, title, year, genre, duration, file_path, file_size, source, source_url, downloaded_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			track.Artist, nullString(track.Album), track.Title, nullInt(int64(track.Year)), nullString(track.Genre),
			nullInt(int64(track.Duration)), track.FilePath, nullInt(track.FileSize), nullString(track.Source),
			nullString(track.SourceURL), stamp, stamp,
		)
		if execErr != nil {
			return nil, fmt.Errorf("insert track: %w", execErr)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("track id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("find existing track: %w", err)
	default:
		if _, execErr := tx.ExecContext(ctx,
			`UPDATE tracks SET artist = ?, album = ?, title = ?, year = ?, genre = ?, duration = ?,
                file_path = ?, file_size = ?, source = ?, source_url = COALESCE(?, source_url), updated_at = ?
             WHERE id = ?`,
			track.Artist, nullString(track.Album), track.Title, nullInt(int64(track.Year)), nullString(track.Genre),
			nullInt(int64(track.Duration)), track.FilePath, nullInt(track.FileSize), nullString(track.Source),
			nullString(track.SourceURL), stamp, id,
		); execErr != nil {
			return nil, fmt.Errorf("update track %d: %w", id, execErr)
		}
	}

	stored, err := getTrack(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return stored, nil
}

// Get returns the track with id, or nil when none exists.
func (c *Catalog) Get(ctx context.Context, id int64) (*Track, error) {
	return getTrack(ctx, c.db, id)
}

// FindBySourceURL returns the most recently filed track for url, or nil.
func (c *Catalog) FindBySourceURL(ctx context.Context, url string) (*Track, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}
	row := c.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE source_url = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, url)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find track by source url: %w", err)
	}
	return track, nil
}

const trackOrder = ` ORDER BY artist COLLATE NOCASE, album COLLATE NOCASE, title COLLATE NOCASE`

// List returns tracks ordered by artist, album and title. limit <= 0 means all.
func (c *Catalog) List(ctx context.Context, limit int) ([]*Track, error) {
	tracks, err := c.queryTracks(ctx, "", nil, limit)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

// SearchQuery selects tracks by case-insensitive substring. Query matches
// any of artist, album and title; a track matching any non-empty field is
// returned.
type SearchQuery struct {
	Query  string
	Artist string
	Album  string
	Title  string
}

// Empty reports whether no search term is set.
func (q SearchQuery) Empty() bool {
	return strings.TrimSpace(q.Query+q.Artist+q.Album+q.Title) == ""
}

// Search returns tracks matching q in List order. An empty query returns
// every track. limit <= 0 means all.
func (c *Catalog) Search(ctx context.Context, q SearchQuery, limit int) ([]*Track, error) {
	var (
		conds []string
		args  []any
	)
	match := func(column, term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		conds = append(conds, column+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}
	for _, column := range []string{"artist", "album", "title"} {
		match(column, q.Query)
	}
	match("artist", q.Artist)
	match("album", q.Album)
	match("title", q.Title)

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " OR ")
	}
	tracks, err := c.queryTracks(ctx, where, args, limit)
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	return tracks, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c *Catalog) queryTracks(ctx context.Context, where string, args []any, limit int) ([]*Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks` + where + trackOrder
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// Delete removes the track's audio file and then its row. A file that is
// already gone is not an error. It returns the removed track, or nil when
// no row has id.
func (c *Catalog) Delete(ctx context.Context, id int64) (*Track, error) {
	track, err := c.Get(ctx, id)
	if err != nil || track == nil {
		return nil, err
	}
	if err := os.Remove(track.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove track file %s: %w", track.FilePath, err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete track %d: %w", id, err)
	}
	return track, nil
}

// Stats summarizes the catalog.
type Stats struct {
	Tracks     int   `json:"total_tracks"`
	Artists    int   `json:"total_artists"`
	Albums     int   `json:"total_albums"`
	TotalBytes int64 `json:"total_size_bytes"`
}

// Stats counts tracks, distinct artists and distinct album names, and sums
// recorded file sizes. Tracks without an album do not count as an album.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT artist), COUNT(DISTINCT album), COALESCE(SUM(file_size), 0) FROM tracks`,
	).Scan(&stats.Tracks, &stats.Artists, &stats.Albums, &stats.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("library stats: %w", err)
	}
	return stats, nil
}

// Count returns the number of catalogued tracks.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tracks: %w", err)
	}
	return n, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTrack(ctx context.Context, q rowQueryer, id int64) (*Track, error) {
	track, err := scanTrack(q.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track %d: %w", id, err)
	}
	return track, nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		track      Track
		album      sql.NullString
		year       sql.NullInt64
		genre      sql.NullString
		duration   sql.NullInt64
		fileSize   sql.NullInt64
		source     sql.NullString
		sourceURL  sql.NullString
		downloaded string
		updated    string
	)
	if err := scanner.Scan(&track.ID, &track.Artist, &album, &track.Title, &year, &genre, &duration,
		&track.FilePath, &fileSize, &source, &sourceURL, &downloaded, &updated); err != nil {
		return nil, err
	}
	track.Album = album.String
	track.Year = int(year.Int64)
	track.Genre = genre.String
	track.Duration = int(duration.Int64)
	track.FileSize = fileSize.Int64
	track.Source = source.String
	track.SourceURL = sourceURL.String
	track.DownloadedAt, _ = time.Parse(timeLayout, downloaded)
	track.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &track, nil
}

func nullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}
