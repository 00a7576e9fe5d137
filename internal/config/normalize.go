package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeDownload()
	c.normalizeConversion()
	c.normalizeLibrary()
	c.normalizePlex()
	c.normalizeStorage()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("TUNEVAULT_MUSIC_DIR", "MUSIC_DIR"); ok {
		c.Paths.MusicDir = value
	}
	if value, ok := lookupEnv("TUNEVAULT_DOWNLOADS_DIR", "DOWNLOADS_DIR"); ok {
		c.Paths.DownloadsDir = value
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.MusicDir, err = expandPath(c.Paths.MusicDir); err != nil {
		return fmt.Errorf("paths.music_dir: %w", err)
	}
	if c.Paths.DownloadsDir, err = expandPath(c.Paths.DownloadsDir); err != nil {
		return fmt.Errorf("paths.downloads_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := lookupEnv("TUNEVAULT_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.ClaimLockBackend = strings.ToLower(strings.TrimSpace(c.Queue.ClaimLockBackend))
	if c.Queue.ClaimLockBackend == "" {
		c.Queue.ClaimLockBackend = defaultClaimLockBackend
	}
	c.Queue.RedisURL = strings.TrimSpace(c.Queue.RedisURL)
	if c.Queue.RedisURL == "" {
		if value, ok := lookupEnv("REDIS_URL"); ok {
			c.Queue.RedisURL = value
		}
	}
	if c.Queue.ClaimLockTTL <= 0 {
		c.Queue.ClaimLockTTL = defaultClaimLockTTL
	}
}

func (c *Config) normalizeDownload() {
	c.Download.YtDlpBinary = strings.TrimSpace(c.Download.YtDlpBinary)
	if c.Download.YtDlpBinary == "" {
		c.Download.YtDlpBinary = defaultYtDlpBinary
	}
	c.Download.AudioFormat = strings.ToLower(strings.TrimSpace(c.Download.AudioFormat))
	if c.Download.AudioFormat == "" {
		c.Download.AudioFormat = defaultAudioFormat
	}
	if value, ok := lookupEnv("DOWNLOAD_TIMEOUT"); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			c.Download.Timeout = parsed
		}
	}
}

func (c *Config) normalizeConversion() {
	c.Conversion.FFmpegBinary = strings.TrimSpace(c.Conversion.FFmpegBinary)
	if c.Conversion.FFmpegBinary == "" {
		c.Conversion.FFmpegBinary = defaultFFmpegBinary
	}
	c.Conversion.FFprobeBinary = strings.TrimSpace(c.Conversion.FFprobeBinary)
	if c.Conversion.FFprobeBinary == "" {
		c.Conversion.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.DefaultAlbum = strings.TrimSpace(c.Library.DefaultAlbum)
	if c.Library.DefaultAlbum == "" {
		c.Library.DefaultAlbum = defaultAlbum
	}
	if value, ok := lookupEnv("INCLUDE_YEAR_IN_ALBUM"); ok {
		c.Library.IncludeYearInAlbum = parseBool(value, c.Library.IncludeYearInAlbum)
	}
}

func (c *Config) normalizePlex() {
	if c.Plex.URL == "" {
		if value, ok := lookupEnv("PLEX_URL"); ok {
			c.Plex.URL = value
		}
	}
	if c.Plex.Token == "" {
		if value, ok := lookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = value
		}
	}
	if c.Plex.LibrarySectionID == "" {
		if value, ok := lookupEnv("PLEX_LIBRARY_SECTION_ID"); ok {
			c.Plex.LibrarySectionID = value
		}
	}
	if value, ok := lookupEnv("PLEX_AUTO_SCAN"); ok {
		c.Plex.AutoScan = parseBool(value, c.Plex.AutoScan)
	}
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	c.Plex.LibrarySectionID = strings.TrimSpace(c.Plex.LibrarySectionID)
}

func (c *Config) normalizeStorage() {
	if c.Storage.AccessKey == "" {
		if value, ok := lookupEnv("STORAGE_ACCESS_KEY", "MINIO_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := lookupEnv("STORAGE_SECRET_KEY", "MINIO_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := lookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
