package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	MusicDir     string `toml:"music_dir"`
	DownloadsDir string `toml:"downloads_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Queue contains scheduler and claim protocol settings.
type Queue struct {
	MaxConcurrent       int     `toml:"max_concurrent"`
	IdlePollInterval    float64 `toml:"idle_poll_interval"`
	DispatchDelay       float64 `toml:"dispatch_delay"`
	ReleaseSlotWhenIdle bool    `toml:"release_slot_when_idle"`
	ClaimLockBackend    string  `toml:"claim_lock_backend"`
	ClaimLockTTL        int     `toml:"claim_lock_ttl"`
	RedisURL            string  `toml:"redis_url"`
}

// Download contains settings for the yt-dlp fetch step.
type Download struct {
	YtDlpBinary     string  `toml:"ytdlp_binary"`
	AudioFormat     string  `toml:"audio_format"`
	Timeout         int     `toml:"timeout"`
	MetadataTimeout int     `toml:"metadata_timeout"`
	StableMaxWait   float64 `toml:"stable_max_wait"`
	StableInterval  float64 `toml:"stable_interval"`
	StableChecks    int     `toml:"stable_checks"`
}

// Conversion contains settings for the FLAC transcode step and its lock protocol.
type Conversion struct {
	FFmpegBinary      string  `toml:"ffmpeg_binary"`
	FFprobeBinary     string  `toml:"ffprobe_binary"`
	Timeout           int     `toml:"timeout"`
	CompressionLevel  int     `toml:"compression_level"`
	MinInputBytes     int64   `toml:"min_input_bytes"`
	ValidateInput     bool    `toml:"validate_input"`
	LockMaxWait       float64 `toml:"lock_max_wait"`
	LockPollInterval  float64 `toml:"lock_poll_interval"`
	LockRetryInterval float64 `toml:"lock_retry_interval"`
	StableMaxWait     float64 `toml:"stable_max_wait"`
	StableInterval    float64 `toml:"stable_interval"`
	StableChecks      int     `toml:"stable_checks"`
}

// Library contains configuration for the music library layout.
type Library struct {
	IncludeYearInAlbum bool   `toml:"include_year_in_album"`
	DefaultAlbum       string `toml:"default_album"`
	OverwriteExisting  bool   `toml:"overwrite_existing"`
}

// Plex contains configuration for Plex Media Server library refreshes.
type Plex struct {
	URL              string `toml:"url"`
	Token            string `toml:"token"`
	LibrarySectionID string `toml:"library_section_id"`
	AutoScan         bool   `toml:"auto_scan"`
}

// Storage contains configuration for mirroring filed tracks to an S3-compatible bucket.
type Storage struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	TaskRetentionHours int `toml:"task_retention_hours"`
	CleanupInterval    int `toml:"cleanup_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tunevault.
//
// Configuration sections by subsystem:
//   - Paths: music library, download scratch, state and log directories, API bind
//   - Queue: concurrency slots, idle polling and the claim lock backend
//   - Download: yt-dlp invocation and output stabilization
//   - Conversion: ffmpeg FLAC transcode and the per-file lock protocol
//   - Library: folder naming rules
//   - Plex: library refresh after filing
//   - Storage: optional object storage mirror
//   - Notifications: ntfy push notification settings
//   - Workflow: heartbeats and housekeeping
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Download      Download      `toml:"download"`
	Conversion    Conversion    `toml:"conversion"`
	Library       Library       `toml:"library"`
	Plex          Plex          `toml:"plex"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tunevault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// MusicDir is created on a best-effort basis so the daemon can run when
// network storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadsDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MusicDir) != "" {
		_ = os.MkdirAll(c.Paths.MusicDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite file shared by the job queue and library catalog.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "tunevault.db")
}

// ClaimLockPath returns the lock file that serializes job claims across processes.
func (c *Config) ClaimLockPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.claim.lock")
}

// DaemonLockPath returns the lock file guarding against two daemons per state dir.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "tunevaultd.lock")
}

// DaemonLogPath returns the file the daemon tees its log output into.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "tunevaultd.log")
}

// IdlePollInterval is the scheduler sleep after an empty claim.
func (c *Config) IdlePollInterval() time.Duration {
	return seconds(c.Queue.IdlePollInterval)
}

// DispatchDelay is the scheduler pause after each dispatch.
func (c *Config) DispatchDelay() time.Duration {
	return seconds(c.Queue.DispatchDelay)
}

// Seconds converts a fractional seconds setting into a duration.
func Seconds(value float64) time.Duration {
	return seconds(value)
}

func seconds(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
