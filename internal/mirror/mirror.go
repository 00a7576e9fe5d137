package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tunevault/internal/config"
	"tunevault/internal/logging"
	"tunevault/internal/services"
)

const stageName = "mirror"

// Mirror uploads a filed track and returns the object key it was stored under.
type Mirror interface {
	Enabled() bool
	Upload(ctx context.Context, localPath string) (string, error)
}

// ObjectStore is the subset of *minio.Client the mirror relies on.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// New returns the mirror selected by the storage section of cfg.
func New(cfg *config.Config, logger *slog.Logger) (Mirror, error) {
	if cfg == nil || !cfg.Storage.Enabled {
		return disabled{}, nil
	}
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "configure", "storage.endpoint and storage.bucket are required when storage is enabled", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "connect", "minio client", err)
	}
	return NewWithClient(client, cfg.Paths.MusicDir, bucket, cfg.Storage.Prefix, logger), nil
}

// NewWithClient builds a mirror over an existing object store. Keys are the
// track path relative to musicDir, below prefix.
func NewWithClient(store ObjectStore, musicDir, bucket, prefix string, logger *slog.Logger) *S3Mirror {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &S3Mirror{
		store:    store,
		musicDir: filepath.Clean(musicDir),
		bucket:   bucket,
		prefix:   strings.Trim(strings.TrimSpace(prefix), "/"),
		logger:   logging.NewComponentLogger(logger, stageName),
	}
}

// S3Mirror uploads tracks with minio.
type S3Mirror struct {
	store    ObjectStore
	musicDir string
	bucket   string
	prefix   string
	logger   *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

func (m *S3Mirror) Enabled() bool { return true }

// Upload stores localPath under its library-relative key, creating the bucket
// on first use.
func (m *S3Mirror) Upload(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, stageName, "stat", "track is missing", err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "stat", "stat track", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, stageName, "stat", "expected a file, got a directory", nil)
	}

	key, err := m.ObjectKey(localPath)
	if err != nil {
		return "", err
	}
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath)))
	if strings.EqualFold(filepath.Ext(localPath), ".flac") || contentType == "" {
		contentType = "audio/flac"
	}
	uploaded, err := m.store.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "put object", fmt.Sprintf("upload %s", key), err)
	}
	m.logger.Info("track mirrored",
		logging.String(logging.FieldEventType, "track_mirrored"),
		logging.String("bucket", m.bucket),
		logging.String("object", key),
		logging.Int64("size_bytes", uploaded.Size),
	)
	return key, nil
}

// ObjectKey maps a library path to its object key.
func (m *S3Mirror) ObjectKey(localPath string) (string, error) {
	rel, err := filepath.Rel(m.musicDir, filepath.Clean(localPath))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", services.Wrap(services.ErrValidation, stageName, "object key", fmt.Sprintf("%s is outside the library", localPath), err)
	}
	key := filepath.ToSlash(rel)
	if m.prefix != "" {
		key = path.Join(m.prefix, key)
	}
	return key, nil
}

func (m *S3Mirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}
	exists, err := m.store.BucketExists(ctx, m.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "bucket exists", m.bucket, err)
	}
	if !exists {
		if err := m.store.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return services.Wrap(services.ErrTransient, stageName, "make bucket", m.bucket, err)
		}
		m.logger.Info("created mirror bucket", logging.String("bucket", m.bucket))
	}
	m.bucketReady = true
	return nil
}

type disabled struct{}

func (disabled) Enabled() bool                                  { return false }
func (disabled) Upload(context.Context, string) (string, error) { return "", nil }
