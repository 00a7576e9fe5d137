package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"tunevault/internal/config"
	"tunevault/internal/deps"
	"tunevault/internal/services/plex"
)

const serviceCheckTimeout = 5 * time.Second

// CheckPlex verifies Plex connectivity and that a music section exists.
func CheckPlex(ctx context.Context, baseURL, token string) Result {
	const name = "Plex"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	svc := plex.NewHTTPService(base, strings.TrimSpace(token), "", nil, nil)
	sections, err := svc.Sections(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	for _, section := range sections {
		if section.Type == "artist" {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (music section %s %q)", section.Key, section.Title)}
		}
	}
	return Result{Name: name, Detail: "reachable but no music library section"}
}

// CheckRedis verifies the claim lock Redis server answers PING.
func CheckRedis(ctx context.Context, redisURL string) Result {
	const name = "Redis claim lock"

	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	client := redis.NewClient(opts)
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: opts.Addr}
}

// CheckObjectStorage verifies the mirror endpoint is reachable with the
// configured credentials. A missing bucket passes; the mirror creates it.
func CheckObjectStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if endpoint == "" || bucket == "" {
		return Result{Name: name, Detail: "missing endpoint or bucket"}
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("client setup failed (%v)", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, bucket)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	if !exists {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (bucket %s will be created)", endpoint, bucket)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s/%s", endpoint, bucket)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
