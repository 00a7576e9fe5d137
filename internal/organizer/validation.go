package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tunevault/internal/services"
)

// ValidateFiled verifies that path is a non-empty regular file inside musicDir.
func ValidateFiled(musicDir, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return services.Wrap(services.ErrValidation, stageName, "validate output", "organization produced an empty target path", nil)
	}
	rel, err := filepath.Rel(filepath.Clean(musicDir), clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return services.Wrap(services.ErrValidation, stageName, "validate output",
			fmt.Sprintf("%s is outside the music dir %s", clean, musicDir), err)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "validate output", "filed track missing", err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrValidation, stageName, "validate output",
			fmt.Sprintf("%s is not a regular file", clean), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, stageName, "validate output",
			fmt.Sprintf("%s is empty", clean), nil)
	}
	return nil
}
