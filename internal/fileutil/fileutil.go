// Package fileutil holds filesystem helpers shared by the download,
// conversion and library stages.
package fileutil

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileVerified copies src to dst through a temporary sibling of dst, then
// re-reads both files and only renames the copy into place when their
// SHA-256 digests agree. dst keeps the permission bits of src.
func CopyFileVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".copy-*")
	if err != nil {
		return fmt.Errorf("create temp copy: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := copyInto(tmp, src); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp copy: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp copy: %w", err)
	}

	want, err := fileDigest(src)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	got, err := fileDigest(tmpPath)
	if err != nil {
		return fmt.Errorf("hash copy: %w", err)
	}
	if want != got {
		return fmt.Errorf("copy hash mismatch for %s", filepath.Base(src))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("commit copy: %w", err)
	}
	committed = true
	return nil
}

func copyInto(dst *os.File, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := io.Copy(dst, in); err != nil {
		return fmt.Errorf("copy bytes: %w", err)
	}
	return dst.Sync()
}

func fileDigest(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
