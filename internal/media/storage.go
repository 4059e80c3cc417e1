package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage persists uploaded videos into a transient directory. Filenames are
// generated per upload so concurrent submissions never share a path.
type Storage struct {
	dir    string
	retain bool
	logger *zap.Logger
}

func NewStorage(dir string, retain bool, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create upload directory %s: %w", dir, err)
	}
	return &Storage{dir: dir, retain: retain, logger: logger}, nil
}

// SaveUpload writes the uploaded stream to a fresh file and returns its path.
// An empty stream is an error; the pipeline treats it as a missing upload.
func (s *Storage) SaveUpload(src io.Reader, ext string) (string, error) {
	if src == nil {
		return "", fmt.Errorf("no upload stream")
	}
	if ext == "" {
		ext = ".webm"
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("cannot create upload file: %w", err)
	}

	written, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err != nil {
		s.Cleanup(path)
		return "", fmt.Errorf("cannot write upload file: %w", err)
	}
	if closeErr != nil {
		s.Cleanup(path)
		return "", fmt.Errorf("cannot finalize upload file: %w", closeErr)
	}
	if written == 0 {
		s.Cleanup(path)
		return "", fmt.Errorf("empty upload stream")
	}

	return path, nil
}

// Cleanup deletes transient files. Failures are logged, never propagated; the
// retain flag skips deletion entirely for debugging.
func (s *Storage) Cleanup(paths ...string) {
	if s.retain {
		return
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove transient file", zap.String("path", path), zap.Error(err))
		}
	}
}
