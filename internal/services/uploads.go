package services

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

// UploadStore owns the on-disk CSV uploads. Each upload gets an opaque
// token; the token is the only handle callers ever see, file paths never
// leave this package.
type UploadStore struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
}

// NewUploadStore prepares the storage directory
func NewUploadStore(dir string, maxSize int64, logger *slog.Logger) (*UploadStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierrors.FileSystemError("create upload directory", err)
	}
	return &UploadStore{dir: dir, maxSize: maxSize, logger: logger}, nil
}

// Save streams an upload to disk and returns its token. Uploads larger
// than the configured cap are rejected without keeping partial files.
func (s *UploadStore) Save(r io.Reader) (string, error) {
	token := uuid.NewString()
	path := s.pathFor(token)

	f, err := os.Create(path)
	if err != nil {
		return "", apierrors.FileSystemError("create upload file", err)
	}
	defer f.Close()

	// one extra byte to detect oversize uploads
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		os.Remove(path)
		return "", apierrors.FileSystemError("write upload", err)
	}
	if written > s.maxSize {
		os.Remove(path)
		return "", apierrors.ErrUploadTooLarge
	}

	s.logger.Info("upload stored",
		slog.String("token", token),
		slog.Int64("bytes", written),
	)
	return token, nil
}

// SaveDataset persists a synthesized dataset as CSV and returns its token.
// Used for the sample-data fallback when no upload exists yet.
func (s *UploadStore) SaveDataset(d *dataset.Dataset) (string, error) {
	token := uuid.NewString()
	path := s.pathFor(token)

	f, err := os.Create(path)
	if err != nil {
		return "", apierrors.FileSystemError("create sample file", err)
	}
	defer f.Close()

	if err := dataset.WriteCSV(d, f); err != nil {
		os.Remove(path)
		return "", apierrors.FileSystemError("write sample data", err)
	}

	s.logger.Info("sample dataset stored", slog.String("token", token))
	return token, nil
}

// Read returns the raw bytes of a stored upload. Unknown or malformed
// tokens map to the no-dataset error rather than leaking path details.
func (s *UploadStore) Read(token string) ([]byte, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, apierrors.ErrNoDataset
	}
	raw, err := os.ReadFile(s.pathFor(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.ErrNoDataset
		}
		return nil, apierrors.FileSystemError("read upload", err)
	}
	return raw, nil
}

// Exists reports whether a token refers to a stored upload
func (s *UploadStore) Exists(token string) bool {
	if _, err := uuid.Parse(token); err != nil {
		return false
	}
	_, err := os.Stat(s.pathFor(token))
	return err == nil
}

func (s *UploadStore) pathFor(token string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.csv", token))
}
