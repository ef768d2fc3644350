package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Upload categories.
const (
	CategoryPatientPhoto    = "patient-photos"
	CategoryVisitAttachment = "visit-attachments"
)

var categoryRules = map[string]struct {
	extensions map[string]bool
	mimes      []string
}{
	CategoryPatientPhoto: {
		extensions: map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true},
		mimes:      []string{"image/jpeg", "image/png", "image/webp"},
	},
	CategoryVisitAttachment: {
		extensions: map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true},
		mimes:      []string{"application/pdf", "image/jpeg", "image/png"},
	},
}

// Upload is a file received from a client.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// StoredFile describes a file written by the storage.
type StoredFile struct {
	Path     string
	MIMEType string
	Size     int64
}

// FileStorage validates and stores uploaded files.
type FileStorage interface {
	UploadWithValidation(ctx context.Context, file Upload, category string) (StoredFile, error)
	Delete(path string) (bool, error)
	Open(path string) (*os.File, error)
}

// LocalStorage keeps files under a root directory.
type LocalStorage struct {
	root     string
	maxBytes int64
}

func NewLocalStorage(cfg config.StorageConfig) *LocalStorage {
	return &LocalStorage{root: cfg.Root, maxBytes: cfg.MaxUploadBytes}
}

func rejected(msg string) *apperr.Error {
	return apperr.Validation(apperr.CodeFileRejected, msg)
}

// UploadWithValidation checks the extension, size and sniffed content type
// against the category's allow-list, then writes the file. The returned path
// is relative to the storage root.
func (s *LocalStorage) UploadWithValidation(ctx context.Context, file Upload, category string) (StoredFile, error) {
	rules, ok := categoryRules[category]
	if !ok {
		return StoredFile{}, fmt.Errorf("unknown upload category %q", category)
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	if !rules.extensions[ext] {
		return StoredFile{}, rejected("file type " + ext + " is not allowed").WithDetail("extension", ext)
	}
	if file.Size <= 0 || file.Size > s.maxBytes {
		return StoredFile{}, rejected("file is empty or too large").WithDetail("maxBytes", s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(file.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mime := mimetype.Detect(head)
	if !mimetype.EqualsAny(mime.String(), rules.mimes...) {
		return StoredFile{}, rejected("file content does not match an allowed type").WithDetail("detected", mime.String())
	}

	rel := filepath.Join(category, uuid.NewString()+ext)
	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create upload file: %w", err)
	}
	// Read one byte past the limit to catch clients that understate Size.
	written, err := io.Copy(out, io.LimitReader(io.MultiReader(bytes.NewReader(head), file.Content), s.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = rejected("file is empty or too large").WithDetail("maxBytes", s.maxBytes)
	}
	if err != nil {
		_ = os.Remove(full)
		return StoredFile{}, err
	}
	return StoredFile{Path: filepath.ToSlash(rel), MIMEType: mime.String(), Size: written}, nil
}

// Delete removes a stored file. It reports false when the file did not exist.
func (s *LocalStorage) Delete(path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open returns a reader for a stored file.
func (s *LocalStorage) Open(path string) (*os.File, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *LocalStorage) resolve(path string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}
