// Package storage keeps message attachments on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"campushub/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("attachment exceeds size limit")

// LocalStorage 附件保存在 root 目录下，Path 为相对 root 的路径
type LocalStorage struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

func NewLocalStorage(root string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{root: root, maxBytes: maxBytes, now: time.Now}, nil
}

func (s *LocalStorage) Root() string {
	return s.root
}

// Save writes data under <root>/<yyyy>/<mm>/<uuid><ext>. The mime type is sniffed
// from the content when the client sent none or a generic one.
func (s *LocalStorage) Save(ctx context.Context, data []byte, name, mimeType string) (*models.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), s.maxBytes)
	}

	detected := mimetype.Detect(data)
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detected.String()
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = detected.Extension()
	}

	now := s.now()
	rel := path.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}

	if name == "" {
		name = path.Base(rel)
	}
	return &models.Attachment{
		Name:     filepath.Base(name),
		Path:     rel,
		Size:     int64(len(data)),
		MimeType: mimeType,
	}, nil
}

// Delete removes the blob; a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, a *models.Attachment) error {
	if a == nil || a.Path == "" {
		return nil
	}
	full, err := s.resolve(a.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolve 防止路径穿越到 root 之外
func (s *LocalStorage) resolve(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("attachment path %q escapes storage root", rel)
	}
	return full, nil
}
