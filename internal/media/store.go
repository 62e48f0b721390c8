// Package media stores uploaded files and operator attachments in an S3 compatible bucket.
package media

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object is a stored file.
type Object struct {
	PublicURL   string `json:"url"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store persists conversation media.
type Store interface {
	Upload(ctx context.Context, conversationID string, data []byte, filename, contentType string) (*Object, error)
	Delete(ctx context.Context, storagePath string) error
}

// objectKey lays objects out per conversation with a random name, keeping only a
// sanitized extension from the original filename when the type has none.
func objectKey(conversationID, filename, contentType string) string {
	ext := Extension(contentType)
	if ext == "" {
		ext = sanitizeExt(path.Ext(filename))
	}
	return path.Join("conversations", conversationID, uuid.NewString()+ext)
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
