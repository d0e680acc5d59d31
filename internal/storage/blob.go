package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores an uploaded file and returns the URL it is served from.
type BlobStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ObjectName returns a generated name that keeps the original extension.
func ObjectName(original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	return uuid.NewString() + ext, nil
}

// SaveFile stores a multipart upload under a generated name.
func SaveFile(ctx context.Context, store BlobStore, fh *multipart.FileHeader) (string, error) {
	name, err := ObjectName(fh.Filename)
	if err != nil {
		return "", err
	}
	return saveAs(ctx, store, name, fh)
}

func saveAs(ctx context.Context, store BlobStore, name string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return store.Save(ctx, name, allowedExtensions[filepath.Ext(name)], src)
}

// SaveFiles stores uploads in order and returns their URLs in the same order.
// Nothing is stored unless every file has an allowed extension.
func SaveFiles(ctx context.Context, store BlobStore, files []*multipart.FileHeader) ([]string, error) {
	names := make([]string, len(files))
	for i, fh := range files {
		name, err := ObjectName(fh.Filename)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}

	urls := make([]string, 0, len(files))
	for i, fh := range files {
		url, err := saveAs(ctx, store, names[i], fh)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
