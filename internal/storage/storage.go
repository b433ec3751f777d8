// Package storage keeps chat attachments in an object bucket.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
)

type Object struct {
	Path        string
	ContentType string
	Size        int64
}

// Bucket: хранилище вложений; Put возвращает публичный URL объекта.
type Bucket interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, Object, error)
}

// FileURL строит ссылку вида {base}/files/{path} с экранированием сегментов.
func FileURL(base, path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/files/" + strings.Join(segs, "/")
}
