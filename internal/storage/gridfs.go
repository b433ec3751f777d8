package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/edubridge/edubridge-backend/internal/apperr"
)

// DefaultIOTimeout: дедлайн потока, если у контекста своего нет.
const DefaultIOTimeout = 2 * time.Minute

// GridFS хранит вложения в MongoDB GridFS; имя файла в бакете = путь объекта.
// Bucket общий для всех запросов, поэтому дедлайны ставятся только на потоки.
type GridFS struct {
	client  *mongo.Client
	bucket  *gridfs.Bucket
	baseURL string
}

func OpenGridFS(ctx context.Context, uri, database, baseURL string) (*GridFS, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName("chat_files"))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &GridFS{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// ioDeadline: дедлайн контекста или now+DefaultIOTimeout.
func ioDeadline(ctx context.Context, now time.Time) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return now.Add(DefaultIOTimeout)
}

func (g *GridFS) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	us, err := g.bucket.OpenUploadStream(path, opts)
	if err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	if err := us.SetWriteDeadline(ioDeadline(ctx, time.Now())); err != nil {
		_ = us.Abort()
		return "", err
	}
	if _, err := io.Copy(us, r); err != nil {
		_ = us.Abort()
		return "", fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	if err := us.Close(); err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	return FileURL(g.baseURL, path), nil
}

func (g *GridFS) Open(ctx context.Context, path string) (io.ReadCloser, Object, error) {
	ds, err := g.bucket.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, Object{}, apperr.Wrap(apperr.ErrNotFound, err)
		}
		return nil, Object{}, err
	}
	if err := ds.SetReadDeadline(ioDeadline(ctx, time.Now())); err != nil {
		_ = ds.Close()
		return nil, Object{}, err
	}
	obj := Object{Path: path, ContentType: "application/octet-stream"}
	if f := ds.GetFile(); f != nil {
		obj.Size = f.Length
		if ct, ok := f.Metadata.Lookup("contentType").StringValueOK(); ok && ct != "" {
			obj.ContentType = ct
		}
	}
	return ds, obj, nil
}

func (g *GridFS) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}
