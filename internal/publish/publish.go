// Package publish uploads an output tree to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var contentTypes = map[string]string{
	".csv":     "text/csv",
	".geojson": "application/geo+json",
	".json":    "application/json",
	".gpkg":    "application/geopackage+sqlite3",
	".kml":     "application/vnd.google-earth.kml+xml",
	".kmz":     "application/vnd.google-earth.kmz",
	".png":     "image/png",
	".html":    "text/html",
}

// ContentType guesses the content type of an object from its extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey maps a file below root to its key below prefix. Keys always
// use forward slashes.
func ObjectKey(root, file, prefix string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", errors.Wrapf(err, "%s is not below %s", file, root)
	}
	if strings.HasPrefix(rel, "..") {
		return "", errors.Errorf("%s is not below %s", file, root)
	}
	return path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel)), nil
}

// Files lists the regular files below root in lexical order. Hidden files
// and directories are skipped.
func Files(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, p)
		}
		return nil
	})
	return out, errors.Wrapf(err, "failed to walk %s", root)
}

// ObjectStore is the part of *minio.Client the publisher uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, file string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewClient connects to an S3-compatible endpoint with static keys.
func NewClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	if endpoint == "" {
		return nil, errors.New("STORAGE_ENDPOINT not set in environment variables")
	}
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	return c, errors.Wrap(err, "failed to create object storage client")
}

// Publisher uploads files to Bucket below Prefix.
type Publisher struct {
	Store  ObjectStore
	Bucket string
	Prefix string
	Logger *zap.Logger
}

// Publish uploads every file below root, creating the bucket when it does
// not exist. It returns the number of uploaded objects.
func (p *Publisher) Publish(ctx context.Context, root string) (int, error) {
	if p.Bucket == "" {
		return 0, errors.New("bucket name is empty")
	}
	exists, err := p.Store.BucketExists(ctx, p.Bucket)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to check bucket %s", p.Bucket)
	}
	if !exists {
		p.Logger.Info("Creating bucket", zap.String("bucket", p.Bucket))
		if err := p.Store.MakeBucket(ctx, p.Bucket, minio.MakeBucketOptions{}); err != nil {
			return 0, errors.Wrapf(err, "failed to create bucket %s", p.Bucket)
		}
	}

	files, err := Files(root)
	if err != nil {
		return 0, err
	}
	for i, f := range files {
		key, err := ObjectKey(root, f, p.Prefix)
		if err != nil {
			return i, err
		}
		info, err := p.Store.FPutObject(ctx, p.Bucket, key, f, minio.PutObjectOptions{ContentType: ContentType(f)})
		if err != nil {
			return i, errors.Wrapf(err, "failed to upload %s", f)
		}
		p.Logger.Info("Uploaded object",
			zap.String("key", key),
			zap.Int64("size", info.Size),
			zap.String("progress", progress(i+1, len(files))))
	}
	return len(files), nil
}

func progress(i, n int) string {
	return fmt.Sprintf("%d/%d", i, n)
}
