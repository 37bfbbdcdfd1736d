package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"engagement-controlplane/pkg/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewArchive))

func registerClient(c *config.Config) (*minio.Client, error) {
	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Error("failed to create MinIO client", zap.Error(err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Error("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Error("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
			return nil, err
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return client, nil
}

// ObjectPutter is the part of *minio.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive stores proof screenshots and returns the reference carried through the engine.
type Archive struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

func NewArchive(client *minio.Client, c *config.Config) *Archive {
	return &Archive{client: client, bucket: c.Minio.BucketName, now: time.Now}
}

// NewArchiveWith builds an archive over any putter. Used by tests.
func NewArchiveWith(client ObjectPutter, bucket string, now func() time.Time) *Archive {
	return &Archive{client: client, bucket: bucket, now: now}
}

// Put uploads one screenshot under <kind>/<actor>/<yyyy/mm/dd>/<uuid><ext> and returns "<bucket>/<key>".
func (a *Archive) Put(ctx context.Context, kind string, actor int64, filename, contentType string, r io.Reader, size int64) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("%s/%d/%s/%s%s", kind, actor, a.now().UTC().Format("2006/01/02"), uuid.NewString(), ext)

	info, err := a.client.PutObject(ctx, a.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"actor": fmt.Sprint(actor),
			"kind":  kind,
		},
	})
	if err != nil {
		zap.L().Error("failed to upload proof", zap.String("key", key), zap.Int64("actor", actor), zap.Error(err))
		return "", err
	}

	zap.L().Debug("proof uploaded", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return a.bucket + "/" + key, nil
}
