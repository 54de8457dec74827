package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStore is the subset of the object storage client used for publishing
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// PublishConfig configures the object storage target
type PublishConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Publisher uploads a packaged output directory
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *zap.Logger
}

// NewPublisher connects to an S3-compatible endpoint
func NewPublisher(cfg PublishConfig, logger *zap.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return NewPublisherWithStore(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewPublisherWithStore creates a publisher over an existing client
func NewPublisherWithStore(store ObjectStore, bucket, prefix string, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Upload sends every file listed in dir's manifest, then the manifest itself,
// and returns the number of objects written
func (p *Publisher) Upload(ctx context.Context, dir string) (int, error) {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return 0, fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		return 0, fmt.Errorf("bucket %s does not exist", p.bucket)
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return 0, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return 0, fmt.Errorf("decode manifest: %w", err)
	}

	uploaded := 0
	names := make([]string, 0, len(manifest.Files)+1)
	for _, f := range manifest.Files {
		names = append(names, f.Path)
	}
	names = append(names, ManifestName)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		object := path.Join(p.prefix, name)
		opts := minio.PutObjectOptions{ContentType: contentType(name)}
		if _, err := p.store.FPutObject(ctx, p.bucket, object, filepath.Join(dir, filepath.FromSlash(name)), opts); err != nil {
			return uploaded, fmt.Errorf("upload %s: %w", object, err)
		}
		uploaded++
	}

	p.logger.Info("output published",
		zap.String("bucket", p.bucket),
		zap.String("prefix", p.prefix),
		zap.Int("objects", uploaded))
	return uploaded, nil
}

// Publish uploads the output directory
func (t *Toolkit) Publish(ctx context.Context) (bool, error) {
	if t.publisher == nil {
		return false, fmt.Errorf("publishing is not configured")
	}
	_, err := t.publisher.Upload(ctx, t.cfg.OutputDir)
	return done(err)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
