package store

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/git-pkgs/npm2maven/internal/digest"
	"github.com/git-pkgs/npm2maven/internal/event"
)

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Enabled reports whether a mirror is configured.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// objectClient is the part of *minio.Client the mirror uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror copies every written artifact, with its checksum and signature
// files, into an S3-compatible bucket under the same repository key.
type Mirror struct {
	client objectClient
	store  *Store
	bucket string
	region string
	prefix string

	initMu sync.Mutex
	ready  bool
}

// NewMirror connects to the bucket described by cfg.
func NewMirror(cfg S3Config, s *Store) (*Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newMirror(client, s, bucket, region, cfg.Prefix), nil
}

func newMirror(c objectClient, s *Store, bucket, region, prefix string) *Mirror {
	return &Mirror{
		client: c,
		store:  s,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ensureBucket creates the bucket on first use. A failed attempt is retried by
// the next upload.
func (m *Mirror) ensureBucket(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.ready {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return err
		}
	}
	m.ready = true
	return nil
}

// Handle is an event.Handler. Upload failures are logged and dropped.
func (m *Mirror) Handle(ctx context.Context, ev event.Written) {
	if err := m.Upload(ctx, ev.Path); err != nil {
		slog.ErrorContext(ctx, "mirror upload failed", "path", ev.Path, "bucket", m.bucket, "error", err)
	}
}

// Upload puts p and whichever of its auxiliary files exist.
func (m *Mirror) Upload(ctx context.Context, p string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	key, err := m.store.Key(p)
	if err != nil {
		return err
	}

	uploads := []string{p}
	for _, suffix := range []string{digest.SHA1, digest.MD5, digest.ASC} {
		if m.store.Exists(p + suffix) {
			uploads = append(uploads, p+suffix)
		}
	}
	for _, f := range uploads {
		objectName := m.objectName(key + strings.TrimPrefix(f, p))
		_, err := m.client.FPutObject(ctx, m.bucket, objectName, f, minio.PutObjectOptions{
			ContentType: contentType(f),
		})
		if err != nil {
			mirrored.WithLabelValues("error").Inc()
			return fmt.Errorf("put %s: %w", objectName, err)
		}
		mirrored.WithLabelValues("ok").Inc()
	}
	slog.DebugContext(ctx, "mirrored artifact", "key", key, "objects", len(uploads))
	return nil
}

func (m *Mirror) objectName(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".pom":
		return "text/xml"
	case ".jar":
		return "application/java-archive"
	case ".tgz":
		return "application/gzip"
	case ".sha1", ".md5":
		return "text/plain"
	case ".asc":
		return "application/pgp-signature"
	}
	if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
