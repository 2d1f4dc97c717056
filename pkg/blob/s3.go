package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config controls the S3-compatible storage backend.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Insecure       bool
	ForcePathStyle bool
	CustomCreds    *credentials.Credentials
	Transport      http.RoundTripper
}

// S3Store implements Store backed by S3-compatible object storage.
type S3Store struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3Store builds a minio client from cfg. Credentials default to the
// usual env/file/IAM chain.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob: s3 bucket is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}
	creds := cfg.CustomCreds
	if creds == nil {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}
	options := &minio.Options{
		Creds:     creds,
		Secure:    !cfg.Insecure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("blob: create s3 client: %w", err)
	}
	return &S3Store{client: client, cfg: cfg}, nil
}

func (s *S3Store) Bucket() string { return s.cfg.Bucket }

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	if strings.TrimSpace(key) == "" {
		return ObjectInfo{}, fmt.Errorf("blob: empty key")
	}
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("blob: put %s: %w", key, err)
	}
	return ObjectInfo{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapS3Error(err)
	}
	// GetObject is lazy; Stat forces the first request and surfaces 404s.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, mapS3Error(err)
	}
	info := ObjectInfo{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Size:        st.Size,
		ContentType: st.ContentType,
		ModTime:     st.LastModified.UTC(),
	}
	return obj, info, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{}); err != nil {
		return mapS3Error(err)
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapS3Error(err)
	}
	return nil
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
