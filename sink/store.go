package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// maxNameAttempts bounds the "name (n).ext" search when a key is taken.
const maxNameAttempts = 1000

// StoreSink writes completed files to a lode Store.
// Existing keys are never overwritten; a numbered variant is chosen instead.
type StoreSink struct {
	factory lode.StoreFactory
	prefix  string
	locate  func(key string) string

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewStoreSink creates a sink over an arbitrary store factory.
// prefix is prepended to every key. locate maps a key to the location string
// returned by Save; nil returns the key itself.
func NewStoreSink(factory lode.StoreFactory, prefix string, locate func(key string) string) *StoreSink {
	if locate == nil {
		locate = func(key string) string { return key }
	}
	return &StoreSink{
		factory: factory,
		prefix:  strings.Trim(prefix, "/"),
		locate:  locate,
	}
}

// NewFS creates a sink writing into a local directory, creating it if needed.
func NewFS(root string) (*StoreSink, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrapStorageError(err, "init", root)
	}
	return NewStoreSink(lode.NewFSFactory(root), "", func(key string) string {
		return filepath.Join(root, filepath.FromSlash(key))
	}), nil
}

// S3Config holds configuration for the S3 sink.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers such as MinIO.
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
// A leading "s3://" is accepted.
func ParseS3Path(p string) (bucket, prefix string) {
	p = strings.TrimPrefix(p, "s3://")
	bucket, prefix, _ = strings.Cut(p, "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewS3 creates a sink writing to an S3 bucket.
// Credentials come from the AWS SDK default chain.
func NewS3(ctx context.Context, cfg S3Config) (*StoreSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	factory := func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}
	bucketPrefix := strings.Trim(cfg.Prefix, "/")
	return NewStoreSink(factory, "", func(key string) string {
		return "s3://" + path.Join(cfg.Bucket, bucketPrefix, key)
	}), nil
}

// Save implements Sink.
func (s *StoreSink) Save(ctx context.Context, filename string, data []byte) (string, error) {
	name, err := SafeName(filename)
	if err != nil {
		return "", err
	}

	store, err := s.getOrCreateStore()
	if err != nil {
		return "", wrapStorageError(err, "init", "")
	}

	key, err := s.freeKey(ctx, store, name)
	if err != nil {
		return "", err
	}
	if err := store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", wrapStorageError(err, "write", key)
	}
	return s.locate(key), nil
}

func (s *StoreSink) getOrCreateStore() (lode.Store, error) {
	s.storeOnce.Do(func() {
		s.store, s.storeErr = s.factory()
	})
	return s.store, s.storeErr
}

func (s *StoreSink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// freeKey returns the first unused key among name, "base (1).ext", "base (2).ext", ...
func (s *StoreSink) freeKey(ctx context.Context, store lode.Store, name string) (string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// Dotfiles such as ".env" have no separate extension.
		base, ext = name, ""
	}

	for n := range maxNameAttempts {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		key := s.key(candidate)
		exists, err := store.Exists(ctx, key)
		if err != nil {
			return "", wrapStorageError(err, "stat", key)
		}
		if !exists {
			return key, nil
		}
	}
	return "", &StorageError{
		Kind: ErrStorage,
		Op:   "stat",
		Path: s.key(name),
		Err:  fmt.Errorf("no free name after %d attempts", maxNameAttempts),
	}
}

// Verify StoreSink implements Sink.
var _ Sink = (*StoreSink)(nil)
