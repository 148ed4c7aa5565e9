// Package objectstore keeps uploaded documents in S3-compatible storage.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignFunc func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

type Store struct {
	api        objectAPI
	presign    presignFunc
	bucket     string
	prefix     string
	presignTTL time.Duration
	logger     *slog.Logger
}

// New builds a store against cfg.Endpoint using static credentials.
func New(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	presigner := s3.NewPresignClient(client)

	presign := func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
		req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}

	return newStore(client, presign, cfg, logger), nil
}

func newStore(api objectAPI, presign presignFunc, cfg config.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:        api,
		presign:    presign,
		bucket:     cfg.Bucket,
		prefix:     cfg.UploadPrefix,
		presignTTL: cfg.PresignTTL,
		logger:     logger,
	}
}

// NewKey returns a fresh object key under the upload prefix that keeps the
// original file extension.
func (s *Store) NewKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return s.prefix + time.Now().UTC().Format("2006/01/02/") + uuid.NewString() + ext
}

// Put stores body under key.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		s.logger.Error("objectstore.put_error", "key", key, "error", err)
		return fmt.Errorf("put object %s: %w", key, err)
	}
	s.logger.Info("objectstore.put", "key", key, "bytes", len(body))
	return nil
}

// Get reads the object under key. A missing object is terminal; anything
// else is assumed to be a storage hiccup.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, policy.Transient(fmt.Errorf("read object %s: %w", key, err), "The uploaded file could not be read yet. It will be retried.")
	}
	return b, nil
}

// PresignGet returns a time-limited download URL for key. A ttl of zero uses
// the configured default.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.presignTTL
	}
	url, err := s.presign(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", policy.Transient(fmt.Errorf("presign %s: %w", key, err), "The uploaded file could not be accessed yet. It will be retried.")
	}
	return url, nil
}

func classify(key string, err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return policy.Terminal(fmt.Errorf("object %s: %w", key, err), "The uploaded file could not be found. Please upload it again.")
	}
	return policy.Transient(fmt.Errorf("get object %s: %w", key, err), "The uploaded file could not be read yet. It will be retried.")
}
