package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string][]byte
	types   map[string]string
	getErr  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

var testCfg = config.Storage{Bucket: "docs", UploadPrefix: "pdf-uploads/", PresignTTL: 15 * time.Minute}

func TestStore_PutGet(t *testing.T) {
	bucket := newFakeBucket()
	s := newStore(bucket, nil, testCfg, nil)

	require.NoError(t, s.Put(context.Background(), "pdf-uploads/a.pdf", []byte("%PDF-1.7"), "application/pdf"))
	assert.Equal(t, "application/pdf", bucket.types["pdf-uploads/a.pdf"])

	got, err := s.Get(context.Background(), "pdf-uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), got)
}

func TestStore_GetClassifiesErrors(t *testing.T) {
	bucket := newFakeBucket()
	s := newStore(bucket, nil, testCfg, nil)

	_, err := s.Get(context.Background(), "missing.pdf")
	kind, _ := policy.Classify(err)
	assert.Equal(t, config.ErrorKindTerminal, kind)

	bucket.getErr = errors.New("connection reset")
	_, err = s.Get(context.Background(), "missing.pdf")
	kind, _ = policy.Classify(err)
	assert.Equal(t, config.ErrorKindTransient, kind)
}

func TestStore_PresignGetUsesDefaultTTL(t *testing.T) {
	var gotTTL time.Duration
	presign := func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
		gotTTL = ttl
		return "https://signed.example/" + bucket + "/" + key, nil
	}
	s := newStore(newFakeBucket(), presign, testCfg, nil)

	url, err := s.PresignGet(context.Background(), "pdf-uploads/a.pdf", 0)

	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/docs/pdf-uploads/a.pdf", url)
	assert.Equal(t, 15*time.Minute, gotTTL)
}

func TestStore_NewKeyKeepsExtension(t *testing.T) {
	s := newStore(newFakeBucket(), nil, testCfg, nil)

	key := s.NewKey("Acme Census.XLSX")

	assert.True(t, strings.HasPrefix(key, "pdf-uploads/"))
	assert.True(t, strings.HasSuffix(key, ".xlsx"))
}
