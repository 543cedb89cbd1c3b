package docs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/openapi"
	"github.com/stretchr/testify/assert"
)

// fakeBucket keeps uploaded objects in memory.
type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	truncate bool // report one byte less than stored
	failPut  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("not found")
	}
	size := int64(len(b))
	if f.truncate {
		size--
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(size)}, nil
}

func document() *openapi.Document {
	return openapi.Build(model.DefaultRegistry(), openapi.Options{Title: "AW Admin API", Version: "test"})
}

func TestPublish(t *testing.T) {
	is := assert.New(t)
	bucket := newFakeBucket()
	p := NewPublisher(bucket, "docs")

	results, err := p.Publish(context.Background(), document())
	is.Nil(err)
	is.Len(results, 2)
	is.Equal(JSONKey, results[0].Key)
	is.Equal(YAMLKey, results[1].Key)
	is.Equal(int64(len(bucket.objects[JSONKey])), results[0].Size)
	is.Equal("application/json", bucket.types[JSONKey])
	is.Equal("application/yaml", bucket.types[YAMLKey])
}

func TestPublishSizeMismatch(t *testing.T) {
	is := assert.New(t)
	bucket := newFakeBucket()
	bucket.truncate = true

	_, err := NewPublisher(bucket, "docs").Publish(context.Background(), document())
	is.ErrorContains(err, JSONKey)
}

func TestPublishUploadFailure(t *testing.T) {
	is := assert.New(t)
	bucket := newFakeBucket()
	bucket.failPut = errors.New("access denied")

	results, err := NewPublisher(bucket, "docs").Publish(context.Background(), document())
	is.Empty(results)
	is.ErrorContains(err, "access denied")
}

func TestDownloadURLWithoutPresigner(t *testing.T) {
	_, err := NewPublisher(newFakeBucket(), "docs").DownloadURL(context.Background(), JSONKey, 0)
	assert.Error(t, err)
}
