package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of *s3.Client the store needs, so tests can stub
// it out without standing up a real bucket.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store implements Store over an S3 (or S3-compatible) bucket.
type S3Store struct {
	client      S3Client
	bucket      string
	prefix      string
	parallelism int
}

// NewS3Store returns a Store backed by bucket, rooting every path under
// prefix. parallelism bounds how many concurrent requests callers should
// issue against it; S3 tolerates far more fan-out than local disk.
func NewS3Store(client S3Client, bucket, prefix string, parallelism int) *S3Store {
	if parallelism <= 0 {
		parallelism = 32
	}
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), parallelism: parallelism}
}

func (s *S3Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + strings.TrimPrefix(path, "/")
}

func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: s3 get %s: %w", path, err)
	}
	return out.Body, nil
}

func (s *S3Store) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Range:  aws.String(rng),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: s3 get range %s: %w", path, err)
	}
	return out.Body, nil
}

func (s *S3Store) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 put %s: %w", path, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, dir string) ([]ObjectMeta, error) {
	prefix := s.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []ObjectMeta
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: s3 list %s: %w", dir, err)
		}
		for _, obj := range resp.Contents {
			out = append(out, ObjectMeta{
				Path: strings.TrimPrefix(aws.ToString(obj.Key), s.prefix+"/"),
				Size: aws.ToInt64(obj.Size),
			})
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("objectstore: s3 delete %s: %w", path, err)
	}
	return nil
}

func (s *S3Store) IOParallelism() int { return s.parallelism }
