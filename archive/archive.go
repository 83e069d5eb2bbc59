// Package archive stores a snapshot of a group's membership before it is changed.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
}

type AWS struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// New returns an S3 store for s3://bucket/prefix targets and a local directory store otherwise. A blank
// target returns a nil store.
func New(ctx context.Context, target string, options AWS) (Store, error) {
	target = strings.TrimSpace(target)

	switch {
	case target == "":
		return nil, nil

	case strings.HasPrefix(target, "s3://"):
		bucket, prefix := parseS3(target)
		if bucket == "" {
			return nil, fmt.Errorf("invalid S3 archive '%s' - expected something like 's3://bucket/prefix'", target)
		}

		return NewS3(ctx, bucket, prefix, options)

	default:
		return &Local{Dir: target}, nil
	}
}

// Local stores snapshots under a local directory.
type Local struct {
	Dir string
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	file := filepath.Join(l.Dir, filepath.FromSlash(key))
	dir := filepath.Dir(file)

	if err := os.MkdirAll(dir, 0770); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".snapshot")
	if err != nil {
		return "", err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", err
	}

	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), file); err != nil {
		return "", err
	}

	return file, nil
}

type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, bucket, prefix string, options AWS) (*S3, error) {
	opts := []func(*awsConfig.LoadOptions) error{}

	if options.Region != "" {
		opts = append(opts, awsConfig.WithRegion(options.Region))
	}

	if options.Endpoint != "" {
		opts = append(opts, awsConfig.WithBaseEndpoint(options.Endpoint))
	}

	if options.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(options.AccessKeyID, options.SecretAccessKey, "")
		opts = append(opts, awsConfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS configuration (%w)", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if options.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &S3{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	object := objectKey(s.prefix, key)

	rq := s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		Body:        r,
		ContentType: aws.String("text/tab-separated-values"),
	}

	if _, err := s.client.PutObject(ctx, &rq); err != nil {
		return "", fmt.Errorf("error uploading snapshot to s3://%v/%v (%w)", s.bucket, object, err)
	}

	return fmt.Sprintf("s3://%v/%v", s.bucket, object), nil
}

// s3://bucket/some/path -> bucket, some/path
func parseS3(target string) (string, string) {
	path := strings.TrimPrefix(target, "s3://")
	bucket, prefix, _ := strings.Cut(path, "/")

	return bucket, strings.Trim(prefix, "/")
}

func objectKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}

	return prefix + "/" + key
}
