// Package blobstore uploads local files to S3-compatible object storage and
// returns their public URLs.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader moves a local file into the blob store. The local file is
// removed whether or not the upload succeeds.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Config holds the S3 connection settings.
type Config struct {
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	BaseEndpoint  string
	PublicBaseURL string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Store struct {
	client     putObjectAPI
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewS3Store builds a path-style S3 client, which MinIO requires.
func NewS3Store(ctx context.Context, c Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	publicBase := c.PublicBaseURL
	if publicBase == "" {
		publicBase = strings.TrimRight(c.BaseEndpoint, "/") + "/" + c.Bucket
	}

	return &S3Store{
		client:     client,
		bucket:     c.Bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}, nil
}

func (s *S3Store) objectKey(localPath string) string {
	d := s.now().UTC()
	return fmt.Sprintf("media/%d/%02d/%02d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(),
		strings.ToLower(filepath.Ext(localPath)))
}

// detectContentType sniffs the first 512 bytes and rewinds f.
func detectContentType(f *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func (s *S3Store) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("upload: empty path")
	}
	defer os.Remove(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	contentType, err := detectContentType(f)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	key := s.objectKey(localPath)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return s.publicBase + "/" + key, nil
}
