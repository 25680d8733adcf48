// Package s3 stores backup blobs in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// ErrNotConfigured is returned when the S3 settings are incomplete
var ErrNotConfigured = errors.New("missing S3 configuration")

// Client is a bucket-scoped S3 client
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewClient creates a client for an S3-compatible endpoint
func NewClient(ctx context.Context, host, accessKey, secretKey, bucket string) (*Client, error) {
	if host == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("us-east-1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(host)
		o.UsePathStyle = true // MinIO and most self-hosted S3
	})

	return &Client{s3Client: client, bucket: bucket}, nil
}

// NewClientFromSettings reads the endpoint and credentials from settings
func NewClientFromSettings(ctx context.Context, s storage.Settings) (*Client, error) {
	return NewClient(ctx, s.S3Host, s.S3AccessKey, s.S3SecretKey, s.S3Bucket)
}

// EnsureBucket creates the bucket if it does not exist yet
func (c *Client) EnsureBucket(ctx context.Context) error {
	if _, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err == nil {
		return nil
	}

	_, err := c.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) || strings.Contains(err.Error(), "StatusCode: 409") {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Put uploads data under key, creating the bucket on first use
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	if err := c.EnsureBucket(ctx); err != nil {
		return err
	}
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get downloads the object at key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Object describes one stored object
type Object struct {
	Key  string
	Size int64
}

// List returns every object under prefix, following continuation tokens
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	return objects, nil
}

// Latest returns the greatest key under prefix. Backup keys embed a sortable
// timestamp, so that is also the newest backup.
func (c *Client) Latest(ctx context.Context, prefix string) (string, error) {
	objects, err := c.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", fmt.Errorf("no backups found")
	}
	latest := objects[0].Key
	for _, obj := range objects[1:] {
		if obj.Key > latest {
			latest = obj.Key
		}
	}
	return latest, nil
}
