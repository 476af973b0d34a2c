package s3

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

const presignLifetime = 15 * time.Minute

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	UsePathStyle    bool
}

// Client archives uploaded documents in an S3-compatible bucket.
type Client struct {
	Client *s3.Client
	Bucket *string
}

func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	opts := []func(*s3config.LoadOptions) error{
		s3config.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" {
		opts = append(opts, s3config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.AccessKeySecret, ""),
		))
	}
	cfg, err := s3config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load s3 config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})
	return &Client{
		Client: client,
		Bucket: aws.String(config.Bucket),
	}, nil
}

// UploadObject uploads content under key and returns the key.
func (c *Client) UploadObject(ctx context.Context, key string, fileType string, content io.Reader) (string, error) {
	uploader := manager.NewUploader(c.Client)
	putInput := s3.PutObjectInput{
		Bucket:      c.Bucket,
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
		Body:        content,
	}
	if _, err := uploader.Upload(ctx, &putInput); err != nil {
		return "", errors.Wrapf(err, "failed to upload %s", key)
	}
	return key, nil
}

// PresignGetObject returns a short-lived download link for key.
func (c *Client) PresignGetObject(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(c.Client)
	presignResult, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignLifetime
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to presign %s", key)
	}
	return presignResult.URL, nil
}
