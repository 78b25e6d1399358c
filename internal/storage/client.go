// Package storage is the object-storage client: uploads, listings and
// deletions against one bucket, plus public URL construction.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mauv0809/finboard/internal/config"
	"go.uber.org/zap"
)

const (
	// pageSize is the S3 maximum number of keys per listing call.
	pageSize = 1000
	// deleteBatch is the S3 maximum number of keys per DeleteObjects call.
	deleteBatch      = 1000
	defaultMaxPages  = 10
	publicReadACL    = "public-read"
	folderMarkerType = "application/x-directory"
)

// API is the subset of *s3.Client the storage client uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Client talks to a single bucket. It is safe for concurrent use.
type Client struct {
	api        API
	bucket     string
	region     string
	accelerate bool
	maxPages   int
	logger     *zap.Logger
}

type Option func(*Client)

// WithAPI replaces the S3 client, e.g. with an in-memory fake.
func WithAPI(api API) Option {
	return func(c *Client) { c.api = api }
}

// WithMaxPages caps how many listing pages one listing follows.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// New creates a storage client. It fails when credentials or the bucket are
// missing since no request could succeed without them.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		accelerate: cfg.Accelerate,
		maxPages:   defaultMaxPages,
		logger:     logger.Named("storage"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		}
		if cfg.Timeout > 0 {
			loadOpts = append(loadOpts, awsconfig.WithHTTPClient(
				awshttp.NewBuildableClient().WithTimeout(cfg.Timeout),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		c.api = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UseAccelerate = cfg.Accelerate
		})
	}

	c.logger.Debug("storage client ready",
		zap.String("bucket", c.bucket),
		zap.String("region", c.region),
		zap.Bool("accelerate", c.accelerate))
	return c, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string { return c.bucket }

// ObjectURL is the public URL of key.
func (c *Client) ObjectURL(key string) string {
	host := fmt.Sprintf("%s.s3.%s.amazonaws.com", c.bucket, c.region)
	if c.accelerate {
		host = fmt.Sprintf("%s.s3-accelerate.amazonaws.com", c.bucket)
	}
	return "https://" + host + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ObjectKey places name inside folder. An empty folder means the bucket root.
func ObjectKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// BaseName is the last path segment of key.
func BaseName(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

func folderPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

func (c *Client) bucketPtr() *string { return aws.String(c.bucket) }
