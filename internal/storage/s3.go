package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// Environment variables holding static credentials for S3-compatible
// services. When unset the default AWS credential chain is used.
const (
	EnvS3AccessKeyID     = "RISKSHIELD_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "RISKSHIELD_S3_SECRET_ACCESS_KEY"
)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, for S3-compatible services; forces path-style addressing

	// FetchTimeout bounds one presigned download. Zero uses DefaultFetchTimeout.
	FetchTimeout time.Duration
}

// DefaultFetchTimeout bounds presigned downloads when S3Options leaves it unset.
const DefaultFetchTimeout = 2 * time.Minute

// S3Store keeps objects in an S3 bucket. Downloads go through presigned GET
// URLs fetched over plain HTTP.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	http      *http.Client
	bucket    string
	prefix    string
}

// NewS3Store builds a client from the default AWS config chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if id, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey); id != "" && secret != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return newS3Store(client, opts, &http.Client{Timeout: timeout}), nil
}

func newS3Store(client *s3.Client, opts S3Options, hc *http.Client) *S3Store {
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  manager.NewUploader(client),
		http:      hc,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
	}
}

// Put uploads r under key. Large bodies are sent as a multipart upload.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          r,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// SignedURL presigns a GET for key valid for ttl.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return req.URL, nil
}

// Fetch downloads a presigned URL.
func (s *S3Store) Fetch(ctx context.Context, signedURL string) (io.ReadCloser, error) {
	return httpFetch(ctx, s.http, signedURL)
}

// ValidateSetup checks that the bucket exists and is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// httpFetch GETs url and returns the body. Any non-200 status is an error.
func httpFetch(ctx context.Context, hc *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching object: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching object: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// Compile-time check that S3Store implements shield.ObjectStore interface
var _ shield.ObjectStore = (*S3Store)(nil)
