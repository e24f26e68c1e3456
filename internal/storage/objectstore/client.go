package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the S3-compatible store settings. Loaded once at startup
// and never mutated.
type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PathStyle     bool
	PublicBaseURL string

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Receipt describes a completed object write.
type Receipt struct {
	Key      string
	ETag     string
	URL      string
	Attempts int
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client wraps a single logical connection to the object store. Writes are
// whole-object puts; retrying the same (key, payload) pair is idempotent, so
// transient failures are retried here with exponential backoff and jitter.
type Client struct {
	api       s3API
	bucket    string
	objectURL func(key string) string
	logger    *log.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewClient builds a client against cfg.Endpoint. The SDK's own retry layer
// is disabled; the Put loop owns all retry decisions.
func NewClient(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("objectstore: empty endpoint")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("objectstore: empty bucket")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("objectstore: missing credentials")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.PathStyle
	})
	return newClient(api, cfg, logger), nil
}

func newClient(api s3API, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 5 * time.Second
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	base = strings.TrimRight(base, "/")

	return &Client{
		api:         api,
		bucket:      cfg.Bucket,
		objectURL:   func(key string) string { return base + "/" + key },
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

// Put writes payload under key, retrying transient failures up to the
// configured ceiling. Terminal failures and context cancellation return
// without further attempts.
func (c *Client) Put(ctx context.Context, key string, payload []byte) (*Receipt, error) {
	if key == "" {
		return nil, errors.New("objectstore: empty key")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(payload),
			ContentLength: aws.Int64(int64(len(payload))),
			ContentType:   aws.String("application/octet-stream"),
		})
		if err == nil {
			return &Receipt{
				Key:      key,
				ETag:     aws.ToString(out.ETag),
				URL:      c.objectURL(key),
				Attempts: attempt,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, &StoreError{Op: "put", Key: key, Attempts: attempt, Err: ctx.Err()}
		}
		if !isTransient(err) {
			return nil, &StoreError{Op: "put", Key: key, Attempts: attempt, Err: err}
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		delay := c.backoff(attempt)
		c.logger.Printf("objectstore: put %s attempt %d/%d failed, retrying in %s: %v",
			key, attempt, c.maxAttempts, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &StoreError{Op: "put", Key: key, Attempts: attempt, Err: ctx.Err()}
		}
	}
	return nil, &StoreError{Op: "put", Key: key, Transient: true, Attempts: c.maxAttempts, Err: lastErr}
}

// Get reads an object back. Used by the end-to-end tests and by operators
// verifying stored snapshots; single attempt, no retry.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Transient: isTransient(err), Err: err}
	}
	defer out.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, &StoreError{Op: "get", Key: key, Transient: true, Err: err}
	}
	return buf.Bytes(), nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	// Jitter in [delay/2, delay].
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
