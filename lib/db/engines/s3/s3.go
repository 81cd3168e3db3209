// Package s3 implements a db.KVDB that stores every key as one object in an S3
// compatible bucket (AWS S3, MinIO, ...).
//
// Object layout: <prefix><key>, body = value. An expiration is kept in the object
// metadata entry "expires-at" (unix nanoseconds). Expired objects are invisible to
// Get and Has and are overwritten by SetIfUnset.
//
// SetIfUnset uses conditional PutObject calls so two writers racing on the same key
// cannot both succeed: If-None-Match: * for an absent key, If-Match with the ETag seen
// by HeadObject when an expired object is replaced.
//
// A bucket cannot be snapshotted, the engine therefore does not support Save/Load and
// cannot back the raft store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/veridian-dash/veridian/lib/db"
)

const (
	expiresAtMeta  = "expires-at"
	defaultRegion  = "us-east-1"
	defaultTimeout = 5 * time.Second
)

const supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureTTL

// ObjectAPI is the subset of *s3.Client used by the engine.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds the construction parameters of the engine.
type Config struct {
	Bucket          string
	Prefix          string // prepended to every key (e.g. "veridian/")
	Region          string // default us-east-1
	Endpoint        string // optional; custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	PathStyle       bool
	Timeout         time.Duration // per request timeout (0 = 5s)
}

type s3Impl struct {
	api     ObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3DB creates the engine from Config using the default AWS credential chain unless
// static credentials are given.
func NewS3DB(ctx context.Context, cfg Config) (db.KVDB, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI creates the engine on top of an existing object API client.
func NewWithAPI(api ObjectAPI, cfg Config) db.KVDB {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &s3Impl{api: api, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: timeout}
}

func (s *s3Impl) objectKey(key string) *string {
	return aws.String(s.prefix + key)
}

func (s *s3Impl) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *s3Impl) Set(key string, value []byte) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    s.objectKey(key),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *s3Impl) SetIfUnset(key string, value []byte, expiresAt time.Time) (bool, error) {
	return s.SetIfUnsetAt(key, value, expiresAt, time.Now())
}

func (s *s3Impl) SetIfUnsetAt(key string, value []byte, expiresAt, now time.Time) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: s.objectKey(key)})
	exists := err == nil
	if err != nil && !isNotFound(err) {
		return false, fmt.Errorf("head %q: %w", key, err)
	}
	if exists && !db.Expired(expiresAtOf(head.Metadata), now) {
		return false, nil
	}

	in := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    s.objectKey(key),
		Body:   bytes.NewReader(value),
	}
	if !expiresAt.IsZero() {
		in.Metadata = map[string]string{expiresAtMeta: strconv.FormatInt(expiresAt.UnixNano(), 10)}
	}
	switch {
	case !exists:
		in.IfNoneMatch = aws.String("*")
	case head.ETag != nil:
		// another writer replacing the same expired object changes the ETag first
		in.IfMatch = head.ETag
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		// a missing object on If-Match means it was deleted since HeadObject
		if isPreconditionFailed(err) || (exists && isNotFound(err)) {
			return false, nil
		}
		return false, fmt.Errorf("put %q: %w", key, err)
	}
	return true, nil
}

func (s *s3Impl) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: s.objectKey(key)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (s *s3Impl) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: s.objectKey(key)})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if db.Expired(expiresAtOf(out.Metadata), time.Now()) {
		return nil, false, nil
	}
	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return value, true, nil
}

func (s *s3Impl) Has(key string) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: s.objectKey(key)})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head %q: %w", key, err)
	}
	return !db.Expired(expiresAtOf(head.Metadata), time.Now()), nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *s3Impl) Save(io.Writer) error {
	return fmt.Errorf("s3 engine does not support Save")
}

func (s *s3Impl) Load(io.Reader) error {
	return fmt.Errorf("s3 engine does not support Load")
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

// GetInfo lists the objects under the prefix. Expired objects are counted as well.
func (s *s3Impl) GetInfo() db.DatabaseInfo {
	ctx, cancel := s.ctx()
	defer cancel()

	entries, sizeBytes := 0, 0
	var listErr error
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			listErr = err
			break
		}
		for _, obj := range out.Contents {
			entries++
			sizeBytes += int(aws.ToInt64(obj.Size))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}

	meta := map[string]string{"bucket": s.bucket, "prefix": s.prefix}
	if listErr != nil {
		meta["error"] = listErr.Error()
	}
	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           entries,
		DbType:            db.ImplS3,
		SupportedFeatures: db.Features(supportedFeatures),
		Metadata:          meta,
	}
}

func (s *s3Impl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *s3Impl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func expiresAtOf(meta map[string]string) int64 {
	raw, ok := meta[expiresAtMeta]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
