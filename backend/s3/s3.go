// Package s3 implements the object-storage backend on AWS S3.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/holvi-cloud/holvi/lifecycle"
	"github.com/holvi-cloud/holvi/types"
)

// DefaultCallTimeout bounds each S3 call so a wedged backend cannot hang a
// handler or a reconciliation pass.
const DefaultCallTimeout = 10 * time.Second

// Client is the subset of the S3 API the backend uses.
type Client interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
}

// Backend implements backend.Backend on S3.
type Backend struct {
	client      Client
	region      string
	callTimeout time.Duration
}

// New creates a backend from an existing client.
func New(client Client, region string, callTimeout time.Duration) *Backend {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Backend{client: client, region: region, callTimeout: callTimeout}
}

// NewFromConfig loads the default AWS config and builds a backend.
func NewFromConfig(ctx context.Context, region string, callTimeout time.Duration) (*Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), region, callTimeout), nil
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.callTimeout)
}

// CreateBucket creates the bucket, region-aware: us-east-1 rejects an
// explicit location constraint. A bucket this account already owns counts
// as created so a retried restoration converges.
func (b *Backend) CreateBucket(ctx context.Context, name string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if b.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.region),
		}
	}

	_, err := b.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		var taken *s3types.BucketAlreadyExists
		if errors.As(err, &taken) {
			return &types.ConflictError{Key: name}
		}
		return unavailable("create_bucket", err)
	}
	return nil
}

// DeleteBucket removes the bucket. Deleting an absent bucket is success.
func (b *Backend) DeleteBucket(ctx context.Context, name string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil && !isNoSuchBucket(err) {
		return unavailable("delete_bucket", err)
	}
	return nil
}

// EmptyBucket pages through the bucket and deletes its objects. A bucket
// cannot be removed while it has contents.
func (b *Backend) EmptyBucket(ctx context.Context, name string) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(name),
	})

	for paginator.HasMorePages() {
		pageCtx, cancel := b.withTimeout(ctx)
		page, err := paginator.NextPage(pageCtx)
		cancel()
		if err != nil {
			if isNoSuchBucket(err) {
				return nil
			}
			return unavailable("empty_bucket", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}

		delCtx, cancel := b.withTimeout(ctx)
		_, err = b.client.DeleteObjects(delCtx, &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		cancel()
		if err != nil && !isNoSuchBucket(err) {
			return unavailable("empty_bucket", err)
		}
	}
	return nil
}

// BucketExists probes the bucket with a HEAD request.
func (b *Backend) BucketExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) || isNoSuchBucket(err) {
			return false, nil
		}
		return false, unavailable("head_bucket", err)
	}
	return true, nil
}

// BlockPublicAccess applies the full public-access block.
func (b *Backend) BlockPublicAccess(ctx context.Context, name string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(name),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return unavailable("put_public_access_block", err)
	}
	return nil
}

// EnableEncryption applies AES256 server-side encryption by default.
func (b *Backend) EnableEncryption(ctx context.Context, name string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(name),
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: s3types.ServerSideEncryptionAes256,
				},
			}},
		},
	})
	if err != nil {
		return unavailable("put_bucket_encryption", err)
	}
	return nil
}

// SetVersioning enables or suspends object versioning.
func (b *Backend) SetVersioning(ctx context.Context, name string, enabled bool) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	status := s3types.BucketVersioningStatusEnabled
	if !enabled {
		status = s3types.BucketVersioningStatusSuspended
	}
	_, err := b.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket:                  aws.String(name),
		VersioningConfiguration: &s3types.VersioningConfiguration{Status: status},
	})
	if err != nil {
		return unavailable("put_bucket_versioning", err)
	}
	return nil
}

// ApplyLifecycle replaces the bucket's lifecycle configuration with the
// validated document.
func (b *Backend) ApplyLifecycle(ctx context.Context, name string, doc *lifecycle.Document) error {
	rules, err := lifecycleRules(doc)
	if err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err = b.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(name),
		LifecycleConfiguration: &s3types.BucketLifecycleConfiguration{
			Rules: rules,
		},
	})
	if err != nil {
		return unavailable("put_bucket_lifecycle_configuration", err)
	}
	return nil
}

func isNoSuchBucket(err error) bool {
	var nsb *s3types.NoSuchBucket
	return errors.As(err, &nsb)
}

func unavailable(op string, err error) error {
	return &types.BackendUnavailableError{Op: op, Err: err}
}
