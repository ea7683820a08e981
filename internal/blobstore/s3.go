package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/metcalfcloud/pictallion/internal/library"
)

const snapshotVersionKey = "pictallion-version"

// S3Store is an S3-backed implementation of the BlobStore interface.
// Objects are laid out under two prefixes:
//
//	content/<hash>        (content objects, named by SHA-256)
//	snapshots/<name>.db   (catalog snapshots, version in object metadata)
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store creates an S3 store for the given bucket using the default AWS
// credential chain. Region and endpoint come from the standard environment
// and shared config.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// NewS3StoreWithClient creates an S3 store using a pre-configured client.
func NewS3StoreWithClient(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

// PutContent stores content identified by key.
// The operation is idempotent: an existing object is never re-uploaded.
func (s *S3Store) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	objectKey := "content/" + key

	exists, err := s.objectExists(ctx, objectKey)
	if err != nil {
		return err
	}
	if exists {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading content %s: %w", key, err)
	}
	return nil
}

// GetContent retrieves content by key and writes it to w.
func (s *S3Store) GetContent(ctx context.Context, key string, w io.Writer) error {
	return s.download(ctx, "content/"+key, w)
}

// PutSnapshot stores a named catalog snapshot. The version marker travels
// as object metadata so it can never drift from the snapshot bytes.
func (s *S3Store) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String("snapshots/" + name + ".db"),
		Body:   r,
		Metadata: map[string]string{
			snapshotVersionKey: strconv.FormatInt(version, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", name, err)
	}
	return nil
}

// GetSnapshot retrieves a named catalog snapshot and writes it to w.
func (s *S3Store) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	return s.download(ctx, "snapshots/"+name+".db", w)
}

// SnapshotVersion returns the version for a named snapshot.
// Returns 0 if no snapshot has been stored under this name.
func (s *S3Store) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String("snapshots/" + name + ".db"),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading snapshot metadata: %w", err)
	}

	raw, ok := head.Metadata[snapshotVersionKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing snapshot version: %w", err)
	}
	return version, nil
}

// Validate verifies the bucket is reachable with the configured credentials.
func (s *S3Store) Validate(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) download(ctx context.Context, key string, w io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("object not found: %s", key)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// Compile-time check that S3Store implements the BlobStore interface
var _ library.BlobStore = (*S3Store)(nil)
