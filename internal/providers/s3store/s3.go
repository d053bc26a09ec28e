package s3store

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	core "github.com/3cpo-dev/ebdeploy/internal/core"
)

// Store uploads bundles to a single S3 bucket/key.
type Store struct {
	svc      s3iface.S3API
	uploader *s3manager.Uploader
	region   string
	bucket   string
	key      string
}

func New(sess *session.Session, bucket, key string) *Store {
	return NewWithClient(s3.New(sess), aws.StringValue(sess.Config.Region), bucket, key)
}

func NewWithClient(svc s3iface.S3API, region, bucket, key string) *Store {
	return &Store{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		region:   region,
		bucket:   bucket,
		key:      key,
	}
}

func (s *Store) Location() core.SourceBundle {
	return core.SourceBundle{Bucket: s.bucket, Key: s.key}
}

// Create creates the bucket in the store's region.
func (s *Store) Create(ctx context.Context) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 rejects an explicit location constraint
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(s.region),
		}
	}
	_, err := s.svc.CreateBucketWithContext(ctx, in)
	return err
}

// Upload puts the bundle contents at the store's key. Bundles above the
// uploader part size go up as a multipart upload.
func (s *Store) Upload(ctx context.Context, b *core.Bundle) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b.Contents),
		ContentType: aws.String("application/zip"),
	})
	return classify(err)
}

// classify marks a missing bucket, including one reported inside a failed
// multipart upload.
func classify(err error) error {
	for e := err; e != nil; {
		aerr, ok := e.(awserr.Error)
		if !ok {
			break
		}
		if aerr.Code() == s3.ErrCodeNoSuchBucket {
			return core.MarkKind(core.ErrBucketMissing, err)
		}
		e = aerr.OrigErr()
	}
	return err
}
