// Package objectstore keeps short-link redirect objects in S3.
//
// Each object is an empty text/plain body under "redirects_<code>" whose
// website redirect location is the target URL. The bucket is fronted by a
// static website endpoint (and CloudFront), which answers requests for the
// key with a 301 to the target.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ignite/mailevents/internal/domain"
)

// RedirectMetadataKey mirrors the redirect target in user metadata so it is
// visible on HeadObject.
const RedirectMetadataKey = "x-amz-website-redirect-location"

// ErrObjectNotFound is returned by Target when the redirect object is missing.
var ErrObjectNotFound = errors.New("redirect object not found")

// S3API is the subset of *s3.Client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// RedirectStore writes redirect objects to one bucket.
type RedirectStore struct {
	client S3API
	bucket string
}

// NewRedirectStore creates a store for bucket.
func NewRedirectStore(client S3API, bucket string) *RedirectStore {
	return &RedirectStore{client: client, bucket: bucket}
}

// Put creates or overwrites the redirect object for code.
func (s *RedirectStore) Put(ctx context.Context, code, target string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:                  aws.String(s.bucket),
		Key:                     aws.String(domain.RedirectObjectKey(code)),
		Body:                    strings.NewReader(""),
		ContentType:             aws.String("text/plain"),
		WebsiteRedirectLocation: aws.String(target),
		Metadata:                map[string]string{RedirectMetadataKey: target},
	})
	if err != nil {
		return fmt.Errorf("put redirect object %s: %w", domain.RedirectObjectKey(code), err)
	}
	return nil
}

// Delete removes the redirect object for code. Deleting a missing key
// succeeds, as S3 does.
func (s *RedirectStore) Delete(ctx context.Context, code string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(domain.RedirectObjectKey(code)),
	})
	if err != nil {
		return fmt.Errorf("delete redirect object %s: %w", domain.RedirectObjectKey(code), err)
	}
	return nil
}

// Target returns the redirect location stored for code.
func (s *RedirectStore) Target(ctx context.Context, code string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(domain.RedirectObjectKey(code)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("head redirect object %s: %w", domain.RedirectObjectKey(code), err)
	}
	if loc := aws.ToString(out.WebsiteRedirectLocation); loc != "" {
		return loc, nil
	}
	return out.Metadata[RedirectMetadataKey], nil
}

// Ping checks that the bucket is reachable with the current credentials.
func (s *RedirectStore) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}
