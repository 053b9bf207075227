// Package cdn invalidates cached short-link redirects in CloudFront.
package cdn

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/ignite/mailevents/internal/domain"
)

// CloudFrontAPI is the subset of *cloudfront.Client used here.
type CloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, in *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Invalidator issues path invalidations against one distribution.
type Invalidator struct {
	client         CloudFrontAPI
	distributionID string
	now            func() time.Time
}

// NewInvalidator returns nil when distributionID is empty so callers can
// skip invalidation without a nil check on the client.
func NewInvalidator(client CloudFrontAPI, distributionID string) *Invalidator {
	if client == nil || distributionID == "" {
		return nil
	}
	return &Invalidator{client: client, distributionID: distributionID, now: time.Now}
}

// InvalidateRedirect purges "/redirects_<code>" from edge caches.
func (i *Invalidator) InvalidateRedirect(ctx context.Context, code string) error {
	path := "/" + domain.RedirectObjectKey(code)
	_, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(code + "-" + strconv.FormatInt(i.now().UnixNano(), 10)),
			Paths: &types.Paths{
				Quantity: aws.Int32(1),
				Items:    []string{path},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	return nil
}
