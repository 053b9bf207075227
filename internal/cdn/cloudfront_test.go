package cdn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudFront struct {
	inputs []*cloudfront.CreateInvalidationInput
	err    error
}

func (f *fakeCloudFront) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudfront.CreateInvalidationOutput{}, f.err
}

func TestNewInvalidator_DisabledWithoutDistribution(t *testing.T) {
	assert.Nil(t, NewInvalidator(&fakeCloudFront{}, ""))
	assert.Nil(t, NewInvalidator(nil, "E123"))
}

func TestInvalidateRedirect(t *testing.T) {
	client := &fakeCloudFront{}
	inv := NewInvalidator(client, "E123")
	inv.now = func() time.Time { return time.Unix(0, 42) }

	require.NoError(t, inv.InvalidateRedirect(context.Background(), "abc123"))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "E123", aws.ToString(in.DistributionId))
	assert.Equal(t, "abc123-42", aws.ToString(in.InvalidationBatch.CallerReference))
	assert.Equal(t, int32(1), aws.ToInt32(in.InvalidationBatch.Paths.Quantity))
	assert.Equal(t, []string{"/redirects_abc123"}, in.InvalidationBatch.Paths.Items)
}

func TestInvalidateRedirect_Error(t *testing.T) {
	client := &fakeCloudFront{err: errors.New("throttled")}
	inv := NewInvalidator(client, "E123")

	err := inv.InvalidateRedirect(context.Background(), "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/redirects_abc123")
}
