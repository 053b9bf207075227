package awsclient

import (
	"context"
	"testing"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/ignite/mailevents/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_StaticCredentials(t *testing.T) {
	opts := Options(config.StorageConfig{AWSRegion: "eu-west-1", AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"})
	require.Len(t, opts, 2)

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestOptions_DefaultChain(t *testing.T) {
	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	opts := Options(config.StorageConfig{AWSRegion: "us-east-1", AWSProfile: "dev"})
	assert.Len(t, opts, 1)
}
