// Package awsclient loads the shared AWS configuration used by the S3,
// DynamoDB and CloudFront clients.
package awsclient

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/mailevents/internal/config"
)

// Clients bundles the AWS service clients the server needs.
type Clients struct {
	S3         *s3.Client
	DynamoDB   *dynamodb.Client
	CloudFront *cloudfront.Client
}

// Options returns the config loaders for a storage section. Static keys win
// over a named profile; with neither the default credential chain is used.
func Options(c config.StorageConfig) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.AWSRegion)}
	switch {
	case c.AccessKeyID != "" && c.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	case c.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.GetAWSProfile()))
	}
	return opts
}

// Load builds the AWS clients from a storage section.
func Load(ctx context.Context, c config.StorageConfig) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, Options(c)...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	// CloudFront API is global, but use us-east-1
	cfCfg := cfg.Copy()
	cfCfg.Region = "us-east-1"

	return &Clients{
		S3:         s3.NewFromConfig(cfg),
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		CloudFront: cloudfront.NewFromConfig(cfCfg),
	}, nil
}
