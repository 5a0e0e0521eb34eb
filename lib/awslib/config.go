package awslib

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/artie-labs/medallion/lib/config"
)

// NewConfig loads the default AWS config, static credentials are used when both key parts are set.
func NewConfig(ctx context.Context, s3Settings *config.S3Settings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	region := os.Getenv("AWS_REGION")
	if s3Settings != nil {
		region = cmp.Or(s3Settings.Region, region)
		if s3Settings.AwsAccessKeyID != "" && s3Settings.AwsSecretAccessKey != "" {
			creds := credentials.NewStaticCredentialsProvider(s3Settings.AwsAccessKeyID, s3Settings.AwsSecretAccessKey, s3Settings.AwsSessionToken)
			opts = append(opts, awsconfig.WithCredentialsProvider(creds))
		}
	}

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed loading aws config: %w", err)
	}

	return cfg, nil
}
