package providers

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// NewSession builds an AWS session from cfg. Static keys are used when
// present; otherwise the SDK default chain is used only if explicitly allowed.
func NewSession(cfg Config) (*session.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg := aws.NewConfig().WithRegion(cfg.AWS.Region)
	if cfg.AWS.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.AWS.Endpoint).WithS3ForcePathStyle(true)
	}
	switch {
	case cfg.AWS.AccessKeyID != "" && cfg.AWS.SecretAccessKey != "":
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken))
	case cfg.AWS.UseDefaultCredentials:
	case cfg.AWS.AccessKeyID == "":
		return nil, ValidationError{Field: "aws.access_key_id", Message: "AWS access key id is not provided"}
	default:
		return nil, ValidationError{Field: "aws.secret_access_key", Message: "AWS secret access key is not provided"}
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return sess, nil
}
