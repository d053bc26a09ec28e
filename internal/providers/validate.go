package providers

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/endpoints"
)

// ValidationError represents an invalid configuration value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s=%s: %s", e.Field, e.Value, e.Message)
}

// Validate checks the AWS section of the configuration
func (c Config) Validate() error {
	if c.AWS.Region == "" {
		return ValidationError{Field: "aws.region", Message: "region is required"}
	}
	if c.AWS.Endpoint != "" {
		return nil // custom endpoints may use any region id
	}
	if _, ok := endpoints.PartitionForRegion(endpoints.DefaultPartitions(), c.AWS.Region); !ok {
		return ValidationError{
			Field:   "aws.region",
			Value:   c.AWS.Region,
			Message: "unknown AWS region",
		}
	}
	return nil
}
