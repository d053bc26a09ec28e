package beanstalk

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/elasticbeanstalk"
	"github.com/aws/aws-sdk-go/service/elasticbeanstalk/elasticbeanstalkiface"

	core "github.com/3cpo-dev/ebdeploy/internal/core"
)

// unsupportedHealth is the message Elastic Beanstalk returns for environments
// without enhanced health reporting.
const unsupportedHealth = "DescribeEnvironmentHealth is not supported"

// Environment is one Elastic Beanstalk environment of one application.
type Environment struct {
	svc         elasticbeanstalkiface.ElasticBeanstalkAPI
	application string
	environment string
}

func New(sess *session.Session, application, environment string) *Environment {
	return NewWithClient(elasticbeanstalk.New(sess), application, environment)
}

func NewWithClient(svc elasticbeanstalkiface.ElasticBeanstalkAPI, application, environment string) *Environment {
	return &Environment{svc: svc, application: application, environment: environment}
}

func (e *Environment) Name() string { return e.environment }

func (e *Environment) Application() string { return e.application }

// CreateVersion registers the bundle at src as label.
func (e *Environment) CreateVersion(ctx context.Context, label string, src core.SourceBundle) error {
	_, err := e.svc.CreateApplicationVersionWithContext(ctx, &elasticbeanstalk.CreateApplicationVersionInput{
		ApplicationName: aws.String(e.application),
		VersionLabel:    aws.String(label),
		SourceBundle: &elasticbeanstalk.S3Location{
			S3Bucket: aws.String(src.Bucket),
			S3Key:    aws.String(src.Key),
		},
	})
	return err
}

// Update switches the environment to the version label.
func (e *Environment) Update(ctx context.Context, label string) error {
	_, err := e.svc.UpdateEnvironmentWithContext(ctx, &elasticbeanstalk.UpdateEnvironmentInput{
		ApplicationName: aws.String(e.application),
		EnvironmentName: aws.String(e.environment),
		VersionLabel:    aws.String(label),
	})
	return err
}

// DescribeHealth returns the environment's enhanced health report.
func (e *Environment) DescribeHealth(ctx context.Context) (core.HealthReport, error) {
	var requestID string
	captureID := func(r *request.Request) {
		r.Handlers.Complete.PushBack(func(r *request.Request) { requestID = r.RequestID })
	}
	out, err := e.svc.DescribeEnvironmentHealthWithContext(ctx, &elasticbeanstalk.DescribeEnvironmentHealthInput{
		EnvironmentName: aws.String(e.environment),
		AttributeNames:  aws.StringSlice([]string{elasticbeanstalk.EnvironmentHealthAttributeAll}),
	}, captureID)
	if err != nil {
		return core.HealthReport{}, classify(err)
	}
	report := core.HealthReport{
		EnvironmentName: aws.StringValue(out.EnvironmentName),
		HealthStatus:    aws.StringValue(out.HealthStatus),
		Status:          aws.StringValue(out.Status),
		Color:           core.Color(aws.StringValue(out.Color)),
		Causes:          aws.StringValueSlice(out.Causes),
		RequestID:       requestID,
		RefreshedAt:     aws.TimeValue(out.RefreshedAt),
	}
	if ih := out.InstancesHealth; ih != nil {
		report.InstancesHealth = map[string]int64{
			"Degraded": aws.Int64Value(ih.Degraded),
			"Info":     aws.Int64Value(ih.Info),
			"NoData":   aws.Int64Value(ih.NoData),
			"Ok":       aws.Int64Value(ih.Ok),
			"Pending":  aws.Int64Value(ih.Pending),
			"Severe":   aws.Int64Value(ih.Severe),
			"Unknown":  aws.Int64Value(ih.Unknown),
			"Warning":  aws.Int64Value(ih.Warning),
		}
	}
	return report, nil
}

func classify(err error) error {
	msg := err.Error()
	if aerr, ok := err.(awserr.Error); ok {
		msg = aerr.Message()
	}
	if strings.Contains(msg, unsupportedHealth) {
		return core.MarkKind(core.ErrHealthUnsupported, err)
	}
	return err
}
