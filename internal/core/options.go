package core

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	prov "github.com/3cpo-dev/ebdeploy/internal/providers"
)

// LabelTimeLayout renders YYYY.MM.DD_HH.mm.ss.
const LabelTimeLayout = "2006.01.02_15.04.05"

// DefaultMetadataPath is read when the application name or version is not configured.
const DefaultMetadataPath = "package.json"

// Options is a fully resolved deployment request.
type Options struct {
	ApplicationName string
	EnvironmentName string
	Region          string
	Bucket          string
	Key             string
	Version         string
	VersionLabel    string
	Filename        string
	Timestamp       bool
	WaitForDeploy   bool
	WaitTimeout     time.Duration
}

type projectMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func readMetadata(path string) (projectMetadata, error) {
	var md projectMetadata
	content, err := os.ReadFile(path)
	if err != nil {
		return md, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(content, &md); err != nil {
		return md, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return md, nil
}

// BuildOptions resolves deployment options from cfg, falling back to the
// project metadata file for the application name and version. now stamps
// the version label when timestamps are enabled.
func BuildOptions(cfg prov.Config, now time.Time) (Options, error) {
	opts := Options{
		ApplicationName: cfg.Application.Name,
		EnvironmentName: cfg.Application.Environment,
		Region:          cfg.AWS.Region,
		Bucket:          cfg.Application.Bucket,
		Version:         cfg.Application.Version,
		Timestamp:       true,
		WaitForDeploy:   true,
	}
	if cfg.Deploy.Timestamp != nil {
		opts.Timestamp = *cfg.Deploy.Timestamp
	}
	if cfg.Deploy.WaitForDeploy != nil {
		opts.WaitForDeploy = *cfg.Deploy.WaitForDeploy
	}
	if cfg.Deploy.Timeout > 0 {
		opts.WaitTimeout = cfg.Deploy.Timeout
	}

	if opts.Version == "" || opts.ApplicationName == "" {
		path := cfg.Application.Metadata
		if path == "" {
			path = DefaultMetadataPath
		}
		md, err := readMetadata(path)
		if err != nil {
			return opts, err
		}
		if opts.ApplicationName == "" {
			opts.ApplicationName = md.Name
		}
		if opts.Version == "" {
			opts.Version = md.Version
		}
	}

	label := opts.Version
	if opts.Timestamp {
		label += "-" + now.Format(LabelTimeLayout)
	}
	opts.VersionLabel = label
	opts.Filename = label + ".zip"
	opts.Key = opts.ApplicationName + opts.Filename

	return opts, opts.Validate()
}

// Validate checks that every identifier needed for a deployment is present.
func (o Options) Validate() error {
	required := []struct{ field, value string }{
		{"application.name", o.ApplicationName},
		{"application.environment", o.EnvironmentName},
		{"application.bucket", o.Bucket},
		{"application.version", o.Version},
	}
	for _, r := range required {
		if r.value == "" {
			return prov.ValidationError{Field: r.field, Message: "value is required"}
		}
	}
	return nil
}
