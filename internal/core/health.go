package core

import (
	"context"
	"errors"
	"time"
)

// Error kinds reported by collaborators. Adapters attach them with
// MarkKind so callers can test with errors.Is while the provider error
// stays in the chain.
var (
	ErrBucketMissing       = errors.New("bucket does not exist")
	ErrHealthUnsupported   = errors.New("enhanced health reporting not supported")
	ErrMissingVersionLabel = errors.New("version label is required")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string        { return e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) Is(target error) bool { return target == e.kind }

// MarkKind tags err with one of the kind sentinels without changing its message.
func MarkKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// StatusReady is the coarse lifecycle state that ends a convergence wait.
const StatusReady = "Ready"

// Color is the severity indicator reported with environment health.
type Color string

const (
	ColorGreen  Color = "Green"
	ColorYellow Color = "Yellow"
	ColorRed    Color = "Red"
	ColorGrey   Color = "Grey"
)

// HealthReport is the raw health description returned by an Environment.
type HealthReport struct {
	EnvironmentName string
	HealthStatus    string
	Status          string
	Color           Color
	Causes          []string

	// Volatile, never compared or logged.
	RequestID       string
	InstancesHealth map[string]int64
	RefreshedAt     time.Time
}

// Snapshot drops the volatile fields of the report.
func (r HealthReport) Snapshot() HealthSnapshot {
	var causes []string
	if len(r.Causes) > 0 {
		causes = append([]string(nil), r.Causes...)
	}
	return HealthSnapshot{
		EnvironmentName: r.EnvironmentName,
		HealthStatus:    r.HealthStatus,
		Status:          r.Status,
		Color:           r.Color,
		Causes:          causes,
	}
}

// HealthSnapshot is the retained subset of a HealthReport.
type HealthSnapshot struct {
	EnvironmentName string
	HealthStatus    string
	Status          string
	Color           Color
	Causes          []string
}

// Equal reports whether both snapshots carry the same retained fields.
func (s HealthSnapshot) Equal(o HealthSnapshot) bool {
	if s.EnvironmentName != o.EnvironmentName || s.HealthStatus != o.HealthStatus ||
		s.Status != o.Status || s.Color != o.Color || len(s.Causes) != len(o.Causes) {
		return false
	}
	for i := range s.Causes {
		if s.Causes[i] != o.Causes[i] {
			return false
		}
	}
	return true
}

// SourceBundle locates an uploaded archive.
type SourceBundle struct {
	Bucket string
	Key    string
}

// Bundle is the archive being deployed.
type Bundle struct {
	Name     string
	Contents []byte
}

// ObjectStore uploads bundles to a single bucket/key.
type ObjectStore interface {
	Create(ctx context.Context) error
	Upload(ctx context.Context, b *Bundle) error
	Location() SourceBundle
}

// Environment manages one (region, application, environment) triple.
type Environment interface {
	Name() string
	CreateVersion(ctx context.Context, label string, src SourceBundle) error
	Update(ctx context.Context, label string) error
	DescribeHealth(ctx context.Context) (HealthReport, error)
}
