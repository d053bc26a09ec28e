package core

import (
	"context"
	"errors"
	"time"
)

// fakeStore returns uploadErrs in order, then nil.
type fakeStore struct {
	uploadErrs []error
	createErr  error
	uploads    int
	creates    int
	calls      *[]string
}

func (s *fakeStore) Create(ctx context.Context) error {
	s.creates++
	s.record("create")
	return s.createErr
}

func (s *fakeStore) Upload(ctx context.Context, b *Bundle) error {
	s.uploads++
	s.record("upload")
	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]
		return err
	}
	return nil
}

func (s *fakeStore) Location() SourceBundle {
	return SourceBundle{Bucket: "releases", Key: "shop1.0.0.zip"}
}

func (s *fakeStore) record(call string) {
	if s.calls != nil {
		*s.calls = append(*s.calls, call)
	}
}

// fakeEnv replays reports (or healthErr) on DescribeHealth.
type fakeEnv struct {
	createErr  error
	updateErr  error
	healthErr  error
	reports    []HealthReport
	versions   []string
	sources    []SourceBundle
	updates    []string
	describes  int
	calls      *[]string
	registered map[string]bool
}

func (e *fakeEnv) Name() string { return "shop-prod" }

func (e *fakeEnv) CreateVersion(ctx context.Context, label string, src SourceBundle) error {
	e.record("createVersion")
	e.versions = append(e.versions, label)
	e.sources = append(e.sources, src)
	if e.createErr != nil {
		return e.createErr
	}
	if e.registered == nil {
		e.registered = map[string]bool{}
	}
	if e.registered[label] {
		return errors.New("Application Version " + label + " already exists.")
	}
	e.registered[label] = true
	return nil
}

func (e *fakeEnv) Update(ctx context.Context, label string) error {
	e.record("update")
	e.updates = append(e.updates, label)
	return e.updateErr
}

func (e *fakeEnv) DescribeHealth(ctx context.Context) (HealthReport, error) {
	e.describes++
	e.record("describeHealth")
	if e.healthErr != nil {
		return HealthReport{}, e.healthErr
	}
	if len(e.reports) == 0 {
		return HealthReport{Status: StatusReady, HealthStatus: "Ok", Color: ColorGreen}, nil
	}
	r := e.reports[0]
	e.reports = e.reports[1:]
	return r, nil
}

func (e *fakeEnv) record(call string) {
	if e.calls != nil {
		*e.calls = append(*e.calls, call)
	}
}

func report(health, status string, color Color) HealthReport {
	return HealthReport{
		EnvironmentName: "shop-prod",
		HealthStatus:    health,
		Status:          status,
		Color:           color,
		RequestID:       "req-" + status,
		InstancesHealth: map[string]int64{"Ok": 1},
		RefreshedAt:     time.Now(),
	}
}

func fastPoller() *Poller {
	p := NewPoller()
	p.Interval = time.Millisecond
	return p
}
