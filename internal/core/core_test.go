package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testOptions(wait bool) Options {
	return Options{
		ApplicationName: "shop",
		EnvironmentName: "shop-prod",
		Bucket:          "releases",
		Key:             "shop1.0.0.zip",
		Version:         "1.0.0",
		VersionLabel:    "1.0.0",
		WaitForDeploy:   wait,
	}
}

func newTestOrchestrator(buf *bytes.Buffer) *Orchestrator {
	return NewOrchestrator(fastPoller(), func(Environment, HealthSnapshot, HealthSnapshot) string { return "" }).
		WithLogger(zerolog.New(buf))
}

func TestDeployUploadsOnce(t *testing.T) {
	var calls []string
	store := &fakeStore{calls: &calls}
	env := &fakeEnv{calls: &calls}
	b := &Bundle{Name: "1.0.0.zip", Contents: []byte("zip")}

	out, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(false), b, store, env)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if out != b {
		t.Fatalf("expected the same bundle back")
	}
	if store.uploads != 1 || store.creates != 0 {
		t.Fatalf("expected 1 upload and 0 creates, got %d/%d", store.uploads, store.creates)
	}
	expected := "upload,createVersion,update"
	if got := strings.Join(calls, ","); got != expected {
		t.Fatalf("expected call order %s, got %s", expected, got)
	}
	if env.describes != 0 {
		t.Fatalf("describeHealth must not run when waiting is disabled")
	}
	if env.sources[0] != store.Location() {
		t.Fatalf("version registered against %+v", env.sources[0])
	}
}

func TestDeployCreatesMissingBucket(t *testing.T) {
	missing := MarkKind(ErrBucketMissing, errors.New("NoSuchBucket: The specified bucket does not exist"))
	var calls []string
	store := &fakeStore{uploadErrs: []error{missing}, calls: &calls}
	env := &fakeEnv{calls: &calls}

	if _, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(false), &Bundle{}, store, env); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if store.creates != 1 || store.uploads != 2 {
		t.Fatalf("expected 1 create and 2 uploads, got %d/%d", store.creates, store.uploads)
	}
	expected := "upload,create,upload,createVersion,update"
	if got := strings.Join(calls, ","); got != expected {
		t.Fatalf("expected call order %s, got %s", expected, got)
	}
}

func TestDeployRetryFailurePropagates(t *testing.T) {
	missing := MarkKind(ErrBucketMissing, errors.New("NoSuchBucket"))
	denied := errors.New("AccessDenied")
	store := &fakeStore{uploadErrs: []error{missing, denied}}
	env := &fakeEnv{}

	_, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(true), &Bundle{}, store, env)
	if err != denied {
		t.Fatalf("expected the retry error unchanged, got %v", err)
	}
	if store.creates != 1 || store.uploads != 2 {
		t.Fatalf("expected 1 create and 2 uploads, got %d/%d", store.creates, store.uploads)
	}
	if len(env.updates) != 0 || len(env.versions) != 0 {
		t.Fatalf("environment must not be touched after a failed upload")
	}
}

func TestDeployOtherUploadErrorIsFatal(t *testing.T) {
	denied := errors.New("AccessDenied")
	store := &fakeStore{uploadErrs: []error{denied}}
	env := &fakeEnv{}

	_, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(false), &Bundle{}, store, env)
	if err != denied {
		t.Fatalf("expected %v, got %v", denied, err)
	}
	if store.creates != 0 {
		t.Fatalf("create must only follow a missing bucket")
	}
}

func TestDeployCreateBucketFailurePropagates(t *testing.T) {
	createErr := errors.New("BucketAlreadyOwnedByYou")
	store := &fakeStore{uploadErrs: []error{MarkKind(ErrBucketMissing, errors.New("NoSuchBucket"))}, createErr: createErr}

	_, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(false), &Bundle{}, store, &fakeEnv{})
	if err != createErr {
		t.Fatalf("expected %v, got %v", createErr, err)
	}
	if store.uploads != 1 {
		t.Fatalf("expected no retry after a failed create, got %d uploads", store.uploads)
	}
}

func TestDeployToleratesCreateVersionFailure(t *testing.T) {
	var buf bytes.Buffer
	env := &fakeEnv{createErr: errors.New("version quota exceeded")}

	_, err := newTestOrchestrator(&buf).Deploy(context.Background(), testOptions(false), &Bundle{}, &fakeStore{}, env)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(env.updates) != 1 || env.updates[0] != "1.0.0" {
		t.Fatalf("expected update with 1.0.0, got %v", env.updates)
	}
	if !strings.Contains(buf.String(), "version quota exceeded") {
		t.Fatalf("expected the version error to be logged, got %s", buf.String())
	}
}

func TestDeployUpdateFailureSkipsPoll(t *testing.T) {
	updateErr := errors.New("InvalidParameterValue")
	env := &fakeEnv{updateErr: updateErr}

	_, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(true), &Bundle{}, &fakeStore{}, env)
	if err != updateErr {
		t.Fatalf("expected %v, got %v", updateErr, err)
	}
	if env.describes != 0 {
		t.Fatalf("no poll expected after a failed update")
	}
}

func TestDeployWaitsForReady(t *testing.T) {
	env := &fakeEnv{reports: []HealthReport{
		report("Degraded", "Updating", ColorYellow),
		report("Ok", StatusReady, ColorGreen),
	}}
	var messages []string
	o := NewOrchestrator(fastPoller(), func(e Environment, prev, cur HealthSnapshot) string {
		msg := FormatTransition(e.Name(), prev, cur, PlainStyle)
		messages = append(messages, msg)
		return msg
	}).WithLogger(zerolog.Nop())

	if _, err := o.Deploy(context.Background(), testOptions(true), &Bundle{}, &fakeStore{}, env); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if env.describes != 2 {
		t.Fatalf("expected 2 health checks, got %d", env.describes)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 transition, got %v", messages)
	}
}

func TestDeployUnsupportedHealthSucceeds(t *testing.T) {
	env := &fakeEnv{healthErr: MarkKind(ErrHealthUnsupported, errors.New("DescribeEnvironmentHealth is not supported"))}
	b := &Bundle{Name: "x"}

	out, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), testOptions(true), b, &fakeStore{}, env)
	if err != nil || out != b {
		t.Fatalf("expected success with the same bundle, got %v %v", out, err)
	}
}

func TestDeployIsRepeatable(t *testing.T) {
	var buf bytes.Buffer
	env := &fakeEnv{}
	store := &fakeStore{}
	o := newTestOrchestrator(&buf)

	for i := 0; i < 2; i++ {
		if _, err := o.Deploy(context.Background(), testOptions(true), &Bundle{}, store, env); err != nil {
			t.Fatalf("deploy %d: %v", i+1, err)
		}
	}
	if len(env.updates) != 2 || env.describes != 2 {
		t.Fatalf("expected both runs to update and wait, got %d updates %d polls", len(env.updates), env.describes)
	}
	if !strings.Contains(buf.String(), "already exists") {
		t.Fatalf("expected the second registration failure to be logged")
	}
}

func TestDeployRequiresVersionLabel(t *testing.T) {
	store := &fakeStore{}
	opts := testOptions(false)
	opts.VersionLabel = ""
	_, err := newTestOrchestrator(&bytes.Buffer{}).Deploy(context.Background(), opts, &Bundle{}, store, &fakeEnv{})
	if !errors.Is(err, ErrMissingVersionLabel) {
		t.Fatalf("expected ErrMissingVersionLabel, got %v", err)
	}
	if store.uploads != 0 {
		t.Fatalf("nothing should be uploaded")
	}
}

func TestMarkKindKeepsProviderError(t *testing.T) {
	base := fmt.Errorf("provider: %w", context.DeadlineExceeded)
	err := MarkKind(ErrBucketMissing, base)
	if !errors.Is(err, ErrBucketMissing) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected both kind and cause in the chain")
	}
	if err.Error() != base.Error() {
		t.Fatalf("message changed: %s", err)
	}
	if MarkKind(ErrBucketMissing, nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestRolloutReportsVerification(t *testing.T) {
	o := newTestOrchestrator(&bytes.Buffer{})
	b := &Bundle{Name: "x"}

	out, err := o.Rollout(context.Background(), testOptions(true), b, &fakeStore{}, &fakeEnv{})
	if err != nil {
		t.Fatalf("rollout: %v", err)
	}
	if !out.Verified() || out.Final.Status != StatusReady || out.Bundle != b {
		t.Fatalf("expected a verified outcome, got %+v", out)
	}

	unsupported := &fakeEnv{healthErr: MarkKind(ErrHealthUnsupported, errors.New("DescribeEnvironmentHealth is not supported"))}
	out, err = o.Rollout(context.Background(), testOptions(true), b, &fakeStore{}, unsupported)
	if err != nil {
		t.Fatalf("rollout: %v", err)
	}
	if out.Verified() || out.Bundle != b {
		t.Fatalf("unsupported health must leave the outcome unverified, got %+v", out)
	}

	out, err = o.Rollout(context.Background(), testOptions(false), b, &fakeStore{}, &fakeEnv{})
	if err != nil || out.Verified() {
		t.Fatalf("no wait means no verification, got %+v %v", out, err)
	}
}

func TestWithLoggerReachesDefaultPoller(t *testing.T) {
	var buf bytes.Buffer
	o := NewOrchestrator(nil, nil).WithLogger(zerolog.New(&buf))
	o.poller.Logger.Warn().Msg("from poller")
	if !strings.Contains(buf.String(), "from poller") {
		t.Fatalf("expected the default poller to share the logger, got %q", buf.String())
	}

	var own bytes.Buffer
	p := fastPoller()
	p.Logger = zerolog.New(&own)
	NewOrchestrator(p, nil).WithLogger(zerolog.New(&buf))
	p.Logger.Warn().Msg("caller poller")
	if !strings.Contains(own.String(), "caller poller") {
		t.Fatalf("a caller supplied poller keeps its own logger")
	}
}
