package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/3cpo-dev/ebdeploy/pkg/api"
)

// Store is a SQLite-backed deployment history.
type Store struct{ db *sql.DB }

// ledgerWriteTimeout bounds result writes that run after the caller's context is done.
const ledgerWriteTimeout = 5 * time.Second

// detach keeps ctx values but drops its cancellation, so an interrupted
// deployment still gets its terminal status recorded.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultStorePath is the history database under ConfigDir.
func DefaultStorePath() string {
	return filepath.Join(ConfigDir(), "history.db")
}

func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// BeginDeployment records a running deployment and returns its id.
func (s *Store) BeginDeployment(ctx context.Context, opts Options, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, application, environment, version_label, bucket, object_key, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, opts.ApplicationName, opts.EnvironmentName, opts.VersionLabel, opts.Bucket, opts.Key,
		string(api.DeployRunning), startedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert deployment: %w", err)
	}
	return id, nil
}

// FinishDeployment stores the final status of a deployment. It runs even
// when ctx is already cancelled.
func (s *Store) FinishDeployment(ctx context.Context, id string, status api.DeploymentStatus, cause error, finishedAt time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), msg, finishedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deployment %s not found", id)
	}
	return nil
}

// RecordTransition appends one observed health transition.
func (s *Store) RecordTransition(ctx context.Context, id string, seq int, previous, current HealthSnapshot, at time.Time) error {
	ctx, cancel := detach(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (deployment_id, seq, prev_health, prev_status, health, status, color, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, seq, previous.HealthStatus, previous.Status, current.HealthStatus, current.Status,
		string(current.Color), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// TransitionRecorder wraps next so every transition is also persisted under
// deployment id. Store failures are logged and never interrupt the wait.
func (s *Store) TransitionRecorder(ctx context.Context, id string, next TransitionFunc) TransitionFunc {
	seq := 0
	return func(env Environment, previous, current HealthSnapshot) string {
		seq++
		if err := s.RecordTransition(ctx, id, seq, previous, current, time.Now()); err != nil {
			log.Warn().Err(err).Str("deployment", id).Msg("record transition")
		}
		return next(env, previous, current)
	}
}

// ListDeployments returns the most recent deployments, newest first. Empty
// filters match everything.
func (s *Store) ListDeployments(ctx context.Context, application, environment string, limit int) ([]api.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, application, environment, version_label, bucket, object_key, status, error, started_at, COALESCE(finished_at, 0)
		 FROM deployments
		 WHERE (? = '' OR application = ?) AND (? = '' OR environment = ?)
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ?`,
		application, application, environment, environment, limit)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()
	var out []api.Deployment
	for rows.Next() {
		var d api.Deployment
		var status string
		if err := rows.Scan(&d.ID, &d.Application, &d.Environment, &d.VersionLabel, &d.Bucket, &d.Key,
			&status, &d.Error, &d.StartedAt, &d.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		d.Status = api.DeploymentStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Transitions returns the recorded transitions of a deployment in order.
func (s *Store) Transitions(ctx context.Context, id string) ([]api.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, prev_health, prev_status, health, status, color, observed_at
		 FROM transitions WHERE deployment_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()
	var out []api.Transition
	for rows.Next() {
		var t api.Transition
		if err := rows.Scan(&t.Seq, &t.PreviousHealth, &t.PreviousStatus, &t.Health, &t.Status, &t.Color, &t.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
