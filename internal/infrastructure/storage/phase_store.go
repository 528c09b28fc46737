package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"AssessmentPipeline/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	phaseOutputsTable = "phase_outputs"
)

var (
	// ErrAlreadyWritten is returned when a phase output for the same
	// submission and phase already exists.
	ErrAlreadyWritten = errors.New("phase output already written")
	// ErrNotFound is returned when no output exists for the key.
	ErrNotFound = errors.New("phase output not found")
)

// PhaseStore persists consolidated phase outputs, write-once per
// (submission, phase).
type PhaseStore struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.PhaseStore = (*PhaseStore)(nil)

// Open connects to the database and runs migrations.
func Open(driver, dsn string) (*PhaseStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", driver)
	}
	if driver == DriverSQLite {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store, err := New(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection and runs migrations.
func New(db *sql.DB, driver string) (*PhaseStore, error) {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	} else if driver != DriverSQLite {
		return nil, eris.Errorf("unsupported driver %q", driver)
	}

	s := &PhaseStore{
		db:      db,
		driver:  driver,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		now:     time.Now,
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, eris.Wrap(err, "migrate")
	}
	return s, nil
}

func (s *PhaseStore) migrate(ctx context.Context) error {
	createdAt := "DATETIME"
	if s.driver == DriverPostgres {
		createdAt = "TIMESTAMPTZ"
	}
	schema := `
	CREATE TABLE IF NOT EXISTS ` + phaseOutputsTable + ` (
		submission_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at ` + createdAt + ` NOT NULL,
		PRIMARY KEY (submission_id, phase)
	)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SavePhaseOutput stores payload once. A second write for the same key
// returns ErrAlreadyWritten and leaves the stored payload untouched.
func (s *PhaseStore) SavePhaseOutput(ctx context.Context, submissionID, phase string, payload []byte) error {
	query, args, err := s.builder.
		Insert(phaseOutputsTable).
		Columns("submission_id", "phase", "payload", "created_at").
		Values(submissionID, phase, string(payload), s.now().UTC()).
		Suffix("ON CONFLICT (submission_id, phase) DO NOTHING").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "build insert")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "save %s/%s", submissionID, phase)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrAlreadyWritten, "%s/%s", submissionID, phase)
	}
	return nil
}

// LoadPhaseOutput returns a stored payload.
func (s *PhaseStore) LoadPhaseOutput(ctx context.Context, submissionID, phase string) ([]byte, error) {
	query, args, err := s.builder.
		Select("payload").
		From(phaseOutputsTable).
		Where(sq.Eq{"submission_id": submissionID, "phase": phase}).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "build select")
	}

	var payload string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "%s/%s", submissionID, phase)
		}
		return nil, eris.Wrapf(err, "load %s/%s", submissionID, phase)
	}
	return []byte(payload), nil
}

// ListPhases returns the phases stored for a submission in write order.
func (s *PhaseStore) ListPhases(ctx context.Context, submissionID string) ([]string, error) {
	query, args, err := s.builder.
		Select("phase").
		From(phaseOutputsTable).
		Where(sq.Eq{"submission_id": submissionID}).
		OrderBy("created_at", "phase").
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "build select")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query phases")
	}
	defer rows.Close()

	var phases []string
	for rows.Next() {
		var phase string
		if err := rows.Scan(&phase); err != nil {
			return nil, eris.Wrap(err, "scan phase")
		}
		phases = append(phases, phase)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "rows iteration")
	}
	return phases, nil
}

// Purge removes every stored output of a submission so it can be re-run.
func (s *PhaseStore) Purge(ctx context.Context, submissionID string) (int64, error) {
	query, args, err := s.builder.
		Delete(phaseOutputsTable).
		Where(sq.Eq{"submission_id": submissionID}).
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "build delete")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "purge %s", submissionID)
	}
	return res.RowsAffected()
}

func (s *PhaseStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PhaseStore) Close() error {
	return s.db.Close()
}
