package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	traceenergy "github.com/lucasjlepore/trace-analyzer"
)

const (
	defaultCaseTable  = "trace_case_statistics"
	defaultEventTable = "trace_energy_events"
)

// ErrNilDB is returned when the store has no database handle.
var ErrNilDB = errors.New("trace store: nil db")

// ResultStore persists per-file analysis results in Postgres.
type ResultStore struct {
	db         *sql.DB
	caseTable  string
	eventTable string
}

// StoreOption configures the store.
type StoreOption func(*ResultStore)

// WithCaseTable overrides the case statistics table name.
func WithCaseTable(table string) StoreOption {
	return func(s *ResultStore) {
		if table != "" {
			s.caseTable = table
		}
	}
}

// WithEventTable overrides the energy event table name.
func WithEventTable(table string) StoreOption {
	return func(s *ResultStore) {
		if table != "" {
			s.eventTable = table
		}
	}
}

// NewResultStore constructs a store with default table names.
func NewResultStore(db *sql.DB, opts ...StoreOption) *ResultStore {
	s := &ResultStore{db: db, caseTable: defaultCaseTable, eventTable: defaultEventTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn through the pgx database/sql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the result tables when they do not exist.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	experiment TEXT NOT NULL,
	node INTEGER NOT NULL,
	label TEXT NOT NULL,
	case_id INTEGER NOT NULL,
	case_label TEXT NOT NULL,
	kind TEXT NOT NULL,
	samples INTEGER NOT NULL,
	mean_power_mw DOUBLE PRECISION NOT NULL,
	mean_current_ma DOUBLE PRECISION NOT NULL,
	max_power_mw DOUBLE PRECISION,
	max_current_ma DOUBLE PRECISION,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (experiment, node, label, case_id)
)`, s.caseTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	experiment TEXT NOT NULL,
	node INTEGER NOT NULL,
	label TEXT NOT NULL,
	case_id INTEGER NOT NULL,
	case_label TEXT NOT NULL,
	start_index INTEGER NOT NULL,
	window_rows INTEGER NOT NULL,
	energy_mwh DOUBLE PRECISION NOT NULL,
	energy_mah DOUBLE PRECISION NOT NULL,
	baseline_power_mw DOUBLE PRECISION NOT NULL,
	baseline_current_ma DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (experiment, node, label, case_id)
)`, s.eventTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveReport replaces the case statistics and energy events stored for the
// report's (experiment, node, label) in a single transaction.
func (s *ResultStore) SaveReport(ctx context.Context, report *traceenergy.FileReport) error {
	if s == nil || s.db == nil {
		return ErrNilDB
	}
	if report == nil || report.Experiment == "" {
		return errors.New("trace store: invalid report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.clearCapture(ctx, tx, report); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.saveCases(ctx, tx, report); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.saveEvents(ctx, tx, report); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// clearCapture removes rows left by an earlier run of the same capture, which
// may have produced more cases or events.
func (s *ResultStore) clearCapture(ctx context.Context, tx *sql.Tx, report *traceenergy.FileReport) error {
	for _, table := range []string{s.caseTable, s.eventTable} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE experiment = $1 AND node = $2 AND label = $3`, table)
		if _, err := tx.ExecContext(ctx, query, report.Experiment, report.Node, report.Label); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *ResultStore) saveCases(ctx context.Context, tx *sql.Tx, report *traceenergy.FileReport) error {
	if len(report.Cases) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	experiment,
	node,
	label,
	case_id,
	case_label,
	kind,
	samples,
	mean_power_mw,
	mean_current_ma,
	max_power_mw,
	max_current_ma
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (experiment, node, label, case_id)
DO UPDATE SET
	case_label = EXCLUDED.case_label,
	kind = EXCLUDED.kind,
	samples = EXCLUDED.samples,
	mean_power_mw = EXCLUDED.mean_power_mw,
	mean_current_ma = EXCLUDED.mean_current_ma,
	max_power_mw = EXCLUDED.max_power_mw,
	max_current_ma = EXCLUDED.max_current_ma,
	updated_at = NOW()`, s.caseTable)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range report.Cases {
		if _, err := stmt.ExecContext(
			ctx,
			report.Experiment,
			report.Node,
			report.Label,
			c.CaseID,
			c.Label,
			string(c.Kind),
			c.Samples,
			c.MeanPowerMW,
			c.MeanCurrentMA,
			nullFloat(c.MaxPowerMW),
			nullFloat(c.MaxCurrentMA),
		); err != nil {
			return fmt.Errorf("upsert case %d: %w", c.CaseID, err)
		}
	}
	return nil
}

func (s *ResultStore) saveEvents(ctx context.Context, tx *sql.Tx, report *traceenergy.FileReport) error {
	if len(report.Events) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	experiment,
	node,
	label,
	case_id,
	case_label,
	start_index,
	window_rows,
	energy_mwh,
	energy_mah,
	baseline_power_mw,
	baseline_current_ma
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (experiment, node, label, case_id)
DO UPDATE SET
	case_label = EXCLUDED.case_label,
	start_index = EXCLUDED.start_index,
	window_rows = EXCLUDED.window_rows,
	energy_mwh = EXCLUDED.energy_mwh,
	energy_mah = EXCLUDED.energy_mah,
	baseline_power_mw = EXCLUDED.baseline_power_mw,
	baseline_current_ma = EXCLUDED.baseline_current_ma,
	updated_at = NOW()`, s.eventTable)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range report.Events {
		if _, err := stmt.ExecContext(
			ctx,
			report.Experiment,
			report.Node,
			report.Label,
			ev.CaseID,
			ev.Label,
			ev.StartIndex,
			ev.Rows,
			ev.EnergyMWh,
			ev.EnergyMAh,
			report.Baseline.PowerMW,
			report.Baseline.CurrentMA,
		); err != nil {
			return fmt.Errorf("upsert event %d: %w", ev.CaseID, err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
