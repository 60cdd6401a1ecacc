package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
)

func testDSN() string {
	if dsn := os.Getenv("TRACE_PG_DSN"); dsn != "" {
		return dsn
	}
	return os.Getenv("PG_DSN")
}

func TestSaveReportNilDB(t *testing.T) {
	var s *ResultStore
	if err := s.SaveReport(context.Background(), &traceenergy.FileReport{Experiment: "x"}); !errors.Is(err, ErrNilDB) {
		t.Fatalf("expected ErrNilDB, got %v", err)
	}
	if err := NewResultStore(nil).EnsureSchema(context.Background()); !errors.Is(err, ErrNilDB) {
		t.Fatalf("expected ErrNilDB, got %v", err)
	}
}

func TestStoreOptions(t *testing.T) {
	s := NewResultStore(nil, WithCaseTable("cases_it"), WithEventTable(""))
	if s.caseTable != "cases_it" || s.eventTable != defaultEventTable {
		t.Fatalf("tables=%q,%q", s.caseTable, s.eventTable)
	}
}

func TestSaveReport_Postgres(t *testing.T) {
	dsn := testDSN()
	if dsn == "" {
		t.Skip("TRACE_PG_DSN/PG_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := NewResultStore(db, WithCaseTable("trace_case_statistics_it"), WithEventTable("trace_energy_events_it"))
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM trace_case_statistics_it WHERE experiment = $1", "it")
	_, _ = db.ExecContext(ctx, "DELETE FROM trace_energy_events_it WHERE experiment = $1", "it")

	peak := 42.5
	report := &traceenergy.FileReport{
		Experiment: "it",
		Node:       7,
		Cases: []traceenergy.CaseStatistics{
			{CaseID: 8, Label: "SLEEP", Kind: traceenergy.AggregateMean, Samples: 10, MeanPowerMW: 1.2, MeanCurrentMA: 0.4},
			{CaseID: 12, Label: "UNICAST", Kind: traceenergy.AggregateMax, Samples: 10, MeanPowerMW: 30, MeanCurrentMA: 9, MaxPowerMW: &peak, MaxCurrentMA: &peak},
		},
		Events:   []traceenergy.EnergyEvent{{CaseID: 12, Label: "UNICAST", Rows: 31, EnergyMWh: 4e-5, EnergyMAh: 1e-5}},
		Baseline: traceenergy.Baseline{Source: traceenergy.BaselineCase, PowerMW: 1.2, CurrentMA: 0.4},
	}
	// Saving twice exercises the upsert path.
	for i := 0; i < 2; i++ {
		if err := store.SaveReport(ctx, report); err != nil {
			t.Fatalf("save report: %v", err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trace_case_statistics_it WHERE experiment = $1", "it").Scan(&count); err != nil {
		t.Fatalf("count cases: %v", err)
	}
	if count != 2 {
		t.Fatalf("case rows=%d want 2", count)
	}
	var maxPower sql.NullFloat64
	if err := db.QueryRowContext(ctx, "SELECT max_power_mw FROM trace_case_statistics_it WHERE experiment = $1 AND case_id = 8", "it").Scan(&maxPower); err != nil {
		t.Fatalf("query max: %v", err)
	}
	if maxPower.Valid {
		t.Fatalf("mean case stored max %v", maxPower.Float64)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trace_energy_events_it WHERE experiment = $1", "it").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("event rows=%d want 1", count)
	}

	// A re-analysis with fewer cases and no events replaces the earlier rows.
	report.Cases = report.Cases[:1]
	report.Events = nil
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("save shrunk report: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trace_case_statistics_it WHERE experiment = $1", "it").Scan(&count); err != nil {
		t.Fatalf("count cases: %v", err)
	}
	if count != 1 {
		t.Fatalf("case rows after re-save=%d want 1", count)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trace_energy_events_it WHERE experiment = $1", "it").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("event rows after re-save=%d want 0", count)
	}
}
