package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestClassifyDBErr(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{&pgconn.PgError{Code: "23514"}, "check_violation"},
		{&pgconn.PgError{Code: "42P01"}, "pg_42P01"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("connection refused"), "connection"},
		{errors.New("boom"), "unknown"},
	}

	for _, tc := range cases {
		if got := classifyDBErr(tc.err); got != tc.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestObserveDBCountsErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB(BackendPostgres, "defects.get", func() error { return nil })
	_ = p.ObserveDB(BackendPostgres, "defects.get", func() error { return errors.New("boom") })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues(BackendPostgres, "defects.get", "unknown")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues(BackendMongo, "defects.get", "unknown")); got != 0 {
		t.Fatalf("expected no mongo errors, got %v", got)
	}

	_ = p.ObserveDB(BackendMongo, "defects.get", func() error { return mongo.ErrNoDocuments })
	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues(BackendMongo, "defects.get", "unknown")); got != 0 {
		t.Fatalf("a miss must not count as an error, got %v", got)
	}

	var nilProm *Prom
	if err := nilProm.ObserveDB(BackendMongo, "x", func() error { return nil }); err != nil {
		t.Fatalf("nil prom should just run fn: %v", err)
	}
}

func TestRecordDefectEvent(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())
	p.RecordDefectEvent("created")
	p.RecordDefectEvent("created")

	if got := testutil.ToFloat64(p.DefectEvents.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	log.Debug("hidden")
	log.Info("visible", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "visible" || rec["service"] != "civicfix-api" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestCaptureErrorWithoutClient(t *testing.T) {
	// must not panic when Sentry is not configured
	CaptureError(context.Background(), errors.New("boom"), map[string]string{"route": "/x"})
}

func TestContextHandlerAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev")

	ctx := identity.WithIdentity(context.Background(), identity.Identity{UserID: "u-1", Role: user.RoleUser})
	log.InfoContext(ctx, "defect created")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["user_id"] != "u-1" {
		t.Fatalf("expected user_id on record, got %v", rec)
	}
	if _, ok := rec["trace_id"]; ok {
		t.Fatalf("unexpected trace_id without a span")
	}
}
