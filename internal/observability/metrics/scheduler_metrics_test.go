package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "renewd",
		Environment: "test",
	})

	metrics.AddBatchProcessed("reminders", "assets", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("reminders", "assets"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncDispatchOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "renewd",
		Environment: "test",
	})

	metrics.IncDispatchOutcome("email", DispatchOutcomeSent)
	metrics.IncDispatchOutcome("email", DispatchOutcomeSent)
	metrics.IncDispatchOutcome("sms", DispatchOutcomeFallback)

	if got := testutil.ToFloat64(metrics.dispatchOutcomes.WithLabelValues("email", DispatchOutcomeSent)); got != 2 {
		t.Fatalf("expected 2 sent email dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchOutcomes.WithLabelValues("sms", DispatchOutcomeFallback)); got != 1 {
		t.Fatalf("expected 1 sms fallback, got %v", got)
	}
}

func TestIncStageErrorClassifies(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "renewd",
		Environment: "test",
	})

	metrics.IncStageError(TickStageDispatch, context.DeadlineExceeded)
	metrics.IncStageError(TickStageDispatch, gorm.ErrInvalidTransaction)

	if got := testutil.ToFloat64(metrics.stageErrors.WithLabelValues(TickStageDispatch, SchedulerErrorTypeDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline stage error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.stageErrors.WithLabelValues(TickStageDispatch, SchedulerErrorTypeDB)); got != 1 {
		t.Fatalf("expected 1 db stage error, got %v", got)
	}
}
