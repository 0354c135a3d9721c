// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsAppended counts ledger transactions by type.
	TransactionsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_ledger_transactions_total",
		Help: "Ledger transactions appended, by transaction type.",
	}, []string{"type"})

	// ReconcileRuns counts reconciliation runs by outcome: "clean" when the
	// cached aggregates already matched, "drift" when they had to be
	// corrected, "error" when the run failed.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_reconcile_runs_total",
		Help: "Ledger reconciliation runs, by outcome.",
	}, []string{"outcome"})

	// PayoutAssignments counts payout assignments by mode.
	PayoutAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_payout_assignments_total",
		Help: "Payout assignments, by assignment mode.",
	}, []string{"mode"})

	// Redistributions counts completed refusal-pool redistributions.
	Redistributions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tontine_redistributions_total",
		Help: "Completed refusal-pool redistributions.",
	})
)
