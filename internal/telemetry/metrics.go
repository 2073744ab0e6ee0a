package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/payroll"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Instruction metrics
	InstructionsTotal       metric.Int64Counter
	InstructionErrorsTotal  metric.Int64Counter
	InstructionDuration     metric.Float64Histogram
	StoreConflictsTotal     metric.Int64Counter
	AccountsCreatedTotal    metric.Int64Counter
	TreasuryFundedTotal     metric.Int64Counter
	TreasuryWithdrawnTotal  metric.Int64Counter
	PayrollDisbursedTotal   metric.Int64Counter
	PayrollWorkersPaidTotal metric.Int64Counter
	PayrollSkippedTotal     metric.Int64Counter

	// Journal metrics
	JournalAppendsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = newMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// newMetrics creates the instruments on meter.
func newMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.InstructionsTotal, _ = meter.Int64Counter(
		"payroll.instructions.total",
		metric.WithDescription("Total number of instructions executed"),
		metric.WithUnit("{instruction}"),
	)

	m.InstructionErrorsTotal, _ = meter.Int64Counter(
		"payroll.instructions.errors.total",
		metric.WithDescription("Total number of instructions that failed"),
		metric.WithUnit("{error}"),
	)

	m.InstructionDuration, _ = meter.Float64Histogram(
		"payroll.instruction.duration",
		metric.WithDescription("Duration of instruction execution including commit"),
		metric.WithUnit("ms"),
	)

	m.StoreConflictsTotal, _ = meter.Int64Counter(
		"payroll.store.conflicts.total",
		metric.WithDescription("Total number of optimistic version conflicts retried"),
		metric.WithUnit("{conflict}"),
	)

	m.AccountsCreatedTotal, _ = meter.Int64Counter(
		"payroll.accounts.created.total",
		metric.WithDescription("Total number of organization and worker accounts created"),
		metric.WithUnit("{account}"),
	)

	m.TreasuryFundedTotal, _ = meter.Int64Counter(
		"payroll.treasury.funded.total",
		metric.WithDescription("Total amount credited to treasuries"),
		metric.WithUnit("{lamport}"),
	)

	m.TreasuryWithdrawnTotal, _ = meter.Int64Counter(
		"payroll.treasury.withdrawn.total",
		metric.WithDescription("Total amount withdrawn from treasuries"),
		metric.WithUnit("{lamport}"),
	)

	m.PayrollDisbursedTotal, _ = meter.Int64Counter(
		"payroll.disbursed.total",
		metric.WithDescription("Total amount paid out to workers"),
		metric.WithUnit("{lamport}"),
	)

	m.PayrollWorkersPaidTotal, _ = meter.Int64Counter(
		"payroll.workers.paid.total",
		metric.WithDescription("Total number of worker payments"),
		metric.WithUnit("{payment}"),
	)

	m.PayrollSkippedTotal, _ = meter.Int64Counter(
		"payroll.workers.skipped.total",
		metric.WithDescription("Total number of workers skipped as already paid for the cycle"),
		metric.WithUnit("{worker}"),
	)

	m.JournalAppendsTotal, _ = meter.Int64Counter(
		"payroll.journal.appends.total",
		metric.WithDescription("Total number of batches appended to the journal"),
		metric.WithUnit("{batch}"),
	)

	return m
}
