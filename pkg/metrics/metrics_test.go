package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/verax/verax/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := metrics.NewManager(
			metrics.WithPrometheusRegistry(registry),
			metrics.WithNamespace("verax_test"),
			metrics.WithSubsystem("ledger"),
		)
		So(manager, ShouldNotBeNil)

		Convey("Then all metric families register without collision", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			// Families appear once observed; registration itself must not panic,
			// and no family is pre-populated.
			So(len(families), ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then the package-level recorders do not panic", func() {
			So(func() {
				metrics.RecordSubmission()
				metrics.RecordDuplicate()
				metrics.RecordLedgerAppend(53)
				metrics.RecordAppendError()
				metrics.RecordLedgerFull()
				metrics.RecordDecodeFailures(2)
				metrics.RecordTruncatedRead()
				metrics.RecordProfileCompute(1.5)
				metrics.UpdateQueueSize(10)
				metrics.UpdateQueueCapacity(100)
				metrics.UpdateWorkerCount(4)
				metrics.UpdateTotalLedgers(3)
				metrics.RecordQueueEnqueueError()
				metrics.RecordWorkerProcessingLatency(0.4)
				metrics.RecordWorkerError()
				metrics.RecordHTTPRequest("records", "POST", "202")
				metrics.RecordHTTPRequestDuration("records", "POST", "202", 2.5)
				metrics.RecordErrorByComponent("worker", "append_error")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed for the health endpoint", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
