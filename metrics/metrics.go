// Package metrics contains all application-logic metrics
package metrics

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

var (
	streamEventsReceived = metrics.NewCounter("mevshare_stream_events_received_total")
	streamEventsDropped  = metrics.NewCounter("mevshare_stream_events_dropped_total")
	bundlesIncluded      = metrics.NewCounter("mevshare_bundles_included_total")
	bundlesDiscarded     = metrics.NewCounter("mevshare_bundles_discarded_total")
	bundlesTimedOut      = metrics.NewCounter("mevshare_bundles_timed_out_total")
)

func RecordRPCCallDuration(method string, duration int64) {
	metrics.GetOrCreateSummary(fmt.Sprintf(`mevshare_rpc_call_duration_milliseconds{method="%s"}`, method)).Update(float64(duration))
}

func IncRPCCallFailure(method string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mevshare_rpc_call_failures_total{method="%s"}`, method)).Inc()
}

func IncStreamEventsReceived() {
	streamEventsReceived.Inc()
}

func IncStreamEventsDropped() {
	streamEventsDropped.Inc()
}

func IncBundlesIncluded() {
	bundlesIncluded.Inc()
}

func IncBundlesDiscarded() {
	bundlesDiscarded.Inc()
}

func IncBundlesTimedOut() {
	bundlesTimedOut.Inc()
}
