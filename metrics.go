package ledgeridx

import (
	"github.com/prometheus/client_golang/prometheus"
)

var DecodedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgeridx",
	Subsystem: "decoder",
	Name:      "records",
}, []string{"category", "result"})

var AppliedChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgeridx",
	Subsystem: "store",
	Name:      "changes",
}, []string{"table", "op"})

var FetchedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgeridx",
	Subsystem: "loader",
	Name:      "fetched_records",
}, []string{"category"})

var LoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ledgeridx",
	Subsystem: "loader",
	Name:      "duration_seconds",
	Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60, 120},
}, []string{"result"})

var Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgeridx",
	Subsystem: "listener",
	Name:      "notifications",
}, []string{"category", "result"})

var EnrichedBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgeridx",
	Subsystem: "enricher",
	Name:      "batches",
}, []string{"result"})

// Collectors returns every metric of the package, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{DecodedRecords, AppliedChanges, FetchedRecords, LoadDuration, Notifications, EnrichedBatches}
}

func recordDecodeResult(cat Category, err error) {
	result := "ok"
	if err != nil {
		result = decodeErrorReason(err)
	}
	DecodedRecords.WithLabelValues(cat.String(), result).Inc()
}

func recordChange(chg *Change) {
	AppliedChanges.WithLabelValues(chg.TableName(), chg.Op.String()).Inc()
}
