package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics/keyword"
	"github.com/VictoriaMetrics/metrics"
)

// Meter defines methods for recording application metrics.
type Meter interface {
	IncTotal(path, method string)
	IncStatus(path, method, status string)
	NewResponseTimeTimer(path, method string) *Timer
	FlushResponseTimeTimer(t *Timer)
	IncAdded(weight uint64)
	IncEstimates()
	IncMerges()
	IncErrors(op string)
	SetTotalWeight(weight uint64)
	IncAdmissions(admitted bool)
	WritePrometheus(w io.Writer)
}

// Metrics implements Meter on a private VictoriaMetrics set, so several instances never share counters.
type Metrics struct {
	set *metrics.Set
}

// New creates a new Metrics instance.
func New() *Metrics {
	return &Metrics{set: metrics.NewSet()}
}

func (m *Metrics) labeled(name string, pairs ...string) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, name...)
	buf = append(buf, '{')
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, pairs[i]...)
		buf = append(buf, `="`...)
		buf = append(buf, pairs[i+1]...)
		buf = append(buf, '"')
	}
	buf = append(buf, '}')
	return string(buf)
}

// IncTotal increments total requests.
func (m *Metrics) IncTotal(path, method string) {
	m.set.GetOrCreateCounter(m.labeled(keyword.TotalHttpRequestsMetricName, "path", path, "method", method)).Inc()
}

// IncStatus increments a counter for HTTP response statuses.
func (m *Metrics) IncStatus(path, method, status string) {
	m.set.GetOrCreateCounter(m.labeled(keyword.HttpResponseStatusesMetricName,
		"path", path, "method", method, "status", status)).Inc()
}

// IncAdded records one add call carrying weight occurrences.
func (m *Metrics) IncAdded(weight uint64) {
	m.set.GetOrCreateCounter(keyword.SketchAddsMetricName).Inc()
	m.set.GetOrCreateCounter(keyword.SketchAddedWeightMetricName).Add(int(weight))
}

func (m *Metrics) IncEstimates() {
	m.set.GetOrCreateCounter(keyword.SketchEstimatesMetricName).Inc()
}

func (m *Metrics) IncMerges() {
	m.set.GetOrCreateCounter(keyword.SketchMergesMetricName).Inc()
}

// IncErrors counts a rejected operation (add, merge, snapshot...).
func (m *Metrics) IncErrors(op string) {
	m.set.GetOrCreateCounter(m.labeled(keyword.SketchErrorsMetricName, "op", op)).Inc()
}

// SetTotalWeight updates the gauge of the sketch total weight.
func (m *Metrics) SetTotalWeight(weight uint64) {
	m.set.GetOrCreateCounter(keyword.SketchTotalWeightMetricName).Set(weight)
}

// IncAdmissions counts one admission decision by outcome.
func (m *Metrics) IncAdmissions(admitted bool) {
	m.set.GetOrCreateCounter(m.labeled(keyword.AdmissionDecisionsMetricName, "admitted", strconv.FormatBool(admitted))).Inc()
}

// WritePrometheus writes the set and the process metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// Timer tracks start of an operation for timing metrics.
type Timer struct {
	name  string
	start time.Time
}

// NewResponseTimeTimer creates a Timer for measuring response time of given path and method.
func (m *Metrics) NewResponseTimeTimer(path, method string) *Timer {
	return &Timer{
		name:  m.labeled(keyword.HttpResponseTimeMsMetricName, "path", path, "method", method),
		start: time.Now(),
	}
}

// FlushResponseTimeTimer records the elapsed time since Timer creation into a histogram.
func (m *Metrics) FlushResponseTimeTimer(t *Timer) {
	m.set.GetOrCreateHistogram(t.name).Update(float64(time.Since(t.start).Microseconds()) / 1000)
}
