package lightorgan

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks the pipeline's cumulative work. Counters are accumulate-only
// and atomically updated, so both workers write to them without locks and the
// periodic report reads them concurrently. Purely observability; nothing in
// the pipeline branches on these values.
type Metrics struct {
	start      time.Time
	analysisNS atomic.Int64
	renderNS   atomic.Int64
	updates    atomic.Int64
	overloads  atomic.Int64
	malformed  atomic.Int64
}

// NewMetrics creates metrics with the wall clock starting now.
func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

func (m *Metrics) resetClock() {
	m.start = time.Now()
}

// AddAnalysisTime accumulates time spent in the analysis worker's core
// transform, excluding queue wait.
func (m *Metrics) AddAnalysisTime(d time.Duration) {
	m.analysisNS.Add(int64(d))
}

// AddRenderTime accumulates time spent in the render worker's core
// transform, excluding queue wait.
func (m *Metrics) AddRenderTime(d time.Duration) {
	m.renderNS.Add(int64(d))
}

// CountUpdate records one completed LED update and returns the new total.
func (m *Metrics) CountUpdate() int64 {
	return m.updates.Add(1)
}

// CountOverload records one back-pressure warning.
func (m *Metrics) CountOverload() {
	m.overloads.Add(1)
}

// CountMalformed records one skipped undecodable input line.
func (m *Metrics) CountMalformed() {
	m.malformed.Add(1)
}

// Updates returns the number of completed LED updates.
func (m *Metrics) Updates() int64 { return m.updates.Load() }

// Overloads returns the number of back-pressure warnings emitted.
func (m *Metrics) Overloads() int64 { return m.overloads.Load() }

// Malformed returns the number of skipped undecodable input lines.
func (m *Metrics) Malformed() int64 { return m.malformed.Load() }

// LogReport logs each stage's share of wall-clock time since the pipeline
// started.
func (m *Metrics) LogReport(logger *slog.Logger) {
	wall := time.Since(m.start).Seconds()
	if wall <= 0 {
		return
	}
	logger.Debug("pipeline utilization",
		"updates", m.updates.Load(),
		"analysis_frac", float64(m.analysisNS.Load())/1e9/wall,
		"render_frac", float64(m.renderNS.Load())/1e9/wall,
		"overloads", m.overloads.Load(),
		"malformed_lines", m.malformed.Load())
}
