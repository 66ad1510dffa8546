package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	dispatchCount   map[string]int64
	triggerMatches  map[string]int64
	actionSuccesses map[string]int64
	actionFailures  map[string]int64
	slaBreaches     int64
	slaSweeps       int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests        map[string]int64 `json:"requests"`
	Errors          map[string]int64 `json:"errors"`
	Dispatches      map[string]int64 `json:"dispatches"`
	TriggerMatches  map[string]int64 `json:"trigger_matches"`
	ActionSuccesses map[string]int64 `json:"action_successes"`
	ActionFailures  map[string]int64 `json:"action_failures"`
	SLABreaches     int64            `json:"sla_breaches"`
	SLASweeps       int64            `json:"sla_sweeps"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		dispatchCount:   make(map[string]int64),
		triggerMatches:  make(map[string]int64),
		actionSuccesses: make(map[string]int64),
		actionFailures:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDispatch counts a dispatched event and how many triggers matched it.
func (m *Metrics) RecordDispatch(eventType string, matched int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchCount[eventType]++
	m.triggerMatches[eventType] += int64(matched)
}

// RecordAction counts an executed action by outcome.
func (m *Metrics) RecordAction(actionType string, ok bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.actionSuccesses[actionType]++
		return
	}
	m.actionFailures[actionType]++
}

// RecordSweep counts a completed SLA sweep and the breaches it flagged.
func (m *Metrics) RecordSweep(breached int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaSweeps++
	m.slaBreaches += int64(breached)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:        copyCounts(m.requestCount),
		Errors:          copyCounts(m.errorCount),
		Dispatches:      copyCounts(m.dispatchCount),
		TriggerMatches:  copyCounts(m.triggerMatches),
		ActionSuccesses: copyCounts(m.actionSuccesses),
		ActionFailures:  copyCounts(m.actionFailures),
		SLABreaches:     m.slaBreaches,
		SLASweeps:       m.slaSweeps,
	}
}

// RequestLogger logs each request and feeds request counters.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		elapsed := time.Since(start)
		metrics.RecordRequest(c.Route().Path, c.Method(), status, elapsed)
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", elapsed))
		return err
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
