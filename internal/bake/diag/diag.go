// Package diag delivers bake diagnostics such as invalid lightmap UVs to an
// external channel, keyed by the GUID and kind of the offending object.
package diag

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severity of an alert.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// Alert kinds.
const (
	ObjectWrappedUVs    = "ObjectWrappedUVs"
	ObjectOverlappedUVs = "ObjectOverlappedUVs"
	LightmapUVOverlap   = "LightmapUVOverlap"
	LightDiscarded      = "LightDiscarded"
)

// Alert is one diagnostic message about a scene object.
type Alert struct {
	Severity   Severity
	Kind       string
	ObjectGUID uuid.UUID
	ObjectName string
	Message    string
}

// Key identifies the object and kind an alert is about.
func (a Alert) Key() string {
	return fmt.Sprintf("%s/%s", a.ObjectGUID, a.Kind)
}

// Reporter receives alerts. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(Alert)
}

// LogReporter writes alerts to a zap logger.
type LogReporter struct {
	log *zap.Logger
}

// NewLogReporter returns a reporter writing to log.
func NewLogReporter(log *zap.Logger) *LogReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogReporter{log: log}
}

// Report logs the alert at a level matching its severity.
func (r *LogReporter) Report(a Alert) {
	fields := []zap.Field{
		zap.String("kind", a.Kind),
		zap.String("object", a.ObjectName),
		zap.Stringer("guid", a.ObjectGUID),
	}
	switch a.Severity {
	case Info:
		r.log.Info(a.Message, fields...)
	case Warning:
		r.log.Warn(a.Message, fields...)
	default:
		r.log.Error(a.Message, fields...)
	}
}

// Collector keeps alerts in memory, deduplicated by key. The latest alert
// for a key wins.
type Collector struct {
	mu     sync.Mutex
	order  []string
	alerts map[string]Alert
	next   Reporter
}

// NewCollector returns a collector that forwards every alert to next when
// it is not nil.
func NewCollector(next Reporter) *Collector {
	return &Collector{alerts: map[string]Alert{}, next: next}
}

// Report stores the alert.
func (c *Collector) Report(a Alert) {
	c.mu.Lock()
	k := a.Key()
	if _, ok := c.alerts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.alerts[k] = a
	c.mu.Unlock()
	if c.next != nil {
		c.next.Report(a)
	}
}

// Alerts returns the stored alerts in first-report order.
func (c *Collector) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.alerts[k])
	}
	return out
}

// Discard drops every alert.
type Discard struct{}

func (Discard) Report(Alert) {}
