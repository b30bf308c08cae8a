package diag

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCollectorDeduplicatesByKey(t *testing.T) {
	id := uuid.New()
	c := NewCollector(nil)
	c.Report(Alert{Severity: Warning, Kind: ObjectWrappedUVs, ObjectGUID: id, Message: "first"})
	c.Report(Alert{Severity: Warning, Kind: ObjectOverlappedUVs, ObjectGUID: id, Message: "other"})
	c.Report(Alert{Severity: Warning, Kind: ObjectWrappedUVs, ObjectGUID: id, Message: "second"})

	alerts := c.Alerts()
	assert.Len(t, alerts, 2)
	assert.Equal(t, "second", alerts[0].Message)
	assert.Equal(t, ObjectOverlappedUVs, alerts[1].Kind)
}

func TestCollectorForwards(t *testing.T) {
	inner := NewCollector(nil)
	outer := NewCollector(inner)
	outer.Report(Alert{Kind: LightDiscarded, ObjectGUID: uuid.New()})
	assert.Len(t, inner.Alerts(), 1)
}
