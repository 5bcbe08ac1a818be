package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(EventTypeEntityMerged, "tenant-1")

	assert.Equal(t, EventTypeEntityMerged, base.EventType)
	assert.Equal(t, SchemaVersion, base.SchemaVersion)
	assert.Equal(t, "tenant-1", base.TenantID)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotEmpty(t, base.CorrelationID)
}

func TestEntityDeletedEvent_Payload(t *testing.T) {
	event := EntityDeletedEvent{
		BaseEvent:  NewBaseEvent(EventTypeEntityDeleted, "tenant-1"),
		EntityID:   "e1",
		EntityType: "deal",
		DeletedBy:  "user-1",
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "entity.deleted", decoded["event_type"])
	assert.Equal(t, "e1", decoded["entity_id"])
	assert.Equal(t, "deal", decoded["entity_type"])
	assert.Equal(t, "user-1", decoded["deleted_by"])
}
