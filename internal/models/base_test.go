package models

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortableID_OrdersByGeneration(t *testing.T) {
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = NewSortableID()
	}

	assert.True(t, sort.StringsAreSorted(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.True(t, IsValidID(id))
	}
}

func TestNewSortableID_HonorsHook(t *testing.T) {
	NewIDHook = func() (string, bool) { return "message-1", true }
	defer func() { NewIDHook = nil }()

	assert.Equal(t, "message-1", NewSortableBase().ID)
}
