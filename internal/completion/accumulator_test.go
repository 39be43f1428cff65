package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorOrdersByIndex(t *testing.T) {
	acc := NewAccumulator()

	// Fragments arrive out of index order: 2, 0, 1.
	acc.Absorb(ToolCallDelta{Index: 2, ID: "call_c", Name: "gamma"})
	acc.Absorb(ToolCallDelta{Index: 0, ID: "call_a", Name: "alpha"})
	acc.Absorb(ToolCallDelta{Index: 1, ID: "call_b", Name: "beta"})

	requests := acc.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, "alpha", requests[0].Name)
	assert.Equal(t, "beta", requests[1].Name)
	assert.Equal(t, "gamma", requests[2].Name)
}

func TestAccumulatorConcatenatesArgumentFragments(t *testing.T) {
	acc := NewAccumulator()

	acc.Absorb(ToolCallDelta{Index: 0, ID: "call_1", Name: "record_user_details"})
	acc.Absorb(ToolCallDelta{Index: 0, Arguments: `{"email":`})
	acc.Absorb(ToolCallDelta{Index: 0, Arguments: `"a@b.com"`})
	acc.Absorb(ToolCallDelta{Index: 0, Arguments: `}`})

	requests := acc.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "call_1", requests[0].ID)
	assert.Equal(t, `{"email":"a@b.com"}`, requests[0].Arguments)
}

func TestAccumulatorAssignsSyntheticID(t *testing.T) {
	acc := NewAccumulator()

	// The stream never supplies an ID for either call.
	acc.Absorb(ToolCallDelta{Index: 1, Name: "record_unknown_question", Arguments: `{}`})
	acc.Absorb(ToolCallDelta{Index: 0, Name: "record_user_details", Arguments: `{}`})

	requests := acc.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "call_0", requests[0].ID)
	assert.Equal(t, "call_1", requests[1].ID)
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := NewAccumulator()
	assert.True(t, acc.Empty())
	assert.Empty(t, acc.Requests())

	acc.Absorb(ToolCallDelta{Index: 0, Name: "record_user_details"})
	assert.False(t, acc.Empty())
}
