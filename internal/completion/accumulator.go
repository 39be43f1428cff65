package completion

import (
	"fmt"
	"sort"
)

// Accumulator rebuilds complete tool-call requests from streamed fragments.
// Deltas are keyed by positional index; fragments may arrive in any order and
// interleaved across indices. Not safe for concurrent use; each model turn
// owns its own Accumulator.
type Accumulator struct {
	calls map[int]*ToolCallRequest
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*ToolCallRequest)}
}

// Absorb folds a single streamed fragment into the accumulated state.
// ID and Name overwrite when supplied; Arguments fragments concatenate.
func (a *Accumulator) Absorb(d ToolCallDelta) {
	call, ok := a.calls[d.Index]
	if !ok {
		call = &ToolCallRequest{}
		a.calls[d.Index] = call
	}
	if d.ID != "" {
		call.ID = d.ID
	}
	if d.Name != "" {
		call.Name = d.Name
	}
	call.Arguments += d.Arguments
}

// Empty reports whether no fragments have been absorbed.
func (a *Accumulator) Empty() bool {
	return len(a.calls) == 0
}

// Requests materializes the accumulated calls in ascending index order.
// A call that never received an ID is assigned a synthetic "call_<index>" so
// tool result messages can always reference their originating call.
func (a *Accumulator) Requests() []ToolCallRequest {
	indices := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	requests := make([]ToolCallRequest, 0, len(indices))
	for _, idx := range indices {
		call := *a.calls[idx]
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", idx)
		}
		requests = append(requests, call)
	}
	return requests
}
