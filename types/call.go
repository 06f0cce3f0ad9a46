package types

import "github.com/blockberries/cramberry/pkg/cramberry"

// BatchCall is one leg of an aggregated batch. Field order is fixed
// by the aggregator contract: target, failure tolerance, attached
// native value, raw payload.
type BatchCall struct {
	Target Address `cramberry:"1"`
	// AllowFailure marks the leg tolerable: the aggregator records the
	// failure and continues. The delegated router refuses batches that
	// set it; it exists for callers that talk to the aggregator directly.
	AllowFailure bool   `cramberry:"2"`
	Value        Word   `cramberry:"3"`
	Payload      []byte `cramberry:"4"`
}

// CallResult is the aggregator's per-leg outcome.
type CallResult struct {
	Success bool `cramberry:"1"`
	// ReturnData is the leg's raw return data on success, or its raw
	// revert payload on a tolerated failure. Never summarized.
	ReturnData []byte `cramberry:"2"`
}

// InjectionRequest describes one balance-patching call: the payload is
// owned by the engine for the duration of the operation and mutated in
// place at Offset.
type InjectionRequest struct {
	// Asset whose live holding is read and injected.
	Asset  Asset   `cramberry:"1"`
	Target Address `cramberry:"2"`
	// Payload is the prepared call data containing the placeholder
	// window, when Offset/Placeholder are non-trivial.
	Payload []byte `cramberry:"3"`
	// Offset of the 32-byte window to overwrite.
	Offset uint32 `cramberry:"4"`
	// Placeholder is the exact bytes the window must currently hold.
	Placeholder Word `cramberry:"5"`
}

// Trivial reports whether the request carries no placeholder window.
// A trivial request dispatches the payload unmodified.
func (r InjectionRequest) Trivial() bool {
	return r.Offset == 0 && r.Placeholder.IsZero()
}

// AggregateBody is the batch carried after SelAggregate.
type AggregateBody struct {
	Calls []BatchCall `cramberry:"1"`
}

// EncodeAggregate builds the batch-with-value payload the router's
// execute entry point accepts: SelAggregate followed by the calls.
func EncodeAggregate(calls []BatchCall) ([]byte, error) {
	body, err := cramberry.Marshal(&AggregateBody{Calls: calls})
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, SelAggregate[:]...), body...), nil
}

// DecodeAggregateBody parses the portion after SelAggregate.
func DecodeAggregateBody(body []byte) ([]BatchCall, error) {
	var b AggregateBody
	if err := cramberry.Unmarshal(body, &b); err != nil {
		return nil, err
	}
	return b.Calls, nil
}
