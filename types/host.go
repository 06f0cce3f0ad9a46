package types

// CallKind says how a merged host call enters the engine.
type CallKind uint8

const (
	// CallDispatch routes the payload through the router's dispatch
	// entry point.
	CallDispatch CallKind = 1
	// CallForward routes the payload through the execution shim.
	CallForward CallKind = 2
)

// String returns a human-readable representation.
func (k CallKind) String() string {
	switch k {
	case CallDispatch:
		return "dispatch"
	case CallForward:
		return "forward"
	default:
		return "unknown"
	}
}

// HostCall is one merged call executed under the host's borrowed
// frame.
type HostCall struct {
	// Caller is the external identity initiating this call; pulls and
	// attached value are drawn from it.
	Caller Address  `cramberry:"1"`
	Kind   CallKind `cramberry:"2"`
	// Op correlates the call with its settlement sentinel.
	Op OperationID `cramberry:"3"`
	// Value is the native amount the caller attaches. It lands on the
	// host before component code runs.
	Value   Word   `cramberry:"4"`
	Payload []byte `cramberry:"5"`
	// ForwardValue is the native amount the shim attaches downstream.
	// Only meaningful for CallForward.
	ForwardValue Word `cramberry:"6"`
}

// HostBatch is one atomic host invocation: every call applies, or
// none do.
type HostBatch struct {
	Host  Address    `cramberry:"1"`
	Calls []HostCall `cramberry:"2"`
}

// CallReceipt is the result of one merged call in a committed batch.
type CallReceipt struct {
	// Position of this call in the batch (0-indexed).
	Index uint32 `cramberry:"1"`
	// Operation-specific encoded result (ExecuteOutcome, SweepOutcome, ...).
	Data []byte `cramberry:"2"`
}

// BatchReceipt is the outcome of a committed host batch, in call order.
type BatchReceipt struct {
	Receipts []CallReceipt `cramberry:"1"`
}
