package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Operation is the closed set of routable router operations. A payload
// decodes to exactly one variant up front; dispatch matches the set
// exhaustively.
type Operation interface {
	isOperation()
	selector() Selector
}

// ExecuteOp forwards an already-built batch-with-value payload.
type ExecuteOp struct {
	Payload []byte `cramberry:"1"`
}

// PullExecuteOp pulls the caller's entire available balance of Asset
// to the host before executing the batch payload.
type PullExecuteOp struct {
	Asset   Asset  `cramberry:"1"`
	Payload []byte `cramberry:"2"`
}

// PullAmountExecuteOp pulls exactly Amount of Asset from the caller
// before executing the batch payload.
type PullAmountExecuteOp struct {
	Asset   Asset  `cramberry:"1"`
	Amount  Word   `cramberry:"2"`
	Payload []byte `cramberry:"3"`
}

// InjectCallOp patches the host's live balance into the request
// payload and dispatches it.
type InjectCallOp struct {
	Request InjectionRequest `cramberry:"1"`
}

// InjectSweepCallOp is InjectCallOp followed by a sweep of a possibly
// different asset.
type InjectSweepCallOp struct {
	Request        InjectionRequest `cramberry:"1"`
	SweepAsset     Asset            `cramberry:"2"`
	SweepRecipient Address          `cramberry:"3"`
}

// SweepOp moves the host's entire holding of Asset to Recipient.
type SweepOp struct {
	Asset     Asset   `cramberry:"1"`
	Recipient Address `cramberry:"2"`
}

// RefundSweepOp refunds up to Refund of Asset to RefundRecipient and
// sweeps the remainder to SweepRecipient.
type RefundSweepOp struct {
	Asset           Asset   `cramberry:"1"`
	RefundRecipient Address `cramberry:"2"`
	Refund          Word    `cramberry:"3"`
	SweepRecipient  Address `cramberry:"4"`
}

// SettledSweepOp sweeps only if the dispatching call's operation id
// has a settlement sentinel set. The id itself rides on the call
// envelope, not the payload.
type SettledSweepOp struct {
	Asset     Asset   `cramberry:"1"`
	Recipient Address `cramberry:"2"`
}

func (*ExecuteOp) isOperation()           {}
func (*PullExecuteOp) isOperation()       {}
func (*PullAmountExecuteOp) isOperation() {}
func (*InjectCallOp) isOperation()        {}
func (*InjectSweepCallOp) isOperation()   {}
func (*SweepOp) isOperation()             {}
func (*RefundSweepOp) isOperation()       {}
func (*SettledSweepOp) isOperation()      {}

func (*ExecuteOp) selector() Selector           { return SelExecute }
func (*PullExecuteOp) selector() Selector       { return SelPullExecute }
func (*PullAmountExecuteOp) selector() Selector { return SelPullAmountExecute }
func (*InjectCallOp) selector() Selector        { return SelInjectCall }
func (*InjectSweepCallOp) selector() Selector   { return SelInjectSweepCall }
func (*SweepOp) selector() Selector             { return SelSweep }
func (*RefundSweepOp) selector() Selector       { return SelRefundSweep }
func (*SettledSweepOp) selector() Selector      { return SelSettledSweep }

// EncodeOperation builds a dispatch payload: the operation's selector
// followed by its cramberry-encoded arguments.
func EncodeOperation(op Operation) ([]byte, error) {
	body, err := cramberry.Marshal(op)
	if err != nil {
		return nil, err
	}
	sel := op.selector()
	return append(append([]byte{}, sel[:]...), body...), nil
}

// DecodeOperation parses a dispatch payload into its operation
// variant. An unknown selector returns *UnknownSelectorError; the
// router surfaces it as an unrecognized-operation failure.
func DecodeOperation(payload []byte) (Operation, error) {
	sel, body, err := SplitSelector(payload)
	if err != nil {
		return nil, err
	}
	var op Operation
	switch sel {
	case SelExecute:
		op = new(ExecuteOp)
	case SelPullExecute:
		op = new(PullExecuteOp)
	case SelPullAmountExecute:
		op = new(PullAmountExecuteOp)
	case SelInjectCall:
		op = new(InjectCallOp)
	case SelInjectSweepCall:
		op = new(InjectSweepCallOp)
	case SelSweep:
		op = new(SweepOp)
	case SelRefundSweep:
		op = new(RefundSweepOp)
	case SelSettledSweep:
		op = new(SettledSweepOp)
	default:
		return nil, &UnknownSelectorError{Selector: sel}
	}
	if err := cramberry.Unmarshal(body, op); err != nil {
		return nil, fmt.Errorf("decode %s body: %w", sel, err)
	}
	return op, nil
}

// UnknownSelectorError reports a payload whose selector maps to no
// known operation.
type UnknownSelectorError struct {
	Selector Selector
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("unknown operation selector %s", e.Selector)
}

// ExecuteOutcome is the encoded result of the execute family.
type ExecuteOutcome struct {
	Results []CallResult `cramberry:"1"`
}

// CallOutcome is the encoded result of the inject-and-call family.
type CallOutcome struct {
	ReturnData []byte `cramberry:"1"`
	// Swept is nonzero for the inject-sweep variant.
	Swept Word `cramberry:"2"`
}

// SweepOutcome is the encoded result of a sweep.
type SweepOutcome struct {
	Amount Word `cramberry:"1"`
}

// RefundSweepOutcome is the encoded result of a refund-and-sweep.
type RefundSweepOutcome struct {
	Refunded Word `cramberry:"1"`
	Swept    Word `cramberry:"2"`
}
