package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Selector is the 4-byte operation discriminator at the head of every
// routed payload.
type Selector [4]byte

// selectorDomain versions the selector derivation. Changing it (or an
// operation name) changes every derived selector, so bump only with a
// wire break.
const selectorDomain = "tollgate/op/v1"

// OpSelector derives the selector for a named operation: the first
// four bytes of SHA-256(domain || 0x00 || name).
func OpSelector(name string) Selector {
	h := sha256.New()
	h.Write([]byte(selectorDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	var s Selector
	copy(s[:], h.Sum(nil))
	return s
}

// Routed operation selectors. SelAggregate heads the batch body a
// router forwards to the call aggregator; the rest head dispatch
// payloads.
var (
	SelAggregate         = OpSelector("aggregate")
	SelExecute           = OpSelector("execute")
	SelPullExecute       = OpSelector("pull_execute")
	SelPullAmountExecute = OpSelector("pull_amount_execute")
	SelInjectCall        = OpSelector("inject_call")
	SelInjectSweepCall   = OpSelector("inject_sweep_call")
	SelSweep             = OpSelector("sweep")
	SelRefundSweep       = OpSelector("refund_sweep")
	SelSettledSweep      = OpSelector("settled_sweep")
)

// String returns the 0x-prefixed hex form.
func (s Selector) String() string { return "0x" + hex.EncodeToString(s[:]) }

// SplitSelector separates a routed payload into its selector and body.
func SplitSelector(payload []byte) (Selector, []byte, error) {
	var s Selector
	if len(payload) < len(s) {
		return s, nil, fmt.Errorf("payload too short for selector: %d bytes", len(payload))
	}
	copy(s[:], payload)
	return s, payload[len(s):], nil
}
