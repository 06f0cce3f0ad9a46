package tollgate

import (
	"fmt"

	"github.com/blockberries/tollgate/types"
)

// Guard enforces delegated-only execution for a frame-borrowing
// component. It carries the component's own deployed identity, fixed
// at construction, and rejects any frame executing under that
// identity: such a frame means the component was called directly
// instead of being merged into a host.
//
// There is no way to disable the check.
type Guard struct {
	self types.Address
}

// NewGuard creates a guard for a component deployed at self.
func NewGuard(self types.Address) (*Guard, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("guard: zero self identity")
	}
	return &Guard{self: self}, nil
}

// Self returns the guarded component's own identity.
func (g *Guard) Self() types.Address { return g.self }

// Check returns ErrDirectInvocation when frame runs under the
// component's own identity. A nil frame is an engine bug and panics.
func (g *Guard) Check(frame *Frame) error {
	if frame == nil {
		panic("github.com/blockberries/tollgate: Check called with nil frame")
	}
	if frame.Host == g.self {
		return ErrDirectInvocation
	}
	return nil
}
