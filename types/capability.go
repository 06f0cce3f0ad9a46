package types

import "strings"

// Capabilities is a bitfield declaring which optional facilities the
// executing environment provides.
type Capabilities uint8

const (
	CapTransientSlots Capabilities = 1 << iota // 0b001
	CapDurableSlots                            // 0b010
	CapEventJournal                            // 0b100
)

// Has returns true if all bits in cap are set.
func (c Capabilities) Has(cap Capabilities) bool {
	return c&cap == cap
}

// String returns a human-readable representation.
func (c Capabilities) String() string {
	var caps []string
	if c.Has(CapTransientSlots) {
		caps = append(caps, "TransientSlots")
	}
	if c.Has(CapDurableSlots) {
		caps = append(caps, "DurableSlots")
	}
	if c.Has(CapEventJournal) {
		caps = append(caps, "EventJournal")
	}
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, "|")
}
