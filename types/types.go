// Package types defines all core data types for the tollgate
// delegated execution and settlement engine.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Address is a 20-byte account identity: a host wallet, an engine
// component, an external call target, or a token contract.
type Address [20]byte

// ParseAddress decodes a 0x-prefixed, 40-digit hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return a, fmt.Errorf("address %q missing 0x prefix", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("address %q: got %d bytes, want %d", s, len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero returns true for the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }

// String returns the 0x-prefixed hex form.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Hash is a 32-byte cryptographic hash. Storage slot keys are hashes.
type Hash [32]byte

// String returns the 0x-prefixed hex form.
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// OperationID correlates one delegated operation across its forward
// and settlement legs. IDs are minted by the initiating flow and are
// opaque to the engine.
type OperationID [32]byte

// String returns the 0x-prefixed hex form.
func (id OperationID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// Word is a 256-bit big-endian unsigned integer, the unit of both
// amounts on the wire and storage slot values.
type Word [32]byte

// WordFromBig converts v to a Word. Negative values and values wider
// than 256 bits are rejected.
func WordFromBig(v *big.Int) (Word, error) {
	var w Word
	if v == nil {
		return w, nil
	}
	if v.Sign() < 0 {
		return w, fmt.Errorf("negative amount %s", v)
	}
	if v.BitLen() > 256 {
		return w, fmt.Errorf("amount %s overflows 256 bits", v)
	}
	v.FillBytes(w[:])
	return w, nil
}

// Uint64Word returns v as a Word.
func Uint64Word(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

// MaxWord is the all-ones word. As an allowance it means unlimited
// and is never decremented.
var MaxWord = Word{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Big returns the word as a fresh big.Int.
func (w Word) Big() *big.Int { return new(big.Int).SetBytes(w[:]) }

// IsZero returns true for the all-zero word.
func (w Word) IsZero() bool { return w == Word{} }

// String returns the 0x-prefixed hex form.
func (w Word) String() string { return "0x" + hex.EncodeToString(w[:]) }

// Asset identifies what is being moved or held. The zero value is the
// native asset; any other value is the token contract's address.
type Asset [20]byte

// NativeAsset is the chain-native asset.
var NativeAsset = Asset{}

// TokenAsset returns the asset for a token contract address.
func TokenAsset(token Address) Asset { return Asset(token) }

// IsNative returns true for the native asset.
func (a Asset) IsNative() bool { return a == NativeAsset }

// Token returns the token contract address. Only meaningful when
// the asset is not native.
func (a Asset) Token() Address { return Address(a) }

// String returns "native" or the token address hex.
func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.Token().String()
}
