package tollgate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/blockberries/tollgate/types"
)

func TestRevertDataExtraction(t *testing.T) {
	payload := []byte{0x08, 0xc3, 0x79, 0xa0, 'n', 'o', 'p', 'e'}

	cases := []struct {
		name string
		err  error
	}{
		{"explicit revert", Revert(payload)},
		{"call failure", &CallFailedError{Target: types.Address{1}, Revert: payload}},
		{"forward failure", &ForwardFailedError{Revert: payload}},
		{"wrapped", fmt.Errorf("dispatch: %w", Revert(payload))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, ok := RevertData(tc.err)
			if !ok {
				t.Fatal("expected a carried revert payload")
			}
			if string(data) != string(payload) {
				t.Errorf("payload changed: got %q, want %q", data, payload)
			}
		})
	}
}

func TestRevertDataAbsent(t *testing.T) {
	if _, ok := RevertData(errors.New("plain")); ok {
		t.Error("plain errors carry no revert payload")
	}
	if _, ok := RevertData(nil); ok {
		t.Error("nil error carries no revert payload")
	}
}

func TestRevertBytesFallsBackToMessage(t *testing.T) {
	err := errors.New("no funds available to pull")
	if got := string(RevertBytes(err)); got != err.Error() {
		t.Errorf("got %q, want the error message", got)
	}
	if RevertBytes(nil) != nil {
		t.Error("nil error must yield nil bytes")
	}
}

func TestIsCallFailed(t *testing.T) {
	inner := &CallFailedError{Target: types.Address{0x42}, Revert: []byte("boom")}
	wrapped := fmt.Errorf("aggregator: call 1: %w", inner)

	got, ok := IsCallFailed(wrapped)
	if !ok {
		t.Fatal("expected IsCallFailed to unwrap")
	}
	if got.Target != inner.Target {
		t.Errorf("target changed: got %s", got.Target)
	}
	if _, ok := IsCallFailed(errors.New("other")); ok {
		t.Error("unrelated errors must not match")
	}
}

func TestIsForwardFailed(t *testing.T) {
	inner := &ForwardFailedError{Revert: []byte("downstream said no")}
	got, ok := IsForwardFailed(fmt.Errorf("shim: %w", inner))
	if !ok {
		t.Fatal("expected IsForwardFailed to unwrap")
	}
	if string(got.Revert) != "downstream said no" {
		t.Errorf("revert changed: %q", got.Revert)
	}
}
