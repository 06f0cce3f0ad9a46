// Package local provides a zero-copy, in-process connection to a
// running engine.
//
// For hosts compiled into the same binary as the engine, this adapter
// satisfies tollgate.Connection with no serialization overhead.
package local

import (
	"context"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/engine"
	"github.com/blockberries/tollgate/types"
)

// Compile-time interface check.
var _ tollgate.Connection = (*Connection)(nil)

// Connection adapts an engine to tollgate.Connection in-process.
type Connection struct {
	eng *engine.Engine
}

// New creates an in-process connection to eng.
func New(eng *engine.Engine) *Connection {
	return &Connection{eng: eng}
}

// Submit implements tollgate.Connection.
func (c *Connection) Submit(ctx context.Context, batch types.HostBatch) (types.BatchReceipt, error) {
	return c.eng.Submit(ctx, batch)
}

// Query implements tollgate.Connection.
func (c *Connection) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	return c.eng.Query(ctx, req)
}

// Info implements tollgate.Connection.
func (c *Connection) Info(context.Context) (types.EngineInfo, error) {
	return c.eng.Info(), nil
}

// WatchEvents implements tollgate.Connection. The subscription drops
// events when the consumer falls behind rather than stalling the
// engine.
func (c *Connection) WatchEvents(ctx context.Context, kinds ...string) (<-chan types.Event, error) {
	src, cancel := c.eng.Subscribe(0, kinds...)
	out := make(chan types.Event)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close implements tollgate.Connection. In-process connections hold no
// resources of their own.
func (c *Connection) Close() error { return nil }

// Engine returns the underlying engine for advanced use.
func (c *Connection) Engine() *engine.Engine { return c.eng }
