// Package engine hosts the execution environment: the world-state
// ledger, the call-target registry and fabric, the router and shim
// merged on demand, and the event fan-out.
//
// Submit is the transactional boundary. One host batch runs inside
// one staged ledger transaction: every call applies, or none do.
// Events are deliberately outside that boundary — they are delivered
// as execution proceeds, rollback or not, so monitors can reconstruct
// the trail of failed legs.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/aggregator"
	"github.com/blockberries/tollgate/ledger"
	"github.com/blockberries/tollgate/router"
	"github.com/blockberries/tollgate/sentinel"
	"github.com/blockberries/tollgate/shim"
	"github.com/blockberries/tollgate/types"
)

// Name and Version identify the engine in Info responses.
const (
	Name    = "tollgate"
	Version = "0.1.0"
)

// Config assembles an engine.
type Config struct {
	// Ledger is the world state. Required.
	Ledger *ledger.Ledger
	// Router, Shim and Aggregator are the component identities. All
	// three are required, nonzero and distinct; they register as call
	// targets at those addresses.
	Router     types.Address
	Shim       types.Address
	Aggregator types.Address
	// Events receives the observability trail. Optional; nil discards.
	Events tollgate.EventSink
	// Logger reports engine lifecycle. Optional; nil is quiet.
	Logger *log.Logger
}

// Engine is the reference execution environment.
type Engine struct {
	ledger *ledger.Ledger
	router *router.Router
	shim   *shim.Shim
	agg    *aggregator.Aggregator
	feed   *feed
	logger *log.Logger

	// submitMu serializes host batches: the engine assumes serial,
	// non-reentrant use and provides no finer-grained locking.
	submitMu sync.Mutex

	// regMu guards the call-target registry.
	regMu   sync.RWMutex
	targets map[types.Address]tollgate.CallTarget
}

// New wires an engine from cfg. The router, shim and reference
// aggregator are constructed here and registered as call targets; the
// shim's fixed downstream is the aggregator.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("engine: nil ledger")
	}
	// Checked one at a time: a map literal would collapse duplicate
	// keys before any check could see them.
	ids := map[types.Address]string{}
	for _, c := range []struct {
		addr types.Address
		name string
	}{
		{cfg.Router, "router"},
		{cfg.Shim, "shim"},
		{cfg.Aggregator, "aggregator"},
	} {
		if c.addr.IsZero() {
			return nil, fmt.Errorf("engine: zero %s identity", c.name)
		}
		if other, dup := ids[c.addr]; dup {
			return nil, fmt.Errorf("engine: %s and %s share identity %s", other, c.name, c.addr)
		}
		ids[c.addr] = c.name
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		ledger:  cfg.Ledger,
		feed:    newFeed(cfg.Events),
		logger:  logger,
		targets: make(map[types.Address]tollgate.CallTarget),
	}
	fab := fabric{e}

	sentinels, err := sentinel.New(cfg.Router)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.agg, err = aggregator.New(cfg.Aggregator, fab)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.router, err = router.New(router.Config{
		Self:       cfg.Router,
		Sentinels:  sentinels,
		Aggregator: e.agg,
		Dispatcher: fab,
		Events:     e.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.shim, err = shim.New(shim.Config{
		Self:       cfg.Shim,
		Downstream: cfg.Aggregator,
		Sentinels:  sentinels,
		Dispatcher: fab,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.targets[cfg.Router] = e.router
	e.targets[cfg.Shim] = e.shim
	e.targets[cfg.Aggregator] = e.agg
	return e, nil
}

// RegisterTarget makes target reachable through the fabric at addr.
// Re-registering an engine component identity is rejected.
func (e *Engine) RegisterTarget(addr types.Address, target tollgate.CallTarget) error {
	if addr.IsZero() {
		return fmt.Errorf("engine: zero target identity")
	}
	if target == nil {
		return fmt.Errorf("engine: nil target")
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if _, taken := e.targets[addr]; taken {
		return fmt.Errorf("engine: identity %s already registered", addr)
	}
	e.targets[addr] = target
	return nil
}

func (e *Engine) target(addr types.Address) (tollgate.CallTarget, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	t, ok := e.targets[addr]
	return t, ok
}

// Ledger exposes the world state for seeding and direct reads.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Submit executes one host batch atomically. Each call runs as a
// merged frame under batch.Host; the first failure discards every
// staged change and returns the typed error. Success commits and
// returns per-call receipts in order.
func (e *Engine) Submit(ctx context.Context, batch types.HostBatch) (types.BatchReceipt, error) {
	if batch.Host.IsZero() {
		return types.BatchReceipt{}, fmt.Errorf("engine: zero batch host")
	}
	if len(batch.Calls) == 0 {
		return types.BatchReceipt{}, fmt.Errorf("engine: empty batch")
	}
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	tx := e.ledger.Begin()
	defer tx.Discard()

	receipts := make([]types.CallReceipt, 0, len(batch.Calls))
	for i, call := range batch.Calls {
		data, err := e.runCall(ctx, tx, batch.Host, call)
		if err != nil {
			e.logger.Printf("submit: host %s call %d (%s) failed: %v", batch.Host, i, call.Kind, err)
			return types.BatchReceipt{}, err
		}
		receipts = append(receipts, types.CallReceipt{Index: uint32(i), Data: data})
	}
	if err := tx.Commit(); err != nil {
		return types.BatchReceipt{}, err
	}
	return types.BatchReceipt{Receipts: receipts}, nil
}

func (e *Engine) runCall(ctx context.Context, tx *ledger.Tx, host types.Address, call types.HostCall) ([]byte, error) {
	frame, err := tx.Enter(ctx, host, call.Caller, call.Value.Big())
	if err != nil {
		return nil, err
	}
	switch call.Kind {
	case types.CallDispatch:
		return e.router.Dispatch(ctx, frame, call.Op, call.Payload)
	case types.CallForward:
		return e.shim.Forward(ctx, frame, call.Op, call.Payload, call.ForwardValue.Big())
	default:
		return nil, fmt.Errorf("engine: unknown call kind %d", call.Kind)
	}
}

// Info reports the engine's component identities and capabilities.
func (e *Engine) Info() types.EngineInfo {
	caps := e.ledger.Capabilities()
	if e.feed.journaled() {
		caps |= types.CapEventJournal
	}
	return types.EngineInfo{
		Name:         Name,
		Version:      Version,
		Router:       e.router.Self(),
		Shim:         e.shim.Self(),
		Aggregator:   e.agg.Self(),
		Capabilities: caps,
	}
}

// Balance reads the committed holding of asset for owner.
func (e *Engine) Balance(owner types.Address, asset types.Asset) types.Word {
	w, _ := types.WordFromBig(e.ledger.Balance(owner, asset))
	return w
}

// Allowance reads the committed allowance from owner to spender.
func (e *Engine) Allowance(owner types.Address, asset types.Asset, spender types.Address) types.Word {
	w, _ := types.WordFromBig(e.ledger.Allowance(owner, asset, spender))
	return w
}

// Settled reports whether op's settlement sentinel is visible in
// host's committed storage. Volatile sentinels never are: they die
// with their transaction, which is the point of the volatile backend.
func (e *Engine) Settled(host types.Address, op types.OperationID) (bool, error) {
	w, err := e.ledger.Slot(host, sentinel.Slot(op))
	if err != nil {
		return false, err
	}
	return !w.IsZero(), nil
}

// Subscribe attaches a streaming event consumer. See feed.Subscribe.
func (e *Engine) Subscribe(buffer int, kinds ...string) (<-chan types.Event, func()) {
	return e.feed.Subscribe(buffer, kinds...)
}

// Query serves the read-only wire surface. Unknown paths and malformed
// arguments report a nonzero code rather than an error: the query
// itself succeeded, the request did not.
func (e *Engine) Query(_ context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	fail := func(info string) (types.StateQueryResult, error) {
		return types.StateQueryResult{Code: 1, Info: info}, nil
	}
	switch req.Path {
	case types.QueryBalance:
		var q types.BalanceQuery
		if err := cramberry.Unmarshal(req.Data, &q); err != nil {
			return fail(fmt.Sprintf("decode balance query: %v", err))
		}
		w := e.Balance(q.Owner, q.Asset)
		return types.StateQueryResult{Value: w[:]}, nil

	case types.QueryAllowance:
		var q types.AllowanceQuery
		if err := cramberry.Unmarshal(req.Data, &q); err != nil {
			return fail(fmt.Sprintf("decode allowance query: %v", err))
		}
		w := e.Allowance(q.Owner, q.Asset, q.Spender)
		return types.StateQueryResult{Value: w[:]}, nil

	case types.QuerySettled:
		var q types.SettledQuery
		if err := cramberry.Unmarshal(req.Data, &q); err != nil {
			return fail(fmt.Sprintf("decode settled query: %v", err))
		}
		set, err := e.Settled(q.Host, q.Op)
		if err != nil {
			return fail(err.Error())
		}
		v := []byte{0}
		if set {
			v[0] = 1
		}
		return types.StateQueryResult{Value: v}, nil

	case types.QueryInfo:
		info := e.Info()
		v, err := cramberry.Marshal(&info)
		if err != nil {
			return fail(fmt.Sprintf("encode info: %v", err))
		}
		return types.StateQueryResult{Value: v}, nil

	default:
		return fail(fmt.Sprintf("unknown query path %q", req.Path))
	}
}
