package router

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/blockberries/tollgate/types"
)

// Event kinds emitted by the router.
const (
	// EventBalanceInjection is the trail record for every
	// inject-and-call, success and failure alike.
	EventBalanceInjection = "balance_injection"
	// EventSweep records a nonzero sweep.
	EventSweep = "sweep"
	// EventRefund records a nonzero refund payment.
	EventRefund = "refund"
	// EventRefundSweep is the always-emitted refund-and-sweep summary.
	EventRefundSweep = "refund_and_sweep"
	// EventRefundClamped notices a refund request exceeding the
	// holding.
	EventRefundClamped = "refund_clamped"
)

func attr(key, value string) types.EventAttribute {
	return types.EventAttribute{Key: key, Value: value}
}

func indexed(key, value string) types.EventAttribute {
	return types.EventAttribute{Key: key, Value: value, Index: true}
}

func injectionEvent(host types.Address, req types.InjectionRequest, amount *big.Int, result []byte, callErr error) types.Event {
	outcome := "success"
	if callErr != nil {
		outcome = "failure"
	}
	return types.Event{
		Kind: EventBalanceInjection,
		Attributes: []types.EventAttribute{
			indexed("host", host.String()),
			indexed("asset", req.Asset.String()),
			indexed("target", req.Target.String()),
			attr("amount", amount.String()),
			attr("patched", strconv.FormatBool(!req.Trivial())),
			attr("offset", strconv.FormatUint(uint64(req.Offset), 10)),
			indexed("outcome", outcome),
			attr("result", fmt.Sprintf("0x%x", result)),
		},
	}
}

func sweepEvent(host types.Address, asset types.Asset, recipient types.Address, amount *big.Int) types.Event {
	return types.Event{
		Kind: EventSweep,
		Attributes: []types.EventAttribute{
			indexed("host", host.String()),
			indexed("asset", asset.String()),
			indexed("recipient", recipient.String()),
			attr("amount", amount.String()),
		},
	}
}

func refundEvent(host types.Address, asset types.Asset, recipient types.Address, amount *big.Int) types.Event {
	return types.Event{
		Kind: EventRefund,
		Attributes: []types.EventAttribute{
			indexed("host", host.String()),
			indexed("asset", asset.String()),
			indexed("recipient", recipient.String()),
			attr("amount", amount.String()),
		},
	}
}

func clampEvent(host types.Address, asset types.Asset, requested, actual *big.Int) types.Event {
	return types.Event{
		Kind: EventRefundClamped,
		Attributes: []types.EventAttribute{
			indexed("host", host.String()),
			indexed("asset", asset.String()),
			attr("requested", requested.String()),
			attr("actual", actual.String()),
		},
	}
}

func refundSweepEvent(host types.Address, asset types.Asset, refundTo types.Address, refunded *big.Int, sweepTo types.Address, swept *big.Int) types.Event {
	return types.Event{
		Kind: EventRefundSweep,
		Attributes: []types.EventAttribute{
			indexed("host", host.String()),
			indexed("asset", asset.String()),
			attr("refund_recipient", refundTo.String()),
			attr("refunded", refunded.String()),
			attr("sweep_recipient", sweepTo.String()),
			attr("swept", swept.String()),
		},
	}
}
