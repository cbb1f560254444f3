package pool

import (
	"math/big"
	"strconv"

	"liquidpool/core/types"
	"liquidpool/crypto"
)

const (
	EventTypeDeposited           = "pool.deposited"
	EventTypeWithdrawalCompleted = "pool.withdrawal.completed"
	EventTypeWithdrawalQueued    = "pool.withdrawal.queued"
	EventTypeWithdrawalClaimed   = "pool.withdrawal.claimed"
	EventTypeWithdrawalCanceled  = "pool.withdrawal.canceled"
	EventTypeSharesTransferred   = "pool.shares.transferred"
	EventTypeNetworkFulfilled    = "pool.network.fulfilled"
	EventTypeNetworkDelegated    = "pool.network.delegated"
	EventTypeRebalanced          = "pool.rebalanced"
)

func attrAddress(key [20]byte) string {
	return crypto.NewAddress(crypto.LQDPrefix, key[:]).String()
}

func attrAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Deposited records a successful deposit and the shares it minted.
type Deposited struct {
	User   [20]byte
	Amount *big.Int
	Shares *big.Int
}

func (Deposited) EventType() string { return EventTypeDeposited }

func (ev Deposited) Event() types.Event {
	return types.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"user":   attrAddress(ev.User),
		"amount": attrAmount(ev.Amount),
		"shares": attrAmount(ev.Shares),
	}}
}

// WithdrawalCompleted records the portion of a withdrawal paid immediately.
type WithdrawalCompleted struct {
	User   [20]byte
	Amount *big.Int
	Shares *big.Int
}

func (WithdrawalCompleted) EventType() string { return EventTypeWithdrawalCompleted }

func (ev WithdrawalCompleted) Event() types.Event {
	return types.Event{Type: EventTypeWithdrawalCompleted, Attributes: map[string]string{
		"user":   attrAddress(ev.User),
		"amount": attrAmount(ev.Amount),
		"shares": attrAmount(ev.Shares),
	}}
}

// WithdrawalQueued records the portion of a withdrawal that fell through the
// waterfall into the request queue.
type WithdrawalQueued struct {
	User      [20]byte
	RequestID uint64
	Amount    *big.Int
	Shares    *big.Int
}

func (WithdrawalQueued) EventType() string { return EventTypeWithdrawalQueued }

func (ev WithdrawalQueued) Event() types.Event {
	return types.Event{Type: EventTypeWithdrawalQueued, Attributes: map[string]string{
		"user":      attrAddress(ev.User),
		"requestId": strconv.FormatUint(ev.RequestID, 10),
		"amount":    attrAmount(ev.Amount),
		"shares":    attrAmount(ev.Shares),
	}}
}

type WithdrawalClaimed struct {
	User      [20]byte
	RequestID uint64
	Amount    *big.Int
}

func (WithdrawalClaimed) EventType() string { return EventTypeWithdrawalClaimed }

func (ev WithdrawalClaimed) Event() types.Event {
	return types.Event{Type: EventTypeWithdrawalClaimed, Attributes: map[string]string{
		"user":      attrAddress(ev.User),
		"requestId": strconv.FormatUint(ev.RequestID, 10),
		"amount":    attrAmount(ev.Amount),
	}}
}

type WithdrawalCanceled struct {
	User      [20]byte
	RequestID uint64
	Amount    *big.Int
	Shares    *big.Int
}

func (WithdrawalCanceled) EventType() string { return EventTypeWithdrawalCanceled }

func (ev WithdrawalCanceled) Event() types.Event {
	return types.Event{Type: EventTypeWithdrawalCanceled, Attributes: map[string]string{
		"user":      attrAddress(ev.User),
		"requestId": strconv.FormatUint(ev.RequestID, 10),
		"amount":    attrAmount(ev.Amount),
		"shares":    attrAmount(ev.Shares),
	}}
}

type SharesTransferred struct {
	From   [20]byte
	To     [20]byte
	Shares *big.Int
}

func (SharesTransferred) EventType() string { return EventTypeSharesTransferred }

func (ev SharesTransferred) Event() types.Event {
	return types.Event{Type: EventTypeSharesTransferred, Attributes: map[string]string{
		"from":   attrAddress(ev.From),
		"to":     attrAddress(ev.To),
		"shares": attrAmount(ev.Shares),
	}}
}

// NetworkFulfilled records custodian funds injected back into the pool.
type NetworkFulfilled struct {
	Amount *big.Int
}

func (NetworkFulfilled) EventType() string { return EventTypeNetworkFulfilled }

func (ev NetworkFulfilled) Event() types.Event {
	return types.Event{Type: EventTypeNetworkFulfilled, Attributes: map[string]string{
		"amount": attrAmount(ev.Amount),
	}}
}

// NetworkDelegated records working liquidity swept to the custodian.
type NetworkDelegated struct {
	Amount *big.Int
}

func (NetworkDelegated) EventType() string { return EventTypeNetworkDelegated }

func (ev NetworkDelegated) Event() types.Event {
	return types.Event{Type: EventTypeNetworkDelegated, Attributes: map[string]string{
		"amount": attrAmount(ev.Amount),
	}}
}

// Rebalanced summarizes a maintenance cycle.
type Rebalanced struct {
	ReserveDeficit *big.Int
	LendingDebt    *big.Int
	UnfundedQueue  *big.Int
	Swept          *big.Int
}

func (Rebalanced) EventType() string { return EventTypeRebalanced }

func (ev Rebalanced) Event() types.Event {
	return types.Event{Type: EventTypeRebalanced, Attributes: map[string]string{
		"reserveDeficit": attrAmount(ev.ReserveDeficit),
		"lendingDebt":    attrAmount(ev.LendingDebt),
		"unfundedQueue":  attrAmount(ev.UnfundedQueue),
		"swept":          attrAmount(ev.Swept),
	}}
}
