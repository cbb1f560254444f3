package pool

import (
	"math/big"
	"sort"
)

// MinimumLiquidity is the share floor permanently minted to the burn address
// by the very first deposit. The first deposit must strictly exceed it.
const MinimumLiquidity = 1000

// Pool captures the global accounting state for the staking pool. Amount
// values are denominated in the smallest asset unit and expressed as big
// integers for exact accounting.
type Pool struct {
	// TotalShares is the sum of all holder share balances.
	TotalShares *big.Int `json:"totalShares"`
	// TotalNetworkAmount is the asset amount presumed held by the network
	// custodian on the pool's behalf.
	TotalNetworkAmount *big.Int `json:"totalNetworkAmount"`
	// ReservePercentageBps is the target fraction of pool value kept in the
	// reserve tier, in basis points.
	ReservePercentageBps uint64 `json:"reservePercentageBps"`
	// Throttled is set once any withdrawal falls through to the request
	// queue and cleared only by an explicit administrative reset.
	Throttled bool `json:"throttled"`
	// WithdrawRequestOutstandingTotal sums the amounts of every request that
	// is neither claimed nor canceled.
	WithdrawRequestOutstandingTotal *big.Int `json:"withdrawRequestOutstandingTotal"`
	// TotalWithdrawRequestCompletedAmount is the fulfillment watermark:
	// cumulative funding that has crossed into the queue. A request becomes
	// claimable once the watermark passes its pointer plus amount.
	TotalWithdrawRequestCompletedAmount *big.Int `json:"totalWithdrawRequestCompletedAmount"`
	// TotalWithdrawRequestQueuedAmount is the high-water mark of assigned
	// request windows; new requests take their pointer from it.
	TotalWithdrawRequestQueuedAmount *big.Int `json:"totalWithdrawRequestQueuedAmount"`
	// NextRequestID is the monotonically increasing request identifier.
	NextRequestID uint64 `json:"nextRequestId"`
	// SkippedWindows lists the funding windows of requests canceled before
	// the watermark reached them, sorted by start. The watermark jumps a dead
	// window for free once it reaches its start, so later requests never wait
	// on funding nobody can claim.
	SkippedWindows []SkippedWindow `json:"skippedWindows,omitempty"`
	// MaxSupply caps the pool's net asset value after a deposit. Zero means
	// uncapped.
	MaxSupply *big.Int `json:"maxSupply"`
	// DepositsPaused halts new deposits while leaving every other operation
	// available.
	DepositsPaused bool `json:"depositsPaused"`
}

// Normalize replaces nil amounts with zeros so callers can operate on the
// pool record without nil checks.
func (p *Pool) Normalize() *Pool {
	if p == nil {
		p = &Pool{}
	}
	if p.TotalShares == nil {
		p.TotalShares = big.NewInt(0)
	}
	if p.TotalNetworkAmount == nil {
		p.TotalNetworkAmount = big.NewInt(0)
	}
	if p.WithdrawRequestOutstandingTotal == nil {
		p.WithdrawRequestOutstandingTotal = big.NewInt(0)
	}
	if p.TotalWithdrawRequestCompletedAmount == nil {
		p.TotalWithdrawRequestCompletedAmount = big.NewInt(0)
	}
	if p.TotalWithdrawRequestQueuedAmount == nil {
		p.TotalWithdrawRequestQueuedAmount = big.NewInt(0)
	}
	if p.MaxSupply == nil {
		p.MaxSupply = big.NewInt(0)
	}
	for i := range p.SkippedWindows {
		if p.SkippedWindows[i].Start == nil {
			p.SkippedWindows[i].Start = big.NewInt(0)
		}
		if p.SkippedWindows[i].Amount == nil {
			p.SkippedWindows[i].Amount = big.NewInt(0)
		}
	}
	return p
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return (&Pool{}).Normalize()
	}
	clone := &Pool{
		ReservePercentageBps: p.ReservePercentageBps,
		Throttled:            p.Throttled,
		NextRequestID:        p.NextRequestID,
		DepositsPaused:       p.DepositsPaused,
	}
	clone.Normalize()
	if p.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(p.TotalShares)
	}
	if p.TotalNetworkAmount != nil {
		clone.TotalNetworkAmount = new(big.Int).Set(p.TotalNetworkAmount)
	}
	if p.WithdrawRequestOutstandingTotal != nil {
		clone.WithdrawRequestOutstandingTotal = new(big.Int).Set(p.WithdrawRequestOutstandingTotal)
	}
	if p.TotalWithdrawRequestCompletedAmount != nil {
		clone.TotalWithdrawRequestCompletedAmount = new(big.Int).Set(p.TotalWithdrawRequestCompletedAmount)
	}
	if p.TotalWithdrawRequestQueuedAmount != nil {
		clone.TotalWithdrawRequestQueuedAmount = new(big.Int).Set(p.TotalWithdrawRequestQueuedAmount)
	}
	if p.MaxSupply != nil {
		clone.MaxSupply = new(big.Int).Set(p.MaxSupply)
	}
	if len(p.SkippedWindows) > 0 {
		clone.SkippedWindows = make([]SkippedWindow, len(p.SkippedWindows))
		for i, w := range p.SkippedWindows {
			clone.SkippedWindows[i] = SkippedWindow{
				Start:  new(big.Int).Set(w.Start),
				Amount: new(big.Int).Set(w.Amount),
			}
		}
	}
	return clone
}

// SkippedWindow is the funding window left behind by a canceled request the
// watermark had not reached yet.
type SkippedWindow struct {
	Start  *big.Int `json:"start"`
	Amount *big.Int `json:"amount"`
}

// addSkippedWindow records a dead window, keeping the list sorted by start.
func (p *Pool) addSkippedWindow(start, amount *big.Int) {
	w := SkippedWindow{Start: new(big.Int).Set(start), Amount: new(big.Int).Set(amount)}
	i := sort.Search(len(p.SkippedWindows), func(i int) bool {
		return p.SkippedWindows[i].Start.Cmp(start) > 0
	})
	p.SkippedWindows = append(p.SkippedWindows, SkippedWindow{})
	copy(p.SkippedWindows[i+1:], p.SkippedWindows[i:])
	p.SkippedWindows[i] = w
}

// consumeSkippedWindows jumps the watermark over every dead window it has
// reached. Adjacent dead windows cascade.
func (p *Pool) consumeSkippedWindows() {
	for len(p.SkippedWindows) > 0 {
		w := p.SkippedWindows[0]
		if p.TotalWithdrawRequestCompletedAmount.Cmp(w.Start) < 0 {
			return
		}
		end := new(big.Int).Add(w.Start, w.Amount)
		if end.Cmp(p.TotalWithdrawRequestCompletedAmount) > 0 {
			p.TotalWithdrawRequestCompletedAmount = end
		}
		p.SkippedWindows = p.SkippedWindows[1:]
	}
}

// skippedTotal sums the dead windows still ahead of the watermark. They
// require no funding.
func (p *Pool) skippedTotal() *big.Int {
	total := big.NewInt(0)
	for _, w := range p.SkippedWindows {
		total.Add(total, w.Amount)
	}
	return total
}

// WithdrawalRequest records the unpaid remainder of a withdrawal that the
// liquidity waterfall could not satisfy. Amount and shares are fixed at
// creation; the pointer is the watermark window the request waits behind.
type WithdrawalRequest struct {
	ID       uint64   `json:"id"`
	User     [20]byte `json:"user"`
	Amount   *big.Int `json:"amount"`
	Shares   *big.Int `json:"shares"`
	Pointer  *big.Int `json:"pointer"`
	Claimed  bool     `json:"claimed"`
	Canceled bool     `json:"canceled"`
}

// Pending reports whether the request is still open.
func (r *WithdrawalRequest) Pending() bool {
	return r != nil && !r.Claimed && !r.Canceled
}

// Normalize replaces nil amounts with zeros.
func (r *WithdrawalRequest) Normalize() *WithdrawalRequest {
	if r == nil {
		return nil
	}
	if r.Amount == nil {
		r.Amount = big.NewInt(0)
	}
	if r.Shares == nil {
		r.Shares = big.NewInt(0)
	}
	if r.Pointer == nil {
		r.Pointer = big.NewInt(0)
	}
	return r
}

// Clone returns a deep copy of the request.
func (r *WithdrawalRequest) Clone() *WithdrawalRequest {
	if r == nil {
		return nil
	}
	clone := &WithdrawalRequest{
		ID:       r.ID,
		User:     r.User,
		Claimed:  r.Claimed,
		Canceled: r.Canceled,
	}
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	}
	if r.Shares != nil {
		clone.Shares = new(big.Int).Set(r.Shares)
	}
	if r.Pointer != nil {
		clone.Pointer = new(big.Int).Set(r.Pointer)
	}
	return clone.Normalize()
}

// WithdrawalReceipt reports the outcome of a withdrawal: the portion paid
// immediately, and the identifier of the queued request covering the unpaid
// remainder when the waterfall ran dry.
type WithdrawalReceipt struct {
	PaidNow   *big.Int
	Queued    *big.Int
	RequestID uint64
	HasQueued bool
}
