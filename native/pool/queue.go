package pool

import (
	"math/big"

	"liquidpool/crypto"
	nativecommon "liquidpool/native/common"
)

// createRequest appends a withdrawal request to the queue. The request's
// funding window starts at the frontier of everything queued before it, so a
// later request can never be funded ahead of an earlier pending one.
func (e *Engine) createRequest(p *Pool, user crypto.Address, amount, shares *big.Int) (*WithdrawalRequest, error) {
	pointer := new(big.Int).Set(p.TotalWithdrawRequestQueuedAmount)
	if pointer.Cmp(p.TotalWithdrawRequestCompletedAmount) < 0 {
		pointer.Set(p.TotalWithdrawRequestCompletedAmount)
	}
	req := &WithdrawalRequest{
		ID:      p.NextRequestID,
		User:    user.Key(),
		Amount:  new(big.Int).Set(amount),
		Shares:  new(big.Int).Set(shares),
		Pointer: pointer,
	}
	p.NextRequestID++
	p.TotalWithdrawRequestQueuedAmount = new(big.Int).Add(pointer, amount)
	p.WithdrawRequestOutstandingTotal = new(big.Int).Add(p.WithdrawRequestOutstandingTotal, amount)

	if err := e.state.RequestPut(req); err != nil {
		return nil, err
	}
	ids, err := e.state.RequestIndexGet(user)
	if err != nil {
		return nil, err
	}
	if err := e.state.RequestIndexPut(user, append(ids, req.ID)); err != nil {
		return nil, err
	}
	active, err := e.state.ActiveRequestsGet()
	if err != nil {
		return nil, err
	}
	if err := e.state.RequestSlotPut(req.ID, uint64(len(active))); err != nil {
		return nil, err
	}
	if err := e.state.ActiveRequestsPut(append(active, req.ID)); err != nil {
		return nil, err
	}
	return req, nil
}

// removeActive drops a request from the active queue by swapping the tail
// into its slot. Order within the active set carries no meaning; claim
// eligibility is decided by each request's funding window.
func (e *Engine) removeActive(id uint64) error {
	slot, ok, err := e.state.RequestSlotGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}
	active, err := e.state.ActiveRequestsGet()
	if err != nil {
		return err
	}
	last := len(active) - 1
	if int(slot) != last {
		moved := active[last]
		active[slot] = moved
		if err := e.state.RequestSlotPut(moved, slot); err != nil {
			return err
		}
	}
	if err := e.state.ActiveRequestsPut(active[:last]); err != nil {
		return err
	}
	return e.state.RequestSlotDelete(id)
}

// isClaimable reports whether the watermark has funded the request's entire
// window.
func isClaimable(p *Pool, req *WithdrawalRequest) bool {
	if !req.Pending() {
		return false
	}
	funded := new(big.Int).Add(req.Pointer, req.Amount)
	return p.TotalWithdrawRequestCompletedAmount.Cmp(funded) >= 0
}

func (e *Engine) resolveRequest(caller crypto.Address, id uint64) (*WithdrawalRequest, error) {
	req, err := e.state.RequestGet(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	req = req.Normalize()
	if req.User != caller.Key() {
		return nil, ErrNotRequestOwner
	}
	if !req.Pending() {
		return nil, ErrRequestClosed
	}
	return req, nil
}

// Claim pays out a funded withdrawal request. The shares escrowed at queue
// time are burned; the watermark is untouched, its funding was consumed when
// the inflow advanced it.
func (e *Engine) Claim(caller crypto.Address, id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	req, err := e.resolveRequest(caller, id)
	if err != nil {
		return nil, err
	}
	if !isClaimable(p, req) {
		return nil, ErrNotClaimable
	}
	paid, err := e.settleClaim(p, caller, req)
	if err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	return paid, nil
}

// settleClaim pays the smaller of the recorded amount and the escrowed
// shares' live value. The floor keeps the pool from overpaying after a loss
// event; the recorded amount caps any upside, which stays with the remaining
// holders.
func (e *Engine) settleClaim(p *Pool, caller crypto.Address, req *WithdrawalRequest) (*big.Int, error) {
	nav, err := e.netAssetValue(p)
	if err != nil {
		return nil, err
	}
	paid := e.assetsFromShares(p, nav, req.Shares)
	if paid.Cmp(req.Amount) > 0 {
		paid = new(big.Int).Set(req.Amount)
	}
	if err := e.burnShares(p, e.moduleAddress, req.Shares); err != nil {
		return nil, err
	}
	if err := e.payOut(caller, paid); err != nil {
		return nil, err
	}
	p.WithdrawRequestOutstandingTotal = new(big.Int).Sub(p.WithdrawRequestOutstandingTotal, req.Amount)
	req.Claimed = true
	if err := e.state.RequestPut(req); err != nil {
		return nil, err
	}
	if err := e.removeActive(req.ID); err != nil {
		return nil, err
	}
	e.emit(WithdrawalClaimed{User: caller.Key(), RequestID: req.ID, Amount: paid})
	return paid, nil
}

// ClaimAll pays out every claimable request the caller owns and reports the
// total paid. Pending requests that are not yet funded are left in place. It
// only fails for callers who never filed a request; a caller whose requests
// are all settled or unfunded gets a zero total back.
func (e *Engine) ClaimAll(caller crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	ids, err := e.state.RequestIndexGet(caller)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoActiveRequests
	}
	total := big.NewInt(0)
	for _, id := range ids {
		req, err := e.state.RequestGet(id)
		if err != nil {
			return nil, err
		}
		if req == nil || !req.Pending() {
			continue
		}
		req = req.Normalize()
		if !isClaimable(p, req) {
			continue
		}
		paid, err := e.settleClaim(p, caller, req)
		if err != nil {
			return nil, err
		}
		total.Add(total, paid)
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	return total, nil
}

// Cancel withdraws a pending request and hands its escrowed shares back to
// the owner at whatever the live exchange rate values them. If the watermark
// had already reached into the request's window, it skips past the window so
// the freed funding flows to the requests behind it.
func (e *Engine) Cancel(caller crypto.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	req, err := e.resolveRequest(caller, id)
	if err != nil {
		return err
	}
	if err := e.settleCancel(p, caller, req); err != nil {
		return err
	}
	return e.state.PoolPut(p)
}

func (e *Engine) settleCancel(p *Pool, caller crypto.Address, req *WithdrawalRequest) error {
	if p.TotalWithdrawRequestCompletedAmount.Cmp(req.Pointer) >= 0 {
		skipped := new(big.Int).Add(req.Pointer, req.Amount)
		if skipped.Cmp(p.TotalWithdrawRequestCompletedAmount) > 0 {
			p.TotalWithdrawRequestCompletedAmount = skipped
		}
	} else {
		// The watermark has not reached this window yet. Record it so the
		// watermark jumps it for free instead of waiting for funding nobody
		// can claim.
		p.addSkippedWindow(req.Pointer, req.Amount)
	}
	p.consumeSkippedWindows()
	if err := e.moveShares(e.moduleAddress, caller, req.Shares); err != nil {
		return err
	}
	p.WithdrawRequestOutstandingTotal = new(big.Int).Sub(p.WithdrawRequestOutstandingTotal, req.Amount)
	req.Canceled = true
	if err := e.state.RequestPut(req); err != nil {
		return err
	}
	if err := e.removeActive(req.ID); err != nil {
		return err
	}
	e.emit(WithdrawalCanceled{User: caller.Key(), RequestID: req.ID, Amount: req.Amount, Shares: req.Shares})
	return nil
}

// CancelAll cancels every pending request the caller owns.
func (e *Engine) CancelAll(caller crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	p, err := e.ensurePool()
	if err != nil {
		return err
	}
	ids, err := e.state.RequestIndexGet(caller)
	if err != nil {
		return err
	}
	canceled := false
	for _, id := range ids {
		req, err := e.state.RequestGet(id)
		if err != nil {
			return err
		}
		if req == nil || !req.Pending() {
			continue
		}
		if err := e.settleCancel(p, caller, req.Normalize()); err != nil {
			return err
		}
		canceled = true
	}
	if !canceled {
		return ErrNoActiveRequests
	}
	return e.state.PoolPut(p)
}

// GetRequest returns a copy of the request along with its current
// claimability.
func (e *Engine) GetRequest(id uint64) (*WithdrawalRequest, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	p, err := e.ensurePool()
	if err != nil {
		return nil, false, err
	}
	req, err := e.state.RequestGet(id)
	if err != nil {
		return nil, false, err
	}
	if req == nil {
		return nil, false, ErrRequestNotFound
	}
	req = req.Normalize()
	return req.Clone(), isClaimable(p, req), nil
}

// ListRequests returns copies of every request the address has ever filed,
// including claimed and canceled ones.
func (e *Engine) ListRequests(addr crypto.Address) ([]*WithdrawalRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.RequestIndexGet(addr)
	if err != nil {
		return nil, err
	}
	out := make([]*WithdrawalRequest, 0, len(ids))
	for _, id := range ids {
		req, err := e.state.RequestGet(id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			continue
		}
		out = append(out, req.Normalize().Clone())
	}
	return out, nil
}

// QueueDepth reports the number of pending requests.
func (e *Engine) QueueDepth() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	active, err := e.state.ActiveRequestsGet()
	if err != nil {
		return 0, err
	}
	return len(active), nil
}
