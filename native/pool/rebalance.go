package pool

import (
	"math/big"

	"liquidpool/crypto"
	nativecommon "liquidpool/native/common"
)

// DeficitReport summarizes what the pool would still owe if every obligation
// came due at once. It is advisory: the rebalance never blocks on a deficit.
type DeficitReport struct {
	ReserveDeficit *big.Int `json:"reserveDeficit"`
	LendingDebt    *big.Int `json:"lendingDebt"`
	UnfundedQueue  *big.Int `json:"unfundedQueue"`
	Total          *big.Int `json:"total"`
	Swept          *big.Int `json:"swept"`
}

// Rebalance runs the daily maintenance cycle: earmark native funds for the
// request queue, bring the reserve tier to its target ratio, repay lending
// debt, then delegate whatever working liquidity is left to the network
// custodian. External tier calls happen before the pool record is written, so
// a failing strategy aborts the cycle without a half-applied state.
func (e *Engine) Rebalance(caller crypto.Address) (*DeficitReport, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
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
	nav, err := e.netAssetValue(p)
	if err != nil {
		return nil, err
	}

	if err := e.rebalanceCustody(p); err != nil {
		return nil, err
	}

	target := new(big.Int).Mul(nav, new(big.Int).SetUint64(p.ReservePercentageBps))
	target.Quo(target, basisPoints)
	reserves, err := e.reserve.TotalReserves()
	if err != nil {
		return nil, err
	}
	switch reserves.Cmp(target) {
	case -1:
		module, err := e.loadAccount(e.moduleAddress)
		if err != nil {
			return nil, err
		}
		topUp := new(big.Int).Sub(target, reserves)
		if topUp.Cmp(module.BalanceWLQD) > 0 {
			topUp.Set(module.BalanceWLQD)
		}
		if topUp.Sign() > 0 {
			if err := e.reserve.Deposit(e.moduleAddress, topUp); err != nil {
				return nil, err
			}
		}
	case 1:
		surplus := new(big.Int).Sub(reserves, target)
		if _, err := e.reserve.Withdraw(e.moduleAddress, surplus); err != nil {
			return nil, err
		}
	}

	if err := e.repayDebts(); err != nil {
		return nil, err
	}

	swept, err := e.sweepToCustodian(p)
	if err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}

	report, err := e.deficitReport(p, target)
	if err != nil {
		return nil, err
	}
	report.Swept = swept
	e.emit(Rebalanced{
		ReserveDeficit: report.ReserveDeficit,
		LendingDebt:    report.LendingDebt,
		UnfundedQueue:  report.UnfundedQueue,
		Swept:          swept,
	})
	return report, nil
}

// sweepToCustodian delegates the custody account's remaining working
// liquidity to the network custodian. Delegated funds stay in the pool's net
// asset value through the presumed network total.
func (e *Engine) sweepToCustodian(p *Pool) (*big.Int, error) {
	module, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	swept := new(big.Int).Set(module.BalanceWLQD)
	if swept.Sign() == 0 {
		return swept, nil
	}
	if err := e.vault.Unwrap(e.moduleAddress, swept); err != nil {
		return nil, err
	}
	module, err = e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	custodian, err := e.loadAccount(e.custodianAddress)
	if err != nil {
		return nil, err
	}
	module.BalanceLQD = new(big.Int).Sub(module.BalanceLQD, swept)
	custodian.BalanceLQD = new(big.Int).Add(custodian.BalanceLQD, swept)
	if err := e.state.PutAccount(e.moduleAddress, module); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.custodianAddress, custodian); err != nil {
		return nil, err
	}
	p.TotalNetworkAmount = new(big.Int).Add(p.TotalNetworkAmount, swept)
	e.emit(NetworkDelegated{Amount: swept})
	return swept, nil
}

func (e *Engine) deficitReport(p *Pool, target *big.Int) (*DeficitReport, error) {
	reserves, err := e.reserve.TotalReserves()
	if err != nil {
		return nil, err
	}
	reserveDeficit := new(big.Int).Sub(target, reserves)
	if reserveDeficit.Sign() < 0 {
		reserveDeficit.SetInt64(0)
	}
	// Dead windows left by canceled requests are jumped, not funded.
	unfunded := new(big.Int).Sub(p.TotalWithdrawRequestQueuedAmount, p.TotalWithdrawRequestCompletedAmount)
	unfunded.Sub(unfunded, p.skippedTotal())
	if unfunded.Sign() < 0 {
		unfunded.SetInt64(0)
	}
	debt, err := e.lending.TotalLoaned()
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(reserveDeficit, debt)
	total.Add(total, unfunded)
	return &DeficitReport{
		ReserveDeficit: reserveDeficit,
		LendingDebt:    debt,
		UnfundedQueue:  unfunded,
		Total:          total,
		Swept:          big.NewInt(0),
	}, nil
}
