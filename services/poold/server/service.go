package server

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"liquidpool/crypto"
	"liquidpool/native/pool"
	"liquidpool/observability"
)

// Service serializes access to the pool engine. The engine itself assumes a
// single writer; the mutex here is that writer, covering reads too so
// queries never observe a half-applied operation.
type Service struct {
	mu      sync.Mutex
	engine  *pool.Engine
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewService(engine *pool.Engine, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger, metrics: metrics}
}

func (s *Service) refreshGauges() {
	if s.metrics == nil {
		return
	}
	if depth, err := s.engine.QueueDepth(); err == nil {
		s.metrics.QueueDepth.Set(float64(depth))
	}
	if p, err := s.engine.PoolState(); err == nil {
		outstanding, _ := new(big.Float).SetInt(p.WithdrawRequestOutstandingTotal).Float64()
		s.metrics.OutstandingQueued.Set(outstanding)
	}
	if nav, err := s.engine.TotalAssetValue(); err == nil {
		value, _ := new(big.Float).SetInt(nav).Float64()
		s.metrics.NetAssetValue.Set(value)
	}
}

func (s *Service) Deposit(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shares, err := s.engine.Deposit(caller, amount)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DepositsTotal.Inc()
	}
	s.refreshGauges()
	s.logger.Info("deposit", "user", caller.String(), "amount", amount.String(), "shares", shares.String())
	return shares, nil
}

func (s *Service) Withdraw(caller crypto.Address, amount *big.Int) (*pool.WithdrawalReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, err := s.engine.Withdraw(caller, amount)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		outcome := "paid"
		if receipt.HasQueued {
			outcome = "queued"
			if receipt.PaidNow.Sign() > 0 {
				outcome = "partial"
			}
		}
		s.metrics.WithdrawalsTotal.WithLabelValues(outcome).Inc()
	}
	s.refreshGauges()
	s.logger.Info("withdraw", "user", caller.String(), "amount", amount.String(),
		"paid", receipt.PaidNow.String(), "queued", receipt.Queued.String())
	return receipt, nil
}

func (s *Service) Claim(caller crypto.Address, id uint64) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paid, err := s.engine.Claim(caller, id)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ClaimsTotal.Inc()
	}
	s.refreshGauges()
	s.logger.Info("claim", "user", caller.String(), "request", id, "paid", paid.String())
	return paid, nil
}

func (s *Service) ClaimAll(caller crypto.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paid, err := s.engine.ClaimAll(caller)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ClaimsTotal.Inc()
	}
	s.refreshGauges()
	return paid, nil
}

func (s *Service) Cancel(caller crypto.Address, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Cancel(caller, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CancelsTotal.Inc()
	}
	s.refreshGauges()
	return nil
}

func (s *Service) CancelAll(caller crypto.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.CancelAll(caller); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CancelsTotal.Inc()
	}
	s.refreshGauges()
	return nil
}

func (s *Service) Transfer(from, to crypto.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Transfer(from, to, amount)
}

// Rebalance runs the maintenance cycle. The cron scheduler and the admin
// endpoint both land here.
func (s *Service) Rebalance(caller crypto.Address) (*pool.DeficitReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	report, err := s.engine.Rebalance(caller)
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.RebalanceRuns.WithLabelValues(result).Inc()
		s.metrics.RebalanceDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("rebalance failed", "error", err)
		return nil, err
	}
	s.refreshGauges()
	s.logger.Info("rebalance complete",
		"reserveDeficit", report.ReserveDeficit.String(),
		"lendingDebt", report.LendingDebt.String(),
		"unfundedQueue", report.UnfundedQueue.String(),
		"swept", report.Swept.String())
	return report, nil
}

func (s *Service) FulfillWithdrawal(caller crypto.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.FulfillWithdrawal(caller, amount); err != nil {
		return err
	}
	s.refreshGauges()
	return nil
}

func (s *Service) SetReservePercentage(caller crypto.Address, bps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetReservePercentage(caller, bps)
}

func (s *Service) RestoreNetwork(caller crypto.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RestoreNetwork(caller)
}

func (s *Service) SetNetworkTotal(caller crypto.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetNetworkTotal(caller, amount)
}

func (s *Service) IncreaseNetworkTotal(caller crypto.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.IncreaseNetworkTotal(caller, amount)
}

func (s *Service) SetMaxSupply(caller crypto.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetMaxSupply(caller, amount)
}

func (s *Service) PauseDeposits(caller crypto.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PauseDeposits(caller)
}

func (s *Service) ResumeDeposits(caller crypto.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ResumeDeposits(caller)
}

func (s *Service) BalanceOf(addr crypto.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.BalanceOf(addr)
}

func (s *Service) SharesOf(addr crypto.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SharesOf(addr)
}

func (s *Service) TotalAssetValue() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TotalAssetValue()
}

func (s *Service) Liquidity() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Liquidity()
}

func (s *Service) WillThrottle(amount *big.Int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.WillThrottle(amount)
}

func (s *Service) PoolState() (*pool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PoolState()
}

func (s *Service) GetRequest(id uint64) (*pool.WithdrawalRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.GetRequest(id)
}

func (s *Service) ListRequests(addr crypto.Address) ([]*pool.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ListRequests(addr)
}
