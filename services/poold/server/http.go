package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"liquidpool/crypto"
	nativecommon "liquidpool/native/common"
	"liquidpool/native/pool"
	"liquidpool/observability"
)

// Router assembles the gateway's HTTP surface on top of a Service. The admin
// routes sit behind the authenticator; a nil authenticator leaves them closed.
func Router(svc *Service, metrics *observability.Metrics, limiter *RateLimiter, auth *Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Instrument(metrics))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/pool", func(r chi.Router) {
		r.Post("/deposit", svc.handleDeposit)
		r.Post("/withdraw", svc.handleWithdraw)
		r.Post("/transfer", svc.handleTransfer)
		r.Post("/claim", svc.handleClaim)
		r.Post("/claim-all", svc.handleClaimAll)
		r.Post("/cancel", svc.handleCancel)
		r.Post("/cancel-all", svc.handleCancelAll)
		r.Get("/state", svc.handleState)
		r.Get("/liquidity", svc.handleLiquidity)
		r.Get("/will-throttle", svc.handleWillThrottle)
		r.Get("/balance/{address}", svc.handleBalance)
		r.Get("/requests/{address}", svc.handleListRequests)
		r.Get("/request/{id}", svc.handleGetRequest)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(auth.Middleware(ScopeAdmin))
		r.Post("/rebalance", svc.handleRebalance)
		r.Post("/fulfill", svc.handleFulfill)
		r.Post("/reserve-percentage", svc.handleSetReservePercentage)
		r.Post("/restore-network", svc.handleRestoreNetwork)
		r.Post("/network-total", svc.handleSetNetworkTotal)
		r.Post("/network-yield", svc.handleIncreaseNetworkTotal)
		r.Post("/max-supply", svc.handleSetMaxSupply)
		r.Post("/pause-deposits", svc.handlePauseDeposits)
		r.Post("/resume-deposits", svc.handleResumeDeposits)
	})

	return r
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("gateway: encode response", "error", err)
	}
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrZeroAddress),
		errors.Is(err, pool.ErrAmountBelowMinimum),
		errors.Is(err, pool.ErrInvalidPercentage):
		status = http.StatusBadRequest
	case errors.Is(err, pool.ErrInsufficientBalance),
		errors.Is(err, pool.ErrInsufficientShares),
		errors.Is(err, pool.ErrNotClaimable),
		errors.Is(err, pool.ErrRequestClosed),
		errors.Is(err, pool.ErrDepositsPaused),
		errors.Is(err, pool.ErrMaxSupplyExceeded),
		errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrRequestNotFound),
		errors.Is(err, pool.ErrNoActiveRequests):
		status = http.StatusNotFound
	case errors.Is(err, pool.ErrNotRequestOwner),
		errors.Is(err, nativecommon.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, pool.ErrReentrancy):
		status = http.StatusConflict
	}
	writeError(w, r, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, r *http.Request, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid address")
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, r *http.Request, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return nil, false
	}
	return amount, true
}

type amountRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Service) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	shares, err := s.Deposit(caller, amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": shares.String()})
}

func (s *Service) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	receipt, err := s.Withdraw(caller, amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	resp := map[string]any{
		"paidNow": receipt.PaidNow.String(),
		"queued":  receipt.Queued.String(),
	}
	if receipt.HasQueued {
		resp["requestId"] = receipt.RequestID
	}
	writeJSON(w, http.StatusOK, resp)
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, r, req.From)
	if !ok {
		return
	}
	to, ok := parseAddress(w, r, req.To)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	if err := s.Transfer(from, to, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type claimRequest struct {
	Caller    string `json:"caller"`
	RequestID uint64 `json:"requestId"`
}

func (s *Service) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	paid, err := s.Claim(caller, req.RequestID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Service) handleClaimAll(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	paid, err := s.ClaimAll(caller)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.Cancel(caller, req.RequestID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.CancelAll(caller); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	p, err := s.PoolState()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	nav, err := s.TotalAssetValue()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalShares":          p.TotalShares.String(),
		"netAssetValue":        nav.String(),
		"totalNetworkAmount":   p.TotalNetworkAmount.String(),
		"reservePercentageBps": p.ReservePercentageBps,
		"throttled":            p.Throttled,
		"depositsPaused":       p.DepositsPaused,
		"maxSupply":            p.MaxSupply.String(),
		"queueOutstanding":     p.WithdrawRequestOutstandingTotal.String(),
		"queueWatermark":       p.TotalWithdrawRequestCompletedAmount.String(),
		"queueHighWater":       p.TotalWithdrawRequestQueuedAmount.String(),
	})
}

func (s *Service) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	liquidity, err := s.Liquidity()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"liquidity": liquidity.String()})
}

func (s *Service) handleWillThrottle(w http.ResponseWriter, r *http.Request) {
	amount, ok := parseAmount(w, r, r.URL.Query().Get("amount"))
	if !ok {
		return
	}
	throttle, err := s.WillThrottle(amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"willThrottle": throttle})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	balance, err := s.BalanceOf(addr)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	shares, err := s.SharesOf(addr)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance": balance.String(),
		"shares":  shares.String(),
	})
}

type requestView struct {
	ID        uint64 `json:"id"`
	Amount    string `json:"amount"`
	Shares    string `json:"shares"`
	Claimed   bool   `json:"claimed"`
	Canceled  bool   `json:"canceled"`
	Claimable bool   `json:"claimable"`
}

func (s *Service) handleListRequests(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	reqs, err := s.ListRequests(addr)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		_, claimable, err := s.GetRequest(req.ID)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		views = append(views, requestView{
			ID:        req.ID,
			Amount:    req.Amount.String(),
			Shares:    req.Shares.String(),
			Claimed:   req.Claimed,
			Canceled:  req.Canceled,
			Claimable: claimable,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Service) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request id")
		return
	}
	req, claimable, err := s.GetRequest(id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requestView{
		ID:        req.ID,
		Amount:    req.Amount.String(),
		Shares:    req.Shares.String(),
		Claimed:   req.Claimed,
		Canceled:  req.Canceled,
		Claimable: claimable,
	})
}

func (s *Service) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	report, err := s.Rebalance(caller)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reserveDeficit": report.ReserveDeficit.String(),
		"lendingDebt":    report.LendingDebt.String(),
		"unfundedQueue":  report.UnfundedQueue.String(),
		"total":          report.Total.String(),
		"swept":          report.Swept.String(),
	})
}

func (s *Service) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	if err := s.FulfillWithdrawal(caller, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type percentageRequest struct {
	Caller string `json:"caller"`
	Bps    uint64 `json:"bps"`
}

func (s *Service) handleSetReservePercentage(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.SetReservePercentage(caller, req.Bps); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleRestoreNetwork(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.RestoreNetwork(caller); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleSetNetworkTotal(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	if err := s.SetNetworkTotal(caller, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleIncreaseNetworkTotal(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	if err := s.IncreaseNetworkTotal(caller, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleSetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	if err := s.SetMaxSupply(caller, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handlePauseDeposits(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.PauseDeposits(caller); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleResumeDeposits(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseAddress(w, r, req.Caller)
	if !ok {
		return
	}
	if err := s.ResumeDeposits(caller); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
