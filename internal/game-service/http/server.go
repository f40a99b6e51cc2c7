package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/internal/game-service/dto"
)

type Bets interface {
	PlaceBet(ctx context.Context, userID, amount int64) (domain.Bet, error)
}

type Ledger interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	IsPrivileged(userID int64) bool
	AdminAdjust(ctx context.Context, adminID, userID, delta int64) (before, after int64, err error)
	Stats(ctx context.Context, adminID int64) (domain.Stats, error)
	Register(ctx context.Context, userID int64) (created bool, balance int64, err error)
}

type Rounds interface {
	Current() (domain.Round, bool)
}

// API expõe apostas, saldo, rodada corrente e as operações administrativas
type API struct {
	Log        *zap.Logger
	Clock      quartz.Clock
	Bets       Bets
	Ledger     Ledger
	Rounds     Rounds
	BetOptions []int64
	WS         http.HandlerFunc // opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/v1/users", a.registerUser)
	r.Post("/v1/bets", a.placeBet)
	r.Get("/v1/balance/{userId}", a.getBalance)
	r.Get("/v1/round", a.getRound)
	r.Post("/v1/admin/balance", a.adjustBalance)
	r.Get("/v1/admin/stats", a.stats)
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(reason domain.Reason) int {
	switch reason {
	case domain.ReasonInvalidInput:
		return http.StatusBadRequest
	case domain.ReasonRetryLater:
		return http.StatusConflict
	case domain.ReasonInsufficient:
		return http.StatusPaymentRequired
	case domain.ReasonForbidden:
		return http.StatusForbidden
	case domain.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	reason := domain.ReasonOf(err)
	if reason == domain.ReasonInternal {
		a.Log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, statusOf(reason), dto.ErrorResponse{Code: domain.CodeOf(err), Reason: string(reason)})
}

func invalidInput(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Code: code, Reason: string(domain.ReasonInvalidInput)})
}

// registerUser cadastra o jogador; 201 na primeira vez, 200 depois
func (a *API) registerUser(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidInput(w, "bad_json")
		return
	}
	if err := req.Validate(); err != nil {
		invalidInput(w, "invalid_payload")
		return
	}

	created, bal, err := a.Ledger.Register(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.RegisterUserResponse{UserID: req.UserID, Balance: bal, Created: created})
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidInput(w, "bad_json")
		return
	}
	if err := req.Validate(); err != nil {
		invalidInput(w, "invalid_payload")
		return
	}

	b, err := a.Bets.PlaceBet(r.Context(), req.UserID, req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}

	bal, err := a.Ledger.GetBalance(r.Context(), req.UserID)
	if err != nil {
		// aposta já gravada; saldo é só informativo
		a.Log.Warn("balance after bet", zap.Int64("userId", req.UserID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:   b.ID,
		RoundID: b.RoundID,
		Amount:  b.Amount,
		Status:  string(b.Status),
		Balance: bal,
	})
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		a.writeError(w, domain.ErrInvalidUser)
		return
	}
	bal, err := a.Ledger.GetBalance(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: id, Balance: bal, Unlimited: a.Ledger.IsPrivileged(id)})
}

func (a *API) getRound(w http.ResponseWriter, r *http.Request) {
	cur, ok := a.Rounds.Current()
	if !ok {
		a.writeError(w, domain.ErrNotFound)
		return
	}
	resp := dto.RoundResponse{
		RoundID:       cur.ID,
		Status:        string(cur.Status),
		BettingEndsAt: cur.BettingEndsAt,
		RoundEndsAt:   cur.RoundEndsAt,
		BetOptions:    a.BetOptions,
	}
	if cur.Result != nil {
		resp.Result = cur.Result.StringFixed(2)
	}
	if cur.AcceptsBets(a.Clock.Now()) {
		resp.BettingRemaining = int64(cur.BettingEndsAt.Sub(a.Clock.Now()).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidInput(w, "bad_json")
		return
	}
	if err := req.Validate(); err != nil {
		invalidInput(w, "invalid_payload")
		return
	}
	before, after, err := a.Ledger.AdminAdjust(r.Context(), req.AdminID, req.UserID, req.Delta)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdjustBalanceResponse{UserID: req.UserID, Before: before, After: after})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	adminID, err := strconv.ParseInt(r.URL.Query().Get("adminId"), 10, 64)
	if err != nil {
		a.writeError(w, domain.ErrForbidden)
		return
	}
	st, err := a.Ledger.Stats(r.Context(), adminID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
