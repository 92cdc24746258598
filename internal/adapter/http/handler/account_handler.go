package handler

import (
	"context"

	"savings-account/internal/adapter/http/dto"
	"savings-account/internal/core/domain"
	"savings-account/internal/core/ports"
	"savings-account/pkg/apperror"
	"savings-account/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey scopes a command so retries are applied at most once.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// AccountHandler handles savings account endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.accountSvc.CreateAccount(c.Request.Context(), req.AccountID, req.InterestRate)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateAccountResponse{
		AccountID: account.ID(),
		Version:   account.Version(),
	})
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToAccountResponse(account))
}

// GetBalance handles GET /api/v1/accounts/:id/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	balance, err := h.accountSvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		AccountID: id,
		Balance:   balance.String(),
	})
}

// Deposit handles POST /api/v1/accounts/:id/deposits.
func (h *AccountHandler) Deposit(c *gin.Context) {
	h.move(c, h.accountSvc.Deposit)
}

// Withdraw handles POST /api/v1/accounts/:id/withdrawals.
func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.move(c, h.accountSvc.Withdraw)
}

// AccrueInterest handles POST /api/v1/accounts/:id/interest-accruals.
func (h *AccountHandler) AccrueInterest(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	account, accrual, err := h.accountSvc.AccrueInterest(c.Request.Context(), id, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToAccrualResponse(account, accrual))
}

type moveFunc func(ctx context.Context, id string, amount domain.Money, idempotencyKey string) (*domain.Account, error)

// move binds an amount request and runs a deposit or withdrawal.
func (h *AccountHandler) move(c *gin.Context, run moveFunc) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, err := domain.ParseMoney(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount(err))
		return
	}

	account, err := run(c.Request.Context(), id, amount, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToAccountResponse(account))
}

func accountID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !dto.ValidAccountID(id) {
		response.Error(c, apperror.Validation("invalid account id"))
		return "", false
	}
	return id, true
}

func idempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("invalid "+HeaderIdempotencyKey+" header"))
		return "", false
	}
	return key, true
}
