package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/middleware"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.Account, error)
	ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.Account, error)
}

type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

type CreateAccountRequest struct {
	OwnerID        int64  `json:"ownerId" validate:"required,gt=0"`
	CreditLimit    string `json:"creditLimit"`
	InitialDeposit string `json:"initialDeposit"`
}

type ListAccountsResponse struct {
	Accounts []models.Account `json:"accounts"`
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	creditLimit, ok := parseOptionalAmount(c, req.CreditLimit, "creditLimit")
	if !ok {
		return
	}
	initialDeposit, ok := parseOptionalAmount(c, req.InitialDeposit, "initialDeposit")
	if !ok {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		OwnerID:        req.OwnerID,
		CreditLimit:    creditLimit,
		InitialDeposit: initialDeposit,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	account, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: accountID})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) ListOwnerAccounts(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Param("ownerId"), 10, 64)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid owner id")
		return
	}

	accounts, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{OwnerID: ownerID})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: accounts})
}

func parseAccountID(c *gin.Context) (int64, bool) {
	accountID, err := strconv.ParseInt(c.Param("accountId"), 10, 64)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid account id")
		return 0, false
	}
	return accountID, true
}

// parseOptionalAmount parses a decimal field that defaults to zero when absent.
func parseOptionalAmount(c *gin.Context, raw, field string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, true
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+field)
		return decimal.Decimal{}, false
	}
	return amount, true
}
