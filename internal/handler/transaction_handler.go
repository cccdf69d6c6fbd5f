package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/middleware"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	ApplyTransaction(ctx context.Context, cmd cqrs.ApplyTransactionCommand) (*models.Transaction, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error)
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]models.Transaction, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

type ApplyTransactionRequest struct {
	Type            string `json:"type" validate:"required,oneof=DEPOSIT WITHDRAW TRANSFER PAYMENT REFUND"`
	SourceAccountID *int64 `json:"sourceAccountId"`
	TargetAccountID *int64 `json:"targetAccountId"`
	Amount          string `json:"amount" validate:"required"`
	Description     string `json:"description" validate:"max=255"`
}

type ListTransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

func (h *TransactionHandler) ApplyTransaction(c *gin.Context) {
	var req ApplyTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid amount")
		return
	}

	txn, err := h.commands.ApplyTransaction(c.Request.Context(), cqrs.ApplyTransactionCommand{
		Type:            models.TransactionType(req.Type),
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		Amount:          amount,
		Description:     req.Description,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")

	txn, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{TransactionID: transactionID})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	transactions, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{AccountID: accountID})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: transactions})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	transactions, err := h.queries.ListAllTransactions(c.Request.Context())
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: transactions})
}
