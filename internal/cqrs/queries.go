package cqrs

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID int64
}

// ListAccountsQuery fetches all accounts belonging to an owner.
type ListAccountsQuery struct {
	OwnerID int64
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction by id.
type GetTransactionQuery struct {
	TransactionID string
}

// ListTransactionsQuery fetches all transactions that reference an account,
// newest first.
type ListTransactionsQuery struct {
	AccountID int64
}
