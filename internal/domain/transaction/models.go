package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// Download log statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Transaction is one ledger entry of an account, keyed by the aggregator's
// transaction id. Positive amounts are money leaving the account.
type Transaction struct {
	ID                      string          `json:"id"`
	AccountID               string          `json:"accountId"`
	ExternalID              string          `json:"plaidTransactionId"`
	Date                    time.Time       `json:"date"`
	AuthorizedDate          *time.Time      `json:"authorizedDate,omitempty"`
	Name                    string          `json:"name"`
	MerchantName            string          `json:"merchantName,omitempty"`
	Amount                  decimal.Decimal `json:"amount"`
	IsoCurrencyCode         string          `json:"isoCurrencyCode,omitempty"`
	Category                string          `json:"category,omitempty"`
	PersonalFinanceCategory string          `json:"personalFinanceCategory,omitempty"`
	PaymentChannel          string          `json:"paymentChannel,omitempty"`
	Pending                 bool            `json:"pending"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

// CreateParams contains parameters for inserting a transaction
type CreateParams struct {
	AccountID               string
	ExternalID              string
	Date                    time.Time
	AuthorizedDate          *time.Time
	Name                    string
	MerchantName            string
	Amount                  decimal.Decimal
	IsoCurrencyCode         string
	Category                string
	PersonalFinanceCategory string
	PaymentChannel          string
	Pending                 bool
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.AccountID == "" || p.ExternalID == "" {
		return ErrInvalidInput
	}
	if p.Date.IsZero() {
		return errors.New("transaction date is required")
	}
	return nil
}

// UpdateParams holds the mutable fields overwritten by a modified delta
type UpdateParams struct {
	Date                    time.Time
	Name                    string
	MerchantName            string
	Amount                  decimal.Decimal
	Category                string
	PersonalFinanceCategory string
	Pending                 bool
}

// DownloadLog records one transaction sync run of an account.
type DownloadLog struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	NumTransactions int       `json:"numTransactions"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DownloadLogParams contains parameters for recording a sync run
type DownloadLogParams struct {
	AccountID       string
	StartDate       time.Time
	EndDate         time.Time
	NumTransactions int
	Status          string
	ErrorMessage    string
}

// Validate validates the download log parameters
func (p DownloadLogParams) Validate() error {
	if p.AccountID == "" {
		return ErrInvalidInput
	}
	if p.Status != StatusSuccess && p.Status != StatusError {
		return errors.New("status must be 'success' or 'error'")
	}
	if p.EndDate.Before(p.StartDate) {
		return errors.New("end date must not be before start date")
	}
	return nil
}
