package account

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrBalanceNotFound = errors.New("balance not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNicknameTooLong = errors.New("nickname must be at most 64 characters")
)

const maxNicknameLength = 64

// Account is one financial account reported under a linked item.
// ExternalID changes every time the institution is re-linked, which is why
// accounts are matched by mask, type and subtype instead.
type Account struct {
	ID           string    `json:"id"`
	LinkedItemID string    `json:"linkedItemId"`
	ExternalID   string    `json:"plaidId"`
	Name         string    `json:"name"`
	Nickname     string    `json:"nickname,omitempty"`
	Type         string    `json:"type"`
	Subtype      string    `json:"subtype,omitempty"`
	Mask         string    `json:"mask,omitempty"`
	Hidden       bool      `json:"hidden"`
	SyncCursor   string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName returns the nickname when one is set.
func (a *Account) DisplayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return a.Name
}

// Balance is an immutable point-in-time snapshot of an account's balances.
type Balance struct {
	ID        string              `json:"id"`
	AccountID string              `json:"accountId"`
	Current   decimal.Decimal     `json:"current"`
	Available decimal.Decimal     `json:"available"`
	Limit     decimal.NullDecimal `json:"limit"`
	Date      time.Time           `json:"date"`
}

// Summary is an account joined with its institution and most recent balance
// (for dashboard responses).
type Summary struct {
	Account
	InstitutionName string   `json:"institutionName"`
	InstitutionLogo string   `json:"institutionLogo"`
	LatestBalance   *Balance `json:"latestBalance,omitempty"`
}

// History is an account with every balance snapshot, oldest first.
type History struct {
	Account
	Balances []*Balance `json:"balances"`
}

// CreateParams contains parameters for creating an account
type CreateParams struct {
	LinkedItemID string
	ExternalID   string
	Name         string
	Type         string
	Subtype      string
	Mask         string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.LinkedItemID == "" {
		return errors.New("linked item ID is required")
	}
	if p.ExternalID == "" {
		return errors.New("external account ID is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("account name is required")
	}
	if p.Type == "" {
		return errors.New("account type is required")
	}
	return nil
}

// UpdateParams contains the fields overwritten when a stored account is
// matched during reconciliation. A matched account is always made visible.
type UpdateParams struct {
	ExternalID string
	Name       string
	Type       string
	Subtype    string
	Mask       string
}

// BalanceParams contains parameters for appending a balance snapshot
type BalanceParams struct {
	AccountID string
	Current   decimal.Decimal
	Available decimal.Decimal
	Limit     decimal.NullDecimal
	Date      time.Time
}

// NicknameParams contains parameters for renaming an account
type NicknameParams struct {
	Nickname string `json:"nickname"`
}

// Validate trims and checks the nickname. An empty nickname clears it.
func (p *NicknameParams) Validate() error {
	p.Nickname = strings.TrimSpace(p.Nickname)
	if len([]rune(p.Nickname)) > maxNicknameLength {
		return ErrNicknameTooLong
	}
	return nil
}
