package plaid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LinkTokenRequest is the body of /link/token/create
type LinkTokenRequest struct {
	ClientName   string            `json:"client_name"`
	Language     string            `json:"language"`
	CountryCodes []string          `json:"country_codes"`
	User         LinkUser          `json:"user"`
	Products     []string          `json:"products"`
	Transactions *LinkTransactions `json:"transactions,omitempty"`
}

// LinkUser identifies the end user a link token is created for
type LinkUser struct {
	ClientUserID string `json:"client_user_id"`
}

// LinkTransactions controls how much history is requested at link time
type LinkTransactions struct {
	DaysRequested int `json:"days_requested"`
}

// LinkTokenResponse represents the API response for link token creation
type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// ExchangeResponse represents the API response for a public token exchange
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// ItemResponse represents the API response for /item/get
type ItemResponse struct {
	Item      Item   `json:"item"`
	RequestID string `json:"request_id"`
}

// Item is the aggregator's view of one institution connection
type Item struct {
	ItemID        string  `json:"item_id"`
	InstitutionID *string `json:"institution_id"`
}

// GetInstitutionID returns the institution id or an empty string
func (i Item) GetInstitutionID() string {
	if i.InstitutionID == nil {
		return ""
	}
	return *i.InstitutionID
}

// InstitutionResponse represents the API response for /institutions/get_by_id
type InstitutionResponse struct {
	Institution Institution `json:"institution"`
	RequestID   string      `json:"request_id"`
}

// Institution holds institution display metadata. Logo is base64 PNG data.
type Institution struct {
	InstitutionID string  `json:"institution_id"`
	Name          string  `json:"name"`
	Logo          *string `json:"logo"`
	URL           *string `json:"url"`
	PrimaryColor  *string `json:"primary_color"`
}

// GetLogo returns the logo or an empty string
func (i Institution) GetLogo() string {
	if i.Logo == nil {
		return ""
	}
	return *i.Logo
}

// AccountsResponse represents the API response for /accounts/get and
// /accounts/balance/get
type AccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Account represents an account reported by the aggregator
type Account struct {
	AccountID    string   `json:"account_id"`
	Balances     Balances `json:"balances"`
	Mask         *string  `json:"mask"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
}

// GetMask returns the mask or an empty string
func (a Account) GetMask() string {
	if a.Mask == nil {
		return ""
	}
	return *a.Mask
}

// GetSubtype returns the subtype or an empty string
func (a Account) GetSubtype() string {
	if a.Subtype == nil {
		return ""
	}
	return *a.Subtype
}

// Balances holds the balances of an account. Any of them may be null.
type Balances struct {
	Available       *decimal.Decimal `json:"available"`
	Current         *decimal.Decimal `json:"current"`
	Limit           *decimal.Decimal `json:"limit"`
	IsoCurrencyCode *string          `json:"iso_currency_code"`
}

// GetCurrent returns the current balance, zero when unknown
func (b Balances) GetCurrent() decimal.Decimal {
	if b.Current == nil {
		return decimal.Zero
	}
	return *b.Current
}

// GetAvailable returns the available balance, zero when unknown
func (b Balances) GetAvailable() decimal.Decimal {
	if b.Available == nil {
		return decimal.Zero
	}
	return *b.Available
}

// GetLimit returns the credit limit; invalid when the account has none
func (b Balances) GetLimit() decimal.NullDecimal {
	if b.Limit == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*b.Limit)
}

// SyncRequest describes one page request of /transactions/sync
type SyncRequest struct {
	AccessToken string
	Cursor      string
	Count       int
	AccountID   string
}

// SyncResponse represents one page of transaction deltas
type SyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
	RequestID  string               `json:"request_id"`
}

// Transaction represents a transaction delta from the aggregator.
// Positive amounts are money leaving the account.
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	AccountID               string                   `json:"account_id"`
	Amount                  decimal.Decimal          `json:"amount"`
	IsoCurrencyCode         *string                  `json:"iso_currency_code"`
	Category                []string                 `json:"category"`
	Date                    string                   `json:"date"`
	AuthorizedDate          *string                  `json:"authorized_date"`
	Name                    string                   `json:"name"`
	MerchantName            *string                  `json:"merchant_name"`
	OriginalDescription     *string                  `json:"original_description"`
	Pending                 bool                     `json:"pending"`
	PaymentChannel          string                   `json:"payment_channel"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
}

// PersonalFinanceCategory is the aggregator's two-level categorisation
type PersonalFinanceCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// GetDate parses the posted date
func (t Transaction) GetDate() (time.Time, error) {
	d, err := time.Parse(dateLayout, t.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", t.Date, err)
	}
	return d, nil
}

// GetAuthorizedDate parses the authorization date when present
func (t Transaction) GetAuthorizedDate() (*time.Time, error) {
	if t.AuthorizedDate == nil || *t.AuthorizedDate == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, *t.AuthorizedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorized date '%s': %w", *t.AuthorizedDate, err)
	}
	return &d, nil
}

// GetMerchantName returns the merchant name or an empty string
func (t Transaction) GetMerchantName() string {
	if t.MerchantName == nil {
		return ""
	}
	return *t.MerchantName
}

// GetIsoCurrencyCode returns the currency code or an empty string
func (t Transaction) GetIsoCurrencyCode() string {
	if t.IsoCurrencyCode == nil {
		return ""
	}
	return *t.IsoCurrencyCode
}

// GetPersonalFinanceCategory returns the primary personal finance category
func (t Transaction) GetPersonalFinanceCategory() string {
	if t.PersonalFinanceCategory == nil {
		return ""
	}
	return t.PersonalFinanceCategory.Primary
}

// GetCategory returns the display category: the personal finance primary,
// or the first legacy category when that is missing.
func (t Transaction) GetCategory() string {
	if primary := t.GetPersonalFinanceCategory(); primary != "" {
		return primary
	}
	if len(t.Category) > 0 {
		return t.Category[0]
	}
	return ""
}

// RemovedTransaction identifies a transaction deleted at the institution
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}
