package item

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrItemNotFound         = errors.New("linked item not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateInstitution = errors.New("institution already linked for user")
)

// LinkedItem is one connection to a financial institution through the
// aggregation API. It owns the access token used for every later call.
type LinkedItem struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ExternalID      string    `json:"itemId"`
	AccessToken     string    `json:"-"`
	InstitutionID   string    `json:"institutionId"`
	InstitutionName string    `json:"institutionName"`
	InstitutionLogo string    `json:"institutionLogo"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CreateParams contains parameters for creating a linked item
type CreateParams struct {
	UserID          string
	ExternalID      string
	AccessToken     string
	InstitutionID   string
	InstitutionName string
	InstitutionLogo string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("user ID is required")
	}
	if p.ExternalID == "" {
		return errors.New("external item ID is required")
	}
	if p.AccessToken == "" {
		return errors.New("access token is required")
	}
	if p.InstitutionID == "" {
		return errors.New("institution ID is required")
	}
	return nil
}

// UpdateParams carries the fields refreshed on a re-link.
type UpdateParams struct {
	ExternalID      string
	AccessToken     string
	InstitutionName string
	InstitutionLogo string
}

// Validate validates the update parameters
func (p UpdateParams) Validate() error {
	if p.ExternalID == "" || p.AccessToken == "" {
		return ErrInvalidInput
	}
	return nil
}
