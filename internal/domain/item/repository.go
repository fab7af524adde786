package item

import "context"

// Repository defines the interface for linked item data access.
// Lookups that find nothing return ErrItemNotFound.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*LinkedItem, error)
	Update(ctx context.Context, id string, params UpdateParams) (*LinkedItem, error)
	GetByID(ctx context.Context, id string) (*LinkedItem, error)

	// FindByInstitution returns the user's item for an institution.
	FindByInstitution(ctx context.Context, userID, institutionID string) (*LinkedItem, error)

	ListByUserID(ctx context.Context, userID string) ([]*LinkedItem, error)

	// ListUserIDs returns every user that has at least one linked item.
	ListUserIDs(ctx context.Context) ([]string, error)
}
