package notification

import (
	"errors"
	"strings"
	"time"
)

var validDeviceTypes = map[string]struct{}{
	"ios":     {},
	"android": {},
	"web":     {},
}

// Domain errors
var (
	ErrDeviceTokenNotFound = errors.New("device token not found")
	ErrInvalidDeviceType   = errors.New("device type must be 'ios', 'android' or 'web'")
	ErrInvalidToken        = errors.New("device token is required")
	ErrInvalidUser         = errors.New("user id is required")
)

// DeviceToken represents a registered FCM device token
type DeviceToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Token      string    `json:"token"`
	DeviceType string    `json:"deviceType"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsed   time.Time `json:"lastUsed"`
}

// RegisterDeviceParams contains parameters for registering a device
type RegisterDeviceParams struct {
	UserID     string
	Token      string
	DeviceType string
}

// Validate normalizes and checks the parameters
func (p *RegisterDeviceParams) Validate() error {
	p.Token = strings.TrimSpace(p.Token)
	p.DeviceType = strings.ToLower(strings.TrimSpace(p.DeviceType))

	if p.UserID == "" {
		return ErrInvalidUser
	}
	if p.Token == "" {
		return ErrInvalidToken
	}
	if !IsValidDeviceType(p.DeviceType) {
		return ErrInvalidDeviceType
	}
	return nil
}

func IsValidDeviceType(dt string) bool {
	_, ok := validDeviceTypes[dt]
	return ok
}
