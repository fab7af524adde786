package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"ansel/internal/domain/notification"
)

// DeviceRegistrar registers push notification devices
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error)
}

type NotificationHandler struct {
	devices DeviceRegistrar
	logger  *zap.Logger
}

func NewNotificationHandler(devices DeviceRegistrar, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{devices: devices, logger: logger}
}

type RegisterDeviceRequest struct {
	Token      string `json:"token" validate:"required"`
	DeviceType string `json:"deviceType" validate:"required"`
}

type RegisterDeviceResponse struct {
	Response
	Device *notification.DeviceToken `json:"device"`
}

// HandleRegisterDevice stores the device token of the authenticated user
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, found := requireUser(w, r)
	if !found {
		return
	}

	var req RegisterDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	device, err := h.devices.RegisterDevice(r.Context(), notification.RegisterDeviceParams{
		UserID:     userID,
		Token:      req.Token,
		DeviceType: req.DeviceType,
	})
	if err != nil {
		writeError(w, h.logger, err, apiError{http.StatusInternalServerError, CodeInternal, "Failed to register device"})
		return
	}

	writeJSON(w, http.StatusCreated, RegisterDeviceResponse{Response: ok("Device registered"), Device: device})
}
