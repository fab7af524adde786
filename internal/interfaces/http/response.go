package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ansel/internal/domain/account"
	"ansel/internal/domain/aggregation"
	"ansel/internal/domain/item"
	"ansel/internal/domain/notification"
	"ansel/internal/domain/transaction"
	"ansel/internal/shared/middleware"
)

// Error codes returned in the error field
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeItemNotFound       = "PLAID_ITEM_NOT_FOUND"
	CodeDeviceNotFound     = "DEVICE_NOT_FOUND"
	CodeSyncInProgress     = "SYNC_IN_PROGRESS"
	CodeLinkInProgress     = "LINK_IN_PROGRESS"
	CodeAccountNotReturned = "ACCOUNT_NOT_IN_RESPONSE"
	CodeMissingInstitution = "INSTITUTION_MISSING"
	CodeDownloadError      = "DOWNLOAD_ERROR"
	CodeBalanceError       = "BALANCE_ERROR"
	CodeExchangeError      = "EXCHANGE_ERROR"
	CodeLinkTokenError     = "LINK_TOKEN_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// maxBodyBytes bounds request bodies; every request DTO is tiny.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Response is the envelope every mutating endpoint answers with
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func ok(message string) Response {
	return Response{Success: true, Message: message}
}

// apiError is a failure resolved to a status and a code
type apiError struct {
	status  int
	code    string
	message string
}

// fallback is used for errors without a dedicated mapping
func resolveError(err error, fallback apiError) apiError {
	switch {
	case errors.Is(err, aggregation.ErrUnauthorized):
		return apiError{http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"}
	case errors.Is(err, account.ErrAccountNotFound):
		return apiError{http.StatusNotFound, CodeAccountNotFound, "Account not found"}
	case errors.Is(err, item.ErrItemNotFound):
		return apiError{http.StatusNotFound, CodeItemNotFound, "Plaid item not found"}
	case errors.Is(err, notification.ErrDeviceTokenNotFound):
		return apiError{http.StatusNotFound, CodeDeviceNotFound, "Device not found"}
	case errors.Is(err, aggregation.ErrSyncInProgress):
		return apiError{http.StatusConflict, CodeSyncInProgress, "A sync is already running for this account"}
	case errors.Is(err, item.ErrDuplicateInstitution):
		return apiError{http.StatusConflict, CodeLinkInProgress, "Institution is already being linked"}
	case errors.Is(err, aggregation.ErrAccountNotInResponse):
		return apiError{http.StatusBadGateway, CodeAccountNotReturned, "Account was not returned by Plaid"}
	case errors.Is(err, aggregation.ErrMissingInstitution):
		return apiError{http.StatusBadGateway, CodeMissingInstitution, "Plaid item has no institution"}
	case errors.Is(err, aggregation.ErrInvalidPublicToken),
		errors.Is(err, account.ErrNicknameTooLong),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, transaction.ErrInvalidInput),
		errors.Is(err, notification.ErrInvalidDeviceType),
		errors.Is(err, notification.ErrInvalidToken):
		return apiError{http.StatusBadRequest, CodeInvalidRequest, err.Error()}
	}
	return fallback
}

// writeError maps err to a status and code and logs server-side failures
// with the underlying message.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, fallback apiError) {
	resolved := resolveError(err, fallback)
	if resolved.status >= http.StatusInternalServerError {
		logger.Error(resolved.message, zap.String("code", resolved.code), zap.Error(err))
	}
	writeJSON(w, resolved.status, Response{Message: resolved.message, Error: resolved.code})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Message: message, Error: CodeInvalidRequest})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, Response{Message: "Unauthorized", Error: CodeUnauthorized})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a JSON body into dst and runs its validate tags. An
// empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(fields, "; "))
}

// requireUser returns the authenticated user id or answers 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, found := middleware.UserIDFromContext(r.Context())
	if !found {
		writeUnauthorized(w)
		return "", false
	}
	return userID, true
}
