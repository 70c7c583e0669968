package registration_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"nutritrack/internal/app/registration"
	"nutritrack/internal/domain"
	"nutritrack/internal/handler/http/respond"
)

const maxBodyBytes = 64 << 10

type RegistrationHandler struct {
	service registration.Service
	logger  *zap.Logger
}

func NewRegistrationHandler(s registration.Service, l *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: s, logger: l}
}

type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	RegistrationCode string `json:"registrationCode"`
}

type RegisterResponse struct {
	CustomToken string `json:"customToken"`
}

func (h *RegistrationHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid registration request body", zap.Error(err))
		respond.CodedError(w, h.logger, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	res, err := h.service.Register(r.Context(), registration.Request{
		Email:            req.Email,
		Password:         req.Password,
		RegistrationCode: req.RegistrationCode,
	})
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Registration failed", zap.String("code", code), zap.Error(err))
		} else {
			h.logger.Info("Registration rejected", zap.String("code", code), zap.Error(err))
		}
		respond.CodedError(w, h.logger, status, code, publicMessage(err, code))
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, RegisterResponse{CustomToken: res.CustomToken})
}

// errorStatus maps registration errors onto HTTP. Order matters: aborted
// errors wrap their storage cause.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "code_not_found"
	case errors.Is(err, domain.ErrAlreadyUsed):
		return http.StatusConflict, "code_already_used"
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, "code_not_approved"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, domain.ErrTokenIssuance):
		return http.StatusInternalServerError, "token_issuance_failed"
	case errors.Is(err, domain.ErrAborted):
		return http.StatusConflict, "aborted"
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func publicMessage(err error, code string) string {
	switch code {
	case "invalid_input":
		return err.Error()
	case "code_not_found":
		return "registration code not found"
	case "code_already_used":
		return domain.ErrAlreadyUsed.Error()
	case "code_not_approved":
		return domain.ErrPreconditionFailed.Error()
	case "email_taken":
		return domain.ErrEmailTaken.Error()
	case "token_issuance_failed":
		return "account created but sign-in token could not be issued"
	case "aborted":
		return domain.ErrAborted.Error()
	case "storage_unavailable":
		return domain.ErrStorage.Error()
	default:
		return "internal server error"
	}
}
