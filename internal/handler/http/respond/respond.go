package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JSON(w http.ResponseWriter, logger *zap.Logger, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func Error(w http.ResponseWriter, logger *zap.Logger, code int, message string) {
	JSON(w, logger, code, ErrorBody{Error: message})
}

func CodedError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	JSON(w, logger, status, ErrorBody{Error: message, Code: code})
}
