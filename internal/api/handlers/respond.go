package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, code, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *models.FieldError
	switch {
	case errors.Is(err, models.ErrOfferNotFound), errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUsageLimitReached), errors.Is(err, models.ErrNoOfferSelected):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidActor), errors.Is(err, models.ErrInvalidChannel),
		errors.Is(err, models.ErrFreeItemNotOffered), errors.Is(err, models.ErrUnknownOfferType),
		errors.Is(err, models.ErrInvalidOffer), errors.As(err, &fe):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return false
	}
	return true
}
