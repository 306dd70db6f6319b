package models

import "github.com/go-faster/errors"

var (
	ErrOfferNotFound      = errors.New("offer not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownOfferType   = errors.New("unknown offer type")
	ErrUsageLimitReached  = errors.New("offer usage limit reached")
	ErrInvalidActor       = errors.New("invalid actor")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrFreeItemNotOffered = errors.New("free item not offered")
	ErrNoOfferSelected    = errors.New("no offer selected")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrInvalidOffer       = errors.New("invalid offer")
)

// FieldError reports a required offer payload field that is missing or invalid.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return "offer is missing " + e.Field }
