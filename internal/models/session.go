package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Actor string

const (
	ActorGuest Actor = "guest"
	ActorStaff Actor = "staff"
)

func (a Actor) Valid() bool {
	return a == ActorGuest || a == ActorStaff
}

// SessionOfferLock binds one offer to a dining session. It is set once and
// only cleared when the session ends.
type SessionOfferLock struct {
	OfferID       string        `json:"locked_offer_id"`
	Snapshot      OfferSnapshot `json:"locked_offer_data"`
	LockedAt      time.Time     `json:"offer_applied_at"`
	LockedByGuest bool          `json:"locked_by_guest"`
}

// UsageRecord is written when an order carrying an offer is finalized.
type UsageRecord struct {
	ID            string          `json:"id"`
	OfferID       string          `json:"offer_id"`
	OrderID       string          `json:"order_id"`
	SessionID     string          `json:"session_id"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Channel       Channel         `json:"channel"`
	Discount      decimal.Decimal `json:"discount_amount"`
	FreeItems     []FreeItem      `json:"free_items"`
	UsedAt        time.Time       `json:"used_at"`
}

// SessionRecord is the part of an external dining session the offer engine
// reads: its channel and current lock.
type SessionRecord struct {
	ID      string
	Channel Channel
	Lock    *SessionOfferLock
}
