package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
	"github.com/Cheertaboi/pos-offer-service/internal/service"
)

// --- Request / Response DTOs ---

type EvaluateRequest struct {
	Items              []models.CartItem `json:"items"`
	Total              *decimal.Decimal  `json:"total,omitempty"`
	CustomerPhone      string            `json:"customer_phone,omitempty"`
	PromoCode          string            `json:"promo_code,omitempty"`
	SelectedFreeItemID string            `json:"selected_free_item_id,omitempty"`
}

type CreateOfferRequest struct {
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	IsActive           *bool              `json:"is_active,omitempty"`
	Priority           int                `json:"priority"`
	OfferType          models.OfferType   `json:"offer_type"`
	Conditions         json.RawMessage    `json:"conditions,omitempty"`
	Benefits           json.RawMessage    `json:"benefits,omitempty"`
	StartDate          *time.Time         `json:"start_date,omitempty"` // RFC3339
	EndDate            *time.Time         `json:"end_date,omitempty"`
	ValidHoursStart    *string            `json:"valid_hours_start,omitempty"`
	ValidHoursEnd      *string            `json:"valid_hours_end,omitempty"`
	ValidDays          []string           `json:"valid_days,omitempty"`
	TargetCustomerType string             `json:"target_customer_type,omitempty"`
	UsageLimit         *int               `json:"usage_limit,omitempty"`
	PromoCode          string             `json:"promo_code,omitempty"`
	EnabledForDineIn   *bool              `json:"enabled_for_dine_in,omitempty"`
	EnabledForTakeaway *bool              `json:"enabled_for_takeaway,omitempty"`
	ApplicationType    string             `json:"application_type,omitempty"`
	Items              []models.OfferItem `json:"items,omitempty"`
}

func (req CreateOfferRequest) offer() *models.Offer {
	orTrue := func(b *bool) bool { return b == nil || *b }
	return &models.Offer{
		Name:               req.Name,
		Description:        req.Description,
		IsActive:           orTrue(req.IsActive),
		Priority:           req.Priority,
		OfferType:          req.OfferType,
		Conditions:         req.Conditions,
		Benefits:           req.Benefits,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		ValidHoursStart:    req.ValidHoursStart,
		ValidHoursEnd:      req.ValidHoursEnd,
		ValidDays:          req.ValidDays,
		TargetCustomerType: models.CustomerType(req.TargetCustomerType),
		UsageLimit:         req.UsageLimit,
		PromoCode:          req.PromoCode,
		EnabledForDineIn:   orTrue(req.EnabledForDineIn),
		EnabledForTakeaway: orTrue(req.EnabledForTakeaway),
		ApplicationType:    models.ApplicationType(req.ApplicationType),
		Items:              req.Items,
	}
}

type OffersResponse struct {
	Channel models.Channel `json:"channel"`
	Offers  []models.Offer `json:"offers"`
}

// --- Handler struct & constructor ---

type OfferService interface {
	Offers(ctx context.Context, ch models.Channel) ([]models.Offer, error)
	EvaluateOffer(ctx context.Context, offerID string, in service.EvalInput) (models.EligibilityResult, error)
	RefreshCatalog(ctx context.Context) int
	CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error)
}

type OfferHandler struct {
	svc OfferService
}

func NewOfferHandler(svc OfferService) *OfferHandler {
	return &OfferHandler{svc: svc}
}

// ListOffers handles GET /offers?channel=
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	ch := models.Channel(strings.TrimSpace(r.URL.Query().Get("channel")))
	if ch == "" {
		ch = models.ChannelDineIn
	}
	offers, err := h.svc.Offers(r.Context(), ch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if offers == nil {
		offers = []models.Offer{}
	}
	writeJSON(w, http.StatusOK, OffersResponse{Channel: ch, Offers: offers})
}

// EvaluateOffer handles POST /offers/{offerID}/evaluate
func (h *OfferHandler) EvaluateOffer(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	in := service.EvalInput{
		Items:              req.Items,
		CustomerPhone:      req.CustomerPhone,
		PromoCode:          req.PromoCode,
		SelectedFreeItemID: req.SelectedFreeItemID,
	}
	if req.Total != nil {
		in.Total = *req.Total
	}

	res, err := h.svc.EvaluateOffer(r.Context(), chi.URLParam(r, "offerID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RefreshCatalog handles POST /admin/catalog/refresh
func (h *OfferHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	n := h.svc.RefreshCatalog(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "catalog_refreshed",
		"sessions_refreshed": n,
	})
}

// CreateOffer handles POST /admin/offers
// validates the terms, then stores the offer + item links in a transaction
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if !decode(w, r, &req) {
		return
	}

	offer, err := h.svc.CreateOffer(r.Context(), req.offer())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "offer_created",
		"offer_id": offer.ID,
		"offer":    offer,
	})
}
