package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
	"github.com/Cheertaboi/pos-offer-service/internal/service"
)

type CartRequest struct {
	Items []models.CartItem `json:"items"`
}

type CustomerRequest struct {
	Phone string `json:"phone"`
}

type PromoCodeRequest struct {
	PromoCode string `json:"promo_code"`
}

type ChannelRequest struct {
	Channel models.Channel `json:"channel"`
}

type SelectOfferRequest struct {
	OfferID string       `json:"offer_id"`
	Actor   models.Actor `json:"actor"`
}

type FreeItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
}

type FinalizeRequest struct {
	OrderID string       `json:"order_id"`
	Actor   models.Actor `json:"actor"`
}

type SessionService interface {
	View(ctx context.Context, id string) (service.SessionView, error)
	Recompute(ctx context.Context, id string, ev service.Event) (service.SessionView, error)
	Select(ctx context.Context, id, offerID string, actor models.Actor) (service.SessionView, error)
	Deselect(ctx context.Context, id string, actor models.Actor) (service.SessionView, error)
	ChooseFreeItem(ctx context.Context, id, menuItemID string) (service.SessionView, error)
	Finalize(ctx context.Context, id, orderID string, actor models.Actor) (service.FinalizeResult, error)
	End(ctx context.Context, id string) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, v service.SessionView, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.View(r.Context(), sessionID(r))
	h.respond(w, r, v, err)
}

// SetCart handles PUT /sessions/{sessionID}/cart
func (h *SessionHandler) SetCart(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if !decode(w, r, &req) {
		return
	}
	for _, it := range req.Items {
		if it.ID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart items need id, positive quantity and non-negative price"})
			return
		}
	}
	v, err := h.svc.Recompute(r.Context(), sessionID(r), service.Event{Kind: service.EventCartChanged, Cart: req.Items})
	h.respond(w, r, v, err)
}

// SetCustomer handles PUT /sessions/{sessionID}/customer
func (h *SessionHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.Recompute(r.Context(), sessionID(r), service.Event{Kind: service.EventCustomerChanged, Phone: req.Phone})
	h.respond(w, r, v, err)
}

// SetPromoCode handles PUT /sessions/{sessionID}/promo-code
func (h *SessionHandler) SetPromoCode(w http.ResponseWriter, r *http.Request) {
	var req PromoCodeRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.Recompute(r.Context(), sessionID(r), service.Event{Kind: service.EventPromoCodeChanged, PromoCode: req.PromoCode})
	h.respond(w, r, v, err)
}

// SetChannel handles PUT /sessions/{sessionID}/channel
func (h *SessionHandler) SetChannel(w http.ResponseWriter, r *http.Request) {
	var req ChannelRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.Recompute(r.Context(), sessionID(r), service.Event{Kind: service.EventChannelChanged, Channel: req.Channel})
	h.respond(w, r, v, err)
}

// SelectOffer handles POST /sessions/{sessionID}/offer
func (h *SessionHandler) SelectOffer(w http.ResponseWriter, r *http.Request) {
	var req SelectOfferRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offer_id required"})
		return
	}
	v, err := h.svc.Select(r.Context(), sessionID(r), req.OfferID, req.Actor)
	h.respond(w, r, v, err)
}

// DeselectOffer handles DELETE /sessions/{sessionID}/offer?actor=
func (h *SessionHandler) DeselectOffer(w http.ResponseWriter, r *http.Request) {
	actor := models.Actor(r.URL.Query().Get("actor"))
	v, err := h.svc.Deselect(r.Context(), sessionID(r), actor)
	h.respond(w, r, v, err)
}

// ChooseFreeItem handles POST /sessions/{sessionID}/free-item
func (h *SessionHandler) ChooseFreeItem(w http.ResponseWriter, r *http.Request) {
	var req FreeItemRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.MenuItemID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu_item_id required"})
		return
	}
	v, err := h.svc.ChooseFreeItem(r.Context(), sessionID(r), req.MenuItemID)
	h.respond(w, r, v, err)
}

// Finalize handles POST /sessions/{sessionID}/finalize
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id required"})
		return
	}
	res, err := h.svc.Finalize(r.Context(), sessionID(r), req.OrderID, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EndSession handles DELETE /sessions/{sessionID}
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.End(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
