package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// Coordinator owns offer selection for every open dining session. All state
// changes go through its methods; the session lock is only ever written via
// SessionStore.BindOffer.
type Coordinator struct {
	eval      *Evaluator
	catalog   OfferCatalog
	store     SessionStore
	usage     UsageHistory
	publisher UsagePublisher
	menu      MenuLookup
	writer    OfferWriter

	mu   sync.Mutex
	open map[string]*session
}

type CoordinatorOption func(*Coordinator)

func WithPublisher(p UsagePublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithMenu lets category-linked add-ons be chosen by menu item id.
func WithMenu(m MenuLookup) CoordinatorOption {
	return func(c *Coordinator) { c.menu = m }
}

func WithOfferWriter(w OfferWriter) CoordinatorOption {
	return func(c *Coordinator) { c.writer = w }
}

func NewCoordinator(eval *Evaluator, catalog OfferCatalog, store SessionStore, usage UsageHistory, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		eval:    eval,
		catalog: catalog,
		store:   store,
		usage:   usage,
		open:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FinalizeResult describes the offer outcome of a finalized order.
type FinalizeResult struct {
	OrderID      string                   `json:"order_id"`
	SessionID    string                   `json:"session_id"`
	OfferID      string                   `json:"offer_id,omitempty"`
	Applied      bool                     `json:"applied"`
	Discount     decimal.Decimal          `json:"discount"`
	FreeItems    []models.FreeItem        `json:"free_items,omitempty"`
	Items        []models.CartItem        `json:"items"`
	CartTotal    decimal.Decimal          `json:"cart_total"`
	PayableTotal decimal.Decimal          `json:"payable_total"`
	Lock         *models.SessionOfferLock `json:"lock,omitempty"`
	LockAdopted  bool                     `json:"lock_adopted"`
	Notice       string                   `json:"notice,omitempty"`
}

func (c *Coordinator) session(ctx context.Context, id string) (*session, error) {
	c.mu.Lock()
	s, ok := c.open[id]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	rec, err := c.store.LoadSession(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	used, err := c.usage.SessionHasUsage(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "check session usage")
	}
	rec.ID = id
	s = newSession(rec, used)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.open[id]; ok {
		return existing, nil
	}
	c.open[id] = s
	return s, nil
}

func (c *Coordinator) Offers(ctx context.Context, ch models.Channel) ([]models.Offer, error) {
	if !ch.Valid() {
		return nil, models.ErrInvalidChannel
	}
	return c.catalog.ActiveOffers(ctx, ch)
}

// EvaluateOffer scores a single offer against a cart that is not tied to a
// session.
func (c *Coordinator) EvaluateOffer(ctx context.Context, offerID string, in EvalInput) (models.EligibilityResult, error) {
	offer, err := c.catalog.OfferByID(ctx, offerID)
	if err != nil {
		return models.EligibilityResult{}, err
	}
	if in.Total.IsZero() {
		in.Total = models.CartTotal(in.Items)
	}
	if in.SelectedFreeItem == nil && in.SelectedFreeItemID != "" {
		if item, ok := c.lookupMenuItem(ctx, offer, in.SelectedFreeItemID); ok {
			in.SelectedFreeItem = &item
		}
	}
	return c.eval.Evaluate(ctx, offer, in), nil
}

func (c *Coordinator) View(ctx context.Context, id string) (SessionView, error) {
	s, err := c.session(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Recompute applies ev to the session inputs and re-evaluates the whole
// catalog. Evaluation runs without holding the session; if another event
// arrives meanwhile, this pass is dropped and the newer one wins. Until a
// pass lands the view carries no discount, free lines or results.
func (c *Coordinator) Recompute(ctx context.Context, id string, ev Event) (SessionView, error) {
	s, err := c.session(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	s.mu.Lock()
	switch ev.Kind {
	case EventCartChanged:
		s.cart = models.PaidItems(ev.Cart)
	case EventCustomerChanged:
		s.phone = strings.TrimSpace(ev.Phone)
	case EventPromoCodeChanged:
		s.promoCode = strings.TrimSpace(ev.PromoCode)
	case EventChannelChanged:
		if !ev.Channel.Valid() {
			s.mu.Unlock()
			return SessionView{}, models.ErrInvalidChannel
		}
		s.channel = ev.Channel
	case EventCatalogChanged:
	}
	s.cart = StripFree(s.cart)
	s.gen++
	gen := s.gen
	ch := s.channel
	selected, choice := s.selectedOfferID, s.freeChoice
	lockedID := ""
	if s.lock != nil {
		lockedID = s.lock.OfferID
	}
	in := s.input(nil)
	s.mu.Unlock()

	offers, results, err := c.evaluatePass(ctx, ch, in, selected, choice, lockedID)
	if err != nil {
		s.mu.Lock()
		if gen == s.gen {
			s.notice = "Offers could not be checked right now"
		}
		s.mu.Unlock()
		return SessionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		slog.Debug("evaluation pass superseded", "session_id", id, "generation", gen, "latest", s.gen)
		return s.view(), nil
	}
	s.offers = offers
	s.results.Replace(gen, results)
	s.notice = ""
	c.settle(s)
	return s.view(), nil
}

func (c *Coordinator) evaluatePass(ctx context.Context, ch models.Channel, in EvalInput, selected string, choice *models.FreeItem, lockedID string) ([]models.Offer, map[string]models.EligibilityResult, error) {
	offers, err := c.catalog.ActiveOffers(ctx, ch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load offer catalog")
	}

	// a locked offer keeps applying even after it leaves the channel catalog
	if lockedID != "" && !containsOffer(offers, lockedID) {
		o, err := c.catalog.OfferByID(ctx, lockedID)
		switch {
		case err == nil:
			offers = append(append([]models.Offer(nil), offers...), *o)
		case errors.Is(err, models.ErrOfferNotFound):
			slog.Warn("locked offer missing from catalog", "offer_id", lockedID)
		default:
			return nil, nil, errors.Wrap(err, "load locked offer")
		}
	}

	results, err := c.eval.EvaluateAll(ctx, offers, in)
	if err != nil {
		return nil, nil, err
	}
	if selected != "" && choice != nil {
		for i := range offers {
			if offers[i].ID == selected {
				withChoice := in
				withChoice.SelectedFreeItem = choice
				results[selected] = c.eval.Evaluate(ctx, &offers[i], withChoice)
				break
			}
		}
	}
	return offers, results, nil
}

func containsOffer(offers []models.Offer, id string) bool {
	for i := range offers {
		if offers[i].ID == id {
			return true
		}
	}
	return false
}

// settle applies the selection rules after fresh results arrive. A lock
// forces its offer; an unlocked selection that is no longer eligible is
// cleared together with its free items.
func (c *Coordinator) settle(s *session) {
	if s.lock != nil {
		s.selectedOfferID = s.lock.OfferID
	}
	if s.selectedOfferID == "" {
		s.cart = StripFree(s.cart)
		return
	}

	res, ok := s.results.Get(s.selectedOfferID)
	if ok && res.IsEligible {
		s.cart = Reconcile(s.cart, s.selectedOfferID, &res)
		return
	}

	reason := "Selected offer is no longer available"
	if ok {
		reason = res.Reason
	}
	s.cart = StripFree(s.cart)
	if s.lock != nil {
		s.notice = "Locked offer does not apply to this cart: " + reason
		return
	}
	slog.Info("selected offer no longer eligible",
		"session_id", s.id, "offer_id", s.selectedOfferID, "reason", reason)
	s.selectedOfferID, s.selectedBy, s.freeChoice = "", "", nil
	s.notice = reason
}

// Select makes offerID the session's offer. A locked session or one that
// already consumed an offer ignores the request and explains why in the
// view's notice.
func (c *Coordinator) Select(ctx context.Context, id, offerID string, actor models.Actor) (SessionView, error) {
	if !actor.Valid() {
		return SessionView{}, models.ErrInvalidActor
	}
	s, err := c.session(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		if s.lock.OfferID != offerID {
			slog.Warn("offer selection blocked",
				"action", "selection_blocked", "session_id", id, "actor", actor,
				"requested_offer_id", offerID, "locked_offer_id", s.lock.OfferID)
			s.notice = fmt.Sprintf("Offer %q is already locked for this session", s.lock.Snapshot.Name)
		}
		return s.view(), nil
	}
	if s.usageRecorded {
		slog.Warn("offer selection blocked",
			"action", "selection_blocked", "session_id", id, "actor", actor,
			"requested_offer_id", offerID, "reason", "session_usage_recorded")
		s.notice = "An offer has already been used in this session"
		return s.view(), nil
	}

	offer := s.findOffer(offerID)
	if offer == nil {
		offers, err := c.catalog.ActiveOffers(ctx, s.channel)
		if err != nil {
			return SessionView{}, errors.Wrap(err, "load offer catalog")
		}
		s.offers = offers
		if offer = s.findOffer(offerID); offer == nil {
			return SessionView{}, errors.Wrapf(models.ErrOfferNotFound, "offer %s", offerID)
		}
	}

	res := c.eval.Evaluate(ctx, offer, s.input(nil))
	s.results.Put(s.gen, res)
	if !res.IsEligible {
		s.notice = res.Reason
		return s.view(), nil
	}

	s.selectedOfferID, s.selectedBy, s.freeChoice, s.notice = offerID, actor, nil, ""
	s.cart = Reconcile(s.cart, offerID, &res)
	slog.Info("offer selected", "session_id", id, "offer_id", offerID, "actor", actor)
	return s.view(), nil
}

func (c *Coordinator) Deselect(ctx context.Context, id string, actor models.Actor) (SessionView, error) {
	if !actor.Valid() {
		return SessionView{}, models.ErrInvalidActor
	}
	s, err := c.session(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		slog.Warn("offer deselection blocked",
			"action", "selection_blocked", "session_id", id, "actor", actor, "locked_offer_id", s.lock.OfferID)
		s.notice = fmt.Sprintf("Offer %q is already locked for this session", s.lock.Snapshot.Name)
		return s.view(), nil
	}
	s.selectedOfferID, s.selectedBy, s.freeChoice, s.notice = "", "", nil, ""
	s.cart = StripFree(s.cart)
	return s.view(), nil
}

// ChooseFreeItem resolves the pending add-on choice of the selected offer.
func (c *Coordinator) ChooseFreeItem(ctx context.Context, id, menuItemID string) (SessionView, error) {
	s, err := c.session(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedOfferID == "" {
		return SessionView{}, models.ErrNoOfferSelected
	}
	offer, err := c.offerFor(ctx, s, s.selectedOfferID)
	if err != nil {
		return SessionView{}, err
	}

	choice := &models.FreeItem{ID: menuItemID}
	if item, ok := c.lookupMenuItem(ctx, offer, menuItemID); ok {
		choice = &item
	}
	res := c.eval.Evaluate(ctx, offer, s.input(choice))
	if !res.IsEligible {
		s.notice = res.Reason
		return s.view(), nil
	}
	if res.RequiresUserAction {
		return SessionView{}, errors.Wrapf(models.ErrFreeItemNotOffered, "item %s", menuItemID)
	}

	s.freeChoice, s.notice = choice, ""
	s.results.Put(s.gen, res)
	s.cart = Reconcile(s.cart, offer.ID, &res)
	return s.view(), nil
}

// lookupMenuItem resolves an add-on pick that only a category link of offer
// can cover. Picks matching an item link need no lookup.
func (c *Coordinator) lookupMenuItem(ctx context.Context, offer *models.Offer, id string) (models.FreeItem, bool) {
	if c.menu == nil {
		return models.FreeItem{}, false
	}
	byCategory := false
	for _, l := range offer.Items {
		if l.ItemType != models.ItemAddon {
			continue
		}
		if l.MenuItemID == id {
			return models.FreeItem{}, false
		}
		if l.MenuItemID == "" && l.MenuCategoryID != "" {
			byCategory = true
		}
	}
	if !byCategory {
		return models.FreeItem{}, false
	}
	item, err := c.menu.MenuItem(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrMenuItemNotFound) {
			slog.Warn("menu item lookup failed", "menu_item_id", id, "error", err)
		}
		return models.FreeItem{}, false
	}
	return item, true
}

func (c *Coordinator) offerFor(ctx context.Context, s *session, id string) (*models.Offer, error) {
	if o := s.findOffer(id); o != nil {
		return o, nil
	}
	o, err := c.catalog.OfferByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load offer %s", id)
	}
	return o, nil
}

// Finalize settles the offer for an order. The first order that carries an
// offer binds it to the session and consumes one use of it in the same
// transaction; if another actor got there first, the stored lock is adopted
// and applied instead. When binding fails nothing is locked or applied.
func (c *Coordinator) Finalize(ctx context.Context, id, orderID string, actor models.Actor) (FinalizeResult, error) {
	if !actor.Valid() {
		return FinalizeResult{}, models.ErrInvalidActor
	}
	s, err := c.session(ctx, id)
	if err != nil {
		return FinalizeResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := FinalizeResult{OrderID: orderID, SessionID: id, Discount: decimal.Zero}
	offerID := s.selectedOfferID
	if s.lock != nil {
		offerID = s.lock.OfferID
	}

	var (
		offer *models.Offer
		res   models.EligibilityResult
		usage *models.UsageRecord
	)
	if offerID != "" {
		if offer, err = c.offerFor(ctx, s, offerID); err != nil {
			return out, err
		}
		res = c.eval.Evaluate(ctx, offer, s.input(s.freeChoice))
	}

	if offer != nil && s.lock == nil {
		if !res.IsEligible {
			s.selectedOfferID, s.selectedBy, s.freeChoice = "", "", nil
			out.Notice = res.Reason
			offer = nil
		} else {
			now := c.eval.now()
			want := models.SessionOfferLock{
				OfferID:       offer.ID,
				Snapshot:      offer.Snapshot(now),
				LockedAt:      now,
				LockedByGuest: actor == models.ActorGuest,
			}
			rec := models.UsageRecord{
				ID:            uuid.NewString(),
				OfferID:       offer.ID,
				OrderID:       orderID,
				SessionID:     id,
				CustomerPhone: s.phone,
				Channel:       s.channel,
				Discount:      res.Discount,
				FreeItems:     append([]models.FreeItem{}, res.FreeItems...),
				UsedAt:        now,
			}
			stored, won, err := c.store.BindOffer(ctx, id, want, rec)
			if err != nil {
				if errors.Is(err, models.ErrUsageLimitReached) {
					slog.Warn("offer usage limit reached at finalize",
						"session_id", id, "order_id", orderID, "offer_id", offer.ID)
					s.selectedOfferID, s.selectedBy, s.freeChoice = "", "", nil
					s.cart = StripFree(s.cart)
					s.notice = "Offer usage limit reached"
				}
				return out, errors.Wrap(err, "bind offer to session")
			}
			s.lock = &stored
			if won {
				usage = &rec
				s.usageRecorded = true
			} else {
				slog.Info("session already locked to another offer, adopting it",
					"action", "lock_adopted", "session_id", id, "actor", actor,
					"wanted_offer_id", offer.ID, "locked_offer_id", stored.OfferID)
				out.LockAdopted = true
				if stored.OfferID != offer.ID {
					s.freeChoice = nil
					if offer, err = c.offerFor(ctx, s, stored.OfferID); err != nil {
						return out, err
					}
					res = c.eval.Evaluate(ctx, offer, s.input(nil))
				}
				s.selectedOfferID, s.selectedBy = stored.OfferID, ""
			}
		}
	}

	if offer != nil {
		out.OfferID = offer.ID
		if res.IsEligible {
			s.cart = Reconcile(s.cart, offer.ID, &res)
			out.Applied = true
			out.Discount = res.Discount
			out.FreeItems = res.FreeItems
		} else {
			s.cart = StripFree(s.cart)
			out.Notice = res.Reason
		}
	}
	out.Items = append([]models.CartItem(nil), s.cart...)
	out.CartTotal = models.CartTotal(s.cart)
	out.PayableTotal = out.CartTotal.Sub(out.Discount)
	out.Lock = s.lock

	if usage != nil {
		c.publish(ctx, *usage)
	}

	// the order has gone to the kitchen; the next one starts from an empty cart
	s.gen++
	s.cart = nil
	s.freeChoice = nil
	s.notice = ""
	s.results.Clear(s.gen)

	slog.Info("order finalized", "session_id", id, "order_id", orderID,
		"offer_id", out.OfferID, "applied", out.Applied, "discount", out.Discount.String())
	return out, nil
}

func (c *Coordinator) publish(ctx context.Context, rec models.UsageRecord) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishUsage(ctx, rec); err != nil {
		slog.Error("publish offer usage", "offer_id", rec.OfferID, "order_id", rec.OrderID, "error", err)
	}
}

// End clears the session lock and forgets the in-memory state.
func (c *Coordinator) End(ctx context.Context, id string) error {
	if err := c.store.ClearLock(ctx, id); err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		return errors.Wrap(err, "clear session lock")
	}
	c.mu.Lock()
	delete(c.open, id)
	c.mu.Unlock()
	return nil
}

// RefreshCatalog drops cached offers and re-evaluates every open session.
func (c *Coordinator) RefreshCatalog(ctx context.Context) int {
	if inv, ok := c.catalog.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}

	c.mu.Lock()
	ids := make([]string, 0, len(c.open))
	for id := range c.open {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	refreshed := 0
	for _, id := range ids {
		if _, err := c.Recompute(ctx, id, Event{Kind: EventCatalogChanged}); err != nil {
			slog.Error("recompute after catalog change", "session_id", id, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed
}
