package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/concurrency"
	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

const defaultLoyaltyOrders = 5

var errNoVisitCounter = errors.New("visit counter not configured")

// EvalInput is everything an offer is evaluated against besides the offer
// itself and the clock.
type EvalInput struct {
	Items         []models.CartItem
	Total         decimal.Decimal
	CustomerPhone string
	PromoCode     string
	// OfferItems replaces the offer's own item links when non-nil.
	OfferItems []models.OfferItem
	// SelectedFreeItemID is the add-on the guest picked for item_free_addon.
	SelectedFreeItemID string
	// SelectedFreeItem carries the menu details of the picked add-on. It is
	// needed to match category links and takes precedence over the id.
	SelectedFreeItem *models.FreeItem
}

func (in EvalInput) chosenFreeItem() *models.FreeItem {
	if in.SelectedFreeItem != nil {
		return in.SelectedFreeItem
	}
	if in.SelectedFreeItemID != "" {
		return &models.FreeItem{ID: in.SelectedFreeItemID}
	}
	return nil
}

// grant is what a type-specific calculator hands back on success.
type grant struct {
	discount       decimal.Decimal
	freeItems      []models.FreeItem
	requiresAction bool
	available      []models.OfferItem
}

type Evaluator struct {
	visits        VisitCounter
	loc           *time.Location
	now           func() time.Time
	currency      string
	lookupTimeout time.Duration
	concurrency   int
}

type EvaluatorOption func(*Evaluator)

func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

func WithLocation(loc *time.Location) EvaluatorOption {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithCurrency(symbol string) EvaluatorOption {
	return func(e *Evaluator) { e.currency = symbol }
}

func WithLookupTimeout(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if d > 0 {
			e.lookupTimeout = d
		}
	}
}

func WithConcurrency(n int) EvaluatorOption {
	return func(e *Evaluator) { e.concurrency = n }
}

func NewEvaluator(visits VisitCounter, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		visits:        visits,
		loc:           time.Local,
		now:           time.Now,
		currency:      "₹",
		lookupTimeout: 2 * time.Second,
		concurrency:   8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether offer applies to the cart described by in. It
// never fails: every problem is reported as an ineligible result with a
// reason the guest can read.
func (e *Evaluator) Evaluate(ctx context.Context, offer *models.Offer, in EvalInput) models.EligibilityResult {
	return e.evaluate(ctx, offer, in, e.now(), newVisitMemo(e.visits, e.lookupTimeout))
}

// EvaluateAll scores every offer concurrently against the same input and
// clock reading, and returns only once all of them are done.
func (e *Evaluator) EvaluateAll(ctx context.Context, offers []models.Offer, in EvalInput) (map[string]models.EligibilityResult, error) {
	now := e.now()
	visits := newVisitMemo(e.visits, e.lookupTimeout)
	results := make([]models.EligibilityResult, len(offers))

	err := concurrency.ForEach(ctx, e.concurrency, len(offers), func(ctx context.Context, i int) error {
		results[i] = e.evaluate(ctx, &offers[i], in, now, visits)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "evaluate offers")
	}

	out := make(map[string]models.EligibilityResult, len(offers))
	for i := range offers {
		out[offers[i].ID] = results[i]
	}
	return out, nil
}

func (e *Evaluator) evaluate(ctx context.Context, offer *models.Offer, in EvalInput, at time.Time, visits VisitCounter) (res models.EligibilityResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("offer evaluation panicked", "offer_id", offer.ID, "panic", r)
			res = models.Ineligible(offer.ID, "Offer could not be evaluated")
		}
	}()

	now := at.In(e.loc)

	if !offer.IsActive {
		return models.Ineligible(offer.ID, "Offer is not active")
	}
	if reason := e.termsReason(offer); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if reason := e.checkDates(offer, now); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if reason := e.checkHours(offer, now); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if reason := e.checkDays(offer, now); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if reason := e.checkMinAmount(offer, in.Total); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if reason := e.checkCustomer(ctx, offer, in.CustomerPhone, visits); reason != "" {
		return models.Ineligible(offer.ID, reason)
	}
	if offer.UsageLimit != nil && offer.UsageCount >= *offer.UsageLimit {
		return models.Ineligible(offer.ID, "Offer usage limit reached")
	}

	g, reason := e.calculate(offer, in)
	if reason != "" {
		return models.Ineligible(offer.ID, reason)
	}

	return models.EligibilityResult{
		OfferID:            offer.ID,
		IsEligible:         true,
		Discount:           clampDiscount(roundAmount(g.discount), in.Total),
		FreeItems:          g.freeItems,
		RequiresUserAction: g.requiresAction,
		ActionType:         actionFor(g.requiresAction),
		AvailableFreeItems: g.available,
	}
}

func actionFor(requiresAction bool) models.ActionType {
	if requiresAction {
		return models.ActionSelectFreeItem
	}
	return ""
}

func (e *Evaluator) termsReason(offer *models.Offer) string {
	if offer.Terms == nil {
		var fe *models.FieldError
		if errors.As(offer.TermsErr, &fe) {
			return "Offer is missing " + fe.Field
		}
		return "Unknown offer type"
	}
	if offer.Terms.Type() != offer.OfferType {
		return "Unknown offer type"
	}
	return ""
}

func (e *Evaluator) day(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

// checkDates compares calendar days, so both ends of the window are inclusive.
func (e *Evaluator) checkDates(offer *models.Offer, now time.Time) string {
	today := e.day(now)
	if offer.StartDate != nil && today.Before(e.day(*offer.StartDate)) {
		return "Offer not started yet"
	}
	if offer.EndDate != nil && today.After(e.day(*offer.EndDate)) {
		return "Offer has expired"
	}
	return ""
}

func (e *Evaluator) checkHours(offer *models.Offer, now time.Time) string {
	if offer.ValidHoursStart == nil || offer.ValidHoursEnd == nil {
		return ""
	}
	start, err := parseClock(*offer.ValidHoursStart)
	if err != nil {
		return "Offer has an invalid time window"
	}
	end, err := parseClock(*offer.ValidHoursEnd)
	if err != nil {
		return "Offer has an invalid time window"
	}

	cur := now.Hour()*60 + now.Minute()
	inside := start <= cur && cur <= end
	if start > end {
		// window wraps midnight
		inside = cur >= start || cur <= end
	}
	if !inside {
		return fmt.Sprintf("Offer valid only between %s and %s", clock12(start), clock12(end))
	}
	return ""
}

func (e *Evaluator) checkDays(offer *models.Offer, now time.Time) string {
	if len(offer.ValidDays) == 0 {
		return ""
	}
	today := strings.ToLower(now.Weekday().String())
	names := make([]string, 0, len(offer.ValidDays))
	for _, d := range offer.ValidDays {
		if strings.ToLower(strings.TrimSpace(d)) == today {
			return ""
		}
		names = append(names, titleDay(d))
	}
	return "Offer valid only on " + strings.Join(names, ", ")
}

func (e *Evaluator) checkMinAmount(offer *models.Offer, total decimal.Decimal) string {
	// min_order_discount is gated on its own threshold_amount instead
	if _, ok := offer.Terms.(*models.MinOrderDiscountTerms); ok {
		return ""
	}
	minAmount := offer.Terms.Common().MinAmount
	if minAmount == nil || !total.LessThan(*minAmount) {
		return ""
	}
	return fmt.Sprintf("Minimum order of %s required. Add %s more",
		e.money(*minAmount), e.money(minAmount.Sub(total)))
}

func (e *Evaluator) checkCustomer(ctx context.Context, offer *models.Offer, phone string, visits VisitCounter) string {
	switch offer.TargetCustomerType {
	case models.CustomerFirstTime, models.CustomerReturning, models.CustomerLoyalty:
	default:
		// "all" and the looser admin-only segments do not restrict evaluation
		return ""
	}

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "Sign in to check eligibility"
	}
	count, err := visits.VisitCount(ctx, phone)
	if err != nil {
		slog.Warn("customer visit lookup failed", "offer_id", offer.ID, "error", err)
		return "Sign in to check eligibility"
	}

	switch offer.TargetCustomerType {
	case models.CustomerFirstTime:
		if count != 0 {
			return "Offer valid for first-time customers only"
		}
	case models.CustomerReturning:
		if count == 0 {
			return "Offer valid for returning customers only"
		}
	case models.CustomerLoyalty:
		need := defaultLoyaltyOrders
		if n := offer.Terms.Common().MinOrdersCount; n != nil {
			need = *n
		}
		if count < need {
			return fmt.Sprintf("Offer valid after %s. You have %s",
				plural(need, "order"), plural(count, "order"))
		}
	}
	return ""
}
