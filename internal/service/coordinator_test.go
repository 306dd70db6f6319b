package service

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type harness struct {
	coord   *Coordinator
	catalog *fakeCatalog
	store   *fakeStore
	usage   *fakeUsage
	pub     *fakePublisher
	menu    *fakeMenu
}

func newHarness(t *testing.T, offers ...*models.Offer) *harness {
	t.Helper()
	h := &harness{
		catalog: &fakeCatalog{},
		usage:   &fakeUsage{used: map[string]bool{}},
		pub:     &fakePublisher{},
		menu:    &fakeMenu{items: map[string]models.FreeItem{}},
	}
	h.store = newFakeStore(h.usage, "s-1", "s-2")
	h.catalog.set(offers...)
	h.coord = NewCoordinator(newTestEvaluator(&fakeVisits{}), h.catalog, h.store, h.usage,
		WithPublisher(h.pub), WithMenu(h.menu), WithOfferWriter(h.catalog))
	return h
}

func (h *harness) setCart(t *testing.T, id string, items ...models.CartItem) SessionView {
	t.Helper()
	v, err := h.coord.Recompute(context.Background(), id, Event{Kind: EventCartChanged, Cart: items})
	require.NoError(t, err)
	return v
}

func offerX() *models.Offer {
	return newOffer("offer-x", models.OfferCartPercentage, `{"min_amount":500}`, `{"discount_percentage":10}`)
}

func offerY() *models.Offer {
	return newOffer("offer-y", models.OfferCartFlatAmount, `{}`, `{"discount_amount":50}`)
}

func bogoOffer() *models.Offer {
	return newOffer("bogo", models.OfferItemBuyGetFree, `{"buy_quantity":2}`, `{"get_quantity":1}`,
		link("burger", models.ItemBuy, 200),
		link("coke", models.ItemGetFree, 60))
}

func freeLines(cart []models.CartItem) []models.CartItem {
	var out []models.CartItem
	for _, it := range cart {
		if it.IsFree {
			out = append(out, it)
		}
	}
	return out
}

func TestRecomputeEvaluatesWholeCatalog(t *testing.T) {
	h := newHarness(t, offerX(), offerY())

	v := h.setCart(t, "s-1", line("thali", 300, 3))

	require.Len(t, v.Results, 2)
	assert.True(t, v.Results["offer-x"].IsEligible)
	assert.True(t, v.Results["offer-y"].IsEligible)
	assert.Equal(t, "offer-x", v.BestOfferID)
	assert.Empty(t, v.SelectedOfferID)
	assertMoney(t, 900, v.CartTotal)
	assertMoney(t, 900, v.PayableTotal)
	assert.False(t, v.SelectorDisabled)
}

func TestRecomputeUnknownSession(t *testing.T) {
	h := newHarness(t, offerX())
	_, err := h.coord.Recompute(context.Background(), "nope", Event{Kind: EventCartChanged})
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))
}

func TestRecomputeRejectsInvalidChannel(t *testing.T) {
	h := newHarness(t, offerX())
	_, err := h.coord.Recompute(context.Background(), "s-1", Event{Kind: EventChannelChanged, Channel: "delivery"})
	assert.True(t, errors.Is(err, models.ErrInvalidChannel))
}

func TestChannelGatesCatalog(t *testing.T) {
	y := offerY()
	y.EnabledForTakeaway = false
	h := newHarness(t, offerX(), y)
	h.setCart(t, "s-1", line("thali", 300, 3))

	v, err := h.coord.Recompute(context.Background(), "s-1", Event{Kind: EventChannelChanged, Channel: models.ChannelTakeaway})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelTakeaway, v.Channel)
	assert.Contains(t, v.Results, "offer-x")
	assert.NotContains(t, v.Results, "offer-y")
}

func TestSelectInjectsFreeItems(t *testing.T) {
	h := newHarness(t, bogoOffer())
	h.setCart(t, "s-1", line("burger", 200, 2))

	v, err := h.coord.Select(context.Background(), "s-1", "bogo", models.ActorGuest)
	require.NoError(t, err)

	assert.Equal(t, "bogo", v.SelectedOfferID)
	assert.Equal(t, models.ActorGuest, v.SelectedBy)
	free := freeLines(v.Cart)
	require.Len(t, free, 1)
	assert.Equal(t, "coke", free[0].ID)
	assert.Equal(t, "bogo", free[0].LinkedOfferID)
	assert.True(t, free[0].Price.IsZero())
	assertMoney(t, 400, v.CartTotal)
}

func TestRemovingQualifyingItemDeselectsAndDropsFreeItems(t *testing.T) {
	h := newHarness(t, bogoOffer())
	v := h.setCart(t, "s-1", line("burger", 200, 2))
	v, err := h.coord.Select(context.Background(), "s-1", "bogo", models.ActorGuest)
	require.NoError(t, err)
	require.Len(t, freeLines(v.Cart), 1)

	// the UI sends the cart back with the injected free line still in it
	cart := append([]models.CartItem{line("burger", 200, 1)}, freeLines(v.Cart)...)
	v = h.setCart(t, "s-1", cart...)

	assert.Empty(t, v.SelectedOfferID)
	assert.Empty(t, freeLines(v.Cart))
	assert.Equal(t, "Add 1 more qualifying item to unlock", v.Notice)
	assert.Nil(t, v.Selected)
	assertMoney(t, 0, v.Discount)
}

func TestSelectIneligibleOfferExplainsWhy(t *testing.T) {
	h := newHarness(t, offerX())
	h.setCart(t, "s-1", line("thali", 300, 1))

	v, err := h.coord.Select(context.Background(), "s-1", "offer-x", models.ActorStaff)
	require.NoError(t, err)
	assert.Empty(t, v.SelectedOfferID)
	assert.Equal(t, "Minimum order of ₹500 required. Add ₹200 more", v.Notice)
}

func TestSelectValidation(t *testing.T) {
	h := newHarness(t, offerX())
	h.setCart(t, "s-1", line("thali", 300, 3))

	_, err := h.coord.Select(context.Background(), "s-1", "offer-x", models.Actor("manager"))
	assert.True(t, errors.Is(err, models.ErrInvalidActor))

	_, err = h.coord.Select(context.Background(), "s-1", "missing", models.ActorGuest)
	assert.True(t, errors.Is(err, models.ErrOfferNotFound))
}

func TestLockedOfferCannotBeChanged(t *testing.T) {
	h := newHarness(t, offerX(), offerY())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-x", models.ActorGuest)
	require.NoError(t, err)

	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	require.NotNil(t, res.Lock)
	assert.Equal(t, "offer-x", res.Lock.OfferID)
	assert.True(t, res.Lock.LockedByGuest)
	assert.Equal(t, "offer-x", res.Lock.Snapshot.OfferID)

	h.setCart(t, "s-1", line("thali", 300, 3))
	v, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorStaff)
	require.NoError(t, err)
	assert.Equal(t, "offer-x", v.SelectedOfferID)
	assert.Contains(t, v.Notice, "already locked")
	assert.True(t, v.SelectorDisabled)

	v, err = h.coord.Deselect(ctx, "s-1", models.ActorStaff)
	require.NoError(t, err)
	assert.Equal(t, "offer-x", v.SelectedOfferID)

	assert.Equal(t, "offer-x", h.store.lock("s-1").OfferID)
}

func TestScenarioStaffCannotOverrideGuestLock(t *testing.T) {
	h := newHarness(t, offerX(), offerY())
	ctx := context.Background()

	// guest picks X and orders
	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-x", models.ActorGuest)
	require.NoError(t, err)
	first, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assertMoney(t, 90, first.Discount)
	assertMoney(t, 810, first.PayableTotal)

	// staff tries Y on the next round
	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err = h.coord.Select(ctx, "s-1", "offer-y", models.ActorStaff)
	require.NoError(t, err)
	second, err := h.coord.Finalize(ctx, "s-1", "order-2", models.ActorStaff)
	require.NoError(t, err)

	assert.Equal(t, "offer-x", second.OfferID)
	assert.True(t, second.Applied)
	assertMoney(t, 90, second.Discount)
	assert.False(t, second.LockAdopted)
	assert.Equal(t, "offer-x", h.store.lock("s-1").OfferID)

	require.Len(t, h.usage.records, 1)
	assert.Equal(t, "order-1", h.usage.records[0].OrderID)
	assert.Equal(t, "offer-x", h.usage.records[0].OfferID)
	assertMoney(t, 90, h.usage.records[0].Discount)
}

func TestFinalizeAdoptsLockWonElsewhere(t *testing.T) {
	h := newHarness(t, offerX(), offerY())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorStaff)
	require.NoError(t, err)

	// the guest's device binds X first
	x := offerX()
	h.store.mu.Lock()
	h.store.locks["s-1"] = &models.SessionOfferLock{OfferID: "offer-x", Snapshot: x.Snapshot(testNow), LockedAt: testNow, LockedByGuest: true}
	h.store.mu.Unlock()

	res, err := h.coord.Finalize(ctx, "s-1", "order-9", models.ActorStaff)
	require.NoError(t, err)

	assert.True(t, res.LockAdopted)
	assert.Equal(t, "offer-x", res.OfferID)
	assert.True(t, res.Applied)
	assertMoney(t, 90, res.Discount)
	assert.True(t, res.Lock.LockedByGuest)
	assert.Empty(t, h.usage.records)
	assert.Equal(t, "offer-x", h.store.lock("s-1").OfferID)

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "offer-x", v.SelectedOfferID)
	assert.True(t, v.SelectorDisabled)
}

func TestLockedOfferStaysSelectedWhenIneligible(t *testing.T) {
	h := newHarness(t, offerX())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-x", models.ActorGuest)
	require.NoError(t, err)
	_, err = h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)

	v := h.setCart(t, "s-1", line("chai", 30, 1))
	assert.Equal(t, "offer-x", v.SelectedOfferID)
	assert.Equal(t, "Locked offer does not apply to this cart: Minimum order of ₹500 required. Add ₹470 more", v.Notice)
	assertMoney(t, 0, v.Discount)
}

func TestSessionWithRecordedUsageCannotSelect(t *testing.T) {
	h := newHarness(t, offerX())
	h.usage.used["s-2"] = true
	h.setCart(t, "s-2", line("thali", 300, 3))

	v, err := h.coord.Select(context.Background(), "s-2", "offer-x", models.ActorGuest)
	require.NoError(t, err)
	assert.Empty(t, v.SelectedOfferID)
	assert.True(t, v.SelectorDisabled)
	assert.Equal(t, "An offer has already been used in this session", v.Notice)
}

func TestFreeAddonChoice(t *testing.T) {
	addon := newOffer("addon", models.OfferItemFreeAddon, `{}`, `{"max_free_price":50}`,
		link("thali", models.ItemBuy, 300),
		link("raita", models.ItemAddon, 40),
		link("lassi", models.ItemAddon, 80))
	h := newHarness(t, addon)
	ctx := context.Background()

	_, err := h.coord.ChooseFreeItem(ctx, "s-1", "raita")
	assert.True(t, errors.Is(err, models.ErrNoOfferSelected))

	h.setCart(t, "s-1", line("thali", 300, 1))
	v, err := h.coord.Select(ctx, "s-1", "addon", models.ActorGuest)
	require.NoError(t, err)
	require.NotNil(t, v.Selected)
	assert.True(t, v.Selected.RequiresUserAction)
	assert.Empty(t, freeLines(v.Cart))

	_, err = h.coord.ChooseFreeItem(ctx, "s-1", "lassi")
	assert.True(t, errors.Is(err, models.ErrFreeItemNotOffered))

	v, err = h.coord.ChooseFreeItem(ctx, "s-1", "raita")
	require.NoError(t, err)
	free := freeLines(v.Cart)
	require.Len(t, free, 1)
	assert.Equal(t, "raita", free[0].ID)

	// the choice survives a recompute
	v, err = h.coord.Recompute(ctx, "s-1", Event{Kind: EventCustomerChanged, Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "addon", v.SelectedOfferID)
	require.Len(t, freeLines(v.Cart), 1)

	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	require.Len(t, res.FreeItems, 1)
	require.Len(t, h.usage.records, 1)
	assert.Equal(t, "raita", h.usage.records[0].FreeItems[0].ID)
	assert.Equal(t, "9876543210", h.usage.records[0].CustomerPhone)
}

func TestFinalizeWithoutOffer(t *testing.T) {
	h := newHarness(t, offerX())
	h.setCart(t, "s-1", line("thali", 300, 3))

	res, err := h.coord.Finalize(context.Background(), "s-1", "order-1", models.ActorStaff)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, res.OfferID)
	assert.Nil(t, res.Lock)
	assertMoney(t, 900, res.PayableTotal)
	assert.Nil(t, h.store.lock("s-1"))
	assert.Empty(t, h.usage.records)
}

func TestFinalizePublishesUsageAndIgnoresPublishFailure(t *testing.T) {
	h := newHarness(t, offerY())
	h.pub.err = errors.New("broker down")
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 1))
	_, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorStaff)
	require.NoError(t, err)

	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorStaff)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.Len(t, h.pub.events, 1)
	assert.Equal(t, models.ChannelDineIn, h.pub.events[0].Channel)
	assert.Equal(t, h.usage.records[0].ID, h.pub.events[0].ID)

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, v.Cart)
	assert.Empty(t, v.Results)
}

func TestFinalizeAtUsageLimitBindsNothing(t *testing.T) {
	h := newHarness(t, offerY())
	h.usage.err = models.ErrUsageLimitReached
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 1))
	_, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorGuest)
	require.NoError(t, err)

	_, err = h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	assert.True(t, errors.Is(err, models.ErrUsageLimitReached))
	assert.Nil(t, h.store.lock("s-1"))
	assert.Empty(t, h.pub.events)

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, v.SelectedOfferID)
	assert.Nil(t, v.Lock)
	assert.False(t, v.SelectorDisabled)
	assert.Equal(t, "Offer usage limit reached", v.Notice)

	// retrying the order must not hand out the exhausted offer
	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assertMoney(t, 0, res.Discount)
	assertMoney(t, 300, res.PayableTotal)
	assert.Nil(t, res.Lock)
	assert.Nil(t, h.store.lock("s-1"))
	assert.Empty(t, h.usage.records)
}

func TestFinalizeRetryAfterUsageFailureRecordsOnce(t *testing.T) {
	h := newHarness(t, offerY())
	h.usage.err = errors.New("connection reset")
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 1))
	_, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorGuest)
	require.NoError(t, err)

	_, err = h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.Error(t, err)
	assert.Nil(t, h.store.lock("s-1"))

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "offer-y", v.SelectedOfferID)
	assert.Nil(t, v.Lock)

	h.usage.mu.Lock()
	h.usage.err = nil
	h.usage.mu.Unlock()

	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assertMoney(t, 50, res.Discount)
	require.NotNil(t, res.Lock)
	assert.Equal(t, "offer-y", h.store.lock("s-1").OfferID)
	require.Len(t, h.usage.records, 1)
	assert.Equal(t, "order-1", h.usage.records[0].OrderID)
	assert.Len(t, h.pub.events, 1)

	// later orders apply the lock without another usage row
	h.setCart(t, "s-1", line("thali", 300, 1))
	res, err = h.coord.Finalize(ctx, "s-1", "order-2", models.ActorStaff)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Len(t, h.usage.records, 1)
}

func TestFailedRecomputeShowsNoStaleDiscount(t *testing.T) {
	h := newHarness(t, offerY())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 1))
	v, err := h.coord.Select(ctx, "s-1", "offer-y", models.ActorGuest)
	require.NoError(t, err)
	assertMoney(t, 50, v.Discount)

	h.catalog.fail(errors.New("db down"))
	_, err = h.coord.Recompute(ctx, "s-1", Event{Kind: EventCartChanged, Cart: []models.CartItem{line("chai", 20, 1)}})
	require.Error(t, err)

	v, err = h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assertMoney(t, 20, v.CartTotal)
	assertMoney(t, 0, v.Discount)
	assertMoney(t, 20, v.PayableTotal)
	assert.True(t, v.ResultsStale)
	assert.Empty(t, v.Results)
	assert.Nil(t, v.Selected)
	assert.Equal(t, "Offers could not be checked right now", v.Notice)

	h.catalog.fail(nil)
	v, err = h.coord.Recompute(ctx, "s-1", Event{Kind: EventCatalogChanged})
	require.NoError(t, err)
	assert.False(t, v.ResultsStale)
	assert.Equal(t, "offer-y", v.SelectedOfferID)
	assertMoney(t, 20, v.Discount)
	assertMoney(t, 0, v.PayableTotal)
}

func TestFailedRecomputeDropsFreeLines(t *testing.T) {
	h := newHarness(t, bogoOffer())
	ctx := context.Background()

	h.setCart(t, "s-1", line("burger", 200, 2))
	v, err := h.coord.Select(ctx, "s-1", "bogo", models.ActorGuest)
	require.NoError(t, err)
	require.Len(t, freeLines(v.Cart), 1)

	h.catalog.fail(errors.New("db down"))
	_, err = h.coord.Recompute(ctx, "s-1", Event{Kind: EventCustomerChanged, Phone: "9876543210"})
	require.Error(t, err)

	v, err = h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, freeLines(v.Cart))
	assert.True(t, v.ResultsStale)
	assertMoney(t, 0, v.Discount)
}

func TestChooseFreeItemFromCategory(t *testing.T) {
	addon := newOffer("addon", models.OfferItemFreeAddon, `{}`, `{"max_free_price":50}`,
		link("thali", models.ItemBuy, 300),
		models.OfferItem{MenuCategoryID: "sides", ItemType: models.ItemAddon})
	h := newHarness(t, addon)
	h.menu.items["papad"] = models.FreeItem{ID: "papad", Name: "Papad", Price: decimal.NewFromInt(30), CategoryID: "sides"}
	h.menu.items["fries"] = models.FreeItem{ID: "fries", Name: "Fries", Price: decimal.NewFromInt(90), CategoryID: "sides"}
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 1))
	v, err := h.coord.Select(ctx, "s-1", "addon", models.ActorGuest)
	require.NoError(t, err)
	require.NotNil(t, v.Selected)
	assert.True(t, v.Selected.RequiresUserAction)

	_, err = h.coord.ChooseFreeItem(ctx, "s-1", "fries")
	assert.True(t, errors.Is(err, models.ErrFreeItemNotOffered))
	_, err = h.coord.ChooseFreeItem(ctx, "s-1", "unknown")
	assert.True(t, errors.Is(err, models.ErrFreeItemNotOffered))

	v, err = h.coord.ChooseFreeItem(ctx, "s-1", "papad")
	require.NoError(t, err)
	free := freeLines(v.Cart)
	require.Len(t, free, 1)
	assert.Equal(t, "papad", free[0].ID)
	assert.Equal(t, "sides", free[0].CategoryID)

	v, err = h.coord.Recompute(ctx, "s-1", Event{Kind: EventPromoCodeChanged, PromoCode: "X"})
	require.NoError(t, err)
	require.Len(t, freeLines(v.Cart), 1)

	res, err := h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	require.Len(t, h.usage.records, 1)
	require.Len(t, res.FreeItems, 1)
	assert.Equal(t, "papad", h.usage.records[0].FreeItems[0].ID)
	assertMoney(t, 30, h.usage.records[0].FreeItems[0].Price)
}

func TestCreateOfferRefreshesOpenSessions(t *testing.T) {
	h := newHarness(t, offerX())
	ctx := context.Background()
	h.setCart(t, "s-1", line("thali", 300, 1))

	_, err := h.coord.CreateOffer(ctx, newOffer("Code", models.OfferPromoCode, `{}`, `{"discount_amount":10}`))
	var fe *models.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "promo_code", fe.Field)

	created, err := h.coord.CreateOffer(ctx, &models.Offer{
		Name:             "Flat 40",
		IsActive:         true,
		OfferType:        models.OfferCartFlatAmount,
		Benefits:         []byte(`{"discount_amount":40}`),
		EnabledForDineIn: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "created-Flat 40", created.ID)
	assert.Equal(t, models.CustomerAll, created.TargetCustomerType)
	assert.Equal(t, models.ApplicationSessionLevel, created.ApplicationType)

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	require.Contains(t, v.Results, created.ID)
	assert.True(t, v.Results[created.ID].IsEligible)
	assert.Equal(t, created.ID, v.BestOfferID)
}

func TestEndClearsLock(t *testing.T) {
	h := newHarness(t, offerX())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-x", models.ActorGuest)
	require.NoError(t, err)
	_, err = h.coord.Finalize(ctx, "s-1", "order-1", models.ActorGuest)
	require.NoError(t, err)
	require.NotNil(t, h.store.lock("s-1"))

	require.NoError(t, h.coord.End(ctx, "s-1"))
	assert.Nil(t, h.store.lock("s-1"))

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Nil(t, v.Lock)
	assert.Empty(t, v.SelectedOfferID)

	assert.NoError(t, h.coord.End(ctx, "unknown"))
}

func TestRefreshCatalogDeselectsRemovedOffer(t *testing.T) {
	h := newHarness(t, offerX(), offerY())
	ctx := context.Background()

	h.setCart(t, "s-1", line("thali", 300, 3))
	_, err := h.coord.Select(ctx, "s-1", "offer-x", models.ActorGuest)
	require.NoError(t, err)

	h.catalog.set(offerY())
	assert.Equal(t, 1, h.coord.RefreshCatalog(ctx))

	v, err := h.coord.View(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, v.SelectedOfferID)
	assert.Equal(t, "Selected offer is no longer available", v.Notice)
	assert.NotContains(t, v.Results, "offer-x")
	assert.Equal(t, "offer-y", v.BestOfferID)
}

func TestEvaluateOfferComputesTotal(t *testing.T) {
	h := newHarness(t, offerX())
	res, err := h.coord.EvaluateOffer(context.Background(), "offer-x", EvalInput{Items: []models.CartItem{line("thali", 300, 2)}})
	require.NoError(t, err)
	require.True(t, res.IsEligible, res.Reason)
	assertMoney(t, 60, res.Discount)

	_, err = h.coord.EvaluateOffer(context.Background(), "missing", EvalInput{})
	assert.True(t, errors.Is(err, models.ErrOfferNotFound))
}
