package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// Wednesday, 14:30 UTC
var testNow = time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)

func newTestEvaluator(visits VisitCounter, opts ...EvaluatorOption) *Evaluator {
	base := []EvaluatorOption{
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
		WithLookupTimeout(50 * time.Millisecond),
	}
	return NewEvaluator(visits, append(base, opts...)...)
}

func newOffer(id string, typ models.OfferType, conditions, benefits string, items ...models.OfferItem) *models.Offer {
	o := &models.Offer{
		ID:                 id,
		Name:               id,
		IsActive:           true,
		OfferType:          typ,
		Conditions:         json.RawMessage(conditions),
		Benefits:           json.RawMessage(benefits),
		TargetCustomerType: models.CustomerAll,
		EnabledForDineIn:   true,
		EnabledForTakeaway: true,
		ApplicationType:    models.ApplicationSessionLevel,
		Items:              items,
	}
	o.Terms, o.TermsErr = models.ParseTerms(typ, o.Conditions, o.Benefits)
	return o
}

func link(id string, typ models.ItemType, price int64) models.OfferItem {
	return models.OfferItem{MenuItemID: id, ItemType: typ, Name: id, Price: decimal.NewFromInt(price), Quantity: 1}
}

func line(id string, price int64, qty int) models.CartItem {
	return models.CartItem{ID: id, Name: id, Price: decimal.NewFromInt(price), Quantity: qty}
}

func cartInput(items ...models.CartItem) EvalInput {
	return EvalInput{Items: items, Total: models.CartTotal(items)}
}

func strPtr(s string) *string { return &s }

func assertMoney(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, got.Equal(decimal.NewFromInt(want)), "expected %d, got %s", want, got.String())
}

type fakeVisits struct {
	counts map[string]int
	err    error
	calls  atomic.Int32
}

func (f *fakeVisits) VisitCount(_ context.Context, phone string) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[phone], nil
}

type fakeCatalog struct {
	mu     sync.Mutex
	offers []models.Offer
	err    error
}

func (f *fakeCatalog) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCatalog) CreateOffer(_ context.Context, o *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = "created-" + o.Name
	o.CreatedAt = testNow
	f.offers = append(f.offers, *o)
	return nil
}

func (f *fakeCatalog) set(offers ...*models.Offer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = f.offers[:0]
	for _, o := range offers {
		f.offers = append(f.offers, *o)
	}
}

func (f *fakeCatalog) ActiveOffers(_ context.Context, ch models.Channel) ([]models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Offer
	for _, o := range f.offers {
		if o.IsActive && o.EnabledFor(ch) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeCatalog) OfferByID(_ context.Context, id string) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.offers {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, models.ErrOfferNotFound
}

// fakeStore binds locks and records usage under one mutex, the way the
// repository does both in one transaction.
type fakeStore struct {
	mu       sync.Mutex
	channels map[string]models.Channel
	locks    map[string]*models.SessionOfferLock
	usage    *fakeUsage
}

func newFakeStore(usage *fakeUsage, ids ...string) *fakeStore {
	s := &fakeStore{channels: map[string]models.Channel{}, locks: map[string]*models.SessionOfferLock{}, usage: usage}
	for _, id := range ids {
		s.channels[id] = models.ChannelDineIn
	}
	return s
}

func (f *fakeStore) LoadSession(_ context.Context, id string) (models.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return models.SessionRecord{}, models.ErrSessionNotFound
	}
	rec := models.SessionRecord{ID: id, Channel: ch}
	if l := f.locks[id]; l != nil {
		cp := *l
		rec.Lock = &cp
	}
	return rec, nil
}

func (f *fakeStore) BindOffer(_ context.Context, id string, lock models.SessionOfferLock, rec models.UsageRecord) (models.SessionOfferLock, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return models.SessionOfferLock{}, false, models.ErrSessionNotFound
	}
	if l := f.locks[id]; l != nil {
		return *l, false, nil
	}
	if err := f.usage.record(rec); err != nil {
		return models.SessionOfferLock{}, false, err
	}
	f.locks[id] = &lock
	return lock, true, nil
}

func (f *fakeStore) ClearLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return models.ErrSessionNotFound
	}
	delete(f.locks, id)
	return nil
}

func (f *fakeStore) lock(id string) *models.SessionOfferLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[id]
}

type fakeUsage struct {
	mu      sync.Mutex
	records []models.UsageRecord
	used    map[string]bool
	err     error
}

func (f *fakeUsage) record(rec models.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeUsage) SessionHasUsage(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[id], nil
}

type fakeMenu struct {
	items map[string]models.FreeItem
	calls atomic.Int32
}

func (f *fakeMenu) MenuItem(_ context.Context, id string) (models.FreeItem, error) {
	f.calls.Add(1)
	it, ok := f.items[id]
	if !ok {
		return models.FreeItem{}, models.ErrMenuItemNotFound
	}
	return it, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.UsageRecord
	err    error
}

func (f *fakePublisher) PublishUsage(_ context.Context, rec models.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, rec)
	return f.err
}
