// Package testutil provides test doubles for the marketplace API.
package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// FakeAPI is a scripted in-memory implementation of spapi.API. Responses
// are looked up per ASIN; failures are queued per operation and consumed
// one call at a time, so throttle-then-succeed sequences are easy to script.
type FakeAPI struct {
	mu sync.Mutex

	CatalogItems map[string]*spapi.CatalogItem
	Offers       map[string]*spapi.OfferSet
	Pricing      map[string]spapi.PricingProduct
	Fees         map[string]*spapi.FeesEstimate

	failures map[string][]error
	calls    []Call
}

// Call records one invocation of a fake operation.
type Call struct {
	Operation string
	ASINs     []string
}

// NewFakeAPI creates an empty fake.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		CatalogItems: make(map[string]*spapi.CatalogItem),
		Offers:       make(map[string]*spapi.OfferSet),
		Pricing:      make(map[string]spapi.PricingProduct),
		Fees:         make(map[string]*spapi.FeesEstimate),
		failures:     make(map[string][]error),
	}
}

// FailNext queues errors for the named operation; each subsequent call pops
// one until the queue is empty.
func (f *FakeAPI) FailNext(operation string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation] = append(f.failures[operation], errs...)
}

// Calls returns all recorded invocations in order.
func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how often the named operation was invoked.
func (f *FakeAPI) CallCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

func (f *FakeAPI) record(operation string, asins ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: operation, ASINs: asins})

	queue := f.failures[operation]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failures[operation] = queue[1:]
	return err
}

// GetCatalogItem implements spapi.API.
func (f *FakeAPI) GetCatalogItem(ctx context.Context, asin string) (*spapi.CatalogItem, error) {
	if err := f.record("getCatalogItem", asin); err != nil {
		return nil, err
	}
	if item, ok := f.CatalogItems[asin]; ok {
		return item, nil
	}
	return &spapi.CatalogItem{ASIN: asin}, nil
}

// GetItemOffers implements spapi.API.
func (f *FakeAPI) GetItemOffers(ctx context.Context, asin string) (*spapi.OfferSet, error) {
	if err := f.record("getItemOffers", asin); err != nil {
		return nil, err
	}
	if offers, ok := f.Offers[asin]; ok {
		return offers, nil
	}
	return &spapi.OfferSet{}, nil
}

// GetCompetitivePricing implements spapi.API.
func (f *FakeAPI) GetCompetitivePricing(ctx context.Context, asins []string) ([]spapi.PricingProduct, error) {
	if err := f.record("getCompetitivePricing", asins...); err != nil {
		return nil, err
	}

	var products []spapi.PricingProduct
	for _, asin := range asins {
		if product, ok := f.Pricing[asin]; ok {
			products = append(products, product)
		}
	}
	return products, nil
}

// GetFeesEstimate implements spapi.API.
func (f *FakeAPI) GetFeesEstimate(ctx context.Context, asin string, price decimal.Decimal) (*spapi.FeesEstimate, error) {
	if err := f.record("getFeesEstimate", asin); err != nil {
		return nil, err
	}
	if fees, ok := f.Fees[asin]; ok {
		return fees, nil
	}
	return &spapi.FeesEstimate{}, nil
}

// Throttled builds the rate-limit rejection an SP-API implementation would
// return for the named operation.
func Throttled(operation string) error {
	return &spapi.APIError{
		Operation:  operation,
		StatusCode: 429,
		Class:      spapi.ErrorClassThrottled,
		Message:    "429 Too Many Requests",
	}
}
