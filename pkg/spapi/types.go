// Package spapi defines the typed payloads and capability interface for the
// marketplace's product-data endpoints, plus an HTTP implementation.
//
// Remote responses are loosely structured nested objects; every nesting level
// that can be absent is a pointer or slice here so "absent" stays a first-class
// value instead of a scattering of nil checks at use sites.
package spapi

import (
	"context"

	"github.com/shopspring/decimal"
)

// API is the set of remote read-only capabilities the engine consumes.
// Implementations signal throttling with an *APIError of class
// ErrorClassThrottled so the caller can distinguish it from other failures.
type API interface {
	// GetCatalogItem fetches catalog attributes, summaries and sales ranks.
	GetCatalogItem(ctx context.Context, asin string) (*CatalogItem, error)

	// GetItemOffers fetches per-seller offers for one item (condition New).
	GetItemOffers(ctx context.Context, asin string) (*OfferSet, error)

	// GetCompetitivePricing fetches bulk competitive pricing for up to
	// MaxPricingBatch items in one call.
	GetCompetitivePricing(ctx context.Context, asins []string) ([]PricingProduct, error)

	// GetFeesEstimate fetches the fee estimate for selling one item at the
	// given price.
	GetFeesEstimate(ctx context.Context, asin string, price decimal.Decimal) (*FeesEstimate, error)
}

// MaxPricingBatch is the documented item limit of the bulk pricing endpoint.
const MaxPricingBatch = 20

// Money is a monetary amount with its currency.
type Money struct {
	CurrencyCode string          `json:"CurrencyCode"`
	Amount       decimal.Decimal `json:"Amount"`
}

// Value returns the amount, or zero when the Money is absent.
func (m *Money) Value() decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m.Amount
}

// Points is a loyalty-point rebate attached to an offer or price. The
// marketplace reports either a point count or a monetary value; points
// convert 1:1 to currency units.
type Points struct {
	PointsNumber        int    `json:"PointsNumber"`
	PointsMonetaryValue *Money `json:"PointsMonetaryValue,omitempty"`
}

// Value returns the point rebate as a currency amount: the monetary value
// when reported, otherwise the point count at 1:1. Absent points are zero.
func (p *Points) Value() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.PointsMonetaryValue != nil {
		return p.PointsMonetaryValue.Amount
	}
	return decimal.NewFromInt(int64(p.PointsNumber))
}

// CatalogItem is the catalog endpoint payload for one item.
type CatalogItem struct {
	ASIN       string           `json:"asin"`
	Summaries  []ItemSummary    `json:"summaries,omitempty"`
	Attributes *ItemAttributes  `json:"attributes,omitempty"`
	SalesRanks []SalesRankGroup `json:"salesRanks,omitempty"`
}

// ItemSummary carries the display attributes of a catalog item.
type ItemSummary struct {
	ItemName  string `json:"itemName"`
	BrandName string `json:"brandName"`
}

// ItemAttributes is the attribute map subset the engine reads.
type ItemAttributes struct {
	ExternalIdentifiers []ExternalIdentifier `json:"externally_assigned_product_identifier,omitempty"`
	PackageDimensions   []PackageDimensions  `json:"item_package_dimensions,omitempty"`
	ListPrice           []AttributePrice     `json:"list_price,omitempty"`
}

// ExternalIdentifier is an externally assigned product code (ean, upc, gtin).
type ExternalIdentifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PackageDimensions holds one measured package size.
type PackageDimensions struct {
	Height Measurement `json:"height"`
	Length Measurement `json:"length"`
	Width  Measurement `json:"width"`
}

// Measurement is a single dimension value with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// AttributePrice is a price carried inside the catalog attribute map.
type AttributePrice struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// SalesRankGroup is one sales-rank classification with its ranked entries.
// The first group is the major category.
type SalesRankGroup struct {
	Ranks []SalesRank `json:"ranks"`
}

// SalesRank is one rank entry inside a group.
type SalesRank struct {
	Title string `json:"title"`
	Rank  int    `json:"rank"`
}

// OfferSet is the per-item offers endpoint payload.
type OfferSet struct {
	Offers []Offer `json:"Offers,omitempty"`
}

// Offer is one seller's offer for an item.
type Offer struct {
	SellerID       string  `json:"SellerId"`
	SubCondition   string  `json:"SubCondition"`
	ListingPrice   *Money  `json:"ListingPrice,omitempty"`
	Shipping       *Money  `json:"Shipping,omitempty"`
	Points         *Points `json:"Points,omitempty"`
	IsBuyBoxWinner bool    `json:"IsBuyBoxWinner"`
}

// Total returns listing price plus shipping, treating absent parts as zero.
func (o *Offer) Total() decimal.Decimal {
	return o.ListingPrice.Value().Add(o.Shipping.Value())
}

// PricingProduct is one item's entry in the bulk pricing payload.
type PricingProduct struct {
	ASIN    string          `json:"ASIN"`
	Status  string          `json:"status"`
	Product *PricingDetails `json:"Product,omitempty"`
}

// PricingDetails nests the competitive pricing and lowest-listing sections.
type PricingDetails struct {
	CompetitivePricing  *CompetitivePricing  `json:"CompetitivePricing,omitempty"`
	LowestOfferListings []LowestOfferListing `json:"LowestOfferListings,omitempty"`
}

// CompetitivePricing holds the marketplace's competitive (cart) prices.
type CompetitivePricing struct {
	CompetitivePrices []CompetitivePrice `json:"CompetitivePrices,omitempty"`
}

// CompetitivePrice is one competitive price entry.
type CompetitivePrice struct {
	Condition string    `json:"condition"`
	Price     *PriceSet `json:"Price,omitempty"`
}

// LowestOfferListing is one entry of the lowest-priced listings section.
type LowestOfferListing struct {
	Qualifiers *ListingQualifiers `json:"Qualifiers,omitempty"`
	Price      *PriceSet          `json:"Price,omitempty"`
}

// ListingQualifiers describes the listing bucket of a lowest-offer entry.
type ListingQualifiers struct {
	ItemCondition string `json:"ItemCondition"`
}

// PriceSet groups the alternative price figures a pricing source reports.
// LandedPrice already includes shipping; ListingPrice does not.
type PriceSet struct {
	LandedPrice  *Money  `json:"LandedPrice,omitempty"`
	ListingPrice *Money  `json:"ListingPrice,omitempty"`
	Shipping     *Money  `json:"Shipping,omitempty"`
	Points       *Points `json:"Points,omitempty"`
}

// Amount returns the landed price when present, else the listing price.
func (p *PriceSet) Amount() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.LandedPrice != nil {
		return p.LandedPrice.Amount
	}
	return p.ListingPrice.Value()
}

// FeesEstimate is the fee-estimate endpoint payload for one item and price.
type FeesEstimate struct {
	FeeDetails []FeeDetail `json:"FeeDetailList,omitempty"`
}

// FeeDetail is one fee line of an estimate.
type FeeDetail struct {
	FeeType  string `json:"FeeType"`
	FinalFee *Money `json:"FinalFee,omitempty"`
}

// ReferralFee returns the final referral-fee amount, or zero when the
// estimate carries no referral fee line.
func (f *FeesEstimate) ReferralFee() decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	for _, d := range f.FeeDetails {
		if d.FeeType == "ReferralFee" {
			return d.FinalFee.Value()
		}
	}
	return decimal.Zero
}
