// Package pricing derives a single trustworthy sale price per item from the
// heterogeneous price sources the marketplace reports.
//
// Sources form a strict ladder: per-seller offers (buy-box winner, then
// lowest total) in individual mode, competitive pricing then lowest-offer
// listings in bulk mode, and the catalog list price as a last-resort
// reference. The first tier yielding a positive amount wins and lower tiers
// are never consulted, so figures from different sources are never blended.
//
// Bulk sources under-report the displayed price by the loyalty-point value,
// so bulk resolution adds the point value back before storing the amount.
// Individual offers already report the displayed sale price and get no such
// add-back. The asymmetry is deliberate here because it matches observed
// endpoint behavior; whether the endpoints themselves are consistent is a
// product-owner question.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// SourceTier identifies which price source produced a result.
type SourceTier string

const (
	// TierBuyBoxWinner is the offer currently holding the buy box.
	TierBuyBoxWinner SourceTier = "BuyBoxWinner"

	// TierLowestTotalOffer is the offer with the lowest listing+shipping total.
	TierLowestTotalOffer SourceTier = "LowestTotalOffer"

	// TierCompetitivePrice is the marketplace's competitive (cart) price.
	TierCompetitivePrice SourceTier = "CompetitivePrice"

	// TierLowestOfferListing is the cheapest condition-New listing from the
	// bulk pricing response.
	TierLowestOfferListing SourceTier = "LowestOfferListing"

	// TierListPriceReference is the catalog list price. It is a visibility
	// fallback, not a transactable price.
	TierListPriceReference SourceTier = "ListPriceReference"

	// TierNone means no source produced a positive amount.
	TierNone SourceTier = "None"
)

// Seller labels for results not tied to a specific seller id.
const (
	SellerLabelCompetitive = "Amazon/Others"
	SellerLabelLowestOffer = "Lowest Offer"
	SellerLabelReference   = "Reference Only"
)

// PriceResult is the resolved price for one item. It is a value: a
// re-resolution produces a fresh result, never a patched one.
type PriceResult struct {
	// Amount is the reconciled sale price. Zero exactly when Tier is TierNone.
	Amount decimal.Decimal

	// Tier is the source that produced Amount.
	Tier SourceTier

	// SellerLabel identifies the seller, or a fixed marker for sources that
	// do not name one.
	SellerLabel string

	// PointFraction is the loyalty-point rebate as a fraction of Amount
	// (the reconciled amount, never a pre-reconciliation listing price).
	PointFraction decimal.Decimal
}

// Resolved reports whether a price source produced an amount.
func (r PriceResult) Resolved() bool {
	return r.Tier != TierNone
}

// Transactable reports whether the amount is an actual offer price rather
// than a catalog reference.
func (r PriceResult) Transactable() bool {
	return r.Resolved() && r.Tier != TierListPriceReference
}

// none is the unresolved result.
func none() PriceResult {
	return PriceResult{Amount: decimal.Zero, Tier: TierNone}
}

// Resolve walks the full tier ladder: individual offers, bulk pricing,
// then the list-price reference.
func Resolve(offers *spapi.OfferSet, details *spapi.PricingDetails, listPrice decimal.Decimal) PriceResult {
	if r := ResolveIndividual(offers); r.Resolved() {
		return r
	}
	if r := ResolveBulk(details); r.Resolved() {
		return r
	}
	return ResolveListPrice(listPrice)
}

// ResolveIndividual resolves from per-seller offers: the buy-box winner if
// one exists, else the offer with the lowest listing+shipping total. Offers
// with a non-positive total are skipped. Ties on the lowest total keep the
// first-encountered offer.
func ResolveIndividual(offers *spapi.OfferSet) PriceResult {
	if offers == nil || len(offers.Offers) == 0 {
		return none()
	}

	var best *spapi.Offer
	tier := TierLowestTotalOffer
	lowest := decimal.Zero

	for i := range offers.Offers {
		offer := &offers.Offers[i]
		total := offer.Total()
		if !total.IsPositive() {
			continue
		}

		if offer.IsBuyBoxWinner {
			best = offer
			tier = TierBuyBoxWinner
			break
		}
		if best == nil || total.LessThan(lowest) {
			best = offer
			lowest = total
		}
	}

	if best == nil {
		return none()
	}

	amount := best.Total()
	result := PriceResult{
		Amount:      amount,
		Tier:        tier,
		SellerLabel: best.SellerID,
	}
	if points := best.Points.Value(); points.IsPositive() {
		result.PointFraction = points.Div(amount)
	}
	return result
}

// ResolveBulk resolves from the bulk pricing sections: the competitive price
// entry first, else the cheapest condition-New lowest-offer listing. When
// the competitive price yields a positive amount the listings are never
// consulted. Both sources get the point value added back onto the reported
// amount; the point fraction is computed over that reconciled amount.
func ResolveBulk(details *spapi.PricingDetails) PriceResult {
	if details == nil {
		return none()
	}

	if r := resolveCompetitive(details.CompetitivePricing); r.Resolved() {
		return r
	}
	return resolveLowestListings(details.LowestOfferListings)
}

func resolveCompetitive(cp *spapi.CompetitivePricing) PriceResult {
	if cp == nil || len(cp.CompetitivePrices) == 0 {
		return none()
	}

	price := cp.CompetitivePrices[0].Price
	amount := price.Amount()
	if !amount.IsPositive() {
		return none()
	}

	return reconciled(amount, pointsOf(price), TierCompetitivePrice, SellerLabelCompetitive)
}

func resolveLowestListings(listings []spapi.LowestOfferListing) PriceResult {
	best := none()

	for i := range listings {
		listing := &listings[i]
		if listing.Qualifiers == nil || listing.Qualifiers.ItemCondition != "New" {
			continue
		}

		amount := listing.Price.Amount()
		if !amount.IsPositive() {
			continue
		}

		candidate := reconciled(amount, pointsOf(listing.Price), TierLowestOfferListing, SellerLabelLowestOffer)
		if !best.Resolved() || candidate.Amount.LessThan(best.Amount) {
			best = candidate
		}
	}
	return best
}

// reconciled adds the point value back onto the reported amount and derives
// the point fraction from the reconstructed sale price.
func reconciled(amount, points decimal.Decimal, tier SourceTier, label string) PriceResult {
	total := amount.Add(points)
	result := PriceResult{
		Amount:      total,
		Tier:        tier,
		SellerLabel: label,
	}
	if points.IsPositive() {
		result.PointFraction = points.Div(total)
	}
	return result
}

func pointsOf(price *spapi.PriceSet) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}
	return price.Points.Value()
}

// ResolveListPrice resolves the last-resort catalog list price. The result
// is flagged with TierListPriceReference and a fixed seller marker so
// consumers can tell it is not a transactable offer.
func ResolveListPrice(listPrice decimal.Decimal) PriceResult {
	if !listPrice.IsPositive() {
		return none()
	}
	return PriceResult{
		Amount:      listPrice,
		Tier:        TierListPriceReference,
		SellerLabel: SellerLabelReference,
	}
}
