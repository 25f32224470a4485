package research

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sedori-labs/resale-research/pkg/cache"
	"github.com/sedori-labs/resale-research/pkg/client"
	"github.com/sedori-labs/resale-research/pkg/diag"
	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/pricing"
	"github.com/sedori-labs/resale-research/pkg/shipping"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// Assembler builds one ItemDetailRecord per identifier, merging catalog
// attributes with the resolved price. It never fails: every remote or data
// problem degrades the corresponding field to its default and assembly
// continues.
type Assembler struct {
	api           spapi.API
	caller        *client.Caller
	catalogCaller *client.Caller
	catalog       *cache.Manager
	journal       *diag.Journal
	logger        zerolog.Logger
}

// NewAssembler creates an item detail assembler. catalog may be nil to run
// without a catalog cache. catalogCaller carries the tighter retry limit
// used for catalog reads.
func NewAssembler(api spapi.API, caller, catalogCaller *client.Caller, catalog *cache.Manager, journal *diag.Journal) *Assembler {
	return &Assembler{
		api:           api,
		caller:        caller,
		catalogCaller: catalogCaller,
		catalog:       catalog,
		journal:       journal,
		logger:        logging.NewLogger("assembler"),
	}
}

// BuildRecord assembles the record for one identifier. When batch holds a
// price for the identifier it is used as-is; otherwise the price is
// resolved individually via a fresh offers call, with the catalog list
// price as the last resort. Batch and individual resolution are mutually
// exclusive for one identifier within a run.
func (as *Assembler) BuildRecord(ctx context.Context, asin string, batch map[string]pricing.PriceResult) ItemDetailRecord {
	record := ItemDetailRecord{
		ASIN:         asin,
		Rank:         RankUnknown,
		PriceDisplay: "-",
		Tier:         pricing.TierNone,
	}

	listPrice := as.fillCatalog(ctx, asin, &record)

	result, fromBatch := batch[asin]
	if !fromBatch {
		result = as.resolveIndividually(ctx, asin, listPrice)
	}

	if !result.Resolved() {
		as.journal.Appendf("no price resolved for %s", asin)
		return record
	}

	record.Price = result.Amount
	record.PriceDisplay = formatYen(result.Amount)
	record.SellerLabel = result.SellerLabel
	record.Tier = result.Tier
	if result.PointFraction.IsPositive() {
		record.PointRateDisplay = formatPercent(result.PointFraction)
	}

	as.fillFeeRate(ctx, asin, &record)

	as.logger.Debug().
		Str("asin", asin).
		Str("tier", string(result.Tier)).
		Str("price", result.Amount.String()).
		Bool("from_batch", fromBatch).
		Msg("Record assembled")

	return record
}

// fillCatalog fetches catalog attributes (through the cache when one is
// configured) and fills the descriptive fields. It returns the catalog list
// price for use as the last-resort price reference, zero when unknown.
func (as *Assembler) fillCatalog(ctx context.Context, asin string, record *ItemDetailRecord) decimal.Decimal {
	item := as.cachedCatalogItem(ctx, asin)
	if item == nil {
		ok := as.catalogCaller.Invoke(ctx, "getCatalogItem", func(ctx context.Context) error {
			var err error
			item, err = as.api.GetCatalogItem(ctx, asin)
			return err
		})
		if !ok || item == nil {
			return decimal.Zero
		}
		as.storeCatalogItem(ctx, asin, item)
	}

	if len(item.Summaries) > 0 {
		record.Title = item.Summaries[0].ItemName
		record.Brand = item.Summaries[0].BrandName
	}

	// First-listed rank group is the major category; the rest are ignored.
	if len(item.SalesRanks) > 0 && len(item.SalesRanks[0].Ranks) > 0 {
		top := item.SalesRanks[0].Ranks[0]
		record.Category = top.Title
		if top.Rank > 0 {
			record.Rank = top.Rank
			record.RankDisplay = formatRank(top.Rank)
		}
	}

	attrs := item.Attributes
	if attrs == nil {
		return decimal.Zero
	}

	for _, id := range attrs.ExternalIdentifiers {
		if id.Type == "ean" {
			record.JAN = id.Value
			break
		}
	}

	if len(attrs.PackageDimensions) > 0 {
		dim := attrs.PackageDimensions[0]
		h, l, w := dim.Height.Value, dim.Length.Value, dim.Width.Value
		record.PackageSize = fmt.Sprintf("%sx%sx%s",
			formatDimension(h), formatDimension(l), formatDimension(w))
		if fee, ok := shipping.Fee(h, l, w); ok {
			record.ShippingDisplay = formatYen(decimal.NewFromInt(int64(fee)))
		} else {
			record.ShippingDisplay = "-"
		}
	}

	if len(attrs.ListPrice) > 0 && attrs.ListPrice[0].Value > 0 {
		return decimal.NewFromFloat(attrs.ListPrice[0].Value)
	}
	return decimal.Zero
}

func (as *Assembler) cachedCatalogItem(ctx context.Context, asin string) *spapi.CatalogItem {
	if as.catalog == nil {
		return nil
	}
	item, err := as.catalog.Get(ctx, asin)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			as.logger.Warn().Err(err).Str("asin", asin).Msg("Catalog cache read failed")
		}
		return nil
	}
	return item
}

func (as *Assembler) storeCatalogItem(ctx context.Context, asin string, item *spapi.CatalogItem) {
	if as.catalog == nil {
		return
	}
	if err := as.catalog.Set(ctx, asin, item); err != nil {
		as.logger.Warn().Err(err).Str("asin", asin).Msg("Catalog cache write failed")
	}
}

// resolveIndividually resolves the price from the per-item offers endpoint,
// falling back to the catalog list price reference.
func (as *Assembler) resolveIndividually(ctx context.Context, asin string, listPrice decimal.Decimal) pricing.PriceResult {
	var offers *spapi.OfferSet
	as.caller.Invoke(ctx, "getItemOffers", func(ctx context.Context) error {
		var err error
		offers, err = as.api.GetItemOffers(ctx, asin)
		return err
	})

	if result := pricing.ResolveIndividual(offers); result.Resolved() {
		return result
	}
	return pricing.ResolveListPrice(listPrice)
}

// fillFeeRate fetches a referral-fee estimate for the resolved price and
// derives the fee rate. Absent or failed estimates leave the field empty.
func (as *Assembler) fillFeeRate(ctx context.Context, asin string, record *ItemDetailRecord) {
	if !record.Price.IsPositive() {
		return
	}

	var estimate *spapi.FeesEstimate
	ok := as.caller.Invoke(ctx, "getFeesEstimate", func(ctx context.Context) error {
		var err error
		estimate, err = as.api.GetFeesEstimate(ctx, asin, record.Price)
		return err
	})
	if !ok {
		return
	}

	fee := estimate.ReferralFee()
	if fee.IsPositive() {
		record.FeeRateDisplay = formatPercent(fee.Div(record.Price))
	}
}
