//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sedori-labs/resale-research/internal/testutil"
	"github.com/sedori-labs/resale-research/pkg/cache"
	"github.com/sedori-labs/resale-research/pkg/client"
	"github.com/sedori-labs/resale-research/pkg/research"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func setupSession(t *testing.T) *research.Session {
	t.Helper()

	session, err := research.Login("ops", "secret", func(u, p string) bool {
		return u == "ops" && p == "secret"
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return session
}

func setupAPI(t *testing.T, mock *testutil.MockSPAPI) *spapi.Client {
	t.Helper()

	api, err := spapi.NewClient(spapi.Config{
		Endpoint:     mock.URL(),
		AuthEndpoint: mock.AuthURL(),
	}, spapi.Credentials{
		RefreshToken: "refresh",
		ClientID:     "id",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return api
}

func fastConfig() research.Config {
	cfg := research.DefaultConfig()
	cfg.Caller = client.Config{MaxAttempts: 5, BaseDelay: time.Millisecond}
	cfg.ChunkPause = time.Millisecond
	return cfg
}

const (
	catalogA = `{
		"asin": "B000INT001",
		"summaries": [{"itemName": "Wooden Puzzle 54pc", "brandName": "Mokuseihin"}],
		"attributes": {
			"externally_assigned_product_identifier": [{"type": "ean", "value": "4901234567894"}],
			"item_package_dimensions": [{
				"height": {"value": 2, "unit": "centimeters"},
				"length": {"value": 30, "unit": "centimeters"},
				"width": {"value": 20, "unit": "centimeters"}
			}]
		},
		"salesRanks": [{"ranks": [{"title": "Toys", "rank": 1234}]}]
	}`

	catalogB = `{
		"asin": "B000INT002",
		"summaries": [{"itemName": "Ceramic Mug", "brandName": "Togei"}],
		"salesRanks": [{"ranks": [{"title": "Kitchen", "rank": 567}]}]
	}`

	// A resolves through the bulk payload with a point rebate; B carries no
	// usable bulk price and falls back to its per-item offers.
	bulkPayload = `{"payload": [
		{
			"ASIN": "B000INT001",
			"status": "Success",
			"Product": {"CompetitivePricing": {"CompetitivePrices": [{
				"condition": "New",
				"Price": {
					"LandedPrice": {"CurrencyCode": "JPY", "Amount": 1000},
					"Points": {"PointsNumber": 50}
				}
			}]}}
		},
		{"ASIN": "B000INT002", "status": "Success", "Product": {}}
	]}`

	offersB = `{"payload": {"Offers": [
		{
			"SellerId": "SELLER-X",
			"SubCondition": "new",
			"ListingPrice": {"CurrencyCode": "JPY", "Amount": 750},
			"Shipping": {"CurrencyCode": "JPY", "Amount": 50},
			"IsBuyBoxWinner": true
		}
	]}}`

	feesA = `{"payload": {"FeesEstimateResult": {"FeesEstimate": {
		"FeeDetailList": [{"FeeType": "ReferralFee", "FinalFee": {"CurrencyCode": "JPY", "Amount": 105}}]
	}}}}`

	feesB = `{"payload": {"FeesEstimateResult": {"FeesEstimate": {
		"FeeDetailList": [{"FeeType": "ReferralFee", "FinalFee": {"CurrencyCode": "JPY", "Amount": 80}}]
	}}}}`
)

func setupHandlers(mock *testutil.MockSPAPI) {
	mock.SetJSON("/catalog/2022-04-01/items/B000INT001", catalogA)
	mock.SetJSON("/catalog/2022-04-01/items/B000INT002", catalogB)
	mock.SetJSON("/products/pricing/v0/competitivePrice", bulkPayload)
	mock.SetJSON("/products/pricing/v0/items/B000INT002/offers", offersB)
	mock.SetJSON("/products/fees/v0/items/B000INT001/feesEstimate", feesA)
	mock.SetJSON("/products/fees/v0/items/B000INT002/feesEstimate", feesB)
}

// TestEngine_EndToEnd drives a full run through the HTTP client against a
// mock marketplace, including one throttled bulk pricing call.
func TestEngine_EndToEnd(t *testing.T) {
	mock := testutil.NewMockSPAPI()
	defer mock.Close()
	setupHandlers(mock)
	mock.QueueResponses("/products/pricing/v0/competitivePrice", testutil.ThrottleOnce())

	engine, err := research.New(setupAPI(t, mock), setupSession(t), nil, fastConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	records, journal := engine.Run(context.Background(), []string{"B000INT001", "B000INT002"})

	if len(records) != 2 {
		t.Fatalf("Run() returned %d records, want 2", len(records))
	}

	a := records[0]
	if a.ASIN != "B000INT001" {
		t.Errorf("records out of submission order: first is %s", a.ASIN)
	}
	if a.Title != "Wooden Puzzle 54pc" || a.Brand != "Mokuseihin" {
		t.Errorf("catalog fields = %q / %q", a.Title, a.Brand)
	}
	if a.JAN != "4901234567894" {
		t.Errorf("JAN = %q", a.JAN)
	}
	if a.RankDisplay != "1234位" {
		t.Errorf("RankDisplay = %q", a.RankDisplay)
	}
	if a.ShippingDisplay != "¥290" {
		t.Errorf("ShippingDisplay = %q", a.ShippingDisplay)
	}
	if a.PriceDisplay != "¥1,050" {
		t.Errorf("PriceDisplay = %q, want point-reconciled ¥1,050", a.PriceDisplay)
	}
	if a.PointRateDisplay != "4.8%" {
		t.Errorf("PointRateDisplay = %q", a.PointRateDisplay)
	}
	if a.FeeRateDisplay != "10.0%" {
		t.Errorf("FeeRateDisplay = %q", a.FeeRateDisplay)
	}

	b := records[1]
	if b.PriceDisplay != "¥800" {
		t.Errorf("fallback PriceDisplay = %q, want ¥800", b.PriceDisplay)
	}
	if b.FeeRateDisplay != "10.0%" {
		t.Errorf("fallback FeeRateDisplay = %q", b.FeeRateDisplay)
	}

	// The bulk chunk was throttled once, then retried.
	if got := mock.RequestCount("/products/pricing/v0/competitivePrice"); got != 2 {
		t.Errorf("bulk pricing requests = %d, want 2", got)
	}
	throttleEntries := 0
	for _, entry := range journal {
		if strings.Contains(entry, "throttled") {
			throttleEntries++
		}
	}
	if throttleEntries != 1 {
		t.Errorf("journal has %d throttle entries, want 1:\n%s", throttleEntries, strings.Join(journal, "\n"))
	}
}

// TestEngine_CatalogCache verifies that a second run served from Redis does
// not hit the catalog endpoint again.
func TestEngine_CatalogCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSPAPI()
	defer mock.Close()
	setupHandlers(mock)

	api := setupAPI(t, mock)
	catalog := cache.NewManager(redisClient, 0)

	for run := 0; run < 2; run++ {
		engine, err := research.New(api, setupSession(t), catalog, fastConfig())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		records, _ := engine.Run(context.Background(), []string{"B000INT001"})
		if len(records) != 1 || records[0].Title != "Wooden Puzzle 54pc" {
			t.Fatalf("run %d: unexpected records %+v", run, records)
		}
	}

	if got := mock.RequestCount("/catalog/2022-04-01/items/B000INT001"); got != 1 {
		t.Errorf("catalog requests = %d, want 1 (second run should hit the cache)", got)
	}
}
