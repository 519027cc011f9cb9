package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

func TestFilterMarketsFunnel(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	params := testParams()
	params.Filter.BlockedTags = []string{"Sports"}

	e, _ := newTestEngine(&fakeLedger{}, &fakeMarkets{}, &fakeOracle{}, newFakeStore(), params)
	e.now = func() time.Time { return now }

	base := func(id string) domain.Market {
		m := binaryMarket(id, 0.50, 50000)
		m.EndDate = now.Add(30 * 24 * time.Hour)
		return m
	}

	closed := base("closed")
	closed.Closed = true

	thin := base("thin")
	thin.Volume = 500

	illiquid := base("illiquid")
	illiquid.Liquidity = 100

	expiring := base("expiring")
	expiring.EndDate = now.Add(2 * time.Hour)

	distant := base("distant")
	distant.EndDate = now.Add(365 * 24 * time.Hour)

	undated := base("undated")
	undated.EndDate = time.Time{}

	sports := base("sports")
	sports.Tags = []string{"Sports", "NBA"}

	good := base("good")

	out := e.filterMarkets([]domain.Market{closed, thin, illiquid, expiring, distant, undated, sports, good})
	assert.Len(t, out, 1)
	assert.Equal(t, "good", out[0].ConditionID)
}

func TestFilterMarketsAllowList(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	params := testParams()
	params.Filter.AllowedTags = []string{"Politics"}

	e, _ := newTestEngine(&fakeLedger{}, &fakeMarkets{}, &fakeOracle{}, newFakeStore(), params)
	e.now = func() time.Time { return now }

	politics := binaryMarket("politics", 0.50, 50000)
	politics.EndDate = now.Add(30 * 24 * time.Hour)
	politics.Tags = []string{"Politics"}

	crypto := politics
	crypto.ConditionID = "crypto"
	crypto.Tags = []string{"Crypto"}

	out := e.filterMarkets([]domain.Market{politics, crypto})
	assert.Len(t, out, 1)
	assert.Equal(t, "politics", out[0].ConditionID)
}

func TestScanArbitrage(t *testing.T) {
	params := testParams()
	e, _ := newTestEngine(&fakeLedger{}, &fakeMarkets{}, &fakeOracle{}, newFakeStore(), params)

	balanced := binaryMarket("balanced", 0.50, 50000) // 0.50 + 0.50 = 1.00
	cheap := binaryMarket("cheap", 0.40, 50000)
	cheap.Tokens[1].Price = 0.50 // suma 0.90: comprar ambos lados

	signals := e.scanArbitrage([]domain.Market{balanced, cheap})
	assert.Len(t, signals, 1)
	assert.Equal(t, "cheap", signals[0].ConditionID)
	assert.Equal(t, domain.ArbUnderpriced, signals[0].Type)
	assert.InDelta(t, 0.90, signals[0].TotalPrice, 1e-9)
	assert.InDelta(t, 0.10, signals[0].ProfitPerSet, 1e-9)
}
