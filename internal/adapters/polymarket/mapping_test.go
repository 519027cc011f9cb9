package polymarket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

func TestMapGammaMarket(t *testing.T) {
	gm := gammaMarket{
		ConditionID:   "0xabc",
		Question:      "Will X happen by March?",
		Slug:          "will-x-happen",
		EndDateISO:    "2026-03-01T12:00:00Z",
		Volume:        "125000.5",
		Liquidity:     "8000",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.65","0.35"]`,
		ClobTokenIDs:  `["111","222"]`,
		Active:        true,
		Category:      "Politics",
		Events: []gammaEvent{
			{Tags: []gammaTag{{Label: "Elections"}, {Label: "politics"}}},
		},
	}

	m, ok := mapGammaMarket(gm)
	require.True(t, ok)

	assert.Equal(t, "0xabc", m.ConditionID)
	assert.Equal(t, 125000.5, m.Volume)
	assert.Equal(t, 8000.0, m.Liquidity)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), m.EndDate)

	require.Len(t, m.Tokens, 2)
	assert.Equal(t, "111", m.Tokens[0].TokenID)
	assert.Equal(t, "Yes", m.Tokens[0].Outcome)
	assert.Equal(t, 0.65, m.Tokens[0].Price)
	assert.Equal(t, 0.35, m.Tokens[1].Price)

	// "politics" duplica a "Politics" con otra capitalización
	assert.Equal(t, []string{"Politics", "Elections"}, m.Tags)
}

func TestMapGammaMarketRejectsNonBinary(t *testing.T) {
	gm := gammaMarket{
		ConditionID:  "0xdef",
		Outcomes:     `["A","B","C"]`,
		ClobTokenIDs: `["1","2","3"]`,
	}
	_, ok := mapGammaMarket(gm)
	assert.False(t, ok)

	// clobTokenIds malformado
	gm = gammaMarket{
		ConditionID:  "0xdef",
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `not json`,
	}
	_, ok = mapGammaMarket(gm)
	assert.False(t, ok)
}

func TestMapDataPositionsFiltersZeroAndRedeemable(t *testing.T) {
	now := time.Now().UTC()
	raw := []dataPosition{
		{ConditionID: "c1", Asset: "t1", Size: 10.5, AvgPrice: 0.60},
		{ConditionID: "c2", Asset: "t2", Size: 0},
		{ConditionID: "c3", Asset: "t3", Size: 5, Redeemable: true},
	}

	positions := mapDataPositions(raw, now)
	require.Len(t, positions, 1)
	assert.Equal(t, "c1", positions[0].ConditionID)
	assert.Equal(t, domain.SourceDiscovered, positions[0].Source)
	assert.True(t, positions[0].IsOpen)
}

func TestMapOpenOrder(t *testing.T) {
	o := clobOpenOrder{
		ID:           "order-1",
		AssetID:      "tok-1",
		Market:       "cond-1",
		Side:         "BUY",
		Price:        "0.55",
		OriginalSize: "20",
		Status:       "LIVE",
		CreatedAt:    "1750000000",
	}

	order := mapOpenOrder(o)
	assert.Equal(t, "order-1", order.OrderID)
	assert.Equal(t, domain.SideBuy, order.Side)
	assert.Equal(t, domain.OrderOpen, order.Status)
	assert.InDelta(t, 11.0, order.Size, 1e-9) // 20 shares × 0.55 = 11 USDC
	assert.Equal(t, time.Unix(1750000000, 0).UTC(), order.CreatedAt)
}

func TestParseTimestampFormats(t *testing.T) {
	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("garbage").IsZero())
	assert.Equal(t, time.Unix(1750000000, 0).UTC(), parseTimestamp("1750000000"))
	assert.Equal(t, time.UnixMilli(1750000000123).UTC(), parseTimestamp("1750000000123"))
	assert.Equal(t,
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		parseTimestamp("2026-01-02T03:04:05Z"),
	)
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(10000), detectPricePrecision(0.1234))
}
