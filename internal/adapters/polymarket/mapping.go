package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// mapGammaMarkets convierte los DTOs de Gamma a domain.Market,
// descartando los que no tienen exactamente dos outcomes parseables.
func mapGammaMarkets(raw []gammaMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, gm := range raw {
		m, ok := mapGammaMarket(gm)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
// Devuelve false si el mercado no es binario o le faltan token IDs.
func mapGammaMarket(gm gammaMarket) (domain.Market, bool) {
	outcomes := parseStringArray(gm.Outcomes)
	prices := parseFloatArray(gm.OutcomePrices)
	tokenIDs := parseStringArray(gm.ClobTokenIDs)

	if len(outcomes) != 2 || len(tokenIDs) != 2 {
		return domain.Market{}, false
	}

	m := domain.Market{
		ConditionID: gm.ConditionID,
		QuestionID:  gm.QuestionID,
		Question:    gm.Question,
		Description: gm.Description,
		Slug:        gm.Slug,
		Active:      gm.Active,
		Closed:      gm.Closed,
		NegRisk:     gm.NegRisk,
		Tokens:      make([]domain.Token, 2),
	}

	for i := 0; i < 2; i++ {
		m.Tokens[i] = domain.Token{
			TokenID: tokenIDs[i],
			Outcome: outcomes[i],
		}
		if i < len(prices) {
			m.Tokens[i].Price = prices[i]
		}
	}

	if v, err := gm.Volume.Float64(); err == nil {
		m.Volume = v
	}
	if l, err := gm.Liquidity.Float64(); err == nil {
		m.Liquidity = l
	}

	m.EndDate = parseGammaDate(gm.EndDateISO)
	m.Tags = collectTags(gm)

	return m, true
}

// collectTags junta la categoría del mercado y los tags de sus eventos,
// sin duplicados.
func collectTags(gm gammaMarket) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(label string) {
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}
		key := strings.ToLower(label)
		if seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, label)
	}

	add(gm.Category)
	for _, ev := range gm.Events {
		for _, t := range ev.Tags {
			add(t.Label)
		}
	}
	return tags
}

// parseGammaDate intenta los formatos de fecha que usa Polymarket.
func parseGammaDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseStringArray parsea un array JSON serializado como string,
// p.ej. `["Yes","No"]`. Devuelve nil si no es parseable.
func parseStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// parseFloatArray parsea un array JSON de números serializados como strings,
// p.ej. `["0.65","0.35"]`.
func parseFloatArray(s string) []float64 {
	raw := parseStringArray(s)
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// mapDataPositions convierte las posiciones del Data API a domain.Position.
// Las posiciones con size cero o redimibles (mercado ya resuelto) se omiten.
func mapDataPositions(raw []dataPosition, now time.Time) []domain.Position {
	positions := make([]domain.Position, 0, len(raw))
	for _, dp := range raw {
		if dp.Size <= 0 || dp.Redeemable {
			continue
		}
		positions = append(positions, domain.Position{
			ConditionID: dp.ConditionID,
			TokenID:     dp.Asset,
			Size:        dp.Size,
			EntryPrice:  dp.AvgPrice,
			IsOpen:      true,
			Source:      domain.SourceDiscovered,
			OpenedAt:    now,
			UpdatedAt:   now,
		})
	}
	return positions
}

// mapOpenOrder convierte una orden del CLOB a domain.Order.
func mapOpenOrder(o clobOpenOrder) domain.Order {
	status := domain.OrderOpen
	upper := strings.ToUpper(o.Status)
	switch {
	case strings.Contains(upper, "MATCHED"):
		status = domain.OrderFilled
	case strings.Contains(upper, "CANCEL"), strings.Contains(upper, "INVALID"):
		status = domain.OrderCancelled
	}

	side := domain.SideBuy
	if strings.EqualFold(o.Side, "SELL") {
		side = domain.SideSell
	}

	price := parseFloatStr(o.Price)
	shares := parseFloatStr(o.OriginalSize)

	return domain.Order{
		OrderID:     o.ID,
		ConditionID: o.Market,
		TokenID:     o.AssetID,
		Side:        side,
		Price:       price,
		Size:        shares * price, // el CLOB reporta shares; el store guarda USDC
		Status:      status,
		CreatedAt:   parseTimestamp(o.CreatedAt),
	}
}

func parseFloatStr(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseTimestamp parsea el created_at del CLOB: unix seconds, unix millis
// o ISO 8601. Devuelve time.Time cero si no es parseable.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
