package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageMax     = 100
)

// FetchActiveMarkets obtiene mercados binarios activos de Gamma, ordenados
// por volumen descendente. Pagina hasta reunir limit mercados parseables.
// Implementa ports.MarketProvider.
func (c *Client) FetchActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = gammaPageMax
	}

	markets := make([]domain.Market, 0, limit)
	offset := 0

	for len(markets) < limit {
		pageSize := gammaPageMax
		if remaining := limit - len(markets); remaining < pageSize {
			pageSize = remaining
		}

		url := fmt.Sprintf("%s%s?active=true&closed=false&order=volumeNum&ascending=false&limit=%d&offset=%d",
			c.gammaBase, gammaMarketsPath, pageSize, offset)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, url, nil, &resp); err != nil {
			return nil, fmt.Errorf("gamma.FetchActiveMarkets: %w", err)
		}
		if len(resp) == 0 {
			break
		}

		page := mapGammaMarkets(resp)
		markets = append(markets, page...)
		offset += len(resp)

		slog.Debug("gamma page fetched",
			"raw", len(resp),
			"parseable", len(page),
			"total", len(markets),
		)

		// Última página
		if len(resp) < pageSize {
			break
		}
	}

	if len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}
