package polymarket

import "encoding/json"

// DTOs raw de las APIs de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado binario de Gamma. Gamma devuelve varios campos
// como strings JSON anidados (outcomes, outcomePrices, clobTokenIds) y los
// numéricos a veces como strings, de ahí json.Number.
type gammaMarket struct {
	ConditionID   string       `json:"conditionId"`
	QuestionID    string       `json:"questionID"`
	Question      string       `json:"question"`
	Description   string       `json:"description"`
	Slug          string       `json:"slug"`
	EndDateISO    string       `json:"endDate"`
	Volume        json.Number  `json:"volumeNum"`
	Liquidity     json.Number  `json:"liquidityNum"`
	Outcomes      string       `json:"outcomes"`      // `["Yes","No"]` como string
	OutcomePrices string       `json:"outcomePrices"` // `["0.65","0.35"]` como string
	ClobTokenIDs  string       `json:"clobTokenIds"`  // `["123...","456..."]` como string
	Active        bool         `json:"active"`
	Closed        bool         `json:"closed"`
	NegRisk       bool         `json:"negRisk"`
	Category      string       `json:"category"`
	Events        []gammaEvent `json:"events"`
}

// gammaEvent agrupa mercados bajo un evento; de aquí salen los tags.
type gammaEvent struct {
	Tags []gammaTag `json:"tags"`
}

// gammaTag es una etiqueta de categoría de Gamma.
type gammaTag struct {
	Label string `json:"label"`
}

// --- Data API ---

// dataPosition es una posición on-chain según GET /positions del Data API.
type dataPosition struct {
	ConditionID string  `json:"conditionId"`
	Asset       string  `json:"asset"` // token_id del outcome
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	CurPrice    float64 `json:"curPrice"`
	Title       string  `json:"title"`
	Outcome     string  `json:"outcome"`
	Redeemable  bool    `json:"redeemable"`
}

// --- CLOB API ---

// clobOrderRequest es el body de POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

// clobOpenOrder es una orden viva según GET /data/orders.
type clobOpenOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	Outcome      string `json:"outcome"`
}
