package polymarket

// gateway.go — Ledger gateway over the Polymarket CLOB and Data APIs.
//
// Implements ports.LedgerGateway: the on-chain USDC balance comes from a
// Polygon RPC call, positions from the Data API, and orders from the CLOB
// using the AuthClient for L1/L2 auth.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

const usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

var balanceOfABI abi.ABI

func init() {
	var err error
	balanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("balanceOf abi: " + err.Error())
	}
}

// Gateway implements ports.LedgerGateway against the live exchange.
type Gateway struct {
	auth      *AuthClient
	rpcClient *ethclient.Client
}

// NewGateway creates a Gateway. rpcURL is used for on-chain balance checks.
func NewGateway(auth *AuthClient, rpcURL string) (*Gateway, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial rpc: %w", err)
	}
	return &Gateway{auth: auth, rpcClient: rpc}, nil
}

// Balance returns the on-chain USDC.e balance of the wallet, in USDC.
func (g *Gateway) Balance(ctx context.Context) (float64, error) {
	callData, err := balanceOfABI.Pack("balanceOf", g.auth.address)
	if err != nil {
		return 0, fmt.Errorf("gateway.Balance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := g.rpcClient.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("gateway.Balance: rpc call: %w", err)
	}

	vals, err := balanceOfABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("gateway.Balance: unpack: %w", err)
	}

	raw := vals[0].(*big.Int)
	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetFloat64(1e6)).Float64()
	return bal, nil
}

// Positions returns the wallet's open on-chain positions from the Data API.
// Zero-size and already-redeemable positions are filtered out.
func (g *Gateway) Positions(ctx context.Context) ([]domain.Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.1&limit=500",
		g.auth.dataBase, strings.ToLower(g.auth.address.Hex()))

	var raw []dataPosition
	if err := g.auth.get(ctx, g.auth.dataLimiter, url, nil, &raw); err != nil {
		return nil, fmt.Errorf("gateway.Positions: %w", err)
	}

	return mapDataPositions(raw, time.Now().UTC()), nil
}

// OpenOrders returns the wallet's live orders from the CLOB.
func (g *Gateway) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("gateway.OpenOrders: creds: %w", err)
	}

	var raw []clobOpenOrder
	if err := g.auth.doL2(ctx, http.MethodGet, "/data/orders", nil, &raw); err != nil {
		return nil, fmt.Errorf("gateway.OpenOrders: %w", err)
	}

	orders := make([]domain.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, mapOpenOrder(o))
	}
	return orders, nil
}

// PlaceOrder signs and submits a limit order to the CLOB.
func (g *Gateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("gateway.PlaceOrder: creds: %w", err)
	}

	signed, err := g.auth.buildSignedOrder(req.TokenID, req.Price, req.Size, req.Side, req.NegRisk)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("gateway.PlaceOrder: sign: %w", err)
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = "GTC"
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(req.Side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     g.auth.creds.APIKey,
		OrderType: orderType,
	}

	var resp clobOrderResponse
	if err := g.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("gateway.PlaceOrder: post: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("gateway.PlaceOrder: clob error: %s", resp.ErrorMsg)
	}

	return domain.PlacedOrder{
		OrderID: resp.OrderID,
		Status:  resp.Status,
	}, nil
}

// CancelOrder cancels a single order by its CLOB order ID.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("gateway.CancelOrder: creds: %w", err)
	}

	path := "/order/" + orderID
	if err := g.auth.doL2(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("gateway.CancelOrder %s: %w", orderID, err)
	}
	return nil
}
