package venue

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/signer"
	"github.com/quantfold/crossarb/pkg/types"
)

// CLOBConfig configures the CLOB venue adapter.
type CLOBConfig struct {
	BaseURL    string
	Signer     signer.Signer
	Chain      chainReader
	Exchange   string
	Mode       config.ExecutionMode
	RateLimit  float64
	FeeRateBps int64
	Logger     *zap.Logger
}

// CLOB places orders against the order-book venue. Authentication is a
// challenge-response handshake that yields a bearer token; an expired token
// surfaces as a 401 and triggers a one-shot re-login inside the HTTP client.
type CLOB struct {
	http       *httpClient
	signer     signer.Signer
	chain      chainReader
	exchange   common.Address
	mode       config.ExecutionMode
	feeRateBps int64
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewCLOB creates the CLOB venue adapter.
func NewCLOB(cfg *CLOBConfig) (*CLOB, error) {
	if cfg.Signer == nil {
		return nil, types.ErrMissingSigner
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("CLOB base URL cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}

	return &CLOB{
		http:       newHTTPClient(cfg.BaseURL, rps, cfg.Logger),
		signer:     cfg.Signer,
		chain:      cfg.Chain,
		exchange:   common.HexToAddress(cfg.Exchange),
		mode:       cfg.Mode,
		feeRateBps: cfg.FeeRateBps,
		logger:     cfg.Logger,
	}, nil
}

// Name returns the venue identifier.
func (c *CLOB) Name() string { return VenueCLOB }

// Authenticate performs the challenge-response login and stores the session
// token. Safe to call again to replace an expired session.
func (c *CLOB) Authenticate(ctx context.Context) error {
	address := c.signer.Address().Hex()

	var challenge struct {
		Challenge string `json:"challenge"`
	}
	path := fmt.Sprintf("/auth/challenge?address=%s", address)
	if err := c.http.do(ctx, http.MethodGet, path, nil, &challenge, nil, nil); err != nil {
		return fmt.Errorf("fetch auth challenge: %w", err)
	}
	if challenge.Challenge == "" {
		return fmt.Errorf("empty auth challenge")
	}

	sig, err := c.signer.SignMessage([]byte(challenge.Challenge))
	if err != nil {
		return fmt.Errorf("sign auth challenge: %w", err)
	}

	login := map[string]string{
		"address":   address,
		"signature": hexutil.Encode(sig),
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := c.http.do(ctx, http.MethodPost, "/auth/login", login, &session, nil, nil); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if session.Token == "" {
		return fmt.Errorf("login returned empty token")
	}

	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()

	AuthRefreshesTotal.WithLabelValues(VenueCLOB).Inc()
	c.logger.Info("clob-authenticated", zap.String("address", address))
	return nil
}

func (c *CLOB) bearer(req *http.Request, _ []byte) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return types.ErrSessionExpired
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

type clobOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// PlaceOrder submits one signed order under the current session.
func (c *CLOB) PlaceOrder(ctx context.Context, req types.PlaceOrderRequest) types.PlaceOrderResult {
	if req.TokenID == "" {
		return types.PlaceOrderResult{Err: types.ErrMissingTokenID.Error()}
	}
	if req.Size <= 0 {
		return types.PlaceOrderResult{Err: types.ErrZeroSize.Error()}
	}

	if c.mode == config.ModeDryRun {
		c.logger.Info("dry-run-order",
			zap.String("venue", VenueCLOB),
			zap.String("market", req.MarketID),
			zap.String("side", string(req.Side)),
			zap.Int64("size", req.Size))
		return types.PlaceOrderResult{Success: true, OrderID: "dry-run", Status: types.OrderStatusFilled}
	}

	signed, err := c.buildSignedOrder(req)
	if err != nil {
		return types.PlaceOrderResult{Err: fmt.Sprintf("build order: %v", err)}
	}

	sideStr := "BUY"
	if req.Side == types.SideSell {
		sideStr = "SELL"
	}

	body := map[string]interface{}{
		"order": map[string]interface{}{
			"salt":          signed.Salt.Int64(),
			"maker":         signed.Maker.Hex(),
			"signer":        signed.Signer.Hex(),
			"taker":         signed.Taker.Hex(),
			"tokenId":       signed.TokenId.String(),
			"makerAmount":   signed.MakerAmount.String(),
			"takerAmount":   signed.TakerAmount.String(),
			"side":          sideStr,
			"expiration":    signed.Expiration.String(),
			"nonce":         signed.Nonce.String(),
			"feeRateBps":    signed.FeeRateBps.String(),
			"signatureType": int(signed.SignatureType.Int64()),
			"signature":     "0x" + common.Bytes2Hex(signed.Signature),
		},
		"marketId":  req.MarketID,
		"orderType": "GTC",
	}

	var resp clobOrderResponse
	if err := c.http.do(ctx, http.MethodPost, "/orders", body, &resp, c.bearer, c.Authenticate); err != nil {
		OrderPlacementsTotal.WithLabelValues(VenueCLOB, "error").Inc()
		return types.PlaceOrderResult{Err: err.Error()}
	}

	if resp.Error != "" {
		OrderPlacementsTotal.WithLabelValues(VenueCLOB, "rejected").Inc()
		return types.PlaceOrderResult{Err: resp.Error}
	}

	OrderPlacementsTotal.WithLabelValues(VenueCLOB, "success").Inc()

	return types.PlaceOrderResult{
		Success: true,
		OrderID: resp.OrderID,
		Status:  types.NormalizeStatus(resp.Status),
	}
}

func (c *CLOB) buildSignedOrder(req types.PlaceOrderRequest) (*model.SignedOrder, error) {
	maker, taker := orderAmounts(req.Side, req.Price, req.Size)

	side := model.BUY
	if req.Side == types.SideSell {
		side = model.SELL
	}

	data := &model.OrderData{
		Maker:         c.signer.Address().Hex(),
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   maker,
		TakerAmount:   taker,
		Side:          side,
		FeeRateBps:    fmt.Sprintf("%d", c.feeRateBps),
		Nonce:         "0",
		Signer:        c.signer.Address().Hex(),
		Expiration:    "0",
		SignatureType: model.EOA,
	}

	return c.signer.SignOrder(data, model.CTFExchange)
}

// CancelOrder cancels an order by id.
func (c *CLOB) CancelOrder(ctx context.Context, orderID, _ string) bool {
	if c.mode == config.ModeDryRun {
		return true
	}

	path := fmt.Sprintf("/orders/%s", orderID)
	if err := c.http.do(ctx, http.MethodDelete, path, nil, nil, c.bearer, c.Authenticate); err != nil {
		c.logger.Warn("cancel-failed",
			zap.String("venue", VenueCLOB),
			zap.String("order-id", orderID),
			zap.Error(err))
		OrderCancelsTotal.WithLabelValues(VenueCLOB, "error").Inc()
		return false
	}

	OrderCancelsTotal.WithLabelValues(VenueCLOB, "success").Inc()
	return true
}

type clobStatusResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	FilledSize    int64  `json:"filledSize"`
	RemainingSize int64  `json:"remainingSize"`
}

// GetOrderStatus fetches the venue's current view of an order. Failures map
// to UNKNOWN.
func (c *CLOB) GetOrderStatus(ctx context.Context, orderID string) types.OrderState {
	var resp clobStatusResponse
	path := fmt.Sprintf("/orders/%s", orderID)
	if err := c.http.do(ctx, http.MethodGet, path, nil, &resp, c.bearer, c.Authenticate); err != nil {
		c.logger.Debug("order-status-fetch-failed",
			zap.String("venue", VenueCLOB),
			zap.String("order-id", orderID),
			zap.Error(err))
		return types.OrderState{OrderID: orderID, Status: types.OrderStatusUnknown}
	}

	return types.OrderState{
		OrderID:       orderID,
		Status:        types.NormalizeStatus(resp.Status),
		FilledSize:    resp.FilledSize,
		RemainingSize: resp.RemainingSize,
	}
}

// GetOpenOrders lists resting orders under the current session.
func (c *CLOB) GetOpenOrders(ctx context.Context) []types.OpenOrder {
	var resp struct {
		Orders []struct {
			OrderID  string `json:"orderId"`
			TokenID  string `json:"tokenId"`
			MarketID string `json:"marketId"`
			Side     string `json:"side"`
			Size     int64  `json:"size"`
		} `json:"orders"`
	}

	if err := c.http.do(ctx, http.MethodGet, "/orders?status=open", nil, &resp, c.bearer, c.Authenticate); err != nil {
		c.logger.Warn("open-orders-fetch-failed", zap.String("venue", VenueCLOB), zap.Error(err))
		return nil
	}

	orders := make([]types.OpenOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		orders = append(orders, types.OpenOrder{
			OrderID:  o.OrderID,
			TokenID:  o.TokenID,
			MarketID: o.MarketID,
			Side:     types.Side(o.Side),
			Size:     o.Size,
		})
	}
	return orders
}

// EnsureApprovals is a no-op for the CLOB venue; settlement collateral is
// held venue-side and no on-chain spending approval is involved.
func (c *CLOB) EnsureApprovals(_ context.Context) error { return nil }
