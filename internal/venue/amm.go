package venue

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/signer"
	"github.com/quantfold/crossarb/pkg/types"
)

const (
	zeroAddress   = "0x0000000000000000000000000000000000000000"
	vaultGasLimit = 400_000

	approveABI = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

	setApprovalForAllABI = `[{"inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"name":"setApprovalForAll","outputs":[],"type":"function"}]`
)

// chainReader is the on-chain state the AMM adapter needs for approvals and
// vault submission.
type chainReader interface {
	Allowance(ctx context.Context, owner, spender common.Address) (int64, error)
	OutcomeApproved(ctx context.Context, token, owner, operator common.Address) (bool, error)
	PendingNonce(ctx context.Context, owner common.Address) (uint64, error)
}

// AMMConfig configures the AMM venue adapter.
type AMMConfig struct {
	BaseURL      string
	Signer       signer.Signer
	Chain        chainReader
	Exchange     string // exchange contract, order verifier and token spender
	Vault        string // vault contract for vault-mode submission
	StableToken  string
	OutcomeToken string // ERC-1155 conditional-token contract
	Mode         config.ExecutionMode
	GasPriceWei  int64
	RateLimit    float64
	FeeRateBps   int64
	Logger       *zap.Logger
}

// AMM places orders against the AMM venue's REST gateway. Every request is
// authenticated with a fresh signature over timestamp, method, path and body,
// so there is no session to establish or refresh. The adapter holds the
// venue-side order nonce and advances it only after an accepted placement.
type AMM struct {
	http         *httpClient
	signer       signer.Signer
	chain        chainReader
	exchange     common.Address
	vault        common.Address
	stableToken  common.Address
	outcomeToken common.Address
	mode         config.ExecutionMode
	gasPriceWei  int64
	feeRateBps   int64
	logger       *zap.Logger

	mu    sync.Mutex
	nonce uint64
}

// NewAMM creates the AMM venue adapter.
func NewAMM(cfg *AMMConfig) (*AMM, error) {
	if cfg.Signer == nil {
		return nil, types.ErrMissingSigner
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("AMM base URL cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}

	return &AMM{
		http:         newHTTPClient(cfg.BaseURL, rps, cfg.Logger),
		signer:       cfg.Signer,
		chain:        cfg.Chain,
		exchange:     common.HexToAddress(cfg.Exchange),
		vault:        common.HexToAddress(cfg.Vault),
		stableToken:  common.HexToAddress(cfg.StableToken),
		outcomeToken: common.HexToAddress(cfg.OutcomeToken),
		mode:         cfg.Mode,
		gasPriceWei:  cfg.GasPriceWei,
		feeRateBps:   cfg.FeeRateBps,
		logger:       cfg.Logger,
	}, nil
}

// Name returns the venue identifier.
func (a *AMM) Name() string { return VenueAMM }

// Authenticate is a no-op; the AMM gateway authenticates each request by its
// signed headers.
func (a *AMM) Authenticate(_ context.Context) error { return nil }

// signHeaders signs timestamp+method+path+body and attaches the credential
// headers the gateway verifies against the recovered address.
func (a *AMM) signHeaders(req *http.Request, body []byte) error {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	payload := timestamp + req.Method + req.URL.Path + string(body)

	sig, err := a.signer.SignMessage([]byte(payload))
	if err != nil {
		return fmt.Errorf("sign headers: %w", err)
	}

	req.Header.Set("X-Sig-Timestamp", timestamp)
	req.Header.Set("X-Signature", hexutil.Encode(sig))
	req.Header.Set("X-Address", a.signer.Address().Hex())
	return nil
}

type ammOrderRequest struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
	MarketID      string `json:"marketId"`
}

type ammOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// PlaceOrder submits one signed order. The held nonce advances only when the
// venue accepts the order, so a failed attempt can be retried with the same
// nonce.
func (a *AMM) PlaceOrder(ctx context.Context, req types.PlaceOrderRequest) types.PlaceOrderResult {
	if req.TokenID == "" {
		return types.PlaceOrderResult{Err: types.ErrMissingTokenID.Error()}
	}
	if req.Size <= 0 {
		return types.PlaceOrderResult{Err: types.ErrZeroSize.Error()}
	}

	if a.mode == config.ModeDryRun {
		a.logger.Info("dry-run-order",
			zap.String("venue", VenueAMM),
			zap.String("market", req.MarketID),
			zap.String("side", string(req.Side)),
			zap.Int64("size", req.Size))
		return types.PlaceOrderResult{Success: true, OrderID: "dry-run", Status: types.OrderStatusFilled}
	}

	if a.mode == config.ModeVault {
		return a.placeVaultOrder(ctx, req)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	signed, err := a.buildSignedOrder(req, a.nonce)
	if err != nil {
		return types.PlaceOrderResult{Err: fmt.Sprintf("build order: %v", err)}
	}

	body := a.toOrderRequest(signed, req.MarketID)

	var resp ammOrderResponse
	if err := a.http.do(ctx, http.MethodPost, "/orders", body, &resp, a.signHeaders, nil); err != nil {
		OrderPlacementsTotal.WithLabelValues(VenueAMM, "error").Inc()
		return types.PlaceOrderResult{Err: err.Error()}
	}

	if resp.Error != "" {
		OrderPlacementsTotal.WithLabelValues(VenueAMM, "rejected").Inc()
		return types.PlaceOrderResult{Err: resp.Error}
	}

	a.nonce++
	OrderPlacementsTotal.WithLabelValues(VenueAMM, "success").Inc()

	return types.PlaceOrderResult{
		Success: true,
		OrderID: resp.OrderID,
		Status:  types.NormalizeStatus(resp.Status),
	}
}

func (a *AMM) buildSignedOrder(req types.PlaceOrderRequest, nonce uint64) (*model.SignedOrder, error) {
	maker, taker := orderAmounts(req.Side, req.Price, req.Size)

	side := model.BUY
	if req.Side == types.SideSell {
		side = model.SELL
	}

	data := &model.OrderData{
		Maker:         a.signer.Address().Hex(),
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   maker,
		TakerAmount:   taker,
		Side:          side,
		FeeRateBps:    fmt.Sprintf("%d", a.feeRateBps),
		Nonce:         fmt.Sprintf("%d", nonce),
		Signer:        a.signer.Address().Hex(),
		Expiration:    "0",
		SignatureType: model.EOA,
	}

	return a.signer.SignOrder(data, model.CTFExchange)
}

func (a *AMM) toOrderRequest(order *model.SignedOrder, marketID string) ammOrderRequest {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	return ammOrderRequest{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
		MarketID:      marketID,
	}
}

// placeVaultOrder routes the order through the on-chain vault contract
// instead of the REST gateway. The returned order id is the transaction hash.
func (a *AMM) placeVaultOrder(ctx context.Context, req types.PlaceOrderRequest) types.PlaceOrderResult {
	tokenID, ok := new(big.Int).SetString(strings.TrimPrefix(req.TokenID, "0x"), 0)
	if !ok {
		tokenID, ok = new(big.Int).SetString(req.TokenID, 10)
		if !ok {
			return types.PlaceOrderResult{Err: fmt.Sprintf("invalid token id %q", req.TokenID)}
		}
	}

	sideVal := uint8(0)
	if req.Side == types.SideSell {
		sideVal = 1
	}

	parsedABI, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return types.PlaceOrderResult{Err: fmt.Sprintf("parse vault ABI: %v", err)}
	}

	data, err := parsedABI.Pack("placeOrder", tokenID, sideVal, req.Price, big.NewInt(req.Size))
	if err != nil {
		return types.PlaceOrderResult{Err: fmt.Sprintf("pack vault call: %v", err)}
	}

	if a.chain == nil {
		return types.PlaceOrderResult{Err: "vault mode requires a chain client"}
	}

	chainNonce, err := a.chain.PendingNonce(ctx, a.signer.Address())
	if err != nil {
		return types.PlaceOrderResult{Err: fmt.Sprintf("fetch nonce: %v", err)}
	}

	tx := ethtypes.NewTransaction(chainNonce, a.vault, big.NewInt(0), vaultGasLimit, big.NewInt(a.gasPriceWei), data)

	hash, err := a.signer.SendTransaction(ctx, tx)
	if err != nil {
		OrderPlacementsTotal.WithLabelValues(VenueAMM, "error").Inc()
		return types.PlaceOrderResult{Err: fmt.Sprintf("send vault transaction: %v", err)}
	}

	OrderPlacementsTotal.WithLabelValues(VenueAMM, "success").Inc()

	return types.PlaceOrderResult{
		Success: true,
		OrderID: hash.Hex(),
		Status:  types.OrderStatusOpen,
	}
}

const vaultABI = `[{"inputs":[{"name":"tokenId","type":"uint256"},{"name":"side","type":"uint8"},{"name":"price","type":"uint256"},{"name":"amount","type":"uint256"}],"name":"placeOrder","outputs":[],"type":"function"}]`

// CancelOrder cancels a resting order. Cancellation of an already terminal
// order is treated as success by the gateway.
func (a *AMM) CancelOrder(ctx context.Context, orderID, tokenID string) bool {
	if a.mode == config.ModeDryRun {
		return true
	}

	path := fmt.Sprintf("/orders/%s?tokenId=%s", orderID, tokenID)
	if err := a.http.do(ctx, http.MethodDelete, path, nil, nil, a.signHeaders, nil); err != nil {
		a.logger.Warn("cancel-failed",
			zap.String("venue", VenueAMM),
			zap.String("order-id", orderID),
			zap.Error(err))
		OrderCancelsTotal.WithLabelValues(VenueAMM, "error").Inc()
		return false
	}

	OrderCancelsTotal.WithLabelValues(VenueAMM, "success").Inc()
	return true
}

type ammStatusResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	FilledSize    int64  `json:"filledSize"`
	RemainingSize int64  `json:"remainingSize"`
}

// GetOrderStatus fetches the venue's view of an order. A fetch failure maps
// to UNKNOWN so the poll loop can try again.
func (a *AMM) GetOrderStatus(ctx context.Context, orderID string) types.OrderState {
	var resp ammStatusResponse
	path := fmt.Sprintf("/orders/%s", orderID)
	if err := a.http.do(ctx, http.MethodGet, path, nil, &resp, a.signHeaders, nil); err != nil {
		a.logger.Debug("order-status-fetch-failed",
			zap.String("venue", VenueAMM),
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

// GetOpenOrders lists resting orders for the signing address.
func (a *AMM) GetOpenOrders(ctx context.Context) []types.OpenOrder {
	var resp struct {
		Orders []struct {
			OrderID  string `json:"orderId"`
			TokenID  string `json:"tokenId"`
			MarketID string `json:"marketId"`
			Side     string `json:"side"`
			Size     int64  `json:"size"`
		} `json:"orders"`
	}

	if err := a.http.do(ctx, http.MethodGet, "/orders?status=open", nil, &resp, a.signHeaders, nil); err != nil {
		a.logger.Warn("open-orders-fetch-failed", zap.String("venue", VenueAMM), zap.Error(err))
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

// EnsureApprovals grants the exchange contract spending rights over both
// trading contracts: a stable-token allowance for entries and an ERC-1155
// operator approval on the outcome-token contract for unwind sells. Already
// sufficient approvals result in zero on-chain work.
func (a *AMM) EnsureApprovals(ctx context.Context) error {
	if a.mode == config.ModeDryRun || a.chain == nil {
		return nil
	}

	if err := a.ensureStableApproval(ctx); err != nil {
		return err
	}
	return a.ensureOutcomeApproval(ctx)
}

func (a *AMM) ensureStableApproval(ctx context.Context) error {
	allowance, err := a.chain.Allowance(ctx, a.signer.Address(), a.exchange)
	if err != nil {
		return fmt.Errorf("check allowance: %w", err)
	}

	// Saturated reads mean an effectively unlimited approval is in place.
	if allowance >= int64(^uint64(0)>>2) {
		a.logger.Debug("stable-approval-sufficient", zap.String("venue", VenueAMM))
		return nil
	}

	parsedABI, err := abi.JSON(strings.NewReader(approveABI))
	if err != nil {
		return fmt.Errorf("parse approve ABI: %w", err)
	}

	maxApproval := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	data, err := parsedABI.Pack("approve", a.exchange, maxApproval)
	if err != nil {
		return fmt.Errorf("pack approve call: %w", err)
	}

	hash, err := a.sendContractCall(ctx, a.stableToken, data)
	if err != nil {
		return fmt.Errorf("send approval: %w", err)
	}

	a.logger.Info("stable-approval-submitted",
		zap.String("venue", VenueAMM),
		zap.String("tx-hash", hash))
	return nil
}

func (a *AMM) ensureOutcomeApproval(ctx context.Context) error {
	if a.outcomeToken == (common.Address{}) {
		return nil
	}

	approved, err := a.chain.OutcomeApproved(ctx, a.outcomeToken, a.signer.Address(), a.exchange)
	if err != nil {
		return fmt.Errorf("check outcome approval: %w", err)
	}
	if approved {
		a.logger.Debug("outcome-approval-sufficient", zap.String("venue", VenueAMM))
		return nil
	}

	parsedABI, err := abi.JSON(strings.NewReader(setApprovalForAllABI))
	if err != nil {
		return fmt.Errorf("parse setApprovalForAll ABI: %w", err)
	}

	data, err := parsedABI.Pack("setApprovalForAll", a.exchange, true)
	if err != nil {
		return fmt.Errorf("pack setApprovalForAll call: %w", err)
	}

	hash, err := a.sendContractCall(ctx, a.outcomeToken, data)
	if err != nil {
		return fmt.Errorf("send outcome approval: %w", err)
	}

	a.logger.Info("outcome-approval-submitted",
		zap.String("venue", VenueAMM),
		zap.String("tx-hash", hash))
	return nil
}

func (a *AMM) sendContractCall(ctx context.Context, to common.Address, data []byte) (string, error) {
	chainNonce, err := a.chain.PendingNonce(ctx, a.signer.Address())
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}

	tx := ethtypes.NewTransaction(chainNonce, to, big.NewInt(0), vaultGasLimit, big.NewInt(a.gasPriceWei), data)

	hash, err := a.signer.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}
