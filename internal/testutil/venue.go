package testutil

import (
	"context"
	"sync"

	"github.com/quantfold/crossarb/pkg/types"
)

// MockAdapter is a scriptable venue adapter for tests. Placement results are
// consumed in order; status responses are per order id, consumed in order so
// a script can express OPEN → FILLED progressions.
type MockAdapter struct {
	VenueName string

	mu             sync.Mutex
	placeResults   []types.PlaceOrderResult
	statusScript   map[string][]types.OrderState
	openOrders     []types.OpenOrder
	placed         []types.PlaceOrderRequest
	cancelled      []string
	statusCalls    map[string]int
	authCalls      int
	cancelOutcome  bool
	approvalsCalls int
	approvalsErr   error
}

// NewMockAdapter creates an adapter that fails every placement until scripted.
func NewMockAdapter(venueName string) *MockAdapter {
	return &MockAdapter{
		VenueName:     venueName,
		statusScript:  make(map[string][]types.OrderState),
		statusCalls:   make(map[string]int),
		cancelOutcome: true,
	}
}

// ScriptPlace queues placement results, consumed FIFO.
func (m *MockAdapter) ScriptPlace(results ...types.PlaceOrderResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeResults = append(m.placeResults, results...)
}

// ScriptStatus queues status responses for one order id, consumed FIFO with
// the last response repeating.
func (m *MockAdapter) ScriptStatus(orderID string, states ...types.OrderState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusScript[orderID] = append(m.statusScript[orderID], states...)
}

// ScriptOpenOrders sets the open-order listing returned by GetOpenOrders.
func (m *MockAdapter) ScriptOpenOrders(orders ...types.OpenOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openOrders = orders
}

// ScriptApprovals sets the error EnsureApprovals returns.
func (m *MockAdapter) ScriptApprovals(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvalsErr = err
}

// ScriptCancel sets the outcome of cancel calls.
func (m *MockAdapter) ScriptCancel(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelOutcome = ok
}

// Placed returns the placement requests seen so far.
func (m *MockAdapter) Placed() []types.PlaceOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PlaceOrderRequest, len(m.placed))
	copy(out, m.placed)
	return out
}

// Cancelled returns the order ids cancelled so far.
func (m *MockAdapter) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.cancelled))
	copy(out, m.cancelled)
	return out
}

// StatusCalls returns how many times an order's status was fetched.
func (m *MockAdapter) StatusCalls(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls[orderID]
}

// AuthCalls returns how many times Authenticate ran.
func (m *MockAdapter) AuthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCalls
}

// ApprovalsCalls returns how many times EnsureApprovals ran.
func (m *MockAdapter) ApprovalsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approvalsCalls
}

func (m *MockAdapter) Name() string { return m.VenueName }

func (m *MockAdapter) Authenticate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCalls++
	return nil
}

func (m *MockAdapter) PlaceOrder(_ context.Context, req types.PlaceOrderRequest) types.PlaceOrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.placed = append(m.placed, req)

	if len(m.placeResults) == 0 {
		return types.PlaceOrderResult{Err: "no scripted result"}
	}
	res := m.placeResults[0]
	m.placeResults = m.placeResults[1:]
	return res
}

func (m *MockAdapter) CancelOrder(_ context.Context, orderID, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelOutcome
}

func (m *MockAdapter) GetOrderStatus(_ context.Context, orderID string) types.OrderState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statusCalls[orderID]++

	script := m.statusScript[orderID]
	if len(script) == 0 {
		return types.OrderState{OrderID: orderID, Status: types.OrderStatusUnknown}
	}
	state := script[0]
	if len(script) > 1 {
		m.statusScript[orderID] = script[1:]
	}
	return state
}

func (m *MockAdapter) GetOpenOrders(context.Context) []types.OpenOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.OpenOrder, len(m.openOrders))
	copy(out, m.openOrders)
	return out
}

func (m *MockAdapter) EnsureApprovals(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvalsCalls++
	return m.approvalsErr
}
