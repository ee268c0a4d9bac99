package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"presale/core"
	"presale/core/state"
	"presale/native/bank"
	"presale/native/sale"
	"presale/storage"
)

const testAuthToken = "test-admin-token"

var (
	rpcOwner       = common.HexToAddress("0x2200000000000000000000000000000000000001")
	rpcBeneficiary = common.HexToAddress("0x2200000000000000000000000000000000000002")
	rpcSaleAccount = common.HexToAddress("0x2200000000000000000000000000000000000003")
	rpcPayer       = common.HexToAddress("0x2200000000000000000000000000000000000004")
	rpcStableAddr  = common.HexToAddress("0x2200000000000000000000000000000000000005")
)

type ledgerResolver struct {
	ledger *bank.Ledger
}

func (r ledgerResolver) Resolve(addr common.Address) (sale.Token, bool) {
	token, ok, err := r.ledger.Token(addr)
	if err != nil || !ok {
		return nil, false
	}
	return token, true
}

func ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	schedule := sale.VestingSchedule{
		Cliff:    8 * 30 * 24 * 60 * 60,
		Duration: 28 * 30 * 24 * 60 * 60,
		Interval: 2 * 30 * 24 * 60 * 60,
	}
	cfg := sale.Config{
		PriceA:         big.NewInt(2_500_000_000_000_000),
		PriceB:         big.NewInt(250_000_000_000_000_000),
		MinUSD:         ether(10),
		MaxUSD:         ether(1000),
		CapA:           ether(1_000_000),
		Owner:          rpcOwner,
		Beneficiary:    rpcBeneficiary,
		FeedDecimals:   8,
		RewardDecimals: 18,
		ScheduleA:      schedule,
		ScheduleB:      schedule,
	}
	engine, err := sale.NewEngine(sale.NewLedger(manager), cfg, rpcSaleAccount)
	require.NoError(t, err)
	engine.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })

	ledger := bank.NewLedger(manager)
	engine.SetNative(ledger.Native())
	engine.SetRegistry(ledgerResolver{ledger: ledger})

	stable, err := ledger.RegisterToken(rpcStableAddr, "USDT", 6)
	require.NoError(t, err)
	require.NoError(t, engine.RegisterStable("USDT", stable, 6))
	require.NoError(t, stable.Mint(rpcPayer, big.NewInt(1_000_000_000)))
	require.NoError(t, stable.Approve(rpcPayer, rpcSaleAccount, big.NewInt(1_000_000_000)))
	require.NoError(t, engine.SetRunning(rpcOwner, true))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node := core.NewNode(engine, logger, 64)
	return NewServer(node, testAuthToken, 1000, 1000)
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func call(t *testing.T, handler http.Handler, method string, params interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	req := RPCRequest{JSONRPC: jsonRPCVersion, Method: method, ID: 1}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = []json.RawMessage{raw}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httpReq)

	var resp envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder.Code, resp
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestStatusMethod(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_status", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var result statusResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.True(t, result.Running)
	require.False(t, result.Paused)
	require.False(t, result.ClaimStarted)
	require.Empty(t, result.RewardTokenA)
}

func TestPurchaseStableMethod(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_purchaseStable", purchaseStableParams{
		Payer:  rpcPayer.Hex(),
		Asset:  "USDT",
		Amount: "600000000",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var result purchaseResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "USDT", result.Asset)
	require.Equal(t, ether(30_000).String(), result.AmountA)
	require.Equal(t, ether(2100).String(), result.AmountB)
	require.Equal(t, ether(600).String(), result.USDValue)

	status, resp = call(t, router, "sale_totals", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var totals totalsResult
	require.NoError(t, json.Unmarshal(resp.Result, &totals))
	require.Equal(t, ether(30_000).String(), totals.TotalSoldA)
	require.Equal(t, ether(2100).String(), totals.TotalSoldB)

	status, resp = call(t, router, "sale_entitlement", entitlementParams{
		Participant: rpcPayer.Hex(),
		Token:       "B",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	var ent entitlementResult
	require.NoError(t, json.Unmarshal(resp.Result, &ent))
	require.Equal(t, ether(2100).String(), ent.Deposited)
	require.Equal(t, int64(0), ent.LastClaimAt)
}

func TestPurchaseRejectsBadParams(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_purchaseStable", purchaseStableParams{
		Payer:  "not-an-address",
		Asset:  "USDT",
		Amount: "600000000",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = call(t, router, "sale_purchaseStable", purchaseStableParams{
		Payer:  rpcPayer.Hex(),
		Asset:  "DOGE",
		Amount: "600000000",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "unsupported")
}

func TestPurchaseBelowMinimumMapsToInvalidParams(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_purchaseStable", purchaseStableParams{
		Payer:  rpcPayer.Hex(),
		Asset:  "USDT",
		Amount: "1000000",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminMethodsRequireAuth(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_pause", pauseParams{Caller: rpcOwner.Hex()}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = call(t, router, "sale_pause", pauseParams{Caller: rpcOwner.Hex()}, bearer("wrong-token"))
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)

	status, resp = call(t, router, "sale_pause", pauseParams{Caller: rpcOwner.Hex()}, bearer(testAuthToken))
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp = call(t, router, "sale_status", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var result statusResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.True(t, result.Paused)
}

func TestAuthDisabledWhenTokenUnset(t *testing.T) {
	server := newTestServer(t)
	server.authToken = ""
	router := server.Router()

	status, resp := call(t, router, "sale_pause", pauseParams{Caller: rpcOwner.Hex()}, bearer("anything"))
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "not configured")
}

func TestNonOwnerAdminForbidden(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_setRunning", setRunningParams{
		Caller:  rpcPayer.Hex(),
		Running: false,
	}, bearer(testAuthToken))
	require.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	status, resp := call(t, router, "sale_unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestOversizedBodyRejected(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	body := bytes.Repeat([]byte("a"), maxRequestBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestRateLimitPerSource(t *testing.T) {
	server := newTestServer(t)
	server.rps = 1
	server.burst = 1
	router := server.Router()

	status, _ := call(t, router, "sale_status", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp := call(t, router, "sale_status", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestEventsMethodReturnsTail(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	_, resp := call(t, router, "sale_purchaseStable", purchaseStableParams{
		Payer:  rpcPayer.Hex(),
		Asset:  "USDT",
		Amount: "600000000",
	}, nil)
	require.Nil(t, resp.Error)

	status, resp := call(t, router, "sale_events", eventsParams{Limit: 1}, nil)
	require.Equal(t, http.StatusOK, status)
	var recorded []struct {
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &recorded))
	require.Len(t, recorded, 1)
	require.Equal(t, sale.EventTypePurchased, recorded[0].Type)
	require.Equal(t, "USDT", recorded[0].Attributes["asset"])
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}
