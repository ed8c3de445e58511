package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"stakingcore/core"
	"stakingcore/crypto"
	"stakingcore/gateway/middleware"
	"stakingcore/native/staking"
	"stakingcore/storage"
)

const routeSecret = "0123456789abcdef0123456789abcdef"

type gatewayHarness struct {
	node    *core.Node
	handler http.Handler
	auth    *middleware.Authenticator
	admin   crypto.Address
	now     *int64
}

func newAddress(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	admin := newAddress(t)
	node := core.NewNode(storage.NewMemDB(), admin)
	t.Cleanup(node.Close)
	now := int64(1_700_000_000)
	node.SetNowFunc(func() int64 { return now })
	require.NoError(t, node.Initialize(admin, staking.Config{
		PointsPerNFTStake:       40,
		PointsPerNativeStake:    1,
		PointsPerFungibleStake:  10,
		MinFreezePeriod:         60,
		AnnualPercentageRateBps: 1000,
	}))

	reg := prometheus.NewRegistry()
	auth := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: routeSecret}, nil)
	handler := New(Config{
		Service:       node,
		Stream:        NewStream(nil),
		Authenticator: auth,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			RateLimitRead: {RequestsPerMinute: 6000, Burst: 100},
		}, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{}, reg, nil),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &gatewayHarness{node: node, handler: handler, auth: auth, admin: admin, now: &now}
}

func (h *gatewayHarness) do(t *testing.T, method, path string, body any, caller *crypto.Address) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != nil {
		token, err := h.auth.Issue(*caller, time.Minute, middleware.ScopeStakeWrite)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.handler.ServeHTTP(res, req)
	return res
}

func TestGatewayStakeAndUnstake(t *testing.T) {
	h := newGatewayHarness(t)
	owner := newAddress(t)
	mint := newAddress(t)
	require.NoError(t, h.node.Fund(owner, staking.FungibleAsset(mint), 1_000))

	res := h.do(t, http.MethodPost, "/v1/stake", stakeBody{Asset: "fungible", Mint: mint.String(), Amount: 1_000, Seed: 1, LockPeriod: 60}, &owner)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var opened positionView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &opened))
	require.Equal(t, owner.String(), opened.Owner)
	require.Equal(t, uint64(1_000), opened.Amount)
	require.Equal(t, "active", opened.Status)

	res = h.do(t, http.MethodGet, "/v1/accounts/"+owner.String(), nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var account accountView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &account))
	require.Equal(t, uint64(1_000), account.FungibleStaked)
	require.Equal(t, uint64(10_000), account.Points)
	require.Equal(t, uint64(10_000), account.RewardBalance)

	res = h.do(t, http.MethodGet, "/v1/accounts/"+owner.String()+"/positions", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var listed []positionView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	res = h.do(t, http.MethodPost, "/v1/positions/"+opened.ID+"/unstake", nil, &owner)
	require.Equal(t, http.StatusConflict, res.Code, "lock period has not elapsed")

	*h.now += 3600
	res = h.do(t, http.MethodGet, "/v1/positions/"+opened.ID+"/preview", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var preview previewView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &preview))
	require.True(t, preview.Unlocked)
	require.Equal(t, int64(3600), preview.Elapsed)

	stranger := newAddress(t)
	res = h.do(t, http.MethodPost, "/v1/positions/"+opened.ID+"/unstake", nil, &stranger)
	require.Equal(t, http.StatusForbidden, res.Code)

	res = h.do(t, http.MethodPost, "/v1/positions/"+opened.ID+"/unstake", nil, &owner)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var closed unstakeView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &closed))
	require.Equal(t, "closed", closed.Position.Status)
	require.Equal(t, preview.Reward, closed.Reward)

	res = h.do(t, http.MethodGet, "/v1/positions/"+opened.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestGatewayRejectsWritesWithoutToken(t *testing.T) {
	h := newGatewayHarness(t)
	res := h.do(t, http.MethodPost, "/v1/stake", stakeBody{Asset: "native", Amount: 1}, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGatewayDisablesWritesWithoutAuthenticator(t *testing.T) {
	node := core.NewNode(storage.NewMemDB(), crypto.Address{})
	t.Cleanup(node.Close)
	handler := New(Config{Service: node})
	req := httptest.NewRequest(http.MethodPost, "/v1/stake", bytes.NewBufferString("{}"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestGatewayValidation(t *testing.T) {
	h := newGatewayHarness(t)
	owner := newAddress(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		caller *crypto.Address
		status int
	}{
		{"bad address", http.MethodGet, "/v1/accounts/nope", nil, nil, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/positions/xyz", nil, nil, http.StatusBadRequest},
		{"unknown position", http.MethodGet, "/v1/positions/" + staking.PositionID{}.String(), nil, nil, http.StatusNotFound},
		{"unknown asset", http.MethodPost, "/v1/stake", stakeBody{Asset: "bond", Amount: 1}, &owner, http.StatusBadRequest},
		{"missing mint", http.MethodPost, "/v1/stake", stakeBody{Asset: "fungible", Amount: 1}, &owner, http.StatusBadRequest},
		{"short lock", http.MethodPost, "/v1/stake", stakeBody{Asset: "native", Amount: 1, LockPeriod: 1}, &owner, http.StatusBadRequest},
		{"unfunded", http.MethodPost, "/v1/stake", stakeBody{Asset: "native", Amount: 5, LockPeriod: 60}, &owner, http.StatusBadGateway},
		{"unknown field", http.MethodPost, "/v1/stake", map[string]any{"asset": "native", "bogus": true}, &owner, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := h.do(t, tc.method, tc.path, tc.body, tc.caller)
			require.Equal(t, tc.status, res.Code, res.Body.String())
		})
	}
}

func TestGatewayConfigHealthAndMetrics(t *testing.T) {
	h := newGatewayHarness(t)
	res := h.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = h.do(t, http.MethodGet, "/v1/config", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var cfg configView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &cfg))
	require.Equal(t, uint32(1000), cfg.AprBps)
	require.Equal(t, int64(60), cfg.MinFreezePeriod)

	res = h.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `stake_gateway_requests_total{method="GET",route="config",status="200"} 1`)
}
