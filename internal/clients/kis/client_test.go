package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		AppKey:    "app-key",
		AppSecret: "app-secret",
		AccountNo: "1234567801",
		IsPaper:   false,
		MinDelay:  1, // keep tests fast
	}, zerolog.Nop())
	require.NoError(t, err)
	return c, srv
}

func tokenHandler(tokenCalls *int32) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1", "token_type": "Bearer", "expires_in": 86400,
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "x", AppKey: "k", AppSecret: "s", AccountNo: "123"}, zerolog.Nop())
	assert.Error(t, err, "short account number must be rejected")

	_, err = NewClient(Config{AppKey: "k", AppSecret: "s", AccountNo: "1234567801"}, zerolog.Nop())
	assert.Error(t, err, "missing base URL must be rejected")
}

func TestTokenRefreshedOnceAndReused(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("authorization"))
		assert.Equal(t, "app-key", r.Header.Get("appkey"))
		assert.Equal(t, "FHKST01010100", r.Header.Get("tr_id"))
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output": map[string]string{
				"stck_prpr": "71400", "stck_sdpr": "70000", "prdy_ctrt": "2.00",
				"acml_vol": "1234567", "rprs_mrkt_kor_name": "KOSPI",
			},
		})
	})

	c, _ := testClient(t, mux)
	ctx := context.Background()

	q, err := c.GetCurrentPrice(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, 71400.0, q.Price)
	assert.Equal(t, domain.MarketKOSPI, q.Market)

	_, err = c.GetCurrentPrice(ctx, "005930")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls), "token must be cached across calls")
}

func TestTransientErrorRetriedOnce(t *testing.T) {
	var tokenCalls, priceCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&priceCalls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":  "0",
			"output": map[string]string{"stck_prpr": "50000"},
		})
	})

	c, _ := testClient(t, mux)
	q, err := c.GetCurrentPrice(context.Background(), "000660")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, q.Price)
	assert.EqualValues(t, 2, atomic.LoadInt32(&priceCalls))
}

func TestPermanentErrorNotRetried(t *testing.T) {
	var tokenCalls, calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"msg_cd": "EGW00123", "msg1": "invalid credentials"})
	})

	c, _ := testClient(t, mux)
	_, err := c.PlaceBuy(context.Background(), "005930", 10, 0)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "EGW00123", apiErr.Code)
	assert.False(t, apiErr.Transient())
	assert.True(t, IsPermanent(err))
}

func TestBrokerLevelErrorInsideOK(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"rt_cd": "1", "msg_cd": "40250000", "msg1": "insufficient balance"})
	})

	c, _ := testClient(t, mux)
	_, err := c.PlaceBuy(context.Background(), "005930", 10, 70000)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "40250000", apiErr.Code)
}

func TestPlaceOrder_PayloadAndTRIDs(t *testing.T) {
	var tokenCalls int32
	var got orderRequest
	var trIDs []string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		trIDs = append(trIDs, r.Header.Get("tr_id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0", "output": map[string]string{"ODNO": "0000117057"},
		})
	})

	c, _ := testClient(t, mux)
	ctx := context.Background()

	res, err := c.PlaceBuy(ctx, "005930", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "0000117057", res.BrokerOrderID)
	assert.Equal(t, "12345678", got.CANO)
	assert.Equal(t, "01", got.AcntPrdtCd)
	assert.Equal(t, "01", got.OrdDvsn, "price 0 is a market order")
	assert.Equal(t, "10", got.OrdQty)

	_, err = c.PlaceSell(ctx, "005930", 5, 71000)
	require.NoError(t, err)
	assert.Equal(t, "00", got.OrdDvsn, "positive price is a limit order")
	assert.Equal(t, "71000", got.OrdUnpr)

	assert.Equal(t, []string{"TTTC0802U", "TTTC0801U"}, trIDs)
}

func TestGetAccountBalance_Parse(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-balance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TTTC8434R", r.Header.Get("tr_id"))
		assert.Equal(t, "12345678", r.URL.Query().Get("CANO"))
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output1": []map[string]string{
				{"pdno": "005930", "prdt_name": "삼성전자", "hldg_qty": "10", "pchs_avg_pric": "70000.00",
					"prpr": "71400", "evlu_pfls_rt": "2.00", "pchs_amt": "700000"},
				{"pdno": "000660", "hldg_qty": "0"}, // closed position rows are skipped
			},
			"output2": []map[string]string{
				{"prvs_rcdl_excc_amt": "4000000", "max_buy_amt": "12000000",
					"tot_evlu_amt": "4714000", "evlu_pfls_smtl_amt": "14000", "pchs_amt_smtl_amt": "700000"},
			},
		})
	})

	c, _ := testClient(t, mux)
	bal, err := c.GetAccountBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, bal.Holdings, 1)
	assert.Equal(t, int64(10), bal.Holdings[0].Quantity)
	assert.Equal(t, 70000.0, bal.Holdings[0].AvgPrice)
	assert.Equal(t, 4000000.0, bal.D2Cash)
	assert.Equal(t, 700000.0, bal.Invested)
}

func TestGetPendingOrders_SideMapping(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/tokenP", tokenHandler(&tokenCalls))
	mux.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-psbl-rvsecncl", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rt_cd": "0",
			"output": []map[string]string{
				{"odno": "1", "pdno": "005930", "sll_buy_dvsn_cd": "02", "ord_qty": "10", "tot_ccld_qty": "3", "ord_unpr": "70000"},
				{"odno": "2", "pdno": "000660", "sll_buy_dvsn_cd": "01", "ord_qty": "5", "tot_ccld_qty": "0", "ord_unpr": "0"},
			},
		})
	})

	c, _ := testClient(t, mux)
	pending, err := c.GetPendingOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.SideBuy, pending[0].Side)
	assert.Equal(t, int64(3), pending[0].FilledQty)
	assert.Equal(t, domain.SideSell, pending[1].Side)
}
