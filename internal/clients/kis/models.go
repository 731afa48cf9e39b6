package kis

import (
	"strconv"
	"strings"
)

// The KIS API returns every numeric field as a string. These DTOs keep the
// raw shapes; the adapter methods convert into domain types.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type balanceResponse struct {
	Positions []balancePosition `json:"output1"`
	Summaries []balanceSummary  `json:"output2"`
}

type balancePosition struct {
	Ticker       string `json:"pdno"`
	Name         string `json:"prdt_name"`
	Quantity     string `json:"hldg_qty"`
	AvgPrice     string `json:"pchs_avg_pric"`
	CurrentPrice string `json:"prpr"`
	ProfitRate   string `json:"evlu_pfls_rt"`
	PurchaseAmt  string `json:"pchs_amt"`
}

type balanceSummary struct {
	D2Cash          string `json:"prvs_rcdl_excc_amt"`
	MaxBuyAmount    string `json:"max_buy_amt"`
	TotalEval       string `json:"tot_evlu_amt"`
	TotalProfitLoss string `json:"evlu_pfls_smtl_amt"`
	PurchaseTotal   string `json:"pchs_amt_smtl_amt"`
}

type priceResponse struct {
	Output priceOutput `json:"output"`
}

type priceOutput struct {
	Price      string `json:"stck_prpr"`
	Open       string `json:"stck_oprc"`
	High       string `json:"stck_hgpr"`
	Low        string `json:"stck_lwpr"`
	PrevClose  string `json:"stck_sdpr"`
	ChangeRate string `json:"prdy_ctrt"`
	Volume     string `json:"acml_vol"`
	MarketName string `json:"rprs_mrkt_kor_name"`
}

type pendingResponse struct {
	Orders []pendingOrder `json:"output"`
}

type pendingOrder struct {
	OrderNo    string `json:"odno"`
	Ticker     string `json:"pdno"`
	SideCode   string `json:"sll_buy_dvsn_cd"` // 01 sell, 02 buy
	OrderQty   string `json:"ord_qty"`
	FilledQty  string `json:"tot_ccld_qty"`
	OrderPrice string `json:"ord_unpr"`
}

type orderRequest struct {
	CANO        string `json:"CANO"`
	AcntPrdtCd  string `json:"ACNT_PRDT_CD"`
	Ticker      string `json:"PDNO"`
	OrdDvsn     string `json:"ORD_DVSN"` // 00 limit, 01 market
	OrdQty      string `json:"ORD_QTY"`
	OrdUnpr     string `json:"ORD_UNPR"`
}

type orderResponse struct {
	Output orderOutput `json:"output"`
}

type orderOutput struct {
	OrderNo string `json:"ODNO"`
}

// parseFloat tolerates the API's empty and comma-grouped numeric strings.
func parseFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	return int64(parseFloat(s))
}
