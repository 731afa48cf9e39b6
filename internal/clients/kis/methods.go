package kis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/junghoon-woo/danta/internal/domain"
)

var _ domain.BrokerClient = (*Client)(nil)

// GetAccountBalance composes the broker's balance endpoint into one account
// picture: positions plus settled cash and valuation totals.
func (c *Client) GetAccountBalance(ctx context.Context) (*domain.AccountBalance, error) {
	query := url.Values{
		"CANO":                  {c.cano()},
		"ACNT_PRDT_CD":          {c.acntPrd()},
		"AFHR_FLPR_YN":          {"N"},
		"OFL_YN":                {""},
		"INQR_DVSN":             {"02"},
		"UNPR_DVSN":             {"01"},
		"FUND_STTL_ICLD_YN":     {"N"},
		"FNCG_AMT_AUTO_RDPT_YN": {"N"},
		"PRCS_DVSN":             {"00"},
		"CTX_AREA_FK100":        {""},
		"CTX_AREA_NK100":        {""},
	}

	var resp balanceResponse
	err := c.call(ctx, http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-balance",
		c.trID("TTTC8434R", "VTTC8434R"), query, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account balance: %w", err)
	}

	bal := &domain.AccountBalance{}
	for _, pos := range resp.Positions {
		qty := parseInt(pos.Quantity)
		if qty <= 0 {
			continue
		}
		bal.Holdings = append(bal.Holdings, domain.Holding{
			Ticker:       pos.Ticker,
			Name:         pos.Name,
			Quantity:     qty,
			AvgPrice:     parseFloat(pos.AvgPrice),
			CurrentPrice: parseFloat(pos.CurrentPrice),
			ProfitRate:   parseFloat(pos.ProfitRate),
		})
		bal.Invested += parseFloat(pos.PurchaseAmt)
	}
	if len(resp.Summaries) > 0 {
		s := resp.Summaries[0]
		bal.D2Cash = parseFloat(s.D2Cash)
		bal.MaxBuyAmount = parseFloat(s.MaxBuyAmount)
		bal.TotalAssets = parseFloat(s.TotalEval)
		bal.TotalProfitLoss = parseFloat(s.TotalProfitLoss)
	}
	return bal, nil
}

// GetCurrentPrice returns the latest quote for one ticker.
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	query := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_INPUT_ISCD":         {ticker},
	}

	var resp priceResponse
	err := c.call(ctx, http.MethodGet, "/uapi/domestic-stock/v1/quotations/inquire-price",
		"FHKST01010100", query, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price for %s: %w", ticker, err)
	}

	out := resp.Output
	market := domain.MarketKOSPI
	if strings.Contains(out.MarketName, "KOSDAQ") || strings.Contains(out.MarketName, "코스닥") {
		market = domain.MarketKOSDAQ
	}
	return &domain.Quote{
		Ticker:    ticker,
		Market:    market,
		Price:     parseFloat(out.Price),
		Open:      parseFloat(out.Open),
		High:      parseFloat(out.High),
		Low:       parseFloat(out.Low),
		PrevClose: parseFloat(out.PrevClose),
		ChangePct: parseFloat(out.ChangeRate),
		Volume:    parseFloat(out.Volume),
	}, nil
}

// GetPendingOrders lists resting orders that are still cancellable.
func (c *Client) GetPendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	query := url.Values{
		"CANO":              {c.cano()},
		"ACNT_PRDT_CD":      {c.acntPrd()},
		"INQR_DVSN_1":       {"0"},
		"INQR_DVSN_2":       {"0"},
		"CTX_AREA_FK100":    {""},
		"CTX_AREA_NK100":    {""},
	}

	var resp pendingResponse
	err := c.call(ctx, http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-psbl-rvsecncl",
		c.trID("TTTC8036R", "VTTC8036R"), query, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending orders: %w", err)
	}

	var pending []domain.PendingOrder
	for _, o := range resp.Orders {
		side := domain.SideBuy
		if o.SideCode == "01" {
			side = domain.SideSell
		}
		pending = append(pending, domain.PendingOrder{
			BrokerOrderID: o.OrderNo,
			Ticker:        o.Ticker,
			Side:          side,
			Quantity:      parseInt(o.OrderQty),
			FilledQty:     parseInt(o.FilledQty),
			Price:         parseFloat(o.OrderPrice),
		})
	}
	return pending, nil
}

// PlaceBuy submits a cash buy. Price 0 places a market order.
func (c *Client) PlaceBuy(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, domain.SideBuy, ticker, quantity, price)
}

// PlaceSell submits a cash sell. Price 0 places a market order.
func (c *Client) PlaceSell(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, domain.SideSell, ticker, quantity, price)
}

func (c *Client) placeOrder(ctx context.Context, side domain.OrderSide, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	ordDvsn := "00" // limit
	if price == 0 {
		ordDvsn = "01" // market
	}
	payload := orderRequest{
		CANO:       c.cano(),
		AcntPrdtCd: c.acntPrd(),
		Ticker:     ticker,
		OrdDvsn:    ordDvsn,
		OrdQty:     strconv.FormatInt(quantity, 10),
		OrdUnpr:    strconv.FormatInt(int64(price), 10),
	}

	trID := c.trID("TTTC0802U", "VTTC0802U") // buy
	if side == domain.SideSell {
		trID = c.trID("TTTC0801U", "VTTC0801U")
	}

	var resp orderResponse
	err := c.call(ctx, http.MethodPost, "/uapi/domestic-stock/v1/trading/order-cash",
		trID, nil, payload, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s for %s: %w", side, ticker, err)
	}

	c.log.Info().
		Str("ticker", ticker).
		Str("side", string(side)).
		Int64("quantity", quantity).
		Float64("price", price).
		Str("order_id", resp.Output.OrderNo).
		Msg("order accepted")

	return &domain.OrderResult{
		BrokerOrderID: resp.Output.OrderNo,
		Ticker:        ticker,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
	}, nil
}
