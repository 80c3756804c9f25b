// Package httpgateway talks JSON over HTTP to a payment vendor's API facade.
// Signature handling is left to the facade; only the trade status field is consumed.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/shopspring/decimal"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Vendor describes how one gateway encodes amounts and names its trade states.
type Vendor struct {
	Name          string
	ArtifactKind  payment.ArtifactKind
	AmountInCents bool
	TradeStates   map[string]payment.TradeStatus
}

var Alipay = Vendor{
	Name:         "alipay",
	ArtifactKind: payment.ArtifactForm,
	TradeStates: map[string]payment.TradeStatus{
		"TRADE_SUCCESS":  payment.TradeSuccess,
		"TRADE_FINISHED": payment.TradeSuccess,
		"WAIT_BUYER_PAY": payment.TradePending,
		"TRADE_CLOSED":   payment.TradeFailed,
	},
}

var Wechat = Vendor{
	Name:          "wechat",
	ArtifactKind:  payment.ArtifactQRCode,
	AmountInCents: true,
	TradeStates: map[string]payment.TradeStatus{
		"SUCCESS":    payment.TradeSuccess,
		"NOTPAY":     payment.TradePending,
		"USERPAYING": payment.TradePending,
		"CLOSED":     payment.TradeFailed,
		"REVOKED":    payment.TradeFailed,
		"PAYERROR":   payment.TradeFailed,
	},
}

type Client struct {
	Vendor  Vendor
	BaseURL string
	HTTP    *http.Client
}

func New(v Vendor, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Vendor:  v,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.Vendor.Name }

type intentBody struct {
	OutTradeNo string `json:"out_trade_no"`
	Amount     string `json:"total_amount,omitempty"`
	AmountFen  int64  `json:"total_fee,omitempty"`
	Subject    string `json:"subject"`
	NotifyURL  string `json:"notify_url,omitempty"`
}

type intentResp struct {
	Artifact string `json:"artifact"`
	Error    string `json:"error,omitempty"`
}

type queryResp struct {
	TradeStatus *string `json:"trade_status"`
	Error       string  `json:"error,omitempty"`
}

func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Artifact, error) {
	body := intentBody{OutTradeNo: req.OrderNo, Subject: req.Description, NotifyURL: req.CallbackURL}
	if c.Vendor.AmountInCents {
		body.AmountFen = req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	} else {
		body.Amount = req.Amount.StringFixed(2)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return payment.Artifact{}, err
	}

	var out intentResp
	if err := c.do(ctx, http.MethodPost, "/intents", bytes.NewReader(b), &out); err != nil {
		return payment.Artifact{}, err
	}
	if out.Artifact == "" {
		return payment.Artifact{}, fmt.Errorf("%w: missing artifact", payment.ErrMalformedResponse)
	}
	return payment.Artifact{Kind: c.Vendor.ArtifactKind, Content: out.Artifact}, nil
}

func (c *Client) QueryTradeStatus(ctx context.Context, orderNo string) (payment.TradeStatus, error) {
	var out queryResp
	if err := c.do(ctx, http.MethodGet, "/trades/"+url.PathEscape(orderNo), nil, &out); err != nil {
		return "", err
	}
	if out.TradeStatus == nil || *out.TradeStatus == "" {
		return "", fmt.Errorf("%w: missing trade_status", payment.ErrMalformedResponse)
	}
	if ts, ok := c.Vendor.TradeStates[*out.TradeStatus]; ok {
		return ts, nil
	}
	return payment.TradeUnknown, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", payment.ErrMalformedResponse, err)
	}
	return nil
}
