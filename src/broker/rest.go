// REST broker adapter: resty client with HMAC signing and internal retry,
// plus an optional websocket fill stream.
package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"executioncore/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

// RESTAdapter talks to a broker gateway over an authenticated REST API.
type RESTAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	http      *resty.Client
}

// NewRESTAdapter builds an adapter against the given gateway.
func NewRESTAdapter(apiKey, apiSecret, baseURL, wsURL string) *RESTAdapter {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &RESTAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		http:      httpClient,
	}
}

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path
	if query != "" {
		base += query
	}
	base += fmt.Sprintf("%d", expiry)
	if body != "" {
		base += body
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *RESTAdapter) doRequest(ctx context.Context, method, path, query string, body []byte) (*apiResponse, error) {
	expiry := time.Now().Add(1 * time.Minute).Unix()
	sig := signRequest(path, query, string(body), expiry, a.apiSecret)

	req := a.http.R().
		SetContext(ctx).
		SetHeader("x-access-token", a.apiKey).
		SetHeader("x-request-expiry", fmt.Sprintf("%d", expiry)).
		SetHeader("x-request-signature", sig)

	if query != "" {
		req = req.SetQueryString(query)
	}
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API error: %s", apiResp.Msg)
	}
	return &apiResp, nil
}

type submitPayload struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	OrderType     string `json:"order_type"`
	Quantity      string `json:"quantity"`
	LimitPrice    string `json:"limit_price,omitempty"`
}

// SubmitOrder posts the order to the gateway.
func (a *RESTAdapter) SubmitOrder(ctx context.Context, order *model.Order) error {
	payload := submitPayload{
		ClientOrderID: order.OrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		OrderType:     order.OrderType,
		Quantity:      order.TotalQuantity.String(),
	}
	if order.LimitPrice != nil {
		payload.LimitPrice = order.LimitPrice.String()
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := a.doRequest(ctx, http.MethodPost, "/orders", "", b); err != nil {
		logger.WithError(err).WithField("order_id", order.OrderID).Error("failed to submit order")
		return fmt.Errorf("%w: %s", ErrSubmitRejected, err)
	}
	return nil
}

// CancelOrder requests cancellation at the gateway.
func (a *RESTAdapter) CancelOrder(ctx context.Context, orderID string) error {
	_, err := a.doRequest(ctx, http.MethodDelete, "/orders/"+orderID, "", nil)
	return err
}

type statusPayload struct {
	Status         string `json:"status"`
	FilledQuantity string `json:"filled_quantity"`
	AvgPrice       string `json:"avg_price"`
	SubmittedAt    string `json:"submitted_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// GetOrderStatus fetches the venue-side order record.
func (a *RESTAdapter) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusReport, error) {
	resp, err := a.doRequest(ctx, http.MethodGet, "/orders/"+orderID, "", nil)
	if err != nil {
		return nil, err
	}

	var parsed statusPayload
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, err
	}

	filled, err := decimal.NewFromString(parsed.FilledQuantity)
	if err != nil {
		return nil, fmt.Errorf("bad filled_quantity %q: %w", parsed.FilledQuantity, err)
	}
	avgPrice, err := decimal.NewFromString(parsed.AvgPrice)
	if err != nil {
		return nil, fmt.Errorf("bad avg_price %q: %w", parsed.AvgPrice, err)
	}

	report := &OrderStatusReport{
		Status:         parsed.Status,
		FilledQuantity: filled,
		AvgPrice:       avgPrice,
	}
	if parsed.SubmittedAt != "" {
		if ts, err := time.Parse(time.RFC3339, parsed.SubmittedAt); err == nil {
			report.SubmittedAt = ts
		}
	}
	if parsed.CompletedAt != "" {
		if ts, err := time.Parse(time.RFC3339, parsed.CompletedAt); err == nil {
			report.CompletedAt = &ts
		}
	}
	return report, nil
}

// GetMarketPrice quotes the symbol's last price.
func (a *RESTAdapter) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := a.doRequest(ctx, http.MethodGet, "/markets/"+symbol+"/price", "", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, err)
	}

	var parsed struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(parsed.Price)
}

// GetMarketDepth fetches the top levels of the book.
func (a *RESTAdapter) GetMarketDepth(ctx context.Context, symbol string, levels int) (*Depth, error) {
	query := fmt.Sprintf("levels=%d", levels)
	resp, err := a.doRequest(ctx, http.MethodGet, "/markets/"+symbol+"/depth", query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDepth, err)
	}

	var depth Depth
	if err := json.Unmarshal(resp.Data, &depth); err != nil {
		return nil, err
	}
	return &depth, nil
}

type wsFillMessage struct {
	OrderID  string `json:"order_id"`
	ExecID   string `json:"exec_id"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Time     string `json:"time"`
}

// StreamFills consumes the gateway's websocket fill feed until ctx is
// cancelled, invoking onFill for every fill event. Malformed messages are
// logged and skipped.
func (a *RESTAdapter) StreamFills(ctx context.Context, onFill func(orderID string, fill model.Fill)) error {
	if a.wsURL == "" {
		return fmt.Errorf("no websocket URL configured")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("x-access-token", a.apiKey)

	conn, _, err := dialer.DialContext(ctx, a.wsURL+"/fills", header)
	if err != nil {
		return fmt.Errorf("failed to connect fill stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var msg wsFillMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fill stream read failed: %w", err)
		}

		qty, qerr := decimal.NewFromString(msg.Quantity)
		price, perr := decimal.NewFromString(msg.Price)
		if qerr != nil || perr != nil {
			logger.WithFields(logger.Fields{
				"order_id": msg.OrderID,
				"exec_id":  msg.ExecID,
			}).Warn("skipping malformed fill message")
			continue
		}

		fill := model.Fill{
			ExecID:   msg.ExecID,
			Quantity: qty,
			Price:    price,
		}
		if ts, err := time.Parse(time.RFC3339, msg.Time); err == nil {
			fill.Timestamp = ts
		} else {
			fill.Timestamp = time.Now()
		}
		onFill(msg.OrderID, fill)
	}
}
