package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/loanmon/pkg/retrier"
)

const (
	DefaultOKXBaseURL = "https://www.okx.com"

	okxTimestampLayout = "2006-01-02T15:04:05.000Z"
	okxSuccessCode     = "0"
)

// ErrTransport marks failures where no usable OKX envelope was received:
// network errors, timeouts, 5xx/429 responses and undecodable bodies.
var ErrTransport = errors.New("okx transport failure")

// APIError is a well-formed OKX response with a non-zero code.
type APIError struct {
	Code    string
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return "okx " + e.Path + ": code " + e.Code + ": " + e.Message
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// OKXResponse is a successful OKX envelope.
type OKXResponse struct {
	Code string
	Msg  string
	Data gjson.Result
}

// OKXConfig holds connection settings and credentials.
// Requests are signed only when APIKey is set.
type OKXConfig struct {
	BaseURL           string
	APIKey            string
	SecretKey         string
	Passphrase        string
	Simulated         bool
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// Sender issues OKX REST requests.
type Sender interface {
	Send(ctx context.Context, method, path string, params map[string]string) (*OKXResponse, error)
}

// OKXClient signs, rate limits and retries OKX REST calls.
type OKXClient struct {
	cfg     OKXConfig
	http    *resty.Client
	limiter *rate.Limiter
	retrier *retrier.Retrier
	now     func() time.Time
	logger  *zap.Logger
}

// OKXOption customizes an OKXClient.
type OKXOption func(*OKXClient)

// WithRetrier replaces the default transport retry policy.
func WithRetrier(r *retrier.Retrier) OKXOption {
	return func(c *OKXClient) {
		c.retrier = r
	}
}

// WithOKXClock overrides the clock used for request timestamps.
func WithOKXClock(now func() time.Time) OKXOption {
	return func(c *OKXClient) {
		c.now = now
	}
}

// NewOKXClient builds a client from cfg.
func NewOKXClient(cfg OKXConfig, logger *zap.Logger, opts ...OKXOption) *OKXClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOKXBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	logger = logger.With(zap.String("component", "okx_client"))

	c := &OKXClient{
		cfg:     cfg,
		http:    resty.New().SetTimeout(cfg.RequestTimeout),
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
		logger:  logger,
	}
	c.retrier = retrier.New(
		retrier.WithRetryIf(IsTransport),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Debug("retrying okx request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send performs one logical request. GET params go to the query string,
// other methods send them as a JSON body. Transport failures are retried.
func (c *OKXClient) Send(ctx context.Context, method, path string, params map[string]string) (*OKXResponse, error) {
	method = strings.ToUpper(method)

	requestPath := path
	body := ""
	if method == http.MethodGet {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, v)
			}
			requestPath += "?" + q.Encode()
		}
	} else if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "marshal okx request body")
		}
		body = string(raw)
	}

	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (*OKXResponse, error) {
		return c.do(ctx, method, path, requestPath, body)
	})
}

func (c *OKXClient) do(ctx context.Context, method, path, requestPath, body string) (*OKXResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for okx rate limit")
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers(method, requestPath, body))
	if body != "" {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.cfg.BaseURL+requestPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "%s %s", method, path)
		}
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", method, path, err)
	}

	status := resp.StatusCode()
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return nil, errors.Wrapf(ErrTransport, "%s %s: http status %d", method, path, status)
	}

	raw := resp.Body()
	if !gjson.ValidBytes(raw) {
		return nil, errors.Wrapf(ErrTransport, "%s %s: undecodable body (http status %d)", method, path, status)
	}

	envelope := gjson.ParseBytes(raw)
	code := envelope.Get("code")
	if !code.Exists() {
		return nil, errors.Wrapf(ErrTransport, "%s %s: response without code (http status %d)", method, path, status)
	}
	if code.String() != okxSuccessCode {
		return nil, &APIError{Code: code.String(), Message: envelope.Get("msg").String(), Path: path}
	}

	return &OKXResponse{
		Code: code.String(),
		Msg:  envelope.Get("msg").String(),
		Data: envelope.Get("data"),
	}, nil
}

func (c *OKXClient) headers(method, requestPath, body string) map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if c.cfg.Simulated {
		h["x-simulated-trading"] = "1"
	}
	if c.cfg.APIKey == "" {
		return h
	}

	ts := c.now().UTC().Format(okxTimestampLayout)
	h["OK-ACCESS-KEY"] = c.cfg.APIKey
	h["OK-ACCESS-SIGN"] = Sign(c.cfg.SecretKey, ts, method, requestPath, body)
	h["OK-ACCESS-TIMESTAMP"] = ts
	h["OK-ACCESS-PASSPHRASE"] = c.cfg.Passphrase

	return h
}

// Sign computes the OKX request signature:
// base64(HMAC-SHA256(secret, timestamp + METHOD + requestPath + body)).
func Sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
