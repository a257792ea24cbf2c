// Package api 封装东方财富行情列表接口，含请求节流、按状态码重试与 trace 日志；
// 结果按列名组织成 model.Table，列名与旧版行情库一致（代码、名称、最新价、涨跌额、涨跌幅）。
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketValuation/internal/model"
	"marketValuation/internal/trace"
)

// 东方财富接口地址与默认过滤串
const (
	EastMoneyListURL  = "https://82.push2.eastmoney.com/api/qt/clist/get"
	DefaultDomesticFS = "b:MK0010" // 沪深重要指数
	DefaultGlobalFS   = "m:100"    // 全球指数，含美股三大指数与恒生指数
)

// 列表接口请求字段：f2 最新价 f3 涨跌幅(%) f4 涨跌额 f12 代码 f13 市场 f14 名称
const listFields = "f2,f3,f4,f12,f13,f14"

// f13 市场编号：1 上海，0 深圳
const (
	marketShanghai = 1
	prefixShanghai = "sh"
	prefixShenzhen = "sz"
)

// 默认列名
const (
	ColumnCode          = "代码"
	ColumnName          = "名称"
	ColumnLatestPrice   = "最新价"
	ColumnChangeAmount  = "涨跌额"
	ColumnChangePercent = "涨跌幅"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	defaultRateLimit   = 5 // requests per second
	defaultPageSize    = 100
	maxRespLogLen      = 1200
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Filters 三张行情表各自的 fs 过滤串。
type Filters struct {
	Domestic string
	US       string
	HK       string
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       RetryPolicy
	filters     Filters
	columns     map[string]string
	codeAliases map[string]string
	pageSize    int
}

// ClientOption configures the client
type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit 每秒请求数，<=0 表示不限。
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithFilters 覆盖非空的 fs 过滤串。
func WithFilters(f Filters) ClientOption {
	return func(c *Client) {
		if f.Domestic != "" {
			c.filters.Domestic = f.Domestic
		}
		if f.US != "" {
			c.filters.US = f.US
		}
		if f.HK != "" {
			c.filters.HK = f.HK
		}
	}
}

// WithColumns 覆盖字段到列名的映射，如 {"f2": "现价"}，用于对接旧版列名。
func WithColumns(cols map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range cols {
			if v != "" {
				c.columns[k] = v
			}
		}
	}
}

// WithCodeAliases 把数据源代码改写为表内代码，如 NDX -> IXIC。
func WithCodeAliases(aliases map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range aliases {
			c.codeAliases[k] = v
		}
	}
}

func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient 创建客户端；进程启动时配置一次，再注入各行情抓取器。
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    EastMoneyListURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
		retry:      DefaultRetryPolicy(),
		filters: Filters{
			Domestic: DefaultDomesticFS,
			US:       DefaultGlobalFS,
			HK:       DefaultGlobalFS,
		},
		columns: map[string]string{
			"f12": ColumnCode,
			"f14": ColumnName,
			"f2":  ColumnLatestPrice,
			"f4":  ColumnChangeAmount,
			"f3":  ColumnChangePercent,
		},
		codeAliases: map[string]string{},
		pageSize:    defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError 非 2xx 响应。
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.URL)
}

// DomesticSpot 沪深指数实时行情，代码带 sh/sz 前缀。
func (c *Client) DomesticSpot(ctx context.Context) (model.Table, error) {
	return c.spot(ctx, "domestic", c.filters.Domestic, true)
}

// USSpot 美股指数实时行情。
func (c *Client) USSpot(ctx context.Context) (model.Table, error) {
	return c.spot(ctx, "us", c.filters.US, false)
}

// HKSpot 港股指数实时行情。
func (c *Client) HKSpot(ctx context.Context) (model.Table, error) {
	return c.spot(ctx, "hk", c.filters.HK, false)
}

// Get 通用 GET，带节流与重试，返回完整响应体。
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodGet, rawURL, nil)
}

// Post 同 Get；body 每次重试重新读取。
func (c *Client) Post(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodPost, rawURL, body)
}

func (c *Client) spot(ctx context.Context, label, fs string, prefixMarket bool) (model.Table, error) {
	var table model.Table
	page := 1
	trace.Log(ctx, "api: %s spot start fs=%s", label, fs)
	for {
		u := c.listURL(fs, page)
		body, err := c.Get(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s spot page %d: %w", label, page, err)
		}
		rows, total, err := parseTable(body, prefixMarket, c.columns, c.codeAliases)
		if err != nil {
			return nil, fmt.Errorf("%s spot page %d: %w", label, page, err)
		}
		table = append(table, rows...)
		if len(rows) == 0 || len(rows) < c.pageSize || total <= len(table) {
			break
		}
		page++
	}
	trace.Log(ctx, "api: %s spot done rows=%d", label, len(table))
	return table, nil
}

func (c *Client) listURL(fs string, page int) string {
	q := url.Values{}
	q.Set("pn", strconv.Itoa(page))
	q.Set("pz", strconv.Itoa(c.pageSize))
	q.Set("po", "1")
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fid", "f3")
	q.Set("fs", fs)
	q.Set("fields", listFields)
	return c.baseURL + "?" + q.Encode()
}

func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retry.Delay(attempt)
			trace.Log(ctx, "api: retry %d/%d in %s %s err=%v", attempt, c.retry.MaxRetries, backoff, rawURL, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", referer)
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", acceptLanguage)
		trace.Debug(ctx, "api: req %s %s", method, rawURL)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		trace.Debug(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(data), truncateForLog(data))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: rawURL, Body: truncateForLog(data)}
			if c.retry.Retryable(resp.StatusCode) {
				continue
			}
			return nil, lastErr
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}
		return data, nil
	}
	trace.Warn(ctx, "api: doWithRetry fail url=%s err=%v", rawURL, lastErr)
	return nil, fmt.Errorf("%s %s: %d attempts: %w", method, rawURL, c.retry.MaxRetries+1, lastErr)
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		s = s[:maxRespLogLen] + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}
