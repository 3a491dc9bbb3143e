package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"MarketPulse/internal/model"
)

const (
	chartURL   = "https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=%s"
	summaryURL = "https://query2.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=assetProfile,price,summaryDetail"
	cookieURL  = "https://fc.yahoo.com"
	crumbURL   = "https://query2.finance.yahoo.com/v1/test/getcrumb"
)

// YahooFetcher implements Fetcher using the Yahoo Finance public API.
type YahooFetcher struct {
	Client *http.Client
	// BaseChartURL and BaseSummaryURL are format strings; tests point them at a local server.
	BaseChartURL   string
	BaseSummaryURL string
	// CookieURL sets the session cookie that CrumbURL exchanges for a crumb.
	// quoteSummary rejects requests without both.
	CookieURL string
	CrumbURL  string

	mu    sync.Mutex
	crumb string
}

// NewYahooFetcher creates a Yahoo fetcher with optional proxy support.
func NewYahooFetcher(proxyURL string, timeout time.Duration) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	return &YahooFetcher{
		Client:         &http.Client{Timeout: timeout, Transport: transport, Jar: jar},
		BaseChartURL:   chartURL,
		BaseSummaryURL: summaryURL,
		CookieURL:      cookieURL,
		CrumbURL:       crumbURL,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64  `json:"gmtoffset"`
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooValue is the {raw, fmt} wrapper used by quoteSummary.
type yahooValue struct {
	Raw float64 `json:"raw"`
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
			Price struct {
				LongName  string     `json:"longName"`
				ShortName string     `json:"shortName"`
				MarketCap yahooValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingPE    yahooValue `json:"trailingPE"`
				DividendYield yahooValue `json:"dividendYield"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

func deref(v []*float64, i int) float64 {
	if i >= len(v) || v[i] == nil {
		return 0
	}
	return *v[i]
}

func (f *YahooFetcher) get(ctx context.Context, u string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("yahoo: status %d, body: %.200s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("yahoo decode: %w", err)
	}
	return resp.StatusCode, nil
}

// FetchHistory returns daily bars, dated in the exchange's local calendar.
func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol, rng string) ([]model.OHLCV, error) {
	var chart yahooChart
	status, err := f.get(ctx, fmt.Sprintf(f.BaseChartURL, url.PathEscape(symbol), url.QueryEscape(rng)), &chart)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	offset := result.Meta.GMTOffset
	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	seen := make(map[time.Time]int, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := deref(quote.Close, i)
		if c == 0 {
			continue // null bars (holidays, suspensions)
		}
		bar := model.OHLCV{
			Time:   model.TruncateDate(time.Unix(ts+offset, 0).UTC()),
			Open:   deref(quote.Open, i),
			High:   deref(quote.High, i),
			Low:    deref(quote.Low, i),
			Close:  c,
			Volume: int64(deref(quote.Volume, i)),
		}
		// the live session can repeat the last daily bar; keep the newest
		if j, dup := seen[bar.Time]; dup {
			bars[j] = bar
			continue
		}
		seen[bar.Time] = len(bars)
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// FetchProfile returns company metadata from quoteSummary. When Yahoo refuses
// the session, the name is taken from the chart metadata and the rest of the
// profile keeps its defaults.
func (f *YahooFetcher) FetchProfile(ctx context.Context, symbol string) (*model.CompanyProfile, error) {
	crumb, err := f.sessionCrumb(ctx)
	if err != nil {
		return f.profileFromChart(ctx, symbol)
	}

	u := fmt.Sprintf(f.BaseSummaryURL, url.PathEscape(symbol))
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	u += sep + "crumb=" + url.QueryEscape(crumb)

	var sum yahooSummary
	status, err := f.get(ctx, u, &sum)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		f.resetCrumb()
		return f.profileFromChart(ctx, symbol)
	}
	if err != nil {
		return nil, err
	}
	p := &model.CompanyProfile{Symbol: symbol}
	if status == http.StatusNotFound || len(sum.QuoteSummary.Result) == 0 {
		return p, nil
	}
	if sum.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", sum.QuoteSummary.Error.Description)
	}

	r := sum.QuoteSummary.Result[0]
	p.Name = r.Price.LongName
	if p.Name == "" {
		p.Name = r.Price.ShortName
	}
	p.Sector = r.AssetProfile.Sector
	p.Industry = r.AssetProfile.Industry
	p.Description = r.AssetProfile.LongBusinessSummary
	p.MarketCap = int64(r.Price.MarketCap.Raw)
	p.PERatio = r.SummaryDetail.TrailingPE.Raw
	p.DividendYield = r.SummaryDetail.DividendYield.Raw
	return p, nil
}

func (f *YahooFetcher) profileFromChart(ctx context.Context, symbol string) (*model.CompanyProfile, error) {
	var chart yahooChart
	status, err := f.get(ctx, fmt.Sprintf(f.BaseChartURL, url.PathEscape(symbol), "5d"), &chart)
	if err != nil {
		return nil, err
	}
	p := &model.CompanyProfile{Symbol: symbol}
	if status == http.StatusNotFound || len(chart.Chart.Result) == 0 {
		return p, nil
	}
	meta := chart.Chart.Result[0].Meta
	p.Name = meta.LongName
	if p.Name == "" {
		p.Name = meta.ShortName
	}
	return p, nil
}

// sessionCrumb returns the cached crumb, performing the cookie handshake once.
func (f *YahooFetcher) sessionCrumb(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crumb != "" {
		return f.crumb, nil
	}

	// fc.yahoo.com answers 404 but still sets the session cookie.
	if req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.CookieURL, nil); err == nil {
		req.Header.Set("User-Agent", "Mozilla/5.0")
		if resp, err := f.Client.Do(req); err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.CrumbURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || crumb == "" || strings.HasPrefix(crumb, "{") {
		return "", fmt.Errorf("yahoo crumb: status %d", resp.StatusCode)
	}
	f.crumb = crumb
	return crumb, nil
}

func (f *YahooFetcher) resetCrumb() {
	f.mu.Lock()
	f.crumb = ""
	f.mu.Unlock()
}
