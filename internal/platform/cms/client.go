package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public CMS Coverage API endpoint.
const DefaultBaseURL = "https://api.coverage.cms.gov"

// DefaultUserAgent is the User-Agent header sent with CMS requests.
const DefaultUserAgent = "coversearch/1.0"

// Default cache and token lifetimes. The license token TTL sits just under
// the upstream hour so a cached token is never presented stale.
const (
	DefaultLicenseTokenTTL  = 3500 * time.Second
	DefaultMetadataCacheTTL = time.Hour
	DefaultCodeCacheTTL     = time.Hour
	DefaultRequestInterval  = 100 * time.Millisecond
)

// Config holds configuration for a Client.
type Config struct {
	// BaseURL is the CMS Coverage API base URL. Default: DefaultBaseURL.
	BaseURL string

	// HTTPClient is the underlying HTTP client. If nil, http.DefaultClient
	// is used, wrapped with rate limiting.
	HTTPClient HTTPClient

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// LicenseTokenTTL is how long a fetched license token is reused.
	LicenseTokenTTL time.Duration

	// MetadataCacheTTL is the TTL for cached metadata (contract types).
	MetadataCacheTTL time.Duration

	// CodeCacheTTL is the TTL for cached article sub-endpoint responses.
	CodeCacheTTL time.Duration

	// RequestInterval is the minimum interval between upstream requests.
	RequestInterval time.Duration

	// Logger receives client-level diagnostics.
	Logger zerolog.Logger
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		UserAgent:        DefaultUserAgent,
		LicenseTokenTTL:  DefaultLicenseTokenTTL,
		MetadataCacheTTL: DefaultMetadataCacheTTL,
		CodeCacheTTL:     DefaultCodeCacheTTL,
		RequestInterval:  DefaultRequestInterval,
	}
}

// Client talks to the CMS Coverage API: license token management, metadata,
// coverage report search, document details, and article code sub-endpoints,
// with TTL caching and rate limiting. All upstream state is process-scoped
// and carries explicit expiry timestamps.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	userAgent  string
	logger     zerolog.Logger

	tokenMu        sync.Mutex
	licenseToken   string
	tokenExpiresAt time.Time
	tokenTTL       time.Duration

	metadataCache *responseCache
	codeCache     *responseCache
}

// NewClient creates a CMS Coverage API client. Zero-value config fields fall
// back to the defaults from DefaultConfig.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.LicenseTokenTTL <= 0 {
		cfg.LicenseTokenTTL = DefaultLicenseTokenTTL
	}
	if cfg.MetadataCacheTTL <= 0 {
		cfg.MetadataCacheTTL = DefaultMetadataCacheTTL
	}
	if cfg.CodeCacheTTL <= 0 {
		cfg.CodeCacheTTL = DefaultCodeCacheTTL
	}

	underlying := cfg.HTTPClient
	if underlying == nil {
		underlying = http.DefaultClient
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    NewRateLimitedHTTPClient(underlying, cfg.RequestInterval),
		userAgent:     cfg.UserAgent,
		logger:        cfg.Logger,
		tokenTTL:      cfg.LicenseTokenTTL,
		metadataCache: newResponseCache(cfg.MetadataCacheTTL),
		codeCache:     newResponseCache(cfg.CodeCacheTTL),
	}
}

// envelope is the standard CMS response wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// getData performs a GET against the API and returns the response's data
// field. An empty token sends an unauthenticated request.
func (c *Client) getData(ctx context.Context, path string, params url.Values, token string) (json.RawMessage, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("CMS API returned HTTP %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response for %s: %w", path, err)
	}
	return env.Data, nil
}

// LicenseToken returns the current license agreement token, fetching a new
// one when the cached token has expired.
func (c *Client) LicenseToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.licenseToken != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.licenseToken, nil
	}

	data, err := c.getData(ctx, "/v1/metadata/license-agreement", nil, "")
	if err != nil {
		return "", fmt.Errorf("fetch license token: %w", err)
	}

	var rows []struct {
		Token string `json:"Token"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("decode license token: %w", err)
	}

	c.licenseToken = ""
	if len(rows) > 0 {
		c.licenseToken = rows[0].Token
	}
	c.tokenExpiresAt = time.Now().Add(c.tokenTTL)
	c.logger.Debug().Time("expires_at", c.tokenExpiresAt).Msg("refreshed CMS license token")
	return c.licenseToken, nil
}

// ContractTypes returns the contract-type metadata, cached for the
// configured metadata TTL.
func (c *Client) ContractTypes(ctx context.Context) ([]Document, error) {
	const cacheKey = "metadata/contract-type"
	if cached, ok := c.metadataCache.get(cacheKey); ok {
		var docs []Document
		if err := json.Unmarshal(cached, &docs); err == nil {
			return docs, nil
		}
	}

	data, err := c.getData(ctx, "/v1/metadata/contract-type", nil, "")
	if err != nil {
		return nil, fmt.Errorf("fetch contract types: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode contract types: %w", err)
	}
	c.metadataCache.set(cacheKey, data)
	return docs, nil
}

// searchReport fetches a full coverage report and applies the local keyword
// filter and pagination. The upstream report endpoints have no server-side
// keyword search, so filtering happens here, on title, case-insensitively.
func (c *Client) searchReport(ctx context.Context, path, keyword string, page, pageSize int) (*SearchResult, error) {
	data, err := c.getData(ctx, path, nil, "")
	if err != nil {
		return nil, err
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}

	if keyword != "" {
		needle := strings.ToLower(keyword)
		filtered := docs[:0:0]
		for _, d := range docs {
			if strings.Contains(strings.ToLower(d.Title()), needle) {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	total := len(docs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &SearchResult{
		Data:         docs[start:end],
		TotalResults: total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// SearchLCDs searches final Local Coverage Determinations.
func (c *Client) SearchLCDs(ctx context.Context, keyword string, page, pageSize int) (*SearchResult, error) {
	return c.searchReport(ctx, "/v1/reports/local-coverage-final-lcds", keyword, page, pageSize)
}

// SearchNCDs searches National Coverage Determinations.
func (c *Client) SearchNCDs(ctx context.Context, keyword string, page, pageSize int) (*SearchResult, error) {
	return c.searchReport(ctx, "/v1/reports/national-coverage-ncd", keyword, page, pageSize)
}

// SearchArticles searches local coverage articles.
func (c *Client) SearchArticles(ctx context.Context, keyword string, page, pageSize int) (*SearchResult, error) {
	return c.searchReport(ctx, "/v1/reports/local-coverage-articles", keyword, page, pageSize)
}

// getDetail fetches a document detail endpoint and unwraps the first element
// when the upstream returns a list.
func (c *Client) getDetail(ctx context.Context, path string, params url.Values, withToken bool) (Document, error) {
	token := ""
	if withToken {
		t, err := c.LicenseToken(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	data, err := c.getData(ctx, path, params, token)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode detail %s: %w", path, err)
	}
	if len(docs) == 0 {
		return Document{}, nil
	}
	return docs[0], nil
}

// GetLCDDetail fetches detail for one LCD.
func (c *Client) GetLCDDetail(ctx context.Context, lcdID, version string) (Document, error) {
	params := url.Values{"lcdid": {lcdID}, "lcdver": {versionOrDefault(version)}}
	return c.getDetail(ctx, "/v1/data/lcd", params, true)
}

// GetNCDDetail fetches detail for one NCD.
func (c *Client) GetNCDDetail(ctx context.Context, ncdID, version string) (Document, error) {
	params := url.Values{"ncdid": {ncdID}, "ncdver": {versionOrDefault(version)}}
	return c.getDetail(ctx, "/v1/data/ncd", params, false)
}

// GetArticleDetail fetches detail for one article.
func (c *Client) GetArticleDetail(ctx context.Context, articleID, version string) (Document, error) {
	params := url.Values{"articleid": {articleID}, "articlever": {versionOrDefault(version)}}
	return c.getDetail(ctx, "/v1/data/article", params, true)
}

// articleSub fetches an article sub-endpoint with TTL caching keyed by
// (endpoint, article, version).
func (c *Client) articleSub(ctx context.Context, subEndpoint, articleID, version string) (json.RawMessage, error) {
	version = versionOrDefault(version)
	cacheKey := subEndpoint + "|" + articleID + "|" + version
	if cached, ok := c.codeCache.get(cacheKey); ok {
		return cached, nil
	}

	token, err := c.LicenseToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{"articleid": {articleID}, "ver": {version}}
	data, err := c.getData(ctx, "/v1/data/article/"+subEndpoint, params, token)
	if err != nil {
		return nil, fmt.Errorf("fetch article %s %s: %w", articleID, subEndpoint, err)
	}
	if data == nil {
		data = json.RawMessage("[]")
	}

	c.codeCache.set(cacheKey, data)
	return data, nil
}

// ArticleHCPCCodes returns the article's hcpc-code rows.
func (c *Client) ArticleHCPCCodes(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "hcpc-code", articleID, version)
}

// ArticleHCPCCodeGroups returns the article's hcpc-code-group rows.
func (c *Client) ArticleHCPCCodeGroups(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "hcpc-code-group", articleID, version)
}

// ArticleICD10Covered returns the article's icd10-covered rows.
func (c *Client) ArticleICD10Covered(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "icd10-covered", articleID, version)
}

// ArticleICD10CoveredGroups returns the article's icd10-covered-group rows.
func (c *Client) ArticleICD10CoveredGroups(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "icd10-covered-group", articleID, version)
}

// ArticleICD10Noncovered returns the article's icd10-noncovered rows.
func (c *Client) ArticleICD10Noncovered(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "icd10-noncovered", articleID, version)
}

// ArticleICD10NoncoveredGroups returns the article's icd10-noncovered-group rows.
func (c *Client) ArticleICD10NoncoveredGroups(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "icd10-noncovered-group", articleID, version)
}

// ArticleICD10PCSCodes returns the article's icd10-pcs-code rows.
func (c *Client) ArticleICD10PCSCodes(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "icd10-pcs-code", articleID, version)
}

// ArticleHCPCModifiers returns the article's hcpc-modifier rows.
func (c *Client) ArticleHCPCModifiers(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "hcpc-modifier", articleID, version)
}

// ArticleBillCodes returns the article's bill-codes rows.
func (c *Client) ArticleBillCodes(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "bill-codes", articleID, version)
}

// ArticleRevenueCodes returns the article's revenue-code rows.
func (c *Client) ArticleRevenueCodes(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "revenue-code", articleID, version)
}

// ArticleRelatedDocuments returns the article's related-documents rows.
func (c *Client) ArticleRelatedDocuments(ctx context.Context, articleID, version string) (json.RawMessage, error) {
	return c.articleSub(ctx, "related-documents", articleID, version)
}

func versionOrDefault(version string) string {
	if version == "" {
		return "1"
	}
	return version
}
