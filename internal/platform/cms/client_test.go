package cms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeHTTPClient routes requests by path prefix to canned JSON bodies and
// counts calls per path.
type fakeHTTPClient struct {
	mu        sync.Mutex
	responses map[string]string
	status    map[string]int
	calls     map[string]int
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{
		responses: make(map[string]string),
		status:    make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls[req.URL.Path]++
	f.mu.Unlock()

	body, ok := f.responses[req.URL.Path]
	if !ok {
		body = `{"data": []}`
	}
	status := f.status[req.URL.Path]
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (f *fakeHTTPClient) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestClient(fake *fakeHTTPClient) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://cms.test"
	cfg.HTTPClient = fake
	cfg.RequestInterval = 0
	return NewClient(cfg)
}

func TestLicenseToken_CachedUntilExpiry(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/metadata/license-agreement"] = `{"data":[{"Token":"abc123"}]}`
	client := newTestClient(fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		token, err := client.LicenseToken(ctx)
		if err != nil {
			t.Fatalf("LicenseToken: %v", err)
		}
		if token != "abc123" {
			t.Fatalf("token = %q", token)
		}
	}
	if got := fake.callCount("/v1/metadata/license-agreement"); got != 1 {
		t.Errorf("expected a single upstream token fetch, got %d", got)
	}
}

func TestLicenseToken_RefreshedAfterExpiry(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/metadata/license-agreement"] = `{"data":[{"Token":"abc123"}]}`
	cfg := DefaultConfig()
	cfg.BaseURL = "https://cms.test"
	cfg.HTTPClient = fake
	cfg.RequestInterval = 0
	cfg.LicenseTokenTTL = time.Nanosecond
	client := NewClient(cfg)

	ctx := context.Background()
	if _, err := client.LicenseToken(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := client.LicenseToken(ctx); err != nil {
		t.Fatal(err)
	}
	if got := fake.callCount("/v1/metadata/license-agreement"); got != 2 {
		t.Errorf("expected token refresh after expiry, got %d fetches", got)
	}
}

func TestContractTypes_Cached(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/metadata/contract-type"] = `{"data":[{"contract_type":"A/B MAC"}]}`
	client := newTestClient(fake)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		docs, err := client.ContractTypes(ctx)
		if err != nil {
			t.Fatalf("ContractTypes: %v", err)
		}
		if len(docs) != 1 || docs[0].Str("contract_type") != "A/B MAC" {
			t.Fatalf("docs = %v", docs)
		}
	}
	if got := fake.callCount("/v1/metadata/contract-type"); got != 1 {
		t.Errorf("expected cached contract types, got %d fetches", got)
	}
}

func TestSearchArticles_KeywordFilterAndPagination(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/reports/local-coverage-articles"] = `{"data":[
		{"document_id":1,"title":"Billing and Coding: BRCA Testing"},
		{"document_id":2,"title":"Response to Comments"},
		{"document_id":3,"title":"Billing and Coding: EGFR Analysis"},
		{"document_id":4,"title":"billing guidance addendum"}
	]}`
	client := newTestClient(fake)

	result, err := client.SearchArticles(context.Background(), "billing", 1, 2)
	if err != nil {
		t.Fatalf("SearchArticles: %v", err)
	}
	if result.TotalResults != 3 {
		t.Errorf("totalResults = %d, want 3", result.TotalResults)
	}
	if len(result.Data) != 2 {
		t.Fatalf("page size not applied: %d rows", len(result.Data))
	}
	if result.Data[0].ID() != "1" {
		t.Errorf("first row id = %q, want numeric id rendered as string", result.Data[0].ID())
	}

	page2, err := client.SearchArticles(context.Background(), "billing", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Data) != 1 || page2.Data[0].ID() != "4" {
		t.Errorf("page 2 = %v", page2.Data)
	}
}

func TestSearchArticles_PageBeyondEnd(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/reports/local-coverage-articles"] = `{"data":[{"document_id":1,"title":"Only one"}]}`
	client := newTestClient(fake)

	result, err := client.SearchArticles(context.Background(), "", 9, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 0 || result.TotalResults != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestArticleSub_CachedPerEndpointAndVersion(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/metadata/license-agreement"] = `{"data":[{"Token":"tok"}]}`
	fake.responses["/v1/data/article/hcpc-code"] = `{"data":[{"hcpc_code_id":"81235"}]}`
	client := newTestClient(fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		raw, err := client.ArticleHCPCCodes(ctx, "12345", "2")
		if err != nil {
			t.Fatalf("ArticleHCPCCodes: %v", err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil || len(rows) != 1 {
			t.Fatalf("rows = %s err = %v", raw, err)
		}
	}
	if got := fake.callCount("/v1/data/article/hcpc-code"); got != 1 {
		t.Errorf("expected cached sub-endpoint response, got %d fetches", got)
	}

	// A different version must miss the cache.
	if _, err := client.ArticleHCPCCodes(ctx, "12345", "3"); err != nil {
		t.Fatal(err)
	}
	if got := fake.callCount("/v1/data/article/hcpc-code"); got != 2 {
		t.Errorf("expected cache keyed by version, got %d fetches", got)
	}
}

func TestGetArticleDetail_UnwrapsList(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.responses["/v1/metadata/license-agreement"] = `{"data":[{"Token":"tok"}]}`
	fake.responses["/v1/data/article"] = `{"data":[{"article_id":"52986","article_version":7,"title":"Billing and Coding: MolDX"}]}`
	client := newTestClient(fake)

	doc, err := client.GetArticleDetail(context.Background(), "52986", "1")
	if err != nil {
		t.Fatalf("GetArticleDetail: %v", err)
	}
	if doc.Str("article_id") != "52986" {
		t.Errorf("article_id = %q", doc.Str("article_id"))
	}
	if doc.Str("article_version") != "7" {
		t.Errorf("article_version = %q, want numeric rendered as string", doc.Str("article_version"))
	}
}

func TestGetData_UpstreamError(t *testing.T) {
	fake := newFakeHTTPClient()
	fake.status["/v1/reports/national-coverage-ncd"] = http.StatusBadGateway
	client := newTestClient(fake)

	if _, err := client.SearchNCDs(context.Background(), "", 1, 10); err == nil {
		t.Error("expected error for upstream HTTP 502")
	}
}

func TestRateLimitedHTTPClient_EnforcesInterval(t *testing.T) {
	fake := newFakeHTTPClient()
	limited := NewRateLimitedHTTPClient(fake, 30*time.Millisecond)

	req, _ := http.NewRequest(http.MethodGet, "https://cms.test/v1/x", nil)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := limited.Do(req); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three requests finished in %v, interval not enforced", elapsed)
	}
}

func TestResponseCache_Expiry(t *testing.T) {
	cache := newResponseCache(10 * time.Millisecond)
	cache.set("k", []byte("v"))

	if v, ok := cache.get("k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.get("k"); ok {
		t.Error("expected expiry")
	}
	if cache.len() != 0 {
		t.Error("expired entry should be removed on access")
	}
}
