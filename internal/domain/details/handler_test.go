package details

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/coversearch/coversearch/internal/platform/cms"
)

func newDetailContext(e *echo.Echo, target, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestGetLCDHandler_ReturnsDocument(t *testing.T) {
	f := &fakeDocumentClient{lcd: cms.Document{"document_id": "33333", "title": "Some LCD"}}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, rec := newDetailContext(e, "/api/v1/lcd/33333", "33333")

	if err := h.GetLCD(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if doc["title"] != "Some LCD" {
		t.Errorf("expected LCD title, got %v", doc["title"])
	}
}

func TestGetLCDHandler_NotFound(t *testing.T) {
	f := &fakeDocumentClient{lcd: cms.Document{}}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, _ := newDetailContext(e, "/api/v1/lcd/99999", "99999")

	err := h.GetLCD(c)
	if err == nil {
		t.Fatal("expected error for empty document")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestGetNCDHandler_UpstreamFailure(t *testing.T) {
	f := &fakeDocumentClient{ncdErr: errors.New("cms unavailable")}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, _ := newDetailContext(e, "/api/v1/ncd/240", "240")

	err := h.GetNCD(c)
	if err == nil {
		t.Fatal("expected error when upstream fails")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}

func TestGetArticleHandler_ReturnsDocument(t *testing.T) {
	f := &fakeDocumentClient{article: cms.Document{"document_id": "12345", "title": "Billing and Coding: EGFR"}}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, rec := newDetailContext(e, "/api/v1/article/12345", "12345")

	if err := h.GetArticle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetArticleCodesHandler_ReturnsBundle(t *testing.T) {
	f := &fakeDocumentClient{
		article: cms.Document{"document_id": "12345", "article_version": "2"},
		subData: map[string]string{
			"hcpc-code":           `[{"hcpc_code_id": "81235", "long_description": "EGFR gene analysis"}]`,
			"icd10-covered":       `[{"icd10_code_id": "C34.10", "description": "Malignant neoplasm of lung", "icd10_covered_group": 1}]`,
			"icd10-covered-group": `[{"icd10_covered_group": 1, "paragraph": "CPT code 81235 is covered."}]`,
		},
	}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, rec := newDetailContext(e, "/api/v1/article/12345/codes", "12345")

	if err := h.GetArticleCodes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Mapping struct {
			ByCPT map[string]struct {
				Code       string `json:"code"`
				ICD10Codes []struct {
					Code string `json:"code"`
				} `json:"icd10_codes"`
			} `json:"by_cpt"`
		} `json:"mapping"`
		HCPCCodes []map[string]any `json:"hcpc_codes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	entry, ok := body.Mapping.ByCPT["81235"]
	if !ok {
		t.Fatal("expected 81235 in mapping")
	}
	if len(entry.ICD10Codes) != 1 || entry.ICD10Codes[0].Code != "C34.10" {
		t.Errorf("expected diagnosis C34.10, got %+v", entry.ICD10Codes)
	}
	if len(body.HCPCCodes) != 1 {
		t.Errorf("expected raw hcpc rows passed through, got %+v", body.HCPCCodes)
	}
}

func TestGetArticleCodesHandler_UpstreamFailure(t *testing.T) {
	f := &fakeDocumentClient{articleErr: errors.New("cms unavailable")}
	h := NewHandler(NewService(f))
	e := echo.New()
	c, _ := newDetailContext(e, "/api/v1/article/12345/codes", "12345")

	err := h.GetArticleCodes(c)
	if err == nil {
		t.Fatal("expected error when upstream fails")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}
