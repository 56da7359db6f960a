package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSearchHandler_RequiresKeyword(t *testing.T) {
	h := NewHandler(NewService(&fakeSearcher{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Search(c)
	if err == nil {
		t.Fatal("expected error for missing keyword")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSearchHandler_RejectsBadDocType(t *testing.T) {
	h := NewHandler(NewService(&fakeSearcher{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?keyword=diabetes&doc_type=mcd", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Search(c)
	if err == nil {
		t.Fatal("expected error for bad doc_type")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSearchHandler_RejectsBadPage(t *testing.T) {
	h := NewHandler(NewService(&fakeSearcher{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?keyword=diabetes&page=zero", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Search(c)
	if err == nil {
		t.Fatal("expected error for non-numeric page")
	}
}

func TestSearchHandler_ReturnsAggregatedResults(t *testing.T) {
	f := &fakeSearcher{
		lcds:     result(1, "LCD one"),
		ncds:     result(1, "NCD one"),
		articles: result(1, "Article one"),
	}
	h := NewHandler(NewService(f))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?keyword=diabetes", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body Results
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.TotalResults != 3 {
		t.Errorf("expected total 3, got %d", body.TotalResults)
	}
	if len(body.LCDs) != 1 || len(body.NCDs) != 1 || len(body.Articles) != 1 {
		t.Errorf("expected one document per type, got %+v", body)
	}
}

func TestStatesHandler(t *testing.T) {
	h := NewHandler(NewService(&fakeSearcher{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/meta/states", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.States(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		States []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"states"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(body.States) != 1 || body.States[0].Code != "AL" {
		t.Errorf("unexpected states payload: %+v", body.States)
	}
}

func TestContractTypesHandler(t *testing.T) {
	h := NewHandler(NewService(&fakeSearcher{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/meta/contract-types", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ContractTypes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
