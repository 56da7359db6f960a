package search

import (
	"context"
	"fmt"

	"github.com/coversearch/coversearch/internal/platform/cms"
)

// Document type filters accepted by the search endpoint.
const (
	DocTypeAll     = "all"
	DocTypeLCD     = "lcd"
	DocTypeNCD     = "ncd"
	DocTypeArticle = "article"
)

// defaultPageSize matches the CMS client's per-report page size.
const defaultPageSize = 50

// CoverageSearcher is the slice of the CMS client the search service needs.
type CoverageSearcher interface {
	SearchLCDs(ctx context.Context, keyword string, page, pageSize int) (*cms.SearchResult, error)
	SearchNCDs(ctx context.Context, keyword string, page, pageSize int) (*cms.SearchResult, error)
	SearchArticles(ctx context.Context, keyword string, page, pageSize int) (*cms.SearchResult, error)
	States() []cms.State
	ContractTypes(ctx context.Context) ([]cms.Document, error)
}

// Service aggregates coverage document search across LCDs, NCDs, and
// articles.
type Service struct {
	client CoverageSearcher
}

func NewService(client CoverageSearcher) *Service {
	return &Service{client: client}
}

// Results holds one page of aggregated search results per document type.
type Results struct {
	LCDs         []cms.Document `json:"lcds"`
	NCDs         []cms.Document `json:"ncds"`
	Articles     []cms.Document `json:"articles"`
	TotalResults int            `json:"total_results"`
	Page         int            `json:"page"`
}

// ValidDocType reports whether docType is an accepted document type filter.
func ValidDocType(docType string) bool {
	switch docType {
	case DocTypeAll, DocTypeLCD, DocTypeNCD, DocTypeArticle:
		return true
	}
	return false
}

// Search queries the selected document types for a keyword and aggregates
// the results. Totals are summed across the searched report types.
func (s *Service) Search(ctx context.Context, keyword, docType string, page int) (*Results, error) {
	if page < 1 {
		page = 1
	}
	results := &Results{
		LCDs:     []cms.Document{},
		NCDs:     []cms.Document{},
		Articles: []cms.Document{},
		Page:     page,
	}

	if docType == DocTypeAll || docType == DocTypeLCD {
		resp, err := s.client.SearchLCDs(ctx, keyword, page, defaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("search LCDs: %w", err)
		}
		results.LCDs = resp.Data
		results.TotalResults += resp.TotalResults
	}

	if docType == DocTypeAll || docType == DocTypeNCD {
		resp, err := s.client.SearchNCDs(ctx, keyword, page, defaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("search NCDs: %w", err)
		}
		results.NCDs = resp.Data
		results.TotalResults += resp.TotalResults
	}

	if docType == DocTypeAll || docType == DocTypeArticle {
		resp, err := s.client.SearchArticles(ctx, keyword, page, defaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("search articles: %w", err)
		}
		results.Articles = resp.Data
		results.TotalResults += resp.TotalResults
	}

	return results, nil
}

// States returns the US states and territories usable as search filters.
func (s *Service) States() []cms.State {
	return s.client.States()
}

// ContractTypes returns the CMS contract-type metadata.
func (s *Service) ContractTypes(ctx context.Context) ([]cms.Document, error) {
	return s.client.ContractTypes(ctx)
}
