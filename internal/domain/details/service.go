package details

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coversearch/coversearch/internal/domain/codemap"
	"github.com/coversearch/coversearch/internal/platform/cms"
)

// DocumentClient is the slice of the CMS client the detail views need.
type DocumentClient interface {
	GetLCDDetail(ctx context.Context, lcdID, version string) (cms.Document, error)
	GetNCDDetail(ctx context.Context, ncdID, version string) (cms.Document, error)
	GetArticleDetail(ctx context.Context, articleID, version string) (cms.Document, error)

	ArticleHCPCCodes(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleHCPCCodeGroups(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10Covered(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10CoveredGroups(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10Noncovered(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10NoncoveredGroups(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10PCSCodes(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleHCPCModifiers(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleBillCodes(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleRevenueCodes(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleRelatedDocuments(ctx context.Context, articleID, version string) (json.RawMessage, error)
}

// Service serves coverage document detail views and the per-article code
// bundle.
type Service struct {
	client DocumentClient
}

func NewService(client DocumentClient) *Service {
	return &Service{client: client}
}

// GetLCD fetches detail for one LCD.
func (s *Service) GetLCD(ctx context.Context, id, version string) (cms.Document, error) {
	return s.client.GetLCDDetail(ctx, id, version)
}

// GetNCD fetches detail for one NCD.
func (s *Service) GetNCD(ctx context.Context, id, version string) (cms.Document, error) {
	return s.client.GetNCDDetail(ctx, id, version)
}

// GetArticle fetches detail for one article.
func (s *Service) GetArticle(ctx context.Context, id, version string) (cms.Document, error) {
	return s.client.GetArticleDetail(ctx, id, version)
}

// ArticleCodes is the full structured-code bundle for one article.
type ArticleCodes struct {
	Article cms.Document `json:"article"`

	HCPCCodes             json.RawMessage         `json:"hcpc_codes"`
	HCPCGroups            json.RawMessage         `json:"hcpc_groups"`
	ICD10Covered          json.RawMessage         `json:"icd10_covered"`
	ICD10Noncovered       json.RawMessage         `json:"icd10_noncovered"`
	ICD10NoncoveredGroups []map[string]any        `json:"icd10_noncovered_groups"`
	ICD10PCS              json.RawMessage         `json:"icd10_pcs"`
	Modifiers             json.RawMessage         `json:"modifiers"`
	BillCodes             json.RawMessage         `json:"bill_codes"`
	RevenueCodes          json.RawMessage         `json:"revenue_codes"`
	RelatedDocs           json.RawMessage         `json:"related_docs"`
	Mapping               *codemap.ForwardMapping `json:"mapping"`
}

// GetArticleCodes assembles the code bundle for one article: the article
// detail pins the actual version (the API may serve the latest), then every
// code sub-endpoint is fetched concurrently and the CPT/HCPCS → ICD-10
// mapping is built from the covered-code rows.
func (s *Service) GetArticleCodes(ctx context.Context, articleID, version string) (*ArticleCodes, error) {
	article, err := s.client.GetArticleDetail(ctx, articleID, version)
	if err != nil {
		return nil, fmt.Errorf("fetch article detail: %w", err)
	}

	actualVersion := version
	if v := article.Str("article_version"); v != "" {
		actualVersion = v
	}

	fetches := []func(context.Context, string, string) (json.RawMessage, error){
		s.client.ArticleHCPCCodes,
		s.client.ArticleHCPCCodeGroups,
		s.client.ArticleICD10Covered,
		s.client.ArticleICD10CoveredGroups,
		s.client.ArticleICD10Noncovered,
		s.client.ArticleICD10NoncoveredGroups,
		s.client.ArticleICD10PCSCodes,
		s.client.ArticleHCPCModifiers,
		s.client.ArticleBillCodes,
		s.client.ArticleRevenueCodes,
		s.client.ArticleRelatedDocuments,
	}

	raw := make([]json.RawMessage, len(fetches))
	errs := make([]error, len(fetches))
	var wg sync.WaitGroup
	for i := range fetches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw[i], errs[i] = fetches[i](ctx, articleID, actualVersion)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch article codes: %w", err)
		}
	}

	var (
		procedures     []codemap.ProcedureRecord
		diagnoses      []codemap.DiagnosisRecord
		coverageGroups []codemap.CoverageGroupRecord
	)
	if err := json.Unmarshal(raw[0], &procedures); err != nil {
		return nil, fmt.Errorf("decode hcpc codes: %w", err)
	}
	if err := json.Unmarshal(raw[2], &diagnoses); err != nil {
		return nil, fmt.Errorf("decode icd10 covered: %w", err)
	}
	if err := json.Unmarshal(raw[3], &coverageGroups); err != nil {
		return nil, fmt.Errorf("decode icd10 covered groups: %w", err)
	}

	noncoveredGroups, err := unescapeGroupParagraphs(raw[5])
	if err != nil {
		return nil, fmt.Errorf("decode icd10 noncovered groups: %w", err)
	}

	return &ArticleCodes{
		Article:               article,
		HCPCCodes:             raw[0],
		HCPCGroups:            raw[1],
		ICD10Covered:          raw[2],
		ICD10Noncovered:       raw[4],
		ICD10NoncoveredGroups: noncoveredGroups,
		ICD10PCS:              raw[6],
		Modifiers:             raw[7],
		BillCodes:             raw[8],
		RevenueCodes:          raw[9],
		RelatedDocs:           raw[10],
		Mapping:               codemap.BuildForwardMapping(procedures, diagnoses, coverageGroups),
	}, nil
}

// unescapeGroupParagraphs decodes group rows and unescapes each paragraph,
// leaving all other fields untouched.
func unescapeGroupParagraphs(raw json.RawMessage) ([]map[string]any, error) {
	var groups []map[string]any
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if p, ok := g["paragraph"].(string); ok {
			g["paragraph"] = codemap.Unescape(p)
		}
	}
	if groups == nil {
		groups = []map[string]any{}
	}
	return groups, nil
}
