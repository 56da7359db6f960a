package codemap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coversearch/coversearch/internal/platform/cms"
)

// Search directions accepted by the code lookup.
const (
	DirectionForward = "cpt_to_icd"
	DirectionReverse = "icd_to_cpt"
)

// candidateFetchSize is how many articles the candidate search pulls before
// the billing/coding preference and the article limit are applied.
const candidateFetchSize = 5000

// CoverageClient is the slice of the CMS client the code lookup needs.
type CoverageClient interface {
	SearchArticles(ctx context.Context, keyword string, page, pageSize int) (*cms.SearchResult, error)
	ArticleHCPCCodes(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10Covered(ctx context.Context, articleID, version string) (json.RawMessage, error)
	ArticleICD10CoveredGroups(ctx context.Context, articleID, version string) (json.RawMessage, error)
}

// Service runs code lookups across local coverage articles.
type Service struct {
	client       CoverageClient
	articleLimit int
	logger       zerolog.Logger
}

// NewService creates a code lookup service. articleLimit caps how many
// candidate articles one lookup may probe.
func NewService(client CoverageClient, articleLimit int, logger zerolog.Logger) *Service {
	if articleLimit <= 0 {
		articleLimit = 50
	}
	return &Service{client: client, articleLimit: articleLimit, logger: logger}
}

// ForwardMatch is one article where a CPT/HCPCS code resolved to covered
// ICD-10 codes.
type ForwardMatch struct {
	ArticleID      string          `json:"article_id"`
	ArticleVersion string          `json:"article_version"`
	ArticleTitle   string          `json:"article_title"`
	Contractor     string          `json:"contractor"`
	CPTCode        string          `json:"cpt_code"`
	CPTDescription string          `json:"cpt_description"`
	ICD10Codes     []DiagnosisCode `json:"icd10_codes"`
}

// ReverseMatch is one article where an ICD-10 code resolved to CPT/HCPCS
// codes.
type ReverseMatch struct {
	ArticleID        string         `json:"article_id"`
	ArticleVersion   string         `json:"article_version"`
	ArticleTitle     string         `json:"article_title"`
	Contractor       string         `json:"contractor"`
	ICD10Code        string         `json:"icd10_code"`
	ICD10Description string         `json:"icd10_description"`
	CPTCodes         []ProcedureRef `json:"cpt_codes"`
}

// candidateArticles picks the articles worth probing for a code lookup:
// a keyword search, narrowed to billing/coding articles when any match,
// capped at the configured limit.
func (s *Service) candidateArticles(ctx context.Context, keyword string) ([]cms.Document, error) {
	resp, err := s.client.SearchArticles(ctx, keyword, 1, candidateFetchSize)
	if err != nil {
		return nil, fmt.Errorf("search candidate articles: %w", err)
	}
	articles := resp.Data

	var billing []cms.Document
	for _, a := range articles {
		title := strings.ToLower(a.Title())
		if strings.Contains(title, "billing") || strings.Contains(title, "coding") {
			billing = append(billing, a)
		}
	}
	if len(billing) > 0 {
		articles = billing
	}

	if len(articles) > s.articleLimit {
		articles = articles[:s.articleLimit]
	}
	return articles, nil
}

// SearchForward finds, per candidate article, the ICD-10 codes a CPT/HCPCS
// code maps to. Articles that fail to load or do not list the code are
// skipped; results keep the candidate order.
func (s *Service) SearchForward(ctx context.Context, code, keyword string) ([]ForwardMatch, error) {
	articles, err := s.candidateArticles(ctx, keyword)
	if err != nil {
		return nil, err
	}

	matches := make([]*ForwardMatch, len(articles))
	var wg sync.WaitGroup
	for i, art := range articles {
		wg.Add(1)
		go func(i int, art cms.Document) {
			defer wg.Done()
			matches[i] = s.checkArticleForward(ctx, code, art)
		}(i, art)
	}
	wg.Wait()

	results := make([]ForwardMatch, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			results = append(results, *m)
		}
	}
	return results, nil
}

func (s *Service) checkArticleForward(ctx context.Context, code string, art cms.Document) *ForwardMatch {
	articleID := art.ID()
	version := art.Version()

	procedures, err := s.articleProcedures(ctx, articleID, version)
	if err != nil {
		s.logger.Debug().Err(err).Str("article_id", articleID).Msg("skipping article in code lookup")
		return nil
	}
	if !containsProcedureCode(procedures, code) {
		return nil
	}

	diagnoses, coverageGroups, err := s.articleDiagnosisData(ctx, articleID, version)
	if err != nil {
		s.logger.Debug().Err(err).Str("article_id", articleID).Msg("skipping article in code lookup")
		return nil
	}

	mapping := BuildForwardMapping(procedures, diagnoses, coverageGroups)
	entry, ok := mapping.ByProcedureCode.Get(code)
	if !ok || len(entry.ICD10Codes) == 0 {
		return nil
	}

	return &ForwardMatch{
		ArticleID:      articleID,
		ArticleVersion: version,
		ArticleTitle:   art.Title(),
		Contractor:     contractorName(art),
		CPTCode:        code,
		CPTDescription: entry.Description,
		ICD10Codes:     entry.ICD10Codes,
	}
}

// SearchReverse finds, per candidate article, the CPT/HCPCS codes whose
// mapping contains an ICD-10 code.
func (s *Service) SearchReverse(ctx context.Context, code, keyword string) ([]ReverseMatch, error) {
	articles, err := s.candidateArticles(ctx, keyword)
	if err != nil {
		return nil, err
	}

	matches := make([]*ReverseMatch, len(articles))
	var wg sync.WaitGroup
	for i, art := range articles {
		wg.Add(1)
		go func(i int, art cms.Document) {
			defer wg.Done()
			matches[i] = s.checkArticleReverse(ctx, code, art)
		}(i, art)
	}
	wg.Wait()

	results := make([]ReverseMatch, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			results = append(results, *m)
		}
	}
	return results, nil
}

func (s *Service) checkArticleReverse(ctx context.Context, code string, art cms.Document) *ReverseMatch {
	articleID := art.ID()
	version := art.Version()

	raw, err := s.client.ArticleICD10Covered(ctx, articleID, version)
	if err != nil {
		s.logger.Debug().Err(err).Str("article_id", articleID).Msg("skipping article in code lookup")
		return nil
	}
	var diagnoses []DiagnosisRecord
	if err := json.Unmarshal(raw, &diagnoses); err != nil {
		return nil
	}

	description := ""
	found := false
	for _, d := range diagnoses {
		if strings.ToUpper(strings.TrimSpace(d.ICD10CodeID)) == code {
			description = d.Description
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	procedures, err := s.articleProcedures(ctx, articleID, version)
	if err != nil {
		return nil
	}
	rawGroups, err := s.client.ArticleICD10CoveredGroups(ctx, articleID, version)
	if err != nil {
		return nil
	}
	var coverageGroups []CoverageGroupRecord
	if err := json.Unmarshal(rawGroups, &coverageGroups); err != nil {
		return nil
	}

	mapping := BuildForwardMapping(procedures, diagnoses, coverageGroups)

	var matched []ProcedureRef
	for _, procedureCode := range mapping.ByProcedureCode.Codes() {
		entry, _ := mapping.ByProcedureCode.Get(procedureCode)
		for _, d := range entry.ICD10Codes {
			if strings.ToUpper(d.Code) == code {
				matched = append(matched, ProcedureRef{
					Code:        procedureCode,
					Description: entry.Description,
				})
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	return &ReverseMatch{
		ArticleID:        articleID,
		ArticleVersion:   version,
		ArticleTitle:     art.Title(),
		Contractor:       contractorName(art),
		ICD10Code:        code,
		ICD10Description: description,
		CPTCodes:         matched,
	}
}

func (s *Service) articleProcedures(ctx context.Context, articleID, version string) ([]ProcedureRecord, error) {
	raw, err := s.client.ArticleHCPCCodes(ctx, articleID, version)
	if err != nil {
		return nil, err
	}
	var procedures []ProcedureRecord
	if err := json.Unmarshal(raw, &procedures); err != nil {
		return nil, fmt.Errorf("decode hcpc codes for article %s: %w", articleID, err)
	}
	return procedures, nil
}

func (s *Service) articleDiagnosisData(ctx context.Context, articleID, version string) ([]DiagnosisRecord, []CoverageGroupRecord, error) {
	raw, err := s.client.ArticleICD10Covered(ctx, articleID, version)
	if err != nil {
		return nil, nil, err
	}
	var diagnoses []DiagnosisRecord
	if err := json.Unmarshal(raw, &diagnoses); err != nil {
		return nil, nil, fmt.Errorf("decode icd10 covered for article %s: %w", articleID, err)
	}

	rawGroups, err := s.client.ArticleICD10CoveredGroups(ctx, articleID, version)
	if err != nil {
		return nil, nil, err
	}
	var coverageGroups []CoverageGroupRecord
	if err := json.Unmarshal(rawGroups, &coverageGroups); err != nil {
		return nil, nil, fmt.Errorf("decode icd10 covered groups for article %s: %w", articleID, err)
	}
	return diagnoses, coverageGroups, nil
}

func containsProcedureCode(procedures []ProcedureRecord, code string) bool {
	for _, p := range procedures {
		if strings.ToUpper(strings.TrimSpace(p.HCPCCodeID)) == code {
			return true
		}
	}
	return false
}

// contractorName renders the article's contractor field, which upstream
// separates with CRLF pairs.
func contractorName(art cms.Document) string {
	return strings.ReplaceAll(art.Str("contractor_name_type"), "\r\n", " / ")
}
