package codemap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxRangeSpan bounds numeric/alpha range expansion. A coverage paragraph
// that appears to reference more than 501 consecutive codes is treated as
// prose that merely looks like a range, and the whole range is discarded.
const maxRangeSpan = 500

// Patterns for mining CPT/HCPCS references out of coverage paragraphs.
var (
	// "CPT code 81235", "CPT/HCPCS codes 81162-81167, 81212 are covered ..."
	// The captured code-list phrase ends at a boundary word, a following
	// CPT/HCPCS mention, punctuation, or end of text.
	codeMentionPattern = regexp.MustCompile(`(?i)(?:CPT/?HCPCS|CPT|HCPCS)\s+codes?\s+([\w,\s\-/]+?)(?:\s+(?:is|are|when|for|if|,\s*(?:CPT|HCPCS))|[.;:(]|$)`)

	// Numeric range: "81162-81167" (hyphen or en dash).
	numericRangePattern = regexp.MustCompile(`^(\d{4,5})\s*[-–]\s*(\d{4,5})$`)

	// Alpha-prefixed range: "J9271-J9275". Both ends must carry the same
	// letter; mismatched prefixes drop the token.
	alphaRangePattern = regexp.MustCompile(`^([A-Z])(\d{4})\s*[-–]\s*([A-Z])(\d{4})$`)

	// Single code: "81235", "J9271", "0016U".
	singleCodePattern = regexp.MustCompile(`^([A-Z]?\d{4,5})$`)

	// Bare letter-plus-four-digits token, used only when the mention
	// pattern finds nothing in the whole paragraph.
	bareAlphaCodePattern = regexp.MustCompile(`\b([A-Z]\d{4})\b`)

	markupTagPattern   = regexp.MustCompile(`<[^>]+>`)
	andSeparatorRegex  = regexp.MustCompile(`(?i)\band\b`)
	codeSeparatorRegex = regexp.MustCompile(`[,/]+`)
)

// ExtractProcedureCodes mines a coverage-group paragraph for CPT/HCPCS code
// references. The paragraph is unescaped and stripped of markup before
// matching. The result is ordered by first textual appearance and is not
// deduplicated. Malformed text never fails; the worst case is an empty list.
//
// When no "CPT/HCPCS code(s) ..." mention yields any codes, a fallback scan
// collects unique bare tokens like "J9271" anywhere in the text. The
// fallback never runs when the primary pattern produced codes.
func ExtractProcedureCodes(paragraphHTML string) []string {
	if paragraphHTML == "" {
		return nil
	}

	text := markupTagPattern.ReplaceAllString(Unescape(paragraphHTML), " ")

	var codes []string
	for _, match := range codeMentionPattern.FindAllStringSubmatch(text, -1) {
		codes = append(codes, parseCodeList(strings.TrimSpace(match[1]))...)
	}
	if len(codes) > 0 {
		return codes
	}

	seen := make(map[string]bool)
	for _, match := range bareAlphaCodePattern.FindAllStringSubmatch(text, -1) {
		code := match[1]
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// parseCodeList parses a comma/slash separated code-list phrase, expanding
// numeric and same-letter alpha ranges. Tokens that match no known shape
// are ignored.
func parseCodeList(codeStr string) []string {
	var codes []string

	codeStr = andSeparatorRegex.ReplaceAllString(codeStr, ",")
	for _, part := range codeSeparatorRegex.Split(codeStr, -1) {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		if m := numericRangePattern.FindStringSubmatch(part); m != nil {
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			if end-start <= maxRangeSpan {
				for c := start; c <= end; c++ {
					codes = append(codes, strconv.Itoa(c))
				}
			}
			continue
		}

		if m := alphaRangePattern.FindStringSubmatch(part); m != nil && m[1] == m[3] {
			start, _ := strconv.Atoi(m[2])
			end, _ := strconv.Atoi(m[4])
			if end-start <= maxRangeSpan {
				for c := start; c <= end; c++ {
					codes = append(codes, fmt.Sprintf("%s%04d", m[1], c))
				}
			}
			continue
		}

		if m := singleCodePattern.FindStringSubmatch(part); m != nil {
			codes = append(codes, m[1])
		}
	}

	return codes
}
