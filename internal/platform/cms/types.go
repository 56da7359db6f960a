package cms

import (
	"fmt"
	"strconv"
)

// Document is one row from a CMS coverage report or detail response. The
// upstream schema varies by report type, so rows stay loose JSON objects
// with typed accessors for the handful of fields this service reads.
type Document map[string]any

// Str returns the value under key rendered as a string. Upstream sends some
// identifiers as JSON numbers, so those are formatted without a decimal part.
func (d Document) Str(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Title returns the document title.
func (d Document) Title() string { return d.Str("title") }

// ID returns the document identifier.
func (d Document) ID() string { return d.Str("document_id") }

// Version returns the document version, defaulting to "1".
func (d Document) Version() string {
	if v := d.Str("document_version"); v != "" {
		return v
	}
	return "1"
}

// SearchResult is a locally paginated slice of a coverage report.
type SearchResult struct {
	Data         []Document `json:"data"`
	TotalResults int        `json:"totalResults"`
	Page         int        `json:"page"`
	PageSize     int        `json:"pageSize"`
}

// State is a US state or territory usable as a search filter. The CMS API
// has no state metadata endpoint, so the list ships with the service.
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
