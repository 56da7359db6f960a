package codemap

import (
	"html"
	"strings"
)

// cmsEntityReplacer reverses the double entity encoding CMS applies to
// paragraph HTML. The replacement order matters: &amp; must come after the
// entities whose names it would otherwise corrupt.
var cmsEntityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&sol;", "/",
	"&amp;", "&",
	"&quot;", `"`,
)

// Unescape reverses CMS's double-escaped HTML entities and then applies a
// generic entity unescape pass. It returns "" for empty input and is a no-op
// on text that is already unescaped.
func Unescape(text string) string {
	if text == "" {
		return ""
	}
	return html.UnescapeString(cmsEntityReplacer.Replace(text))
}
