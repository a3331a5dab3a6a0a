package scrape

import "regexp"

var tableRe = regexp.MustCompile(`(?is)<table[^>]*>.*?</table>`)

// TruncateHTML bounds a page to maxBytes before it goes to the extractor.
// Table regions carry fleet listings, so they are kept in preference to the
// surrounding chrome; pages without tables are cut from the top.
func TruncateHTML(html string, maxBytes int) string {
	if len(html) <= maxBytes {
		return html
	}

	tables := tableRe.FindAllString(html, -1)
	if len(tables) > 0 {
		var out string
		for _, t := range tables {
			if len(out)+len(t) > maxBytes {
				if out == "" {
					out = t[:maxBytes]
				}
				break
			}
			out += t
		}
		if out != "" {
			return out
		}
	}

	return html[:maxBytes]
}
