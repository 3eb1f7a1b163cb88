// Package sitemap fetches, parses and caches target-site sitemaps for
// duplicate avoidance.
package sitemap

import (
	"encoding/xml"
	"io"
	"time"

	"pressflow/internal/domain"
)

// Parse extracts (url, lastModified) pairs from a sitemap document. It is a
// minimal <loc>/<lastmod> scan over the token stream, not a full sitemap
// processor; unknown elements are ignored.
func Parse(r io.Reader) ([]domain.SitemapEntry, error) {
	dec := xml.NewDecoder(r)
	var entries []domain.SitemapEntry
	var element string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			element = t.Name.Local
		case xml.EndElement:
			element = ""
		case xml.CharData:
			text := string(t)
			switch element {
			case "loc":
				entries = append(entries, domain.SitemapEntry{URL: text})
			case "lastmod":
				if len(entries) == 0 {
					continue
				}
				if ts, ok := parseLastMod(text); ok {
					entries[len(entries)-1].LastModified = ts
				}
			}
		}
	}
	return entries, nil
}

func parseLastMod(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
