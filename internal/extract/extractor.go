// Package extract turns cached listing markup into records using goquery selectors.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

const (
	// DefaultPrimarySelector matches the primary text of each listing entry.
	DefaultPrimarySelector = "span.emotion-1j2opmb"
	// DefaultSecondarySelector matches the secondary text paired with each primary.
	DefaultSecondarySelector = "span.emotion-yelpk7"
)

// Config selects the elements that make up a record.
type Config struct {
	PrimarySelector   string
	SecondarySelector string
}

// Extractor pairs the i-th primary match with the i-th secondary match.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	primary   string
	secondary string
}

// New builds an Extractor, falling back to the default selectors.
func New(cfg Config) *Extractor {
	e := &Extractor{
		primary:   strings.TrimSpace(cfg.PrimarySelector),
		secondary: strings.TrimSpace(cfg.SecondarySelector),
	}
	if e.primary == "" {
		e.primary = DefaultPrimarySelector
	}
	if e.secondary == "" {
		e.secondary = DefaultSecondarySelector
	}
	return e
}

// Extract returns the page's records in document order. Repeated primary
// values collapse into a single record at the first position holding the
// last secondary seen. A primary/secondary count mismatch yields an
// ExtractionError with a zero page number; callers fill it in.
func (e *Extractor) Extract(markup []byte) ([]crawler.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, &crawler.ExtractionError{Reason: fmt.Sprintf("parse markup: %v", err)}
	}

	primaries := texts(doc.Find(e.primary))
	secondaries := texts(doc.Find(e.secondary))
	if len(primaries) != len(secondaries) {
		return nil, &crawler.ExtractionError{
			Reason: fmt.Sprintf("found %d %q but %d %q", len(primaries), e.primary, len(secondaries), e.secondary),
		}
	}

	records := make([]crawler.Record, 0, len(primaries))
	index := make(map[string]int, len(primaries))
	for i, primary := range primaries {
		if pos, seen := index[primary]; seen {
			records[pos].Secondary = secondaries[i]
			continue
		}
		index[primary] = len(records)
		records = append(records, crawler.Record{Primary: primary, Secondary: secondaries[i]})
	}
	return records, nil
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
