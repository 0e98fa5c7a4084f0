// Package output implements the record writers for each supported format.
package output

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// Format identifies an output encoding.
type Format int

const (
	// FormatJSON writes one JSON object per page.
	FormatJSON Format = iota + 1
	// FormatCSV writes a single header followed by one row per record.
	FormatCSV
	// FormatXLSX writes one worksheet per page.
	FormatXLSX
)

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return 0, &crawler.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown output format %q (want json, csv or xlsx)", raw)}
	}
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return "." + f.String()
}
