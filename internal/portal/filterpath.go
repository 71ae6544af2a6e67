// Package portal holds the portal's client-side behaviour as plain Go: the
// filter route scheme, the search selection state that decides when the
// browser navigates, the collaboration graph loader and the chart palette.
package portal

import (
	"strings"

	"github.com/samber/lo"
)

// Filter path segment encoding.
const (
	// FilterSeparator joins the selected values of one filter kind.
	FilterSeparator = "&&"
	// EmptySegment stands in for a filter with nothing selected, and for
	// an empty search query.
	EmptySegment = " "
)

// EncodeFilter turns a selection into a route segment. Blank values are
// dropped.
func EncodeFilter(sel []string) string {
	sel = lo.Filter(sel, notBlank)
	if len(sel) == 0 {
		return EmptySegment
	}
	return strings.Join(sel, FilterSeparator)
}

// DecodeFilter turns a route segment back into a selection. A missing or
// blank segment is an empty selection.
func DecodeFilter(seg string) []string {
	if seg == "" || seg == EmptySegment {
		return []string{}
	}
	return lo.Filter(strings.Split(seg, FilterSeparator), notBlank)
}

func notBlank(v string, _ int) bool {
	return strings.TrimSpace(v) != ""
}

func encodeQuery(q string) string {
	if strings.TrimSpace(q) == "" {
		return EmptySegment
	}
	return q
}

func decodeQuery(seg string) string {
	if seg == EmptySegment {
		return ""
	}
	return seg
}
