package portal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// ErrUnknownContext is returned for a route naming no known search context.
var ErrUnknownContext = errors.New("portal: unknown search context")

const searchPrefix = "Search"

// advancedDefaults are the filter and date defaults on the advanced search link.
const advancedDefaults = "/ / / / /All Departments/All Faculties/2017-07/2022-07/All Journals/"

// Filters is the selection of every filter kind.
type Filters struct {
	Departments           []string `json:"departments"`
	Faculties             []string `json:"faculties"`
	Journals              []string `json:"journals"`
	GrantAgencies         []string `json:"grantAgencies"`
	PatentClassifications []string `json:"patentClassifications"`
}

// Route is a search page location.
type Route struct {
	Context types.SearchContext `json:"context"`
	Filters Filters             `json:"filters"`
	Query   string              `json:"query"`
}

// Path renders the route the way the portal navigates to it. Only the filter
// kinds that belong to the route's context appear in the path.
func (r Route) Path() (string, error) {
	f := r.Filters
	q := encodeQuery(r.Query)

	var segs []string
	switch r.Context {
	case types.SearchResearchers:
		segs = []string{searchPrefix, string(r.Context), EncodeFilter(f.Departments), EncodeFilter(f.Faculties), q}
	case types.SearchGrants:
		segs = []string{searchPrefix, string(r.Context), EncodeFilter(f.GrantAgencies), q}
	case types.SearchPatents:
		segs = []string{searchPrefix, string(r.Context), EncodeFilter(f.PatentClassifications), q}
	case types.SearchPublications:
		segs = []string{searchPrefix, string(r.Context), EncodeFilter(f.Journals), q}
	case types.SearchEverything:
		segs = []string{
			EncodeFilter(f.Departments),
			EncodeFilter(f.Faculties),
			EncodeFilter(f.Journals),
			EncodeFilter(f.GrantAgencies),
			EncodeFilter(f.PatentClassifications),
			q,
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, r.Context)
	}
	return "/" + strings.Join(segs, "/") + "/", nil
}

// ParseRoute reads a route back from a path produced by Path or from a
// browser location with escaped segments. Trailing segments may be omitted.
func ParseRoute(path string) (Route, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Route{}, err
	}

	if len(segs) > 0 && segs[0] == searchPrefix {
		if len(segs) < 2 {
			return Route{}, fmt.Errorf("%w: %q", ErrUnknownContext, path)
		}
		ctx := types.SearchContext(segs[1])
		rest := segs[2:]
		r := Route{Context: ctx, Filters: emptyFilters()}
		switch ctx {
		case types.SearchResearchers:
			if len(rest) > 3 {
				return Route{}, tooManySegments(path)
			}
			r.Filters.Departments = DecodeFilter(at(rest, 0))
			r.Filters.Faculties = DecodeFilter(at(rest, 1))
			r.Query = decodeQuery(at(rest, 2))
		case types.SearchGrants, types.SearchPatents, types.SearchPublications:
			if len(rest) > 2 {
				return Route{}, tooManySegments(path)
			}
			sel := DecodeFilter(at(rest, 0))
			switch ctx {
			case types.SearchGrants:
				r.Filters.GrantAgencies = sel
			case types.SearchPatents:
				r.Filters.PatentClassifications = sel
			default:
				r.Filters.Journals = sel
			}
			r.Query = decodeQuery(at(rest, 1))
		default:
			return Route{}, fmt.Errorf("%w: %q", ErrUnknownContext, ctx)
		}
		return r, nil
	}

	if len(segs) > 6 {
		return Route{}, tooManySegments(path)
	}
	return Route{
		Context: types.SearchEverything,
		Filters: Filters{
			Departments:           DecodeFilter(at(segs, 0)),
			Faculties:             DecodeFilter(at(segs, 1)),
			Journals:              DecodeFilter(at(segs, 2)),
			GrantAgencies:         DecodeFilter(at(segs, 3)),
			PatentClassifications: DecodeFilter(at(segs, 4)),
		},
		Query: decodeQuery(at(segs, 5)),
	}, nil
}

// AdvancedSearchPath returns the advanced search link for a context.
func AdvancedSearchPath(ctx types.SearchContext) (string, error) {
	if !ctx.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, ctx)
	}
	return "/AdvancedSearch/" + string(ctx) + advancedDefaults, nil
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, nil
	}
	raw := strings.Split(trimmed, "/")
	segs := make([]string, len(raw))
	for i, s := range raw {
		u, err := url.PathUnescape(s)
		if err != nil {
			return nil, fmt.Errorf("portal: segment %d of %q: %w", i, path, err)
		}
		segs[i] = u
	}
	return segs, nil
}

func at(segs []string, i int) string {
	if i < len(segs) {
		return segs[i]
	}
	return ""
}

func emptyFilters() Filters {
	return Filters{
		Departments:           []string{},
		Faculties:             []string{},
		Journals:              []string{},
		GrantAgencies:         []string{},
		PatentClassifications: []string{},
	}
}

func tooManySegments(path string) error {
	return fmt.Errorf("portal: too many segments in %q", path)
}
