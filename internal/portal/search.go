package portal

import (
	"slices"
	"sync"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Navigator moves the browser to a path and reloads the page.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Search is the selection state of a search page. Every filter or context
// change navigates to the matching route, except while the filter dialog is
// open: edits made then are applied by the single navigation that happens
// when the dialog closes. Constructing a Search never navigates.
type Search struct {
	mu         sync.Mutex
	route      Route
	dialogOpen bool
	nav        Navigator
}

// NewSearch restores search state from the current route.
func NewSearch(initial Route, nav Navigator) *Search {
	r := initial
	r.Filters = cloneFilters(initial.Filters)
	return &Search{route: r, nav: nav}
}

// Route returns a copy of the current state as a route.
func (s *Search) Route() Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.route
	r.Filters = cloneFilters(s.route.Filters)
	return r
}

// DialogOpen reports whether the filter dialog is open.
func (s *Search) DialogOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogOpen
}

// SetQuery records the search bar value. It is carried by the next
// navigation but does not navigate by itself.
func (s *Search) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route.Query = q
}

// SetContext switches the search tab.
func (s *Search) SetContext(ctx types.SearchContext) error {
	if !ctx.Valid() {
		return ErrUnknownContext
	}
	return s.update(func(r *Route) { r.Context = ctx })
}

// SetDepartments replaces the department selection.
func (s *Search) SetDepartments(sel []string) error {
	return s.update(func(r *Route) { r.Filters.Departments = slices.Clone(sel) })
}

// SetFaculties replaces the faculty selection.
func (s *Search) SetFaculties(sel []string) error {
	return s.update(func(r *Route) { r.Filters.Faculties = slices.Clone(sel) })
}

// SetJournals replaces the journal selection.
func (s *Search) SetJournals(sel []string) error {
	return s.update(func(r *Route) { r.Filters.Journals = slices.Clone(sel) })
}

// SetGrantAgencies replaces the grant agency selection.
func (s *Search) SetGrantAgencies(sel []string) error {
	return s.update(func(r *Route) { r.Filters.GrantAgencies = slices.Clone(sel) })
}

// SetPatentClassifications replaces the patent classification selection.
func (s *Search) SetPatentClassifications(sel []string) error {
	return s.update(func(r *Route) { r.Filters.PatentClassifications = slices.Clone(sel) })
}

// OpenDialog starts batching filter edits.
func (s *Search) OpenDialog() error {
	return s.setDialog(true)
}

// CloseDialog ends batching and navigates to the accumulated route.
func (s *Search) CloseDialog() error {
	return s.setDialog(false)
}

func (s *Search) setDialog(open bool) error {
	s.mu.Lock()
	s.dialogOpen = open
	path, ok, err := s.target()
	s.mu.Unlock()
	return s.navigate(path, ok, err)
}

func (s *Search) update(apply func(*Route)) error {
	s.mu.Lock()
	apply(&s.route)
	path, ok, err := s.target()
	s.mu.Unlock()
	return s.navigate(path, ok, err)
}

// target must be called with mu held.
func (s *Search) target() (string, bool, error) {
	if s.dialogOpen {
		return "", false, nil
	}
	path, err := s.route.Path()
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

func (s *Search) navigate(path string, ok bool, err error) error {
	if err != nil {
		return err
	}
	if ok && s.nav != nil {
		s.nav.Navigate(path)
	}
	return nil
}

func cloneFilters(f Filters) Filters {
	return Filters{
		Departments:           orEmpty(f.Departments),
		Faculties:             orEmpty(f.Faculties),
		Journals:              orEmpty(f.Journals),
		GrantAgencies:         orEmpty(f.GrantAgencies),
		PatentClassifications: orEmpty(f.PatentClassifications),
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
