package listing

import (
	"math"
	"strings"

	"gigline/internal/domain"
)

// AllRows is the pageSize sentinel asking for every matching row as a
// single page.
const AllRows = -1

// DefaultPageSize applies when a caller does not specify a page size.
const DefaultPageSize = 10

// Pagination is the requested page window, before validation.
type Pagination struct {
	Page     int
	PageSize int
}

// Page is the boundary contract toward presentation layers. The field
// names are part of that contract.
type Page[T any] struct {
	Results     []T `json:"results"`
	CurrentPage int `json:"currentPage"`
	NumResults  int `json:"numResults"`
	PerPage     int `json:"perPage"`
	NumPages    int `json:"numPages"`
}

// Window is the limit/offset to fetch after validation. All bypasses
// limit/offset entirely.
type Window struct {
	Limit  int
	Offset int
	All    bool
}

// Paginate validates the requested window against the matching row count
// and computes the fetch window. Validation order matters and is part of
// the contract: page size first, then the requested page against the
// computed page count, and only then the < 1 coercion used for offset
// math.
func Paginate(p Pagination, numResults int) (Window, Page[struct{}], error) {
	var meta Page[struct{}]
	if p.PageSize < AllRows || p.PageSize == 0 {
		return Window{}, meta, domain.NotFoundf("invalid page size %d", p.PageSize)
	}
	perPage := p.PageSize
	if p.PageSize == AllRows {
		perPage = numResults
	}
	numPages := 1
	if p.PageSize != AllRows {
		numPages = int(math.Ceil(float64(numResults) / float64(perPage)))
	}
	if (numPages != 0 && p.Page > numPages) || p.Page < 0 {
		return Window{}, meta, domain.NotFoundf("page %d out of range (%d pages)", p.Page, numPages)
	}
	if p.PageSize == AllRows {
		numPages = 1
	}
	meta = Page[struct{}]{CurrentPage: p.Page, NumResults: numResults, PerPage: perPage, NumPages: numPages}
	if p.PageSize == AllRows {
		return Window{All: true}, meta, nil
	}
	current := p.Page
	if current < 1 {
		current = 1
	}
	return Window{Limit: p.PageSize, Offset: (current - 1) * p.PageSize}, meta, nil
}

// PageOf pairs fetched results with validated page metadata.
func PageOf[T any](results []T, meta Page[struct{}]) Page[T] {
	return Page[T]{
		Results:     results,
		CurrentPage: meta.CurrentPage,
		NumResults:  meta.NumResults,
		PerPage:     meta.PerPage,
		NumPages:    meta.NumPages,
	}
}

// Sort directions are validated against {asc, desc} case-insensitively.
// Anything else is silently ignored, never an error.
func validDirection(dir string) (string, bool) {
	d := strings.ToLower(dir)
	if d == "asc" || d == "desc" {
		return d, true
	}
	return "", false
}

// ActivitySort holds per-field sort directions for activity listings.
// Empty means unsorted on that field.
type ActivitySort struct {
	Name          string
	CreatedAt     string
	FinalDeadline string
}

// Set records a direction for a recognized field. Unknown fields and
// invalid directions are ignored.
func (s *ActivitySort) Set(field, dir string) {
	d, ok := validDirection(dir)
	if !ok {
		return
	}
	switch field {
	case "name":
		s.Name = d
	case "createdAt":
		s.CreatedAt = d
	case "finalDeadline":
		s.FinalDeadline = d
	}
}

// OrderBy renders the ORDER BY clause fragments in a fixed field order.
func (s ActivitySort) OrderBy() []string {
	var out []string
	if s.Name != "" {
		out = append(out, "a.name "+s.Name)
	}
	if s.CreatedAt != "" {
		out = append(out, "a.created_at "+s.CreatedAt)
	}
	if s.FinalDeadline != "" {
		out = append(out, "a.final_deadline "+s.FinalDeadline)
	}
	return out
}

// UserSort holds per-field sort directions for user listings.
type UserSort struct {
	Name  string
	Stars string
}

func (s *UserSort) Set(field, dir string) {
	d, ok := validDirection(dir)
	if !ok {
		return
	}
	switch field {
	case "name":
		s.Name = d
	case "stars":
		s.Stars = d
	}
}

func (s UserSort) OrderBy() []string {
	var out []string
	if s.Name != "" {
		out = append(out, "u.name "+s.Name)
	}
	if s.Stars != "" {
		// stars is a computed select alias, not a users column
		out = append(out, "stars "+s.Stars)
	}
	return out
}

// ActivityFilter is AND-combined; zero values mean "no constraint".
type ActivityFilter struct {
	Name           string
	Status         string
	OwnerID        string
	AssignedUserID string
	Technologies   []string
	Types          []string
}

// EngagedUserFilter narrows a users-for-activity listing.
type EngagedUserFilter struct {
	// EngagementType is a type value 0-4, or -1 for any.
	EngagementType int
}
