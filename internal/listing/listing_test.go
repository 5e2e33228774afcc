package listing

import (
	"errors"
	"testing"

	"gigline/internal/domain"
)

func TestPaginateWindows(t *testing.T) {
	cases := []struct {
		name       string
		p          Pagination
		numResults int
		wantLimit  int
		wantOffset int
		wantPages  int
		wantPer    int
	}{
		{"first page", Pagination{Page: 1, PageSize: 10}, 25, 10, 0, 3, 10},
		{"middle page", Pagination{Page: 2, PageSize: 10}, 25, 10, 10, 3, 10},
		{"last partial page", Pagination{Page: 3, PageSize: 10}, 25, 10, 20, 3, 10},
		{"zero page coerced to first", Pagination{Page: 0, PageSize: 10}, 25, 10, 0, 3, 10},
		{"empty result set", Pagination{Page: 1, PageSize: 10}, 0, 10, 0, 0, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, meta, err := Paginate(tc.p, tc.numResults)
			if err != nil {
				t.Fatal(err)
			}
			if w.All {
				t.Fatalf("unexpected All window")
			}
			if w.Limit != tc.wantLimit || w.Offset != tc.wantOffset {
				t.Fatalf("window = %+v", w)
			}
			if meta.NumPages != tc.wantPages || meta.PerPage != tc.wantPer {
				t.Fatalf("meta = %+v", meta)
			}
			if meta.CurrentPage != tc.p.Page {
				t.Fatalf("currentPage = %d, requested %d", meta.CurrentPage, tc.p.Page)
			}
		})
	}
}

func TestPaginateAllRows(t *testing.T) {
	w, meta, err := Paginate(Pagination{Page: 1, PageSize: AllRows}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !w.All {
		t.Fatalf("window = %+v", w)
	}
	if meta.NumPages != 1 || meta.PerPage != 7 || meta.NumResults != 7 {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestPaginateRejects(t *testing.T) {
	cases := []Pagination{
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: -2},
		{Page: -1, PageSize: 10},
		{Page: 4, PageSize: 10}, // beyond the last page of 25
	}
	for _, p := range cases {
		if _, _, err := Paginate(p, 25); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%+v: %v", p, err)
		}
	}
}

func TestSortValidation(t *testing.T) {
	var s ActivitySort
	s.Set("name", "DESC")
	s.Set("createdAt", "asc")
	s.Set("finalDeadline", "sideways") // ignored
	s.Set("nonsense", "asc")           // ignored
	got := s.OrderBy()
	if len(got) != 2 || got[0] != "a.name desc" || got[1] != "a.created_at asc" {
		t.Fatalf("order by = %v", got)
	}
}
