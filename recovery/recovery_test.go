package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/ainavigator/continuum/archive"
)

// fakeLister serves a mutable in-memory list.
type fakeLister struct {
	items []archive.PageSummary
	err   error
}

func (f *fakeLister) ListPages(_ context.Context, _ int) ([]archive.PageSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func summaries(ids ...string) []archive.PageSummary {
	out := make([]archive.PageSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, archive.PageSummary{ID: id})
	}
	return out
}

func TestRefreshSelectsFirstByDefault(t *testing.T) {
	// WHAT: A fresh view lands on the newest item.
	f := &fakeLister{items: summaries("c", "b", "a")}
	v := NewView(f, 0)

	st, err := v.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Selected != 0 || st.ClearDetail {
		t.Errorf("state: %+v", st)
	}
}

func TestRefreshPreservesSelection(t *testing.T) {
	// WHAT: A refresh after new captures keeps the selection index stable.
	f := &fakeLister{items: summaries("b", "a")}
	v := NewView(f, 0)
	v.Refresh(context.Background())
	v.Select(1)

	// A new page arrives at the top of the list.
	f.items = summaries("c", "b", "a")
	st, err := v.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Selected != 1 {
		t.Errorf("selected: got %d, want 1", st.Selected)
	}
	if st.ClearDetail {
		t.Error("detail should not clear")
	}
}

func TestRefreshClampsOutOfBounds(t *testing.T) {
	// WHAT: A selection past the new end falls back to the first item.
	f := &fakeLister{items: summaries("c", "b", "a")}
	v := NewView(f, 0)
	v.Refresh(context.Background())
	v.Select(2)

	f.items = summaries("c")
	st, _ := v.Refresh(context.Background())
	if st.Selected != 0 {
		t.Errorf("selected: got %d, want 0", st.Selected)
	}
}

func TestRefreshEmptyClearsDetail(t *testing.T) {
	// WHAT: An emptied list drops the selection and signals detail reset.
	f := &fakeLister{items: summaries("a")}
	v := NewView(f, 0)
	v.Refresh(context.Background())
	v.Select(0)

	f.items = nil
	st, err := v.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st.Selected != -1 || !st.ClearDetail {
		t.Errorf("state: %+v", st)
	}

	// Refreshing again while still empty is quiet: nothing left to clear.
	st, _ = v.Refresh(context.Background())
	if st.Selected != -1 || st.ClearDetail {
		t.Errorf("second refresh: %+v", st)
	}
}

func TestRefreshIdempotent(t *testing.T) {
	// WHAT: Repeated refreshes with unchanged data yield identical states.
	f := &fakeLister{items: summaries("b", "a")}
	v := NewView(f, 0)
	v.Select(1)

	first, err := v.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	second, _ := v.Refresh(context.Background())
	if first.Selected != second.Selected || len(first.Items) != len(second.Items) {
		t.Errorf("states diverge: %+v vs %+v", first, second)
	}
}

func TestRefreshError(t *testing.T) {
	// WHAT: A failing read surfaces the error and leaves the selection alone.
	f := &fakeLister{items: summaries("b", "a")}
	v := NewView(f, 0)
	v.Refresh(context.Background())
	v.Select(1)

	f.err = errors.New("db locked")
	if _, err := v.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	f.err = nil
	st, _ := v.Refresh(context.Background())
	if st.Selected != 1 {
		t.Errorf("selection lost across failed refresh: %d", st.Selected)
	}
}
