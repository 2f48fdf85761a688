// Package recovery drives the session-recovery list: a read-model over
// archived pages that keeps the user's selection stable across refreshes.
package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/ainavigator/continuum/archive"
)

// PageLister supplies the list contents. *archive.Store satisfies this.
type PageLister interface {
	ListPages(ctx context.Context, limit int) ([]archive.PageSummary, error)
}

// ViewState is one consistent snapshot for rendering.
type ViewState struct {
	Items []archive.PageSummary `json:"items"`
	// Selected indexes Items; -1 means no selection.
	Selected int `json:"selected"`
	// ClearDetail tells dependent panes to reset because the selection
	// disappeared with the list.
	ClearDetail bool `json:"clear_detail"`
}

// View reconciles the archive against the last known selection. Pure reads:
// a refresh never writes, so refreshing twice is the same as refreshing once.
type View struct {
	pages PageLister
	limit int

	mu       sync.Mutex
	selected int
}

// NewView makes a view over pages. limit <= 0 uses the lister's default.
func NewView(pages PageLister, limit int) *View {
	return &View{pages: pages, limit: limit, selected: -1}
}

// Refresh re-reads the list and reconciles the selection: an in-bounds
// selection survives, an out-of-bounds one falls back to the newest item,
// and an empty list clears the selection and flags dependent panes.
func (v *View) Refresh(ctx context.Context) (ViewState, error) {
	items, err := v.pages.ListPages(ctx, v.limit)
	if err != nil {
		return ViewState{Selected: -1}, fmt.Errorf("recovery: refresh: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(items) == 0 {
		cleared := v.selected != -1
		v.selected = -1
		return ViewState{Items: items, Selected: -1, ClearDetail: cleared}, nil
	}
	if v.selected < 0 || v.selected >= len(items) {
		v.selected = 0
	}
	return ViewState{Items: items, Selected: v.selected}, nil
}

// Select records a user selection. Out-of-range values are ignored; the next
// Refresh reconciles anyway.
func (v *View) Select(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i >= -1 {
		v.selected = i
	}
}

// Selected returns the current selection index.
func (v *View) Selected() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}
