package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

const emptyHistory = "Aucune donnée"

// History is the operator's view of stored reports, newest first. It only
// ever holds records that carry a server id.
type History struct {
	mu    sync.RWMutex
	items []*model.Report
	seen  map[int64]struct{}
}

func NewHistory() *History {
	return &History{seen: make(map[int64]struct{})}
}

// Load merges the initial fetch, given newest first, behind anything the
// listener already prepended.
func (h *History) Load(items []*model.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range items {
		if !h.admit(r) {
			continue
		}
		h.items = append(h.items, r)
	}
}

// Prepend adds a live record at the top. It reports false for records that
// are already shown or were never persisted.
func (h *History) Prepend(r *model.Report) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.admit(r) {
		return false
	}
	h.items = append([]*model.Report{r}, h.items...)
	return true
}

func (h *History) admit(r *model.Report) bool {
	if !r.Persisted() {
		return false
	}
	if _, ok := h.seen[r.ID]; ok {
		return false
	}
	h.seen[r.ID] = struct{}{}
	return true
}

// Clear empties the view. Stored reports are not touched.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
	h.seen = make(map[int64]struct{})
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Snapshot() []*model.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*model.Report, len(h.items))
	copy(out, h.items)
	return out
}

// Render writes one entry per report: emoji, unit and local time, then the
// status on its own line.
func (h *History) Render(w io.Writer) error {
	items := h.Snapshot()
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, emptyHistory)
		return err
	}
	for _, r := range items {
		name := r.UnitID
		if name == "" {
			name = fmt.Sprint(r.ID)
		}
		clock := r.CreatedAt.Local().Format(model.ClockLayout)
		if _, err := fmt.Fprintf(w, "%s %s %s\n  %s\n", r.Emoji, name, clock, r.Status); err != nil {
			return err
		}
	}
	return nil
}
