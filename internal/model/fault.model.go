package model

import (
	"errors"
	"strings"
	"time"
)

type FaultCategory string

const (
	FaultCategorySafety     FaultCategory = "Safety"
	FaultCategoryMechanical FaultCategory = "Mechanical"
	FaultCategoryElectrical FaultCategory = "Electrical"
	FaultCategoryPlanned    FaultCategory = "Planned"
)

// FaultCategories is the display order of the library.
var FaultCategories = []FaultCategory{
	FaultCategorySafety,
	FaultCategoryMechanical,
	FaultCategoryElectrical,
	FaultCategoryPlanned,
}

var ErrEmptyFaultDescription = errors.New("fault description is required")

// Fault is one entry of the fault-description library.
type Fault struct {
	ID          int64         `json:"id"`
	Category    FaultCategory `json:"category"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
}

type FaultCreateRequest struct {
	Category    FaultCategory `json:"category"`
	Description string        `json:"description"`
}

// Normalize trims the input and falls back to Safety for unknown categories.
func (p FaultCreateRequest) Normalize() FaultCreateRequest {
	p.Description = strings.TrimSpace(p.Description)
	p.Category = FaultCategory(strings.TrimSpace(string(p.Category)))
	if !p.Category.Valid() {
		p.Category = FaultCategorySafety
	}
	return p
}

func (p FaultCreateRequest) Validate() error {
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyFaultDescription
	}
	return nil
}

func (c FaultCategory) Valid() bool {
	for _, v := range FaultCategories {
		if v == c {
			return true
		}
	}
	return false
}

// FaultGroup is one category of the library with its entries, newest first.
type FaultGroup struct {
	Category FaultCategory `json:"category"`
	Faults   []*Fault      `json:"faults"`
}

// GroupFaults buckets faults by category keeping their relative order.
// Known categories come first in FaultCategories order, unknown ones follow
// in order of first appearance. Empty categories are omitted.
func GroupFaults(faults []*Fault) []FaultGroup {
	buckets := make(map[FaultCategory][]*Fault)
	var extra []FaultCategory
	for _, f := range faults {
		if f == nil {
			continue
		}
		if _, ok := buckets[f.Category]; !ok && !f.Category.Valid() {
			extra = append(extra, f.Category)
		}
		buckets[f.Category] = append(buckets[f.Category], f)
	}

	groups := make([]FaultGroup, 0, len(buckets))
	for _, c := range append(append([]FaultCategory{}, FaultCategories...), extra...) {
		if items, ok := buckets[c]; ok {
			groups = append(groups, FaultGroup{Category: c, Faults: items})
		}
	}
	return groups
}
