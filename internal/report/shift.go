package report

import (
	"strings"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

const (
	DefaultSite = "KAMOA 1"
	separator   = "--------------------------\n"
)

type ShiftInfo struct {
	Site     string
	Operator string
	Tonnage  string
	Notes    string
	Date     time.Time
}

// Shift renders the end-of-shift summary. history is printed in the order
// given, which for the console is newest first.
func Shift(history []*model.Report, info ShiftInfo) string {
	var b strings.Builder

	b.WriteString("📊 *SHIFT REPORT - ")
	b.WriteString(orDefault(info.Site, DefaultSite))
	b.WriteString("*\nDate: ")
	b.WriteString(info.Date.Format(model.DateLayout))
	b.WriteString("\nOperator: ")
	b.WriteString(orDefault(info.Operator, "N/A"))
	b.WriteString("\nTonnage: ")
	b.WriteString(orDefault(info.Tonnage, "0"))
	b.WriteString(" t\n")
	b.WriteString(separator)

	for _, r := range history {
		if r == nil {
			continue
		}
		b.WriteString(r.RawMessage)
		b.WriteString("\n\n")
	}

	b.WriteString(separator)
	b.WriteString("📝 *NOTES*: ")
	b.WriteString(orDefault(info.Notes, "N/A"))

	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
