// Package report renders the operator-facing text of status events and shift
// reports. The output is consumed verbatim by chat groups downstream, so every
// template here is byte-exact.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
)

type Action string

const (
	ActionStop     Action = "stop"
	ActionStart    Action = "start"
	ActionEndShift Action = "end-shift"
)

const (
	EmojiStop     = "⛔"
	EmojiStart    = "✅"
	EmojiEndShift = "🛑"
)

var Actions = []Action{ActionStop, ActionStart, ActionEndShift}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Actions {
		if v == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func (a Action) Status() model.ReportStatus {
	if a == ActionStart {
		return model.ReportStatusRunning
	}
	return model.ReportStatusStopped
}

func (a Action) Emoji() string {
	switch a {
	case ActionStart:
		return EmojiStart
	case ActionEndShift:
		return EmojiEndShift
	}
	return EmojiStop
}

// Compose renders the raw_message of a status event. at is printed as
// wall-clock time in its own location.
func Compose(unitID string, status model.ReportStatus, emoji, description string, at time.Time) string {
	clock := at.Format(model.ClockLayout)
	if status == model.ReportStatusRunning {
		return fmt.Sprintf("*%s %s %s* %s\n- Fixed: %s", emoji, unitID, status, clock, description)
	}
	return fmt.Sprintf("*%s %s %s* %s\n- %s", emoji, unitID, status, clock, description)
}

// Build composes a complete payload for action. It returns nil when the
// trimmed description or the unit id is empty.
func Build(unitID string, action Action, description string, at time.Time) *model.Report {
	desc := strings.TrimSpace(description)
	if desc == "" || unitID == "" {
		return nil
	}
	status := action.Status()
	emoji := action.Emoji()
	return &model.Report{
		UnitID:      unitID,
		Status:      status,
		Emoji:       emoji,
		Description: desc,
		RawMessage:  Compose(unitID, status, emoji, desc, at),
		CreatedAt:   model.NewTime(at.UTC()),
		ClientRef:   model.NewClientRef(),
	}
}
