package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/nimasrn/kamoa-supervision/internal/localqueue"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/internal/session"
)

const promptHelp = `commands:
  stop|start|end-shift [description]   file a report for the selected unit
  unit <id>                            select a unit
  units                                list units
  desc <text>                          set the description
  fault <id>                           use a library entry as the description
  faults                               list the fault library
  add-fault <category> <description>   add a library entry
  theme ios|scada|classic
  shift [notes]                        shift report into the preview
  copy                                 copy the preview to the clipboard
  flush                                resubmit reports kept locally
  history                              print the history
  clear                                clear the on-screen history
  state                                show the current selection
  quit
`

// printer serializes output between the command loop, the live listener
// and the shift schedule.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) with(fn func(w io.Writer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.w)
}

// prompt runs operator commands against a live session.
type prompt struct {
	s     *session.Session
	queue *localqueue.Queue
	out   *printer
	info report.ShiftInfo

	confirmClear bool
}

var errQuit = errors.New("quit")

// handle runs one input line. It returns errQuit when the operator leaves;
// every other failure is printed and the loop goes on.
func (p *prompt) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)

	if p.confirmClear {
		p.confirmClear = false
		if a := strings.ToLower(line); a == "y" || a == "yes" {
			p.s.ClearHistory()
			p.out.printf("history cleared\n")
		} else {
			p.out.printf("history kept\n")
		}
		return nil
	}
	if line == "" {
		return nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if action, err := report.ParseAction(name); err == nil {
		p.submit(ctx, action, rest)
		return nil
	}

	var err error
	switch strings.ToLower(name) {
	case "unit":
		err = p.s.SelectUnit(rest)
		if err == nil {
			p.out.printf("unit %s selected\n", rest)
		}
	case "units":
		st := p.s.State()
		for _, u := range st.Units {
			mark := " "
			if st.Current != nil && st.Current.UnitID == u.UnitID {
				mark = "*"
			}
			p.out.printf("%s %s\n", mark, u.DisplayName())
		}
	case "desc":
		p.s.SetDescription(rest)
	case "fault":
		var id int64
		id, err = strconv.ParseInt(rest, 10, 64)
		if err != nil {
			err = fmt.Errorf("%w: %q", session.ErrUnknownFault, rest)
			break
		}
		if err = p.s.UseFault(id); err == nil {
			p.out.printf("description: %s\n", p.s.State().Description)
		}
	case "faults":
		for _, g := range p.s.State().Library {
			p.out.printf("[%s]\n", g.Category)
			for _, f := range g.Faults {
				p.out.printf("  %d\t%s\n", f.ID, f.Description)
			}
		}
	case "add-fault":
		category, desc, _ := strings.Cut(rest, " ")
		var f *model.Fault
		f, err = p.s.AddFault(ctx, model.FaultCategory(category), desc)
		if err == nil {
			p.out.printf("added %d [%s] %s\n", f.ID, f.Category, f.Description)
		}
	case "theme":
		if err = p.s.SetTheme(session.Theme(rest)); err == nil {
			p.out.printf("theme %s\n", p.s.State().Theme)
		}
	case "shift":
		text := p.s.ShiftReport(p.info.Operator, p.info.Tonnage, rest)
		p.out.printf("%s\n\n", text)
	case "copy":
		if err = p.s.CopyPreview(); err == nil {
			p.out.printf("copied\n")
		}
	case "flush":
		var res session.FlushResult
		res, err = session.Flush(ctx, p.queue, p.s.Submitter())
		p.out.printf("stored %d, still queued %d\n", res.Persisted, res.Remaining)
	case "history":
		p.out.with(func(w io.Writer) { _ = p.s.History().Render(w) })
	case "clear":
		p.confirmClear = true
		p.out.printf("clear the on-screen history? [y/N]\n")
	case "state":
		st := p.s.State()
		unit := "-"
		if st.Current != nil {
			unit = st.Current.UnitID
		}
		p.out.printf("%s %s  unit=%s  theme=%s  live=%t\ndescription: %s\n", st.Date, st.Clock, unit, st.Theme, st.Live, st.Description)
	case "help", "?":
		p.out.printf("%s", promptHelp)
	case "quit", "exit":
		return errQuit
	default:
		p.out.printf("unknown command %q, type help\n", name)
	}

	if err != nil {
		p.out.printf("error: %v\n", err)
	}
	return nil
}

func (p *prompt) submit(ctx context.Context, action report.Action, desc string) {
	if desc != "" {
		p.s.SetDescription(desc)
	}

	outcome, r := p.s.Submit(ctx, action)
	switch outcome {
	case session.OutcomeSkipped:
		p.out.printf("nothing submitted: select a unit and enter a description\n")
		return
	case session.OutcomePersisted:
		p.out.printf("%s\nstored as #%d\n", r.RawMessage, r.ID)
	case session.OutcomeQueued:
		n, _ := p.queue.Len(ctx)
		p.out.printf("%s\napi unreachable, kept locally (%d pending)\n", r.RawMessage, n)
	case session.OutcomeDropped:
		p.out.printf("%s\napi unreachable and local queue unavailable, the message was NOT saved\n", r.RawMessage)
	}
}

// readLines feeds lines of in to the returned channel until EOF or done.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
