// Package session holds the operator console state and the report
// submission flow built on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/robfig/cron/v3"
)

type Theme string

const (
	ThemeIOS     Theme = "ios"
	ThemeSCADA   Theme = "scada"
	ThemeClassic Theme = "classic"
)

var Themes = []Theme{ThemeIOS, ThemeSCADA, ThemeClassic}

var (
	ErrUnknownUnit  = errors.New("unknown unit")
	ErrUnknownTheme = errors.New("unknown theme")
	ErrUnknownFault = errors.New("unknown fault")
	ErrEmptyPreview = errors.New("nothing to copy")
	ErrClosed       = errors.New("session closed")
)

func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Themes {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
}

// API is everything the console asks of the server.
type API interface {
	ReportInserter
	ReportSubscriber
	Units(ctx context.Context) ([]*model.Unit, error)
	Faults(ctx context.Context) ([]model.FaultGroup, error)
	CreateFault(ctx context.Context, p model.FaultCreateRequest) (*model.Fault, error)
	Reports(ctx context.Context, limit int) ([]*model.Report, error)
}

type Clipboard interface {
	WriteText(text string) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

type Options struct {
	API       API
	Queue     ReportQueue
	Clipboard Clipboard

	// SubmitTimeout bounds each report insert; zero means none.
	SubmitTimeout time.Duration
	Theme         Theme
	Site          string
	HistoryLimit  int

	// Live opens the report subscription.
	Live bool
	// OnReport is called for each live record after it reached history.
	OnReport func(*model.Report)

	// Now defaults to time.Now.
	Now func() time.Time
}

// State is a copy of the session fields, safe to render.
type State struct {
	Units       []*model.Unit
	Current     *model.Unit
	Library     []model.FaultGroup
	Description string
	Preview     string
	Theme       Theme
	Clock       string
	Date        string
	Live        bool
}

// Session is the console state. It is created by Open, mutated through its
// methods and torn down by Close.
type Session struct {
	api       API
	submitter *Submitter
	history   *History
	clipboard Clipboard
	site      string
	now       func() time.Time

	mu          sync.RWMutex
	units       []*model.Unit
	current     *model.Unit
	library     []model.FaultGroup
	description string
	preview     string
	theme       Theme
	clock       string
	date        string

	listener  *Listener
	cron      *cron.Cron
	stopClock chan struct{}
	clockDone chan struct{}
	closeOnce sync.Once
	closed    bool
}

// Open loads units, the fault library and the latest reports, then starts
// the clock and, when asked, the live listener. Load failures are logged and
// leave the matching part empty; the console keeps working.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.API == nil || opts.Queue == nil {
		return nil, errors.New("session needs an api and a local queue")
	}
	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	if opts.Theme == "" {
		opts.Theme = ThemeIOS
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = model.DefaultReportLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	submitter := NewSubmitter(opts.API, opts.Queue, opts.SubmitTimeout)
	submitter.now = opts.Now

	s := &Session{
		api:       opts.API,
		submitter: submitter,
		history:   NewHistory(),
		clipboard: opts.Clipboard,
		site:      opts.Site,
		now:       opts.Now,
		theme:     opts.Theme,
		stopClock: make(chan struct{}),
		clockDone: make(chan struct{}),
	}

	// subscribe before the bulk fetch so nothing committed in between is
	// missed; History drops the overlap
	if opts.Live {
		l, err := Listen(ctx, opts.API, s.history, opts.OnReport)
		if err != nil {
			logger.Error("live updates unavailable", "error", err)
		} else {
			s.listener = l
		}
	}

	s.LoadUnits(ctx)
	s.LoadLibrary(ctx)
	s.LoadReports(ctx, opts.HistoryLimit)

	s.tick()
	go s.runClock()

	return s, nil
}

func (s *Session) LoadUnits(ctx context.Context) {
	units, err := s.api.Units(ctx)
	if err != nil {
		logger.Error("failed to load units", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = units
	if s.current == nil && len(units) > 0 {
		s.current = units[0]
	}
}

func (s *Session) LoadLibrary(ctx context.Context) {
	groups, err := s.api.Faults(ctx)
	if err != nil {
		logger.Error("failed to load fault library", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.library = groups
}

func (s *Session) LoadReports(ctx context.Context, limit int) {
	items, err := s.api.Reports(ctx, limit)
	if err != nil {
		logger.Error("failed to load reports", "error", err)
		return
	}
	s.history.Load(items)
}

func (s *Session) History() *History {
	return s.history
}

func (s *Session) Submitter() *Submitter {
	return s.submitter
}

// Live reports whether the listener is attached and still delivering.
func (s *Session) Live() bool {
	if s.listener == nil {
		return false
	}
	select {
	case <-s.listener.Done():
		return false
	default:
		return true
	}
}

// ListenerDone is closed when live delivery stops. It is nil when the
// session was opened without a listener.
func (s *Session) ListenerDone() <-chan struct{} {
	if s.listener == nil {
		return nil
	}
	return s.listener.Done()
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Units:       append([]*model.Unit(nil), s.units...),
		Current:     s.current,
		Library:     append([]model.FaultGroup(nil), s.library...),
		Description: s.description,
		Preview:     s.preview,
		Theme:       s.theme,
		Clock:       s.clock,
		Date:        s.date,
		Live:        s.Live(),
	}
}

func (s *Session) SelectUnit(unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.UnitID == unitID {
			s.current = u
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
}

func (s *Session) SetDescription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = text
}

// UseFault copies a library entry into the description input.
func (s *Session) UseFault(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.library {
		for _, f := range g.Faults {
			if f != nil && f.ID == id {
				s.description = f.Description
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownFault, id)
}

func (s *Session) SetTheme(t Theme) error {
	t, err := ParseTheme(string(t))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = t
	return nil
}

// AddFault stores a new library entry and reloads the library.
func (s *Session) AddFault(ctx context.Context, category model.FaultCategory, description string) (*model.Fault, error) {
	f, err := s.api.CreateFault(ctx, model.FaultCreateRequest{Category: category, Description: description})
	if err != nil {
		logger.Error("failed to add fault", "error", err)
		return nil, err
	}
	s.LoadLibrary(ctx)
	return f, nil
}

// Submit files action against the selected unit with the current
// description. History is left to the listener.
func (s *Session) Submit(ctx context.Context, action report.Action) (Outcome, *model.Report) {
	s.mu.RLock()
	unitID := ""
	if s.current != nil {
		unitID = s.current.UnitID
	}
	desc := s.description
	s.mu.RUnlock()

	outcome, r := s.submitter.Submit(ctx, unitID, action, desc)
	if outcome == OutcomeSkipped {
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = r.RawMessage
	if outcome == OutcomePersisted {
		s.description = ""
	}
	return outcome, r
}

// ShiftReport renders the shift summary from the current history into the
// preview and returns it.
func (s *Session) ShiftReport(operator, tonnage, notes string) string {
	text := report.Shift(s.history.Snapshot(), report.ShiftInfo{
		Site:     s.site,
		Operator: operator,
		Tonnage:  tonnage,
		Notes:    notes,
		Date:     s.now(),
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = text
	return text
}

func (s *Session) CopyPreview() error {
	s.mu.RLock()
	text := s.preview
	s.mu.RUnlock()
	if text == "" {
		return ErrEmptyPreview
	}
	return s.clipboard.WriteText(text)
}

// ClearHistory empties the on-screen history only.
func (s *Session) ClearHistory() {
	s.history.Clear()
}

// ScheduleShiftReport runs fn with a fresh shift report on every tick of
// the cron expression until Close.
func (s *Session) ScheduleShiftReport(spec string, info func() report.ShiftInfo, fn func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.cron == nil {
		s.cron = cron.New()
	}
	_, err := s.cron.AddFunc(spec, func() {
		i := info()
		fn(s.ShiftReport(i.Operator, i.Tonnage, i.Notes))
	})
	if err != nil {
		return fmt.Errorf("invalid shift schedule %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

func (s *Session) tick() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = now.Format(model.ClockLayout)
	s.date = now.Format(model.DateLayout)
}

func (s *Session) runClock() {
	defer close(s.clockDone)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopClock:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Close stops the listener, the clock and the shift schedule and waits for
// each of them. Later calls are no-ops.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		c := s.cron
		s.mu.Unlock()

		if s.listener != nil {
			err = s.listener.Close()
		}
		close(s.stopClock)
		<-s.clockDone
		if c != nil {
			<-c.Stop().Done()
		}
	})
	return err
}
