package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/kamoa-supervision/internal/model"
	"github.com/nimasrn/kamoa-supervision/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(t *testing.T, api *fakeAPI) (*Session, *recordingClipboard) {
	t.Helper()
	q, _ := newLocalQueue()
	clip := &recordingClipboard{}
	s, err := Open(context.Background(), Options{
		API:       api,
		Queue:     q,
		Clipboard: clip,
		Live:      true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clip
}

func TestOpen_InitialState(t *testing.T) {
	s, _ := openTestSession(t, newFakeAPI())

	st := s.State()
	require.NotNil(t, st.Current)
	assert.Equal(t, "BC-01", st.Current.UnitID, "first unit selected")
	assert.Len(t, st.Units, 2)
	assert.Len(t, st.Library, 1)
	assert.Equal(t, ThemeIOS, st.Theme)
	assert.NotEmpty(t, st.Clock)
	assert.NotEmpty(t, st.Date)
	assert.True(t, st.Live)
}

func TestOpen_RequiresCollaborators(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOpen_WithoutLiveFeed(t *testing.T) {
	api := newFakeAPI()
	api.subErr = errors.New("stream refused")

	s, _ := openTestSession(t, api)
	assert.False(t, s.State().Live)
	assert.Nil(t, s.ListenerDone())
}

func TestSession_SubmitSuccessWaitsForFeed(t *testing.T) {
	api := newFakeAPI()
	s, _ := openTestSession(t, api)
	require.NoError(t, s.SelectUnit("BC-02"))
	s.SetDescription("Belt torn")

	outcome, r := s.Submit(context.Background(), report.ActionStop)
	require.Equal(t, OutcomePersisted, outcome)

	st := s.State()
	assert.Equal(t, r.RawMessage, st.Preview)
	assert.True(t, strings.HasPrefix(st.Preview, "*⛔ BC-02 STOPPED* "))
	assert.Empty(t, st.Description, "input cleared")
	assert.Zero(t, s.History().Len(), "not inserted client side")

	api.echo()
	require.Eventually(t, func() bool { return s.History().Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, r.ID, s.History().Snapshot()[0].ID)
}

func TestSession_SubmitFailureIsSoft(t *testing.T) {
	api := newFakeAPI()
	api.insertErr = errors.New("offline")
	q, _ := newLocalQueue()
	s, err := Open(context.Background(), Options{API: api, Queue: q, Clipboard: &recordingClipboard{}, Live: true})
	require.NoError(t, err)
	defer s.Close()

	s.SetDescription("Belt torn")
	outcome, payload := s.Submit(context.Background(), report.ActionStop)
	require.Equal(t, OutcomeQueued, outcome)

	st := s.State()
	assert.Equal(t, payload.RawMessage, st.Preview, "message still shown")
	assert.Equal(t, "Belt torn", st.Description)

	items, err := q.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, payload.ClientRef, items[0].ClientRef)
	assert.Zero(t, s.History().Len())
}

func TestSession_SubmitSkipped(t *testing.T) {
	s, _ := openTestSession(t, newFakeAPI())
	s.SetDescription("   ")

	outcome, r := s.Submit(context.Background(), report.ActionStop)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Nil(t, r)
	assert.Empty(t, s.State().Preview)
}

func TestSession_Transitions(t *testing.T) {
	s, clip := openTestSession(t, newFakeAPI())

	assert.ErrorIs(t, s.SelectUnit("XX-99"), ErrUnknownUnit)
	assert.ErrorIs(t, s.SetTheme("neon"), ErrUnknownTheme)
	require.NoError(t, s.SetTheme("SCADA"))
	assert.Equal(t, ThemeSCADA, s.State().Theme)

	require.NoError(t, s.UseFault(4))
	assert.Equal(t, "Pull wire tripped", s.State().Description)
	assert.ErrorIs(t, s.UseFault(99), ErrUnknownFault)

	assert.ErrorIs(t, s.CopyPreview(), ErrEmptyPreview)
	text := s.ShiftReport("Amani", "1200", "")
	assert.True(t, strings.HasPrefix(text, "📊 *SHIFT REPORT - KAMOA 1*\n"))
	assert.Contains(t, text, "Operator: Amani\nTonnage: 1200 t\n")
	assert.True(t, strings.HasSuffix(text, "📝 *NOTES*: N/A"))
	require.NoError(t, s.CopyPreview())
	assert.Equal(t, text, clip.text)
}

func TestSession_AddFaultReloadsLibrary(t *testing.T) {
	s, _ := openTestSession(t, newFakeAPI())

	f, err := s.AddFault(context.Background(), model.FaultCategoryElectrical, "Motor trip")
	require.NoError(t, err)
	assert.Equal(t, model.FaultCategoryElectrical, f.Category)
	assert.Len(t, s.State().Library, 2)

	_, err = s.AddFault(context.Background(), "", " ")
	assert.Error(t, err)
}

func TestSession_ClearHistory(t *testing.T) {
	api := newFakeAPI()
	s, _ := openTestSession(t, api)
	api.sub.ch <- stored(1, time.Now())
	require.Eventually(t, func() bool { return s.History().Len() == 1 }, time.Second, 5*time.Millisecond)

	s.ClearHistory()
	assert.Zero(t, s.History().Len())
}

func TestSession_ClockTicks(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 23, 59, 58, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	q, _ := newLocalQueue()
	s, err := Open(context.Background(), Options{API: newFakeAPI(), Queue: q, Clipboard: &recordingClipboard{}, Now: clock})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "23:59:58", s.State().Clock)

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	require.Eventually(t, func() bool {
		st := s.State()
		return st.Clock == "00:00:00" && st.Date == "02/05/2024"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSession_ScheduleShiftReport(t *testing.T) {
	s, _ := openTestSession(t, newFakeAPI())

	assert.Error(t, s.ScheduleShiftReport("not a cron", nil, nil))

	got := make(chan string, 1)
	require.NoError(t, s.ScheduleShiftReport("@every 1s", func() report.ShiftInfo {
		return report.ShiftInfo{Operator: "Amani"}
	}, func(text string) {
		select {
		case got <- text:
		default:
		}
	}))

	select {
	case text := <-got:
		assert.Contains(t, text, "Operator: Amani")
	case <-time.After(3 * time.Second):
		t.Fatal("shift report never ran")
	}
}

func TestSession_CloseTearsDownEverything(t *testing.T) {
	api := newFakeAPI()
	q, _ := newLocalQueue()
	s, err := Open(context.Background(), Options{API: api, Queue: q, Clipboard: &recordingClipboard{}, Live: true})
	require.NoError(t, err)
	require.NoError(t, s.ScheduleShiftReport("@every 1h", func() report.ShiftInfo { return report.ShiftInfo{} }, func(string) {}))

	done := s.ListenerDone()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case <-done:
	default:
		t.Fatal("listener still running")
	}
	select {
	case <-s.clockDone:
	default:
		t.Fatal("clock still running")
	}
	assert.False(t, s.Live())
	assert.ErrorIs(t, s.ScheduleShiftReport("@every 1h", nil, nil), ErrClosed)
}
