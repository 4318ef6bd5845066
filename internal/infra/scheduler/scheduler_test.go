package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder_service/internal/app"
	"reminder_service/internal/domain/notification"
	"reminder_service/internal/infra/database"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type staticPrefs struct{ prefs notification.Preferences }

func (p staticPrefs) Load(context.Context, string) (notification.Preferences, error) {
	return p.prefs, nil
}

type staticComposer struct{}

func (staticComposer) RenderWeeklyReview(context.Context, string, notification.Preferences, time.Time) (string, error) {
	return "Wochenrückblick", nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	calls   []app.NotifyPayload
	tokens  []string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, token string, _ notification.TriggerKind, payload app.NotifyPayload) (notification.DispatchResult, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, payload)
	d.tokens = append(d.tokens, token)
	if d.err != nil {
		return notification.DispatchResult{}, d.err
	}
	return notification.DispatchResult{MessageID: "SM1"}, nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *recordingDispatcher) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Sunday 2024-10-13, 22:10 in Berlin.
var inWindow = time.Date(2024, 10, 13, 20, 10, 0, 0, time.UTC)

func enabledPrefs() notification.Preferences {
	p := notification.DefaultPreferences()
	p.Enabled = true
	p.Phone = "+4915112345678"
	return p
}

func newTestScheduler(prefs notification.Preferences, d *recordingDispatcher, markers notification.MarkerRepository, clock *testClock) *ReminderScheduler {
	s := NewReminderScheduler(staticPrefs{prefs: prefs}, staticComposer{}, d, markers, time.Hour, 2*time.Minute, time.Second, testLogger())
	s.clock = clock.Now
	return s
}

func waitForState(t *testing.T, s *ReminderScheduler, userID string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, ok := s.SessionState(userID)
		return ok && st == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInWeeklyWindow(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	prefs := enabledPrefs()

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"window start", time.Date(2024, 10, 13, 22, 0, 0, 0, berlin), true},
		{"inside", time.Date(2024, 10, 13, 22, 59, 59, 0, berlin), true},
		{"window end", time.Date(2024, 10, 13, 23, 0, 0, 0, berlin), false},
		{"before", time.Date(2024, 10, 13, 21, 59, 0, 0, berlin), false},
		{"saturday", time.Date(2024, 10, 12, 22, 10, 0, 0, berlin), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InWeeklyWindow(tc.now, prefs))
		})
	}
}

func TestEvaluate_SendsOncePerWindow(t *testing.T) {
	d := &recordingDispatcher{}
	markers := database.NewMemoryMarkerRepository()
	s := newTestScheduler(enabledPrefs(), d, markers, &testClock{now: inWindow})
	defer s.Stop()

	s.StartSession("u1", "tok")
	waitForState(t, s, "u1", StateMarkedSent)
	require.Equal(t, 1, d.count())
	assert.Equal(t, "+4915112345678", d.calls[0].Destination)
	assert.Equal(t, "Wochenrückblick", d.calls[0].Body)
	assert.Equal(t, "sms", d.calls[0].Channel)
	assert.Equal(t, "tok", d.tokens[0])

	assert.Equal(t, StateSkipped, s.Evaluate("u1"))
	assert.Equal(t, 1, d.count())

	sent, err := markers.IsSent(context.Background(), notification.MarkerKey{
		UserID: "u1", Trigger: notification.TriggerWeeklyReview, WindowKey: "2024-10-07",
	})
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestEvaluate_SkipsOutsideWindowAndWhenDisabled(t *testing.T) {
	d := &recordingDispatcher{}
	s := newTestScheduler(enabledPrefs(), d, database.NewMemoryMarkerRepository(), &testClock{now: inWindow.Add(-24 * time.Hour)})
	defer s.Stop()
	s.StartSession("u1", "tok")
	waitForState(t, s, "u1", StateSkipped)

	disabled := enabledPrefs()
	disabled.Triggers = notification.TriggerFlags{}
	s2 := newTestScheduler(disabled, d, database.NewMemoryMarkerRepository(), &testClock{now: inWindow})
	defer s2.Stop()
	s2.StartSession("u1", "tok")
	waitForState(t, s2, "u1", StateSkipped)

	noPhone := enabledPrefs()
	noPhone.Phone = ""
	s3 := newTestScheduler(noPhone, d, database.NewMemoryMarkerRepository(), &testClock{now: inWindow})
	defer s3.Stop()
	s3.StartSession("u1", "tok")
	waitForState(t, s3, "u1", StateSkipped)

	assert.Equal(t, 0, d.count())
}

func TestEvaluate_FailureLeavesWindowOpen(t *testing.T) {
	d := &recordingDispatcher{err: &notification.GatewayError{Message: "down", HTTPStatus: 503}}
	s := newTestScheduler(enabledPrefs(), d, database.NewMemoryMarkerRepository(), &testClock{now: inWindow})
	defer s.Stop()

	s.StartSession("u1", "tok")
	waitForState(t, s, "u1", StateFailedLogged)

	d.setErr(nil)
	assert.Equal(t, StateMarkedSent, s.Evaluate("u1"))
	assert.Equal(t, 2, d.count())
}

func TestEvaluate_ClaimHeldElsewhere(t *testing.T) {
	d := &recordingDispatcher{}
	markers := database.NewMemoryMarkerRepository()
	key := notification.MarkerKey{UserID: "u1", Trigger: notification.TriggerWeeklyReview, WindowKey: "2024-10-07"}
	claimed, err := markers.TryClaim(context.Background(), key, inWindow, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	s := newTestScheduler(enabledPrefs(), d, markers, &testClock{now: inWindow})
	defer s.Stop()
	s.StartSession("u1", "tok")
	waitForState(t, s, "u1", StateSkipped)
	assert.Equal(t, 0, d.count())
}

func TestEvaluate_InFlightGuard(t *testing.T) {
	d := &recordingDispatcher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestScheduler(enabledPrefs(), d, database.NewMemoryMarkerRepository(), &testClock{now: inWindow})
	defer s.Stop()

	s.StartSession("u1", "tok")
	<-d.entered
	assert.Equal(t, StateSkipped, s.Evaluate("u1"))

	close(d.release)
	waitForState(t, s, "u1", StateMarkedSent)
	assert.Equal(t, 1, d.count())
}

func TestEndSession_InFlightSendStillConfirms(t *testing.T) {
	d := &recordingDispatcher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	markers := database.NewMemoryMarkerRepository()
	s := newTestScheduler(enabledPrefs(), d, markers, &testClock{now: inWindow})
	defer s.Stop()

	s.StartSession("u1", "tok")
	<-d.entered
	assert.True(t, s.EndSession("u1"))
	assert.False(t, s.EndSession("u1"))
	_, ok := s.SessionState("u1")
	assert.False(t, ok)

	close(d.release)
	key := notification.MarkerKey{UserID: "u1", Trigger: notification.TriggerWeeklyReview, WindowKey: "2024-10-07"}
	require.Eventually(t, func() bool {
		sent, err := markers.IsSent(context.Background(), key)
		return err == nil && sent
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateSkipped, s.Evaluate("u1"))
}

func TestStartSession_RefreshesToken(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &testClock{now: inWindow.Add(-time.Hour)}
	s := newTestScheduler(enabledPrefs(), d, database.NewMemoryMarkerRepository(), clock)
	defer s.Stop()

	s.StartSession("u1", "old")
	waitForState(t, s, "u1", StateSkipped)
	s.StartSession("u1", "new")

	clock.Set(inWindow)
	assert.Equal(t, StateMarkedSent, s.Evaluate("u1"))
	require.Equal(t, 1, d.count())
	assert.Equal(t, "new", d.tokens[0])
}

func TestEvaluate_UnknownSession(t *testing.T) {
	s := newTestScheduler(enabledPrefs(), &recordingDispatcher{}, database.NewMemoryMarkerRepository(), &testClock{now: inWindow})
	assert.Equal(t, StateSkipped, s.Evaluate("nobody"))
}

func TestStop_WaitsForFirstEvaluation(t *testing.T) {
	d := &recordingDispatcher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	markers := database.NewMemoryMarkerRepository()
	s := newTestScheduler(enabledPrefs(), d, markers, &testClock{now: inWindow})

	s.StartSession("u1", "tok")
	<-d.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while the first evaluation was still sending")
	case <-time.After(100 * time.Millisecond):
	}

	close(d.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the send finished")
	}
	key := notification.MarkerKey{UserID: "u1", Trigger: notification.TriggerWeeklyReview, WindowKey: "2024-10-07"}
	sent, err := markers.IsSent(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, sent)
}
