package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"reminder_service/internal/app" // For NotifyPayload
	"reminder_service/internal/domain/notification"
	"reminder_service/internal/domain/review"
	"reminder_service/internal/infra/metrics"
)

// State is the terminal state of one evaluation.
type State string

const (
	StateIdle         State = "idle"
	StateEvaluating   State = "evaluating"
	StateSkipped      State = "skipped"
	StateSending      State = "sending"
	StateMarkedSent   State = "marked_sent"
	StateFailedLogged State = "failed_logged"
)

// PreferenceLoader returns the sanitized preferences of a user.
type PreferenceLoader interface {
	Load(ctx context.Context, userID string) (notification.Preferences, error)
}

// ReviewComposer builds the weekly review body.
type ReviewComposer interface {
	RenderWeeklyReview(ctx context.Context, userID string, prefs notification.Preferences, now time.Time) (string, error)
}

// Dispatcher sends through the authenticated dispatch endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, trigger notification.TriggerKind, payload app.NotifyPayload) (notification.DispatchResult, error)
}

type session struct {
	userID   string
	entryID  cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight atomic.Bool
	state    atomic.Value // State

	mu    sync.Mutex
	token string
}

func (s *session) bearer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// ReminderScheduler runs one periodic evaluation per active user session.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	prefs      PreferenceLoader
	composer   ReviewComposer
	dispatcher Dispatcher
	markers    notification.MarkerRepository
	interval   time.Duration
	lease      time.Duration
	timeout    time.Duration
	clock      func() time.Time
	logger     *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool
	firstRun sync.WaitGroup
}

func NewReminderScheduler(
	prefs PreferenceLoader,
	composer ReviewComposer,
	dispatcher Dispatcher,
	markers notification.MarkerRepository,
	interval time.Duration, // e.g. 60s between evaluations of one session
	lease time.Duration, // how long a claimed window stays reserved
	timeout time.Duration, // bound for one evaluation's outbound calls
	logger *logrus.Entry,
) *ReminderScheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		prefs:      prefs,
		composer:   composer,
		dispatcher: dispatcher,
		markers:    markers,
		interval:   interval,
		lease:      lease,
		timeout:    timeout,
		clock:      time.Now,
		logger:     logger.WithField("component", "scheduler"),
		sessions:   make(map[string]*session),
	}
}

func (s *ReminderScheduler) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting reminder scheduler...")
	s.cronEngine.Start()
}

// Stop ends every session and waits for running evaluations, first
// evaluations included.
func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	s.mu.Lock()
	s.stopped = true
	for userID, sess := range s.sessions {
		s.cronEngine.Remove(sess.entryID)
		sess.cancel()
		delete(s.sessions, userID)
		metrics.ActiveSessions.Dec()
	}
	s.mu.Unlock()

	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.firstRun.Wait()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}

// StartSession activates evaluation for userID. The first evaluation runs
// immediately. Starting an active session only replaces its token.
func (s *ReminderScheduler) StartSession(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.WithField("user_id", userID).Warn("Scheduler stopped, session not started")
		return
	}
	if sess, ok := s.sessions[userID]; ok {
		sess.setToken(token)
		s.logger.WithField("user_id", userID).Debug("Session already active, token refreshed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{userID: userID, token: token, ctx: ctx, cancel: cancel}
	sess.state.Store(StateIdle)
	sess.entryID = s.cronEngine.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.evaluate(sess)
	}))
	s.sessions[userID] = sess
	metrics.ActiveSessions.Inc()
	s.logger.WithField("user_id", userID).Info("Scheduler session started")

	s.firstRun.Add(1)
	go func() {
		defer s.firstRun.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(logrus.Fields{"user_id": userID, "panic": r}).Error("First evaluation panicked")
			}
		}()
		s.evaluate(sess)
	}()
}

// EndSession stops ticking for userID. An in-flight send may still finish.
func (s *ReminderScheduler) EndSession(userID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.cronEngine.Remove(sess.entryID)
	sess.cancel()
	metrics.ActiveSessions.Dec()
	s.logger.WithField("user_id", userID).Info("Scheduler session ended")
	return true
}

// Evaluate runs one evaluation of an active session synchronously.
func (s *ReminderScheduler) Evaluate(userID string) State {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return StateSkipped
	}
	return s.evaluate(sess)
}

// SessionState returns the state of a running evaluation, or the terminal
// state of the last one.
func (s *ReminderScheduler) SessionState(userID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return "", false
	}
	return sess.state.Load().(State), true
}

// InWeeklyWindow reports whether now, already in the user's zone, is a Sunday
// inside [review time, review time + 60m).
func InWeeklyWindow(now time.Time, prefs notification.Preferences) bool {
	if now.Weekday() != time.Sunday {
		return false
	}
	hour, minute := prefs.ReviewClock()
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(start) && now.Before(start.Add(time.Hour))
}

func (s *ReminderScheduler) evaluate(sess *session) State {
	if !sess.inFlight.CompareAndSwap(false, true) {
		s.logger.WithField("user_id", sess.userID).Debug("Evaluation already in flight, skipping tick")
		metrics.SchedulerEvaluations.WithLabelValues(string(notification.TriggerWeeklyReview), "in_flight").Inc()
		return StateSkipped
	}
	state, outcome := func() (State, string) {
		defer sess.inFlight.Store(false)
		return s.run(sess)
	}()

	metrics.SchedulerEvaluations.WithLabelValues(string(notification.TriggerWeeklyReview), outcome).Inc()
	sess.state.Store(state)
	return state
}

func (s *ReminderScheduler) run(sess *session) (State, string) {
	trigger := notification.TriggerWeeklyReview
	logEntry := s.logger.WithFields(logrus.Fields{"user_id": sess.userID, "trigger": trigger})

	if sess.ctx.Err() != nil {
		return StateSkipped, "session_ended"
	}
	sess.state.Store(StateEvaluating)

	ctx, cancel := context.WithTimeout(sess.ctx, s.timeout)
	defer cancel()

	prefs, err := s.prefs.Load(ctx, sess.userID)
	if err != nil {
		logEntry.WithError(err).Error("Failed to load preferences")
		return StateFailedLogged, "preferences_error"
	}
	if !prefs.TriggerEnabled(trigger) || strings.TrimSpace(prefs.Phone) == "" {
		return StateSkipped, "disabled"
	}

	now := s.clock().In(prefs.Location())
	if !InWeeklyWindow(now, prefs) {
		return StateSkipped, "outside_window"
	}

	key := notification.MarkerKey{
		UserID:    sess.userID,
		Trigger:   trigger,
		WindowKey: review.WeekKey(now, prefs.WeekStartsOnMonday),
	}
	logEntry = logEntry.WithField("window_key", key.WindowKey)

	sent, err := s.markers.IsSent(ctx, key)
	if err != nil {
		logEntry.WithError(err).Error("Failed to read delivery marker")
		return StateFailedLogged, "marker_error"
	}
	if sent {
		return StateSkipped, "already_sent"
	}
	claimed, err := s.markers.TryClaim(ctx, key, s.clock(), s.lease)
	if err != nil {
		logEntry.WithError(err).Error("Failed to claim delivery window")
		return StateFailedLogged, "marker_error"
	}
	if !claimed {
		logEntry.Debug("Window held by another claim")
		return StateSkipped, "claimed_elsewhere"
	}

	// The send outlives session cancellation; only the outcome is discarded.
	sendCtx, sendCancel := context.WithTimeout(context.WithoutCancel(sess.ctx), s.timeout)
	defer sendCancel()

	body, err := s.composer.RenderWeeklyReview(ctx, sess.userID, prefs, now)
	if err != nil {
		logEntry.WithError(err).Error("Failed to compose weekly review")
		s.release(sendCtx, key, logEntry)
		return StateFailedLogged, "compose_error"
	}

	sess.state.Store(StateSending)
	res, err := s.dispatcher.Dispatch(sendCtx, sess.bearer(), trigger, app.NotifyPayload{
		Destination: prefs.Phone,
		Channel:     string(prefs.Channel),
		Body:        body,
	})
	if err != nil {
		logEntry.WithError(err).WithField("status", notification.HTTPStatus(err)).Error("Weekly review dispatch failed, retrying next tick")
		s.release(sendCtx, key, logEntry)
		return StateFailedLogged, "dispatch_error"
	}

	if err := s.markers.Confirm(sendCtx, key, res.MessageID, s.clock()); err != nil {
		logEntry.WithError(err).Error("Message sent but marker could not be confirmed")
		return StateFailedLogged, "confirm_error"
	}
	if sess.ctx.Err() != nil {
		logEntry.WithField("message_id", res.MessageID).Info("Session ended during send, outcome discarded")
		return StateMarkedSent, "sent_after_end"
	}
	logEntry.WithField("message_id", res.MessageID).Info("Weekly review sent")
	return StateMarkedSent, "sent"
}

func (s *ReminderScheduler) release(ctx context.Context, key notification.MarkerKey, logEntry *logrus.Entry) {
	if err := s.markers.Release(ctx, key); err != nil {
		logEntry.WithError(err).Warn("Failed to release claim, it expires with its lease")
	}
}
