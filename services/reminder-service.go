package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kerimlews/taskmanager/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrReminderRunInProgress is returned when a run is requested while another is active.
var ErrReminderRunInProgress = errors.New("reminder run already in progress")

type ReminderSettings struct {
	Interval    time.Duration
	Window      time.Duration
	SendTimeout time.Duration
	Concurrency int
	Location    *time.Location
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Interval:    time.Hour,
		Window:      time.Hour,
		SendTimeout: 30 * time.Second,
		Concurrency: 4,
		Location:    time.UTC,
	}
}

// ReminderReport summarizes one scan.
type ReminderReport struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReminderService emails task owners shortly before their tasks are due. It keeps no
// state between runs apart from the per-task reminder marker held by the store.
type ReminderService struct {
	tasks    ReminderTaskStore
	users    UserFinder
	mailer   Mailer
	settings ReminderSettings
	logger   logrus.FieldLogger
	now      Clock

	running  atomic.Bool
	inFlight sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderService(tasks ReminderTaskStore, users UserFinder, mailer Mailer, settings ReminderSettings, logger logrus.FieldLogger) *ReminderService {
	defaults := DefaultReminderSettings()
	if settings.Interval <= 0 {
		settings.Interval = defaults.Interval
	}
	if settings.Window <= 0 {
		settings.Window = defaults.Window
	}
	if settings.SendTimeout <= 0 {
		settings.SendTimeout = defaults.SendTimeout
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaults.Concurrency
	}
	if settings.Location == nil {
		settings.Location = defaults.Location
	}
	return &ReminderService{
		tasks:    tasks,
		users:    users,
		mailer:   mailer,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ReminderService) WithClock(now Clock) *ReminderService {
	s.now = now
	return s
}

// Start launches the timer loop. Firings are aligned to multiples of the interval,
// so the default hourly interval fires on the hour. Calling Start twice is a no-op.
func (s *ReminderService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(ctx)
	s.logger.Infof("Event ID: REMINDER_SCHEDULER_STARTED, Description: Reminder scheduler started, interval %s, window %s", s.settings.Interval, s.settings.Window)
}

// Stop ends the timer loop and waits for an in-flight run to finish.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.inFlight.Wait()
	s.logger.Info("Event ID: REMINDER_SCHEDULER_STOPPED, Description: Reminder scheduler stopped")
}

func (s *ReminderService) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.untilNextFiring())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.inFlight.Add(1)
			go func() {
				defer s.inFlight.Done()
				s.fire(ctx)
			}()
			timer.Reset(s.untilNextFiring())
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *ReminderService) untilNextFiring() time.Duration {
	now := s.now()
	next := now.Truncate(s.settings.Interval).Add(s.settings.Interval)
	return next.Sub(now)
}

func (s *ReminderService) fire(ctx context.Context) {
	s.logger.Info("Event ID: REMINDER_RUN_START, Description: Running due date reminder job...")
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrReminderRunInProgress):
		s.logger.Warn("Event ID: REMINDER_RUN_SKIPPED, Description: Previous reminder run still active, skipping this firing")
	case err != nil:
		s.logger.Errorf("Event ID: REMINDER_RUN_FAILED, Description: Error sending due date reminders: %v", err)
	default:
		s.logger.Infof("Event ID: REMINDER_RUN_DONE, Description: Reminder run finished: scanned=%d sent=%d skipped=%d failed=%d",
			report.Scanned, report.Sent, report.Skipped, report.Failed)
	}
}

// RunOnce scans tasks due within [now, now+window] and sends one reminder per task
// whose current due date has not been reminded yet. A single failed send never stops
// the batch; only a failing task scan fails the run.
func (s *ReminderService) RunOnce(ctx context.Context) (ReminderReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return ReminderReport{}, ErrReminderRunInProgress
	}
	defer s.running.Store(false)

	now := s.now()
	from := now.UnixMilli()
	to := now.Add(s.settings.Window).UnixMilli()

	due, err := s.tasks.FindDueBetween(ctx, from, to)
	if err != nil {
		return ReminderReport{}, err
	}

	var (
		mu     sync.Mutex
		report = ReminderReport{Scanned: len(due)}
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.settings.Concurrency)
	for i := range due {
		task := due[i]
		if !task.NeedsReminder() {
			count(&report.Skipped)
			continue
		}
		g.Go(func() error {
			switch err := s.remind(ctx, &task); {
			case errors.Is(err, errOwnerUnavailable):
				count(&report.Skipped)
			case err != nil:
				count(&report.Failed)
				s.logger.WithField("taskId", task.ID).Errorf("Event ID: REMINDER_SEND_FAILED, Description: Reminder for task %s failed: %v", task.ID, err)
			default:
				count(&report.Sent)
			}
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

var errOwnerUnavailable = errors.New("task owner unavailable")

func (s *ReminderService) remind(ctx context.Context, task *models.Task) error {
	owner, err := s.users.FindByID(ctx, task.CreatedBy)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return errOwnerUnavailable
		}
		return err
	}
	if owner.Email == "" {
		return errOwnerUnavailable
	}

	subject, body := s.compose(task)

	sendCtx, cancel := context.WithTimeout(ctx, s.settings.SendTimeout)
	defer cancel()
	if err := s.mailer.Send(sendCtx, owner.Email, subject, body); err != nil {
		return err
	}

	if err := s.tasks.MarkReminded(ctx, task.ID, *task.DueDate); err != nil {
		s.logger.WithField("taskId", task.ID).Warnf("Event ID: REMINDER_MARK_FAILED, Description: Reminder sent but marker not stored for task %s: %v", task.ID, err)
	}
	s.logger.WithField("taskId", task.ID).Infof("Event ID: REMINDER_SENT, Description: Reminder sent for task %s to %s", task.ID, owner.Email)
	return nil
}

func (s *ReminderService) compose(task *models.Task) (string, string) {
	due := time.UnixMilli(*task.DueDate).In(s.settings.Location).Format("Mon, 02 Jan 2006 15:04 MST")
	subject := fmt.Sprintf("Task Reminder: %s is due soon", task.Title)
	body := fmt.Sprintf("Hello,\n\nThis is a reminder that your task %q is due at %s. Please take the necessary action.\n\nThank you.", task.Title, due)
	return subject, body
}
