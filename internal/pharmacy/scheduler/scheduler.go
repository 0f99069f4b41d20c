// Package scheduler runs the nightly backup and the monthly inventory reminder.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/i18n"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/messaging"
	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
)

// Job names, used as metric labels
const (
	JobBackup   = "backup"
	JobReminder = "inventory_reminder"
)

// reminderAt is when the reminder check runs each day; it only fires once a month
const reminderAt = "08:00"

// Backuper writes a backup file
type Backuper interface {
	WriteBackup(ctx context.Context) (string, error)
}

// Scheduler owns the gocron jobs
type Scheduler struct {
	backups   Backuper
	settings  *service.SettingsService
	publisher *events.Publisher
	metrics   *metrics.Metrics
	backupAt  string
	backupOn  bool
	location  *time.Location
	clock     func() time.Time
	cron      *gocron.Scheduler
	logger    *logger.Logger
}

// New creates a scheduler in the configured timezone
func New(cfg *config.Config, backups Backuper, settings *service.SettingsService, publisher *events.Publisher, m *metrics.Metrics, log *logger.Logger) (*Scheduler, error) {
	loc := time.Local
	if cfg.Scheduler.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
		}
	}

	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()

	return &Scheduler{
		backups:   backups,
		settings:  settings,
		publisher: publisher,
		metrics:   m,
		backupAt:  cfg.Backup.At,
		backupOn:  cfg.Backup.Enabled,
		location:  loc,
		clock:     func() time.Time { return time.Now().In(loc) },
		cron:      cron,
		logger:    log.WithComponent("scheduler"),
	}, nil
}

// WithClock replaces the time source of the reminder check
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Start registers the jobs and runs them asynchronously.
// The reminder check also runs once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.backupOn {
		if _, err := s.cron.Every(1).Day().At(s.backupAt).Do(s.runBackup, ctx); err != nil {
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
	}
	if _, err := s.cron.Every(1).Day().At(reminderAt).StartImmediately().Do(s.runReminder, ctx); err != nil {
		return fmt.Errorf("failed to schedule inventory reminder: %w", err)
	}

	s.cron.StartAsync()
	s.logger.Info().
		Bool("backups", s.backupOn).
		Str("backup_at", s.backupAt).
		Str("timezone", s.location.String()).
		Msg("scheduler started")
	return nil
}

// Stop stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runBackup(ctx context.Context) {
	path, err := s.backups.WriteBackup(ctx)
	s.observe(JobBackup, err)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled backup failed")
		return
	}
	s.logger.Info().Str("file", path).Msg("scheduled backup written")
}

func (s *Scheduler) runReminder(ctx context.Context) {
	_, err := s.RemindInventory(ctx)
	s.observe(JobReminder, err)
	if err != nil {
		s.logger.Error().Err(err).Msg("inventory reminder failed")
	}
}

func (s *Scheduler) observe(job string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveJob(job, err)
	}
}

// RemindInventory publishes the inventory reminder when reminders are enabled
// and none was recorded for the current month. It reports whether one was sent.
func (s *Scheduler) RemindInventory(ctx context.Context) (bool, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !settings.RemindersEnabled {
		return false, nil
	}

	now := s.clock()
	key := service.ReminderKey(now.Year(), int(now.Month())-1)
	if settings.LastInventoryReminder == key {
		return false, nil
	}
	if err := s.settings.Set(ctx, domain.SettingLastInventoryReminder, key); err != nil {
		return false, err
	}

	month := domain.Months[now.Month()-1]
	year := fmt.Sprintf("%04d", now.Year())
	ev := messaging.InventoryReminderEvent{
		Key:   key,
		Month: month,
		Year:  year,
		Message: i18n.TWithLocale(settings.Language, "reminder.inventory", map[string]string{
			"period": month + " " + year,
		}),
	}
	s.publisher.InventoryReminder(ctx, ev)
	s.logger.Info().Str("key", key).Msg("inventory reminder sent")
	return true, nil
}
