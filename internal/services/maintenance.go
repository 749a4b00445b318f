package services

import (
	"fmt"
	"os"
	"time"

	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dueReminderLock = "due_reminder"

// MaintenanceService runs the scheduled due-date reminders and retention cleanup.
type MaintenanceService struct {
	db            *gorm.DB
	cfg           *config.MaintenanceConfig
	calendar      *WorkCalendar
	notifier      Notifier
	audits        *AuditService
	notifications *NotificationService
	instanceID    string
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewMaintenanceService(db *gorm.DB, cfg *config.MaintenanceConfig, calendar *WorkCalendar, notifier Notifier, audits *AuditService, notifications *NotificationService) *MaintenanceService {
	host, _ := os.Hostname()
	return &MaintenanceService{
		db:            db,
		cfg:           cfg,
		calendar:      calendar,
		notifier:      notifier,
		audits:        audits,
		notifications: notifications,
		instanceID:    fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:           time.Now,
	}
}

func (s *MaintenanceService) Start() error {
	if !s.cfg.Enabled {
		logger.Infof("[Maintenance] Scheduler disabled")
		return nil
	}

	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc(s.cfg.ReminderCron, func() {
		if _, err := s.SendDueReminders(); err != nil {
			logger.Error().Err(err).Msg("due reminder run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder_cron %q: %w", s.cfg.ReminderCron, err)
	}
	if _, err := s.cronScheduler.AddFunc(s.cfg.CleanupCron, s.Cleanup); err != nil {
		return fmt.Errorf("invalid cleanup_cron %q: %w", s.cfg.CleanupCron, err)
	}

	s.cronScheduler.Start()
	logger.Infof("[Maintenance] Scheduler started (reminder: %s, cleanup: %s)", s.cfg.ReminderCron, s.cfg.CleanupCron)
	return nil
}

func (s *MaintenanceService) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// SendDueReminders notifies assignees of open tasks due within the next 24
// hours. It does nothing on non-working days or when another instance already
// ran today. It returns the number of reminders enqueued.
func (s *MaintenanceService) SendDueReminders() (int, error) {
	now := s.now()
	if !s.calendar.IsWorkday(now, s.cfg.HolidayCountry) {
		logger.Debug().Str("country", s.cfg.HolidayCountry).Msg("skipping due reminders on non-working day")
		return 0, nil
	}

	claimed, err := s.claim(dueReminderLock, now.Format(dateLayout), now)
	if err != nil {
		return 0, err
	}
	if !claimed {
		return 0, nil
	}

	var tasks []models.Task
	err = s.db.Joins("JOIN workflow_statuses ON workflow_statuses.id = tasks.status_id").
		Where("tasks.assigned_to IS NOT NULL").
		Where("tasks.due_date >= ? AND tasks.due_date <= ?", now, now.Add(24*time.Hour)).
		Where("workflow_statuses.phase <> ?", models.PhaseClosed).
		Find(&tasks).Error
	if err != nil {
		return 0, err
	}

	for i := range tasks {
		t := &tasks[i]
		projectID, taskID := t.ProjectID, t.ID
		notify(s.notifier, &NotificationJob{
			UserID:     *t.AssignedTo,
			Type:       models.NotificationTaskDueSoon,
			Title:      "Task due soon",
			Message:    fmt.Sprintf("%s is due %s", t.Title, t.DueDate.Format("2006-01-02 15:04")),
			ProjectID:  &projectID,
			EntityType: models.EntityTypeTask,
			EntityID:   &taskID,
		})
	}

	logger.Info().Int("count", len(tasks)).Msg("due reminders enqueued")
	return len(tasks), nil
}

// Cleanup applies the audit and notification retention windows.
func (s *MaintenanceService) Cleanup() {
	if n, err := s.audits.Cleanup(s.cfg.AuditRetentionDays); err != nil {
		logger.Error().Err(err).Msg("audit cleanup failed")
	} else if n > 0 {
		logger.Info().Int64("deleted", n).Msg("old audits removed")
	}

	if n, err := s.notifications.Cleanup(s.cfg.NotificationRetentionDays); err != nil {
		logger.Error().Err(err).Msg("notification cleanup failed")
	} else if n > 0 {
		logger.Info().Int64("deleted", n).Msg("old notifications removed")
	}

	s.db.Where("expires_at < ?", s.now()).Delete(&models.SchedulerLock{})
}

// claim inserts the lock row for name/key. Only the first caller wins.
func (s *MaintenanceService) claim(name, key string, now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(48 * time.Hour),
	}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
