package main

import (
	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/handlers"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/internal/utils"
	"github.com/huangang/taskhub/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds every service and handler, each constructed once.
type appServices struct {
	db          *gorm.DB
	taskQueue   services.TaskQueue
	worker      *services.Worker
	maintenance *services.MaintenanceService
	audits      *services.AuditService

	healthHandler       *handlers.HealthHandler
	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	userGroupHandler    *handlers.UserGroupHandler
	workflowHandler     *handlers.WorkflowHandler
	projectHandler      *handlers.ProjectHandler
	taskHandler         *handlers.TaskHandler
	subtaskHandler      *handlers.SubtaskHandler
	assignmentHandler   *handlers.AssignmentHandler
	taskLinkHandler     *handlers.TaskLinkHandler
	commentHandler      *handlers.CommentHandler
	attachmentHandler   *handlers.AttachmentHandler
	timeEntryHandler    *handlers.TimeEntryHandler
	notificationHandler *handlers.NotificationHandler
	sseHandler          *handlers.SSEHandler
	auditHandler        *handlers.AuditHandler
	calendarHandler     *handlers.CalendarHandler
}

// bootstrap opens the database and wires all application dependencies.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default workflows")
	}

	// Notification delivery: queue -> processor -> database + SSE hub
	hub := services.NewSSEHub()
	notificationService := services.NewNotificationService(db, hub)
	taskQueue := services.NewTaskQueue(&cfg.Redis, notificationService.Process)

	var worker *services.Worker
	if taskQueue.IsAsync() {
		if worker = services.NewWorker(&cfg.Redis); worker != nil {
			worker.SetProcessor(notificationService.Process)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start notification worker: %v", err)
			}
		}
	}

	// Domain services
	workflowService := services.NewWorkflowService(db)
	progressService := services.NewProgressService(db)
	projectService := services.NewProjectService(db, workflowService, progressService)
	taskService := services.NewTaskService(db, projectService, progressService, taskQueue)
	subtaskService := services.NewSubtaskService(db, projectService, taskQueue)
	assignmentService := services.NewAssignmentService(db, projectService, taskQueue)
	auditService := services.NewAuditService(db, projectService)
	attachmentService := services.NewAttachmentService(db, projectService,
		services.NewLocalStorage(cfg.Storage.UploadDir), &cfg.Storage, &cfg.Attachment)

	authService := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP))
	if err := authService.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	calendar := services.NewWorkCalendar()
	maintenance := services.NewMaintenanceService(db, &cfg.Maintenance, calendar, taskQueue, auditService, notificationService)
	if err := maintenance.Start(); err != nil {
		logger.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	return &appServices{
		db:          db,
		taskQueue:   taskQueue,
		worker:      worker,
		maintenance: maintenance,
		audits:      auditService,

		healthHandler:       handlers.NewHealthHandler(db, taskQueue, hub),
		authHandler:         handlers.NewAuthHandler(authService),
		userHandler:         handlers.NewUserHandler(services.NewUserService(db)),
		userGroupHandler:    handlers.NewUserGroupHandler(services.NewUserGroupService(db)),
		workflowHandler:     handlers.NewWorkflowHandler(workflowService),
		projectHandler:      handlers.NewProjectHandler(projectService),
		taskHandler:         handlers.NewTaskHandler(taskService, subtaskService),
		subtaskHandler:      handlers.NewSubtaskHandler(subtaskService),
		assignmentHandler:   handlers.NewAssignmentHandler(assignmentService),
		taskLinkHandler:     handlers.NewTaskLinkHandler(services.NewTaskLinkService(db, projectService)),
		commentHandler:      handlers.NewCommentHandler(services.NewCommentService(db, projectService, taskQueue)),
		attachmentHandler:   handlers.NewAttachmentHandler(attachmentService),
		timeEntryHandler:    handlers.NewTimeEntryHandler(services.NewTimeEntryService(db, projectService)),
		notificationHandler: handlers.NewNotificationHandler(notificationService, taskQueue),
		sseHandler:          handlers.NewSSEHandler(hub),
		auditHandler:        handlers.NewAuditHandler(auditService),
		calendarHandler:     handlers.NewCalendarHandler(calendar, cfg.Maintenance.HolidayCountry),
	}
}

// shutdown stops background work and releases the database.
func (s *appServices) shutdown() {
	s.maintenance.Stop()
	logger.Info().Msg("Maintenance scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
