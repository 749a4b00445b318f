package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.MaxMultipartMemory = 8 << 20

	loginLimiter := middleware.NewRateLimiter(1, 5)
	downloadLimiter := middleware.NewRateLimiter(5, 20)

	r.GET("/health", svc.healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		// Public
		auth := api.Group("/auth")
		{
			auth.POST("/login", loginLimiter.Middleware(), svc.authHandler.Login)
			auth.POST("/refresh", loginLimiter.Middleware(), svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}
		api.GET("/attachments/download", downloadLimiter.Middleware(), svc.attachmentHandler.Download)

		// EventSource cannot send headers, so the token may come in the query
		api.GET("/events/notifications", middleware.StreamAuthRequired(), svc.sseHandler.StreamNotifications)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog(svc.audits))
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// User groups
			protected.GET("/user-groups", svc.userGroupHandler.List)
			protected.GET("/user-groups/:id", svc.userGroupHandler.GetByID)
			protected.POST("/user-groups", svc.userGroupHandler.Create)
			protected.DELETE("/user-groups/:id", svc.userGroupHandler.Delete)
			protected.POST("/user-groups/:id/members", svc.userGroupHandler.AddMember)
			protected.DELETE("/user-groups/:id/members/:userId", svc.userGroupHandler.RemoveMember)

			// Workflows
			protected.GET("/workflows", svc.workflowHandler.List)
			protected.GET("/workflows/:id", svc.workflowHandler.GetByID)
			protected.POST("/workflows", svc.workflowHandler.Create)
			protected.PUT("/workflows/:id", svc.workflowHandler.Update)
			protected.DELETE("/workflows/:id", svc.workflowHandler.Delete)
			protected.PATCH("/workflows/:id/statuses/reorder", svc.workflowHandler.ReorderStatuses)
			protected.POST("/workflows/:id/statuses", svc.workflowHandler.AddStatus)
			protected.PUT("/workflows/:id/statuses/:statusId", svc.workflowHandler.UpdateStatus)
			protected.DELETE("/workflows/:id/statuses/:statusId", svc.workflowHandler.DeleteStatus)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.PUT("/projects/:id", svc.projectHandler.Update)
			protected.PUT("/projects/:id/status", svc.projectHandler.UpdateStatus)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.GET("/projects/:id/progress", svc.projectHandler.Progress)
			protected.GET("/projects/:id/members", svc.projectHandler.ListMembers)
			protected.POST("/projects/:id/members", svc.projectHandler.AddMember)
			protected.DELETE("/projects/:id/members/:memberId", svc.projectHandler.RemoveMember)
			protected.GET("/projects/:id/tasks", svc.taskHandler.List)
			protected.POST("/projects/:id/tasks", svc.taskHandler.Create)

			// Tasks
			protected.GET("/tasks/:id", svc.taskHandler.GetByID)
			protected.PUT("/tasks/:id", svc.taskHandler.Update)
			protected.DELETE("/tasks/:id", svc.taskHandler.Delete)
			protected.PUT("/tasks/:id/status", svc.taskHandler.UpdateStatus)
			protected.GET("/tasks/:id/progress", svc.taskHandler.CalculateProgress)
			protected.PUT("/tasks/:id/progress", svc.taskHandler.UpdateProgress)
			protected.POST("/tasks/:id/progress/sync", svc.taskHandler.SyncProgress)
			protected.GET("/tasks/:id/subtasks", svc.taskHandler.ListSubtasks)
			protected.POST("/tasks/:id/subtasks", svc.taskHandler.CreateSubtask)
			protected.PUT("/tasks/:id/assignee", svc.assignmentHandler.AssignTask)
			protected.DELETE("/tasks/:id/assignee", svc.assignmentHandler.UnassignTask)
			protected.GET("/tasks/:id/links", svc.taskLinkHandler.List)
			protected.POST("/tasks/:id/links", svc.taskLinkHandler.Create)
			protected.DELETE("/task-links/:id", svc.taskLinkHandler.Delete)

			// Subtasks
			protected.GET("/subtasks/:id", svc.subtaskHandler.GetByID)
			protected.PUT("/subtasks/:id", svc.subtaskHandler.Update)
			protected.DELETE("/subtasks/:id", svc.subtaskHandler.Delete)
			protected.PUT("/subtasks/:id/status", svc.subtaskHandler.UpdateStatus)
			protected.PUT("/subtasks/:id/progress", svc.subtaskHandler.UpdateProgress)
			protected.PUT("/subtasks/:id/assignee", svc.assignmentHandler.AssignSubtask)
			protected.DELETE("/subtasks/:id/assignee", svc.assignmentHandler.UnassignSubtask)

			protected.GET("/assignments", svc.assignmentHandler.List)

			// Comments
			protected.GET("/comments", svc.commentHandler.List)
			protected.POST("/comments", svc.commentHandler.Create)
			protected.PUT("/comments/:id", svc.commentHandler.Update)
			protected.DELETE("/comments/:id", svc.commentHandler.Delete)

			// Attachments
			protected.GET("/attachments", svc.attachmentHandler.List)
			protected.POST("/attachments", svc.attachmentHandler.Upload)
			protected.GET("/attachments/:id", svc.attachmentHandler.GetByID)
			protected.GET("/attachments/:id/url", svc.attachmentHandler.SignedURL)
			protected.DELETE("/attachments/:id", svc.attachmentHandler.Delete)

			// Time tracking
			protected.GET("/time-entries", svc.timeEntryHandler.List)
			protected.GET("/time-entries/mine", svc.timeEntryHandler.ListMine)
			protected.GET("/time-entries/summary", svc.timeEntryHandler.Summary)
			protected.POST("/time-entries", svc.timeEntryHandler.Create)
			protected.PUT("/time-entries/:id", svc.timeEntryHandler.Update)
			protected.DELETE("/time-entries/:id", svc.timeEntryHandler.Delete)

			// Notifications
			protected.GET("/notifications", svc.notificationHandler.List)
			protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
			protected.PATCH("/notifications/read-all", svc.notificationHandler.MarkAllAsRead)
			protected.PATCH("/notifications/:id/read", svc.notificationHandler.MarkAsRead)
			protected.DELETE("/notifications/:id", svc.notificationHandler.Delete)

			protected.GET("/audits", svc.auditHandler.ListForEntity)

			protected.GET("/calendar/countries", svc.calendarHandler.Countries)
			protected.GET("/calendar/workday", svc.calendarHandler.Workday)

			// Admin only
			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/users", svc.userHandler.List)
				admin.POST("/users", svc.userHandler.Create)
				admin.PUT("/users/:id", svc.userHandler.Update)
				admin.DELETE("/users/:id", svc.userHandler.Delete)
				admin.GET("/admin/audits", svc.auditHandler.List)
				admin.POST("/notifications", svc.notificationHandler.Send)
				admin.POST("/admin/notifications", svc.notificationHandler.Send)
			}
		}
	}
}
