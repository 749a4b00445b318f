package services

import (
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound    = response.NewNotFound("TASK_NOT_FOUND", "task not found")
	ErrInvalidStatus   = response.NewBadRequest("INVALID_STATUS", "status does not belong to the governing workflow")
	ErrNoBacklogStatus = response.NewBadRequest("NO_BACKLOG_STATUS", "workflow has no backlog status")
	ErrInvalidProgress = response.NewBadRequest("INVALID_PROGRESS", "progress must be between 0 and 100")
	ErrInvalidAssignee = response.NewBadRequest("INVALID_ASSIGNEE", "assignee is not a member of the project")
	ErrInvalidPriority = response.NewBadRequest("INVALID_PRIORITY", "priority must be one of low, medium, high, urgent")
)

type TaskService struct {
	db       *gorm.DB
	projects *ProjectService
	progress *ProgressService
	notifier Notifier
}

func NewTaskService(db *gorm.DB, projects *ProjectService, progress *ProgressService, notifier Notifier) *TaskService {
	return &TaskService{db: db, projects: projects, progress: progress, notifier: notifier}
}

type CreateTaskRequest struct {
	Title           string     `json:"title" binding:"required,max=500"`
	Description     string     `json:"description"`
	StatusID        *uint      `json:"status_id"`
	AssignedTo      *uint      `json:"assigned_to"`
	Priority        string     `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	StartDate       *time.Time `json:"start_date"`
	DueDate         *time.Time `json:"due_date"`
	EstimatedHours  *float64   `json:"estimated_hours" binding:"omitempty,gte=0"`
	EstimatedPoints *float64   `json:"estimated_points" binding:"omitempty,gte=0"`
}

type UpdateTaskRequest struct {
	Title           *string    `json:"title" binding:"omitempty,min=1,max=500"`
	Description     *string    `json:"description"`
	Priority        *string    `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	StartDate       *time.Time `json:"start_date"`
	DueDate         *time.Time `json:"due_date"`
	EstimatedHours  *float64   `json:"estimated_hours" binding:"omitempty,gte=0"`
	EstimatedPoints *float64   `json:"estimated_points" binding:"omitempty,gte=0"`
}

type UpdateTaskStatusRequest struct {
	StatusID uint `json:"status_id" binding:"required"`
}

// Progress is a pointer so that an explicit 0 passes "required".
type UpdateProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

type TaskListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	StatusID   *uint  `form:"status_id"`
	AssignedTo *uint  `form:"assigned_to"`
	Priority   string `form:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Search     string `form:"search"`
}

type TaskListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Task `json:"items"`
}

// Create adds a task to a project the user can access. Without an explicit
// status the task starts in the workflow's first backlog status.
func (s *TaskService) Create(projectID uint, req *CreateTaskRequest, userID uint) (*models.Task, error) {
	project, err := s.projects.RequireAccess(projectID, userID)
	if err != nil {
		return nil, err
	}
	if project.Status == models.ProjectStatusArchived {
		return nil, ErrProjectArchived
	}

	statusID, err := resolveWorkflowStatus(s.db, project.WorkflowID, req.StatusID)
	if err != nil {
		return nil, err
	}
	if err := validateDateRange(req.StartDate, req.DueDate); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.requireMember(project, *req.AssignedTo); err != nil {
			return nil, err
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	} else if !models.IsValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	task := models.Task{
		ProjectID:       project.ID,
		Title:           req.Title,
		Description:     req.Description,
		StatusID:        statusID,
		AssignedTo:      req.AssignedTo,
		Priority:        priority,
		StartDate:       req.StartDate,
		DueDate:         req.DueDate,
		EstimatedHours:  req.EstimatedHours,
		EstimatedPoints: req.EstimatedPoints,
		CreatedBy:       userID,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("task_id", task.ID).Uint("project_id", project.ID).Uint("user_id", userID).Msg("task created")
	if task.AssignedTo != nil && *task.AssignedTo != userID {
		notifyAssigned(s.notifier, models.EntityTypeTask, task.ID, project.ID, *task.AssignedTo, task.Title)
	}
	return s.load(task.ID)
}

// GetByID returns a live task the user can access.
func (s *TaskService) GetByID(id, userID uint) (*models.Task, error) {
	task, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireAccess(task.ProjectID, userID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) List(projectID uint, req *TaskListRequest, userID uint) (*TaskListResponse, error) {
	if _, err := s.projects.RequireAccess(projectID, userID); err != nil {
		return nil, err
	}
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize, 20)

	query := s.db.Model(&models.Task{}).Where("project_id = ?", projectID)
	if req.StatusID != nil {
		query = query.Where("status_id = ?", *req.StatusID)
	}
	if req.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *req.AssignedTo)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if req.Search != "" {
		query = query.Where("title LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var tasks []models.Task
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Status").Offset(offset).Limit(req.PageSize).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return &TaskListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    tasks,
	}, nil
}

// Update changes descriptive fields. Date ordering is checked against the
// merged old and new values.
func (s *TaskService) Update(id uint, req *UpdateTaskRequest, userID uint) (*models.Task, error) {
	task, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	start, due := task.StartDate, task.DueDate
	if req.StartDate != nil {
		start = req.StartDate
	}
	if req.DueDate != nil {
		due = req.DueDate
	}
	if err := validateDateRange(start, due); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		if !models.IsValidPriority(*req.Priority) {
			return nil, ErrInvalidPriority
		}
		updates["priority"] = *req.Priority
	}
	if req.StartDate != nil {
		updates["start_date"] = req.StartDate
	}
	if req.DueDate != nil {
		updates["due_date"] = req.DueDate
	}
	if req.EstimatedHours != nil {
		updates["estimated_hours"] = *req.EstimatedHours
	}
	if req.EstimatedPoints != nil {
		updates["estimated_points"] = *req.EstimatedPoints
	}
	if len(updates) > 0 {
		if err := s.db.Model(&models.Task{ID: task.ID}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

// UpdateStatus moves the task to another status of its project's workflow.
func (s *TaskService) UpdateStatus(id, statusID, userID uint) (*models.Task, error) {
	task, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.load(task.ProjectID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveWorkflowStatus(s.db, project.WorkflowID, &statusID); err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Task{ID: task.ID}).Update("status_id", statusID).Error; err != nil {
		return nil, err
	}
	logger.Info().Uint("task_id", id).Uint("status_id", statusID).Uint("user_id", userID).Msg("task status changed")
	return s.load(id)
}

func (s *TaskService) UpdateProgress(id uint, progress int, userID uint) (*models.Task, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}
	task, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Task{ID: task.ID}).Update("progress", progress).Error; err != nil {
		return nil, err
	}
	return s.load(id)
}

// Delete soft-deletes the task and its subtasks.
func (s *TaskService) Delete(id, userID uint) error {
	task, err := s.GetByID(id, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Subtask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{ID: task.ID}).Error
	})
	if err != nil {
		return err
	}

	logger.Info().Uint("task_id", id).Uint("project_id", task.ProjectID).Uint("user_id", userID).Msg("task deleted")
	return nil
}

// CalculateProgress averages subtask progress without persisting it.
func (s *TaskService) CalculateProgress(id, userID uint) (int, error) {
	if _, err := s.GetByID(id, userID); err != nil {
		return 0, err
	}
	return s.progress.TaskProgress(id)
}

// UpdateProgressFromSubtasks writes the subtask average back to the task.
func (s *TaskService) UpdateProgressFromSubtasks(id, userID uint) (*models.Task, error) {
	progress, err := s.CalculateProgress(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Task{ID: id}).Update("progress", progress).Error; err != nil {
		return nil, err
	}
	return s.load(id)
}

func (s *TaskService) load(id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.Preload("Status").First(&task, id).Error; err != nil {
		return nil, notFoundOr(err, ErrTaskNotFound)
	}
	return &task, nil
}

func (s *TaskService) requireMember(project *models.Project, userID uint) error {
	ok, err := s.projects.hasAccess(project, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidAssignee
	}
	return nil
}

// resolveWorkflowStatus checks an explicit status against the workflow, or
// picks the workflow's lowest-position backlog status.
func resolveWorkflowStatus(db *gorm.DB, workflowID uint, statusID *uint) (uint, error) {
	if statusID != nil {
		var count int64
		if err := db.Model(&models.WorkflowStatus{}).
			Where("id = ? AND workflow_id = ?", *statusID, workflowID).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, ErrInvalidStatus
		}
		return *statusID, nil
	}

	var status models.WorkflowStatus
	err := db.Where("workflow_id = ? AND phase = ?", workflowID, models.PhaseBacklog).
		Order("position ASC, id ASC").
		First(&status).Error
	if err != nil {
		return 0, notFoundOr(err, ErrNoBacklogStatus)
	}
	return status.ID, nil
}
