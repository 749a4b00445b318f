package services

import (
	"errors"
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var ErrSubtaskNotFound = response.NewNotFound("SUBTASK_NOT_FOUND", "subtask not found")

// SubtaskService manages subtasks. Their statuses come from any subtask-type
// workflow in the system, not from the parent project's workflow.
type SubtaskService struct {
	db       *gorm.DB
	projects *ProjectService
	notifier Notifier
}

func NewSubtaskService(db *gorm.DB, projects *ProjectService, notifier Notifier) *SubtaskService {
	return &SubtaskService{db: db, projects: projects, notifier: notifier}
}

type CreateSubtaskRequest struct {
	Title       string     `json:"title" binding:"required,max=500"`
	Description string     `json:"description"`
	StatusID    *uint      `json:"status_id"`
	AssignedTo  *uint      `json:"assigned_to"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateSubtaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=500"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
}

func (s *SubtaskService) Create(taskID uint, req *CreateSubtaskRequest, userID uint) (*models.Subtask, error) {
	task, project, err := s.parent(taskID, userID)
	if err != nil {
		return nil, err
	}
	if project.Status == models.ProjectStatusArchived {
		return nil, ErrProjectArchived
	}

	statusID, err := resolveSubtaskStatus(s.db, req.StatusID)
	if err != nil {
		return nil, err
	}
	if err := validateDateRange(req.StartDate, req.DueDate); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		ok, err := s.projects.hasAccess(project, *req.AssignedTo)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidAssignee
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	} else if !models.IsValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	subtask := models.Subtask{
		TaskID:      task.ID,
		Title:       req.Title,
		Description: req.Description,
		StatusID:    statusID,
		AssignedTo:  req.AssignedTo,
		Priority:    priority,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		CreatedBy:   userID,
	}
	if err := s.db.Create(&subtask).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("subtask_id", subtask.ID).Uint("task_id", task.ID).Uint("user_id", userID).Msg("subtask created")
	if subtask.AssignedTo != nil && *subtask.AssignedTo != userID {
		notifyAssigned(s.notifier, models.EntityTypeSubtask, subtask.ID, project.ID, *subtask.AssignedTo, subtask.Title)
	}
	return s.load(subtask.ID)
}

func (s *SubtaskService) GetByID(id, userID uint) (*models.Subtask, error) {
	subtask, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.parent(subtask.TaskID, userID); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, ErrSubtaskNotFound
		}
		return nil, err
	}
	return subtask, nil
}

// List returns the live subtasks of a task in creation order.
func (s *SubtaskService) List(taskID, userID uint) ([]models.Subtask, error) {
	if _, _, err := s.parent(taskID, userID); err != nil {
		return nil, err
	}

	var subtasks []models.Subtask
	if err := s.db.Preload("Status").Where("task_id = ?", taskID).Order("id ASC").Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}

func (s *SubtaskService) Update(id uint, req *UpdateSubtaskRequest, userID uint) (*models.Subtask, error) {
	subtask, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	start, due := subtask.StartDate, subtask.DueDate
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
	if len(updates) > 0 {
		if err := s.db.Model(&models.Subtask{ID: subtask.ID}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

func (s *SubtaskService) UpdateStatus(id, statusID, userID uint) (*models.Subtask, error) {
	subtask, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	if _, err := resolveSubtaskStatus(s.db, &statusID); err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Subtask{ID: subtask.ID}).Update("status_id", statusID).Error; err != nil {
		return nil, err
	}
	return s.load(id)
}

// UpdateProgress sets the subtask's own progress. The parent task is not
// recomputed.
func (s *SubtaskService) UpdateProgress(id uint, progress int, userID uint) (*models.Subtask, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}
	subtask, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Subtask{ID: subtask.ID}).Update("progress", progress).Error; err != nil {
		return nil, err
	}
	return s.load(id)
}

func (s *SubtaskService) Delete(id, userID uint) error {
	subtask, err := s.GetByID(id, userID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&models.Subtask{ID: subtask.ID}).Error; err != nil {
		return err
	}
	logger.Info().Uint("subtask_id", id).Uint("task_id", subtask.TaskID).Uint("user_id", userID).Msg("subtask deleted")
	return nil
}

func (s *SubtaskService) load(id uint) (*models.Subtask, error) {
	var subtask models.Subtask
	if err := s.db.Preload("Status").First(&subtask, id).Error; err != nil {
		return nil, notFoundOr(err, ErrSubtaskNotFound)
	}
	return &subtask, nil
}

// parent loads the live parent task and checks project access.
func (s *SubtaskService) parent(taskID, userID uint) (*models.Task, *models.Project, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		return nil, nil, notFoundOr(err, ErrTaskNotFound)
	}
	project, err := s.projects.RequireAccess(task.ProjectID, userID)
	if err != nil {
		return nil, nil, err
	}
	return &task, project, nil
}

// resolveSubtaskStatus accepts any status of any subtask-type workflow. The
// default is the lowest-position backlog status among them.
func resolveSubtaskStatus(db *gorm.DB, statusID *uint) (uint, error) {
	subtaskWorkflows := db.Model(&models.Workflow{}).Select("id").Where("workflow_type = ?", models.WorkflowTypeSubtask)

	if statusID != nil {
		var count int64
		if err := db.Model(&models.WorkflowStatus{}).
			Where("id = ? AND workflow_id IN (?)", *statusID, subtaskWorkflows).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, ErrInvalidStatus
		}
		return *statusID, nil
	}

	var status models.WorkflowStatus
	err := db.Where("workflow_id IN (?) AND phase = ?", subtaskWorkflows, models.PhaseBacklog).
		Order("position ASC, id ASC").
		First(&status).Error
	if err != nil {
		return 0, notFoundOr(err, ErrNoBacklogStatus)
	}
	return status.ID, nil
}
