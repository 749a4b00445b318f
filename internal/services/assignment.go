package services

import (
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"gorm.io/gorm"
)

// AssignmentService owns the single assignee field of tasks and subtasks.
// Every change is audited in the same transaction.
type AssignmentService struct {
	db       *gorm.DB
	projects *ProjectService
	notifier Notifier
}

func NewAssignmentService(db *gorm.DB, projects *ProjectService, notifier Notifier) *AssignmentService {
	return &AssignmentService{db: db, projects: projects, notifier: notifier}
}

type AssignRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AssignmentItem is one task or subtask in an assignee's work list.
type AssignmentItem struct {
	EntityType string                 `json:"entity_type"`
	ID         uint                   `json:"id"`
	ProjectID  uint                   `json:"project_id"`
	TaskID     *uint                  `json:"task_id,omitempty"`
	Title      string                 `json:"title"`
	Status     *models.WorkflowStatus `json:"status,omitempty"`
	Priority   string                 `json:"priority"`
	DueDate    *time.Time             `json:"due_date"`
	Progress   int                    `json:"progress"`
}

type assignmentChange struct {
	AssignedTo *uint `json:"assigned_to"`
}

func (s *AssignmentService) AssignTask(taskID, assigneeID, callerID uint) (*models.Task, error) {
	task, project, err := s.loadTask(taskID, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(project, assigneeID); err != nil {
		return nil, err
	}

	previous := task.AssignedTo
	if err := s.apply(&models.Task{}, models.EntityTypeTask, task.ID, previous, &assigneeID, callerID); err != nil {
		return nil, err
	}
	if assigneeID != callerID {
		notifyAssigned(s.notifier, models.EntityTypeTask, task.ID, project.ID, assigneeID, task.Title)
	}

	task.AssignedTo = &assigneeID
	return task, nil
}

// UnassignTask clears the assignee. An audit entry is written only when
// there was one.
func (s *AssignmentService) UnassignTask(taskID, callerID uint) (*models.Task, error) {
	task, _, err := s.loadTask(taskID, callerID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo == nil {
		return task, nil
	}

	if err := s.apply(&models.Task{}, models.EntityTypeTask, task.ID, task.AssignedTo, nil, callerID); err != nil {
		return nil, err
	}
	task.AssignedTo = nil
	return task, nil
}

func (s *AssignmentService) AssignSubtask(subtaskID, assigneeID, callerID uint) (*models.Subtask, error) {
	subtask, project, err := s.loadSubtask(subtaskID, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(project, assigneeID); err != nil {
		return nil, err
	}

	if err := s.apply(&models.Subtask{}, models.EntityTypeSubtask, subtask.ID, subtask.AssignedTo, &assigneeID, callerID); err != nil {
		return nil, err
	}
	if assigneeID != callerID {
		notifyAssigned(s.notifier, models.EntityTypeSubtask, subtask.ID, project.ID, assigneeID, subtask.Title)
	}

	subtask.AssignedTo = &assigneeID
	return subtask, nil
}

func (s *AssignmentService) UnassignSubtask(subtaskID, callerID uint) (*models.Subtask, error) {
	subtask, _, err := s.loadSubtask(subtaskID, callerID)
	if err != nil {
		return nil, err
	}
	if subtask.AssignedTo == nil {
		return subtask, nil
	}

	if err := s.apply(&models.Subtask{}, models.EntityTypeSubtask, subtask.ID, subtask.AssignedTo, nil, callerID); err != nil {
		return nil, err
	}
	subtask.AssignedTo = nil
	return subtask, nil
}

// ListAssignments returns the tasks and subtasks assigned to assigneeID,
// limited to projects the caller can access.
func (s *AssignmentService) ListAssignments(assigneeID, callerID uint) ([]AssignmentItem, error) {
	visible := s.projects.accessibleProjectIDs(callerID)

	var tasks []models.Task
	if err := s.db.Preload("Status").
		Where("assigned_to = ? AND project_id IN (?)", assigneeID, visible).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	var subtasks []models.Subtask
	parents := s.db.Model(&models.Task{}).Select("id").Where("project_id IN (?)", visible)
	if err := s.db.Preload("Status").
		Where("assigned_to = ? AND task_id IN (?)", assigneeID, parents).
		Order("id ASC").
		Find(&subtasks).Error; err != nil {
		return nil, err
	}

	projectOf := make(map[uint]uint, len(tasks))
	items := make([]AssignmentItem, 0, len(tasks)+len(subtasks))
	for _, t := range tasks {
		projectOf[t.ID] = t.ProjectID
		items = append(items, AssignmentItem{
			EntityType: models.EntityTypeTask,
			ID:         t.ID,
			ProjectID:  t.ProjectID,
			Title:      t.Title,
			Status:     t.Status,
			Priority:   t.Priority,
			DueDate:    t.DueDate,
			Progress:   t.Progress,
		})
	}

	if err := s.fillParentProjects(subtasks, projectOf); err != nil {
		return nil, err
	}
	for _, st := range subtasks {
		taskID := st.TaskID
		items = append(items, AssignmentItem{
			EntityType: models.EntityTypeSubtask,
			ID:         st.ID,
			ProjectID:  projectOf[st.TaskID],
			TaskID:     &taskID,
			Title:      st.Title,
			Status:     st.Status,
			Priority:   st.Priority,
			DueDate:    st.DueDate,
			Progress:   st.Progress,
		})
	}
	return items, nil
}

func (s *AssignmentService) fillParentProjects(subtasks []models.Subtask, projectOf map[uint]uint) error {
	var missing []uint
	for _, st := range subtasks {
		if _, ok := projectOf[st.TaskID]; !ok {
			missing = append(missing, st.TaskID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var parents []models.Task
	if err := s.db.Select("id", "project_id").Where("id IN ?", missing).Find(&parents).Error; err != nil {
		return err
	}
	for _, p := range parents {
		projectOf[p.ID] = p.ProjectID
	}
	return nil
}

// apply writes the new assignee and its audit entry atomically.
func (s *AssignmentService) apply(model interface{}, entityType string, id uint, from, to *uint, callerID uint) error {
	action := "assign"
	if to == nil {
		action = "unassign"
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(model).Where("id = ?", id).Update("assigned_to", to).Error; err != nil {
			return err
		}
		return writeAudit(tx, AuditEntry{
			EntityType: entityType,
			EntityID:   id,
			Action:     action,
			UserID:     &callerID,
			OldValue:   assignmentChange{AssignedTo: from},
			NewValue:   assignmentChange{AssignedTo: to},
		})
	})
	if err != nil {
		return err
	}

	logger.Info().Str("entity_type", entityType).Uint("entity_id", id).Str("action", action).Uint("user_id", callerID).Msg("assignment changed")
	return nil
}

func (s *AssignmentService) loadTask(taskID, callerID uint) (*models.Task, *models.Project, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		return nil, nil, notFoundOr(err, ErrTaskNotFound)
	}
	project, err := s.projects.RequireAccess(task.ProjectID, callerID)
	if err != nil {
		return nil, nil, err
	}
	return &task, project, nil
}

func (s *AssignmentService) loadSubtask(subtaskID, callerID uint) (*models.Subtask, *models.Project, error) {
	var subtask models.Subtask
	if err := s.db.First(&subtask, subtaskID).Error; err != nil {
		return nil, nil, notFoundOr(err, ErrSubtaskNotFound)
	}
	var task models.Task
	if err := s.db.First(&task, subtask.TaskID).Error; err != nil {
		return nil, nil, notFoundOr(err, ErrSubtaskNotFound)
	}
	project, err := s.projects.RequireAccess(task.ProjectID, callerID)
	if err != nil {
		return nil, nil, err
	}
	return &subtask, project, nil
}

func (s *AssignmentService) requireMember(project *models.Project, userID uint) error {
	ok, err := s.projects.hasAccess(project, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidAssignee
	}
	return nil
}
