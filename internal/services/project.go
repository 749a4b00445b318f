package services

import (
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound      = response.NewNotFound("PROJECT_NOT_FOUND", "project not found")
	ErrProjectArchived      = response.NewBadRequest("PROJECT_ARCHIVED", "project is archived")
	ErrWorkflowImmutable    = response.NewBadRequest("WORKFLOW_IMMUTABLE", "a project's workflow cannot be changed")
	ErrInvalidProjectStatus = response.NewBadRequest("INVALID_PROJECT_STATUS", "unknown project status")
	ErrInvalidMember        = response.NewBadRequest("INVALID_MEMBER", "exactly one of user_id or user_group_id is required")
	ErrMemberExists         = response.NewConflict("MEMBER_EXISTS", "member already added to project")
	ErrMemberNotFound       = response.NewNotFound("MEMBER_NOT_FOUND", "project member not found")
)

type ProjectService struct {
	db        *gorm.DB
	workflows *WorkflowService
	progress  *ProgressService
}

func NewProjectService(db *gorm.DB, workflows *WorkflowService, progress *ProgressService) *ProjectService {
	return &ProjectService{db: db, workflows: workflows, progress: progress}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Status   string `form:"status" binding:"omitempty,oneof=active archived on_hold completed"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name        string     `json:"name" binding:"required,max=200"`
	Description string     `json:"description"`
	WorkflowID  uint       `json:"workflow_id" binding:"required"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	WorkflowID  *uint      `json:"workflow_id"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdateProjectStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active archived on_hold completed"`
}

type AddMemberRequest struct {
	UserID      *uint `json:"user_id"`
	UserGroupID *uint `json:"user_group_id"`
}

// accessibleProjectIDs is a subquery selecting every project userID can see:
// owned, direct membership, or membership through a user group.
func (s *ProjectService) accessibleProjectIDs(userID uint) *gorm.DB {
	groups := s.db.Model(&models.UserGroupMember{}).Select("user_group_id").Where("user_id = ?", userID)
	members := s.db.Model(&models.ProjectMember{}).Select("project_id").
		Where("user_id = ? OR user_group_id IN (?)", userID, groups)
	return s.db.Model(&models.Project{}).Select("id").
		Where("owner_id = ? OR id IN (?)", userID, members)
}

// List returns the projects userID owns or belongs to, each at most once.
func (s *ProjectService) List(req *ProjectListRequest, userID uint) (*ProjectListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize, 20)

	query := s.db.Model(&models.Project{}).Where("id IN (?)", s.accessibleProjectIDs(userID))
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var projects []models.Project
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project the user can access, with its computed progress.
func (s *ProjectService) GetByID(id, userID uint) (*models.Project, error) {
	project, err := s.RequireAccess(id, userID)
	if err != nil {
		return nil, err
	}
	if project.Progress, err = s.progress.ProjectProgress(project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

// Create validates the workflow and creates an active project owned by userID.
func (s *ProjectService) Create(req *CreateProjectRequest, userID uint) (*models.Project, error) {
	workflow, err := s.workflows.GetByID(req.WorkflowID)
	if err != nil {
		return nil, err
	}
	if workflow.WorkflowType != models.WorkflowTypeTask {
		return nil, ErrInvalidWorkflowType
	}
	if err := ValidatePhases(workflow.Statuses); err != nil {
		return nil, err
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
		WorkflowID:  workflow.ID,
		Status:      models.ProjectStatusActive,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", project.ID).Uint("user_id", userID).Msg("project created")
	return &project, nil
}

// Update changes the editable fields. Owner only.
func (s *ProjectService) Update(id uint, req *UpdateProjectRequest, userID uint) (*models.Project, error) {
	project, err := s.RequireOwnership(id, userID)
	if err != nil {
		return nil, err
	}
	if req.WorkflowID != nil && *req.WorkflowID != project.WorkflowID {
		return nil, ErrWorkflowImmutable
	}

	start, end := project.StartDate, project.EndDate
	if req.StartDate != nil {
		start = req.StartDate
	}
	if req.EndDate != nil {
		end = req.EndDate
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.StartDate != nil {
		updates["start_date"] = req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = req.EndDate
	}
	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id, userID)
}

// UpdateStatus sets the lifecycle status. Owner only.
func (s *ProjectService) UpdateStatus(id uint, status string, userID uint) (*models.Project, error) {
	if !models.IsValidProjectStatus(status) {
		return nil, ErrInvalidProjectStatus
	}
	project, err := s.RequireOwnership(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(project).Update("status", status).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", id).Str("status", status).Uint("user_id", userID).Msg("project status changed")
	project.Status = status
	return project, nil
}

// Delete soft-deletes the project together with its tasks and their subtasks.
func (s *ProjectService) Delete(id, userID uint) error {
	project, err := s.RequireOwnership(id, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Subtask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return err
	}

	logger.Info().Uint("project_id", id).Uint("user_id", userID).Msg("project deleted")
	return nil
}

// ListMembers returns the project's direct user and group members.
func (s *ProjectService) ListMembers(projectID, userID uint) ([]models.ProjectMember, error) {
	if _, err := s.RequireAccess(projectID, userID); err != nil {
		return nil, err
	}

	var members []models.ProjectMember
	if err := s.db.Preload("User").Preload("UserGroup").
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember grants access to exactly one user or one user group. Owner only.
func (s *ProjectService) AddMember(projectID uint, req *AddMemberRequest, userID uint) (*models.ProjectMember, error) {
	if (req.UserID == nil) == (req.UserGroupID == nil) {
		return nil, ErrInvalidMember
	}
	if _, err := s.RequireOwnership(projectID, userID); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.ProjectMember{}).Where("project_id = ?", projectID)
	if req.UserID != nil {
		if err := s.db.Select("id").First(&models.User{}, *req.UserID).Error; err != nil {
			return nil, notFoundOr(err, ErrUserNotFound)
		}
		query = query.Where("user_id = ?", *req.UserID)
	} else {
		if err := s.db.Select("id").First(&models.UserGroup{}, *req.UserGroupID).Error; err != nil {
			return nil, notFoundOr(err, ErrGroupNotFound)
		}
		query = query.Where("user_group_id = ?", *req.UserGroupID)
	}

	var existing int64
	if err := query.Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrMemberExists
	}

	member := models.ProjectMember{
		ProjectID:   projectID,
		UserID:      req.UserID,
		UserGroupID: req.UserGroupID,
		AddedBy:     userID,
	}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("project_id", projectID).Uint("member_id", member.ID).Uint("user_id", userID).Msg("project member added")
	return &member, nil
}

// RemoveMember deletes a membership row. Owner only.
func (s *ProjectService) RemoveMember(projectID, memberID, userID uint) error {
	if _, err := s.RequireOwnership(projectID, userID); err != nil {
		return err
	}

	result := s.db.Where("id = ? AND project_id = ?", memberID, projectID).Delete(&models.ProjectMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CalculateProgress returns the weighted progress of the project's tasks.
func (s *ProjectService) CalculateProgress(projectID, userID uint) (int, error) {
	if _, err := s.RequireAccess(projectID, userID); err != nil {
		return 0, err
	}
	return s.progress.ProjectProgress(projectID)
}

// CheckAccess reports whether userID is the owner, a direct member, or a
// member of a group that belongs to the project.
func (s *ProjectService) CheckAccess(projectID, userID uint) (bool, error) {
	project, err := s.load(projectID)
	if err != nil {
		return false, err
	}
	return s.hasAccess(project, userID)
}

// CheckOwnership reports whether userID owns the project.
func (s *ProjectService) CheckOwnership(projectID, userID uint) (bool, error) {
	project, err := s.load(projectID)
	if err != nil {
		return false, err
	}
	return project.OwnerID == userID, nil
}

// RequireAccess loads the project and fails with ErrForbidden when userID
// cannot access it.
func (s *ProjectService) RequireAccess(projectID, userID uint) (*models.Project, error) {
	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasAccess(project, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return project, nil
}

func (s *ProjectService) RequireOwnership(projectID, userID uint) (*models.Project, error) {
	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, ErrForbidden
	}
	return project, nil
}

func (s *ProjectService) load(projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		return nil, notFoundOr(err, ErrProjectNotFound)
	}
	return &project, nil
}

func (s *ProjectService) hasAccess(project *models.Project, userID uint) (bool, error) {
	if project.OwnerID == userID {
		return true, nil
	}

	groups := s.db.Model(&models.UserGroupMember{}).Select("user_group_id").Where("user_id = ?", userID)
	var count int64
	err := s.db.Model(&models.ProjectMember{}).
		Where("project_id = ?", project.ID).
		Where("user_id = ? OR user_group_id IN (?)", userID, groups).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveEntityProject returns the project that owns a live task or subtask.
func (s *ProjectService) ResolveEntityProject(entityType string, entityID uint) (uint, error) {
	switch entityType {
	case models.EntityTypeTask:
		var task models.Task
		if err := s.db.Select("id", "project_id").First(&task, entityID).Error; err != nil {
			return 0, notFoundOr(err, ErrTaskNotFound)
		}
		return task.ProjectID, nil
	case models.EntityTypeSubtask:
		var subtask models.Subtask
		if err := s.db.Select("id", "task_id").First(&subtask, entityID).Error; err != nil {
			return 0, notFoundOr(err, ErrSubtaskNotFound)
		}
		var task models.Task
		if err := s.db.Select("id", "project_id").First(&task, subtask.TaskID).Error; err != nil {
			return 0, notFoundOr(err, ErrSubtaskNotFound)
		}
		return task.ProjectID, nil
	}
	return 0, ErrInvalidEntityType
}

// RequireEntityAccess resolves a task or subtask to its project and checks
// that userID can access it.
func (s *ProjectService) RequireEntityAccess(entityType string, entityID, userID uint) (*models.Project, error) {
	projectID, err := s.ResolveEntityProject(entityType, entityID)
	if err != nil {
		return nil, err
	}
	return s.RequireAccess(projectID, userID)
}
