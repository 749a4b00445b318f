package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrWorkflowNotFound      = response.NewNotFound("WORKFLOW_NOT_FOUND", "workflow not found")
	ErrStatusNotFound        = response.NewNotFound("STATUS_NOT_FOUND", "status not found")
	ErrStatusInUse           = response.NewBadRequest("STATUS_IN_USE", "status is used by tasks or subtasks")
	ErrWorkflowInUse         = response.NewBadRequest("WORKFLOW_IN_USE", "workflow is used by projects or subtasks")
	ErrInvalidWorkflowPhases = response.NewBadRequest("INVALID_WORKFLOW_PHASES", "workflow must contain a backlog and a closed status")
	ErrInvalidStatusOrder    = response.NewBadRequest("INVALID_STATUS_ORDER", "status ids must match the workflow's statuses exactly")
	ErrInvalidPhase          = response.NewBadRequest("INVALID_PHASE", "unknown status phase")
	ErrInvalidWorkflowType   = response.NewBadRequest("INVALID_WORKFLOW_TYPE", "workflow type does not fit this use")
)

type WorkflowService struct {
	db *gorm.DB
}

func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{db: db}
}

type StatusInput struct {
	Name      string `json:"name" binding:"required,max=100"`
	Phase     string `json:"phase" binding:"required,oneof=backlog planning in_progress feedback closed"`
	ColorCode string `json:"color_code" binding:"omitempty,hexcolor"`
}

type CreateWorkflowRequest struct {
	Name         string        `json:"name" binding:"required,max=200"`
	Description  string        `json:"description" binding:"max=1000"`
	WorkflowType string        `json:"workflow_type" binding:"required,oneof=task subtask"`
	IsTemplate   bool          `json:"is_template"`
	Statuses     []StatusInput `json:"statuses" binding:"dive"`
}

type UpdateWorkflowRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

type AddStatusRequest struct {
	StatusInput
	Position *int `json:"position" binding:"omitempty,min=0"`
}

type UpdateStatusRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=100"`
	Phase     *string `json:"phase" binding:"omitempty,oneof=backlog planning in_progress feedback closed"`
	ColorCode *string `json:"color_code" binding:"omitempty,hexcolor"`
}

// ReorderStatusesRequest takes the new order as statusIds; status_ids is
// accepted as well to match the rest of the API.
type ReorderStatusesRequest struct {
	StatusIDs      IDList `json:"statusIds" binding:"required_without=SnakeStatusIDs"`
	SnakeStatusIDs IDList `json:"status_ids" binding:"required_without=StatusIDs"`
}

// IDs returns the requested order, preferring statusIds.
func (r *ReorderStatusesRequest) IDs() []uint {
	if r.StatusIDs != nil {
		return r.StatusIDs
	}
	return r.SnakeStatusIDs
}

// IDList decodes a JSON array of ids given as numbers or numeric strings.
type IDList []uint

func (l *IDList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make(IDList, 0, len(raw))
	for _, n := range raw {
		id, err := strconv.ParseUint(n.String(), 10, 32)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid id %q", n.String())
		}
		ids = append(ids, uint(id))
	}
	*l = ids
	return nil
}

func orderedStatuses(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// Create stores a workflow together with its initial statuses.
func (s *WorkflowService) Create(req *CreateWorkflowRequest, userID uint) (*models.Workflow, error) {
	workflow := models.Workflow{
		Name:         req.Name,
		Description:  req.Description,
		WorkflowType: req.WorkflowType,
		IsTemplate:   req.IsTemplate,
		CreatedBy:    userID,
	}
	for i, st := range req.Statuses {
		if !models.IsValidPhase(st.Phase) {
			return nil, ErrInvalidPhase
		}
		workflow.Statuses = append(workflow.Statuses, models.WorkflowStatus{
			Name:      st.Name,
			Phase:     st.Phase,
			ColorCode: st.ColorCode,
			Position:  i,
		})
	}

	if err := s.db.Create(&workflow).Error; err != nil {
		return nil, err
	}

	logger.Info().Uint("workflow_id", workflow.ID).Uint("user_id", userID).Str("type", workflow.WorkflowType).Msg("workflow created")
	return &workflow, nil
}

// GetByID returns the workflow with its statuses in position order.
func (s *WorkflowService) GetByID(id uint) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := s.db.Preload("Statuses", orderedStatuses).First(&workflow, id).Error; err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound)
	}
	return &workflow, nil
}

// List returns template workflows plus the ones created by userID.
func (s *WorkflowService) List(userID uint, workflowType string) ([]models.Workflow, error) {
	query := s.db.Preload("Statuses", orderedStatuses).
		Where("is_template = ? OR created_by = ?", true, userID)
	if workflowType != "" {
		query = query.Where("workflow_type = ?", workflowType)
	}

	var workflows []models.Workflow
	if err := query.Order("is_template DESC, id ASC").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *WorkflowService) Update(id uint, req *UpdateWorkflowRequest, userID uint) (*models.Workflow, error) {
	workflow, err := s.getMutable(id, userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		if err := s.db.Model(workflow).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete removes an unused workflow and its statuses.
func (s *WorkflowService) Delete(id, userID uint) error {
	workflow, err := s.getMutable(id, userID)
	if err != nil {
		return err
	}

	var projects int64
	if err := s.db.Unscoped().Model(&models.Project{}).Where("workflow_id = ?", id).Count(&projects).Error; err != nil {
		return err
	}
	if projects > 0 {
		return ErrWorkflowInUse
	}

	statusIDs := s.db.Model(&models.WorkflowStatus{}).Select("id").Where("workflow_id = ?", id)
	inUse, err := s.countStatusReferences(statusIDs)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrWorkflowInUse
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", id).Delete(&models.WorkflowStatus{}).Error; err != nil {
			return err
		}
		return tx.Delete(workflow).Error
	})
	if err != nil {
		return err
	}

	logger.Info().Uint("workflow_id", id).Uint("user_id", userID).Msg("workflow deleted")
	return nil
}

// AddStatus appends a status, or inserts it at Position and shifts the rest down.
func (s *WorkflowService) AddStatus(workflowID uint, req *AddStatusRequest, userID uint) (*models.WorkflowStatus, error) {
	if _, err := s.getMutable(workflowID, userID); err != nil {
		return nil, err
	}
	if !models.IsValidPhase(req.Phase) {
		return nil, ErrInvalidPhase
	}

	status := models.WorkflowStatus{
		WorkflowID: workflowID,
		Name:       req.Name,
		Phase:      req.Phase,
		ColorCode:  req.ColorCode,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.WorkflowStatus{}).Where("workflow_id = ?", workflowID).Count(&count).Error; err != nil {
			return err
		}

		status.Position = int(count)
		if req.Position != nil && *req.Position < int(count) {
			status.Position = *req.Position
			if err := tx.Model(&models.WorkflowStatus{}).
				Where("workflow_id = ? AND position >= ?", workflowID, status.Position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}
		return tx.Create(&status).Error
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *WorkflowService) UpdateStatus(workflowID, statusID uint, req *UpdateStatusRequest, userID uint) (*models.WorkflowStatus, error) {
	if _, err := s.getMutable(workflowID, userID); err != nil {
		return nil, err
	}
	status, err := s.getStatus(workflowID, statusID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phase != nil {
		if !models.IsValidPhase(*req.Phase) {
			return nil, ErrInvalidPhase
		}
		updates["phase"] = *req.Phase
	}
	if req.ColorCode != nil {
		updates["color_code"] = *req.ColorCode
	}
	if len(updates) > 0 {
		if err := s.db.Model(status).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.getStatus(workflowID, statusID)
}

// DeleteStatus removes a status that no live task or subtask uses and closes
// the gap in positions.
func (s *WorkflowService) DeleteStatus(workflowID, statusID, userID uint) error {
	if _, err := s.getMutable(workflowID, userID); err != nil {
		return err
	}
	status, err := s.getStatus(workflowID, statusID)
	if err != nil {
		return err
	}

	inUse, err := s.countStatusReferences([]uint{statusID})
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrStatusInUse
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(status).Error; err != nil {
			return err
		}
		return tx.Model(&models.WorkflowStatus{}).
			Where("workflow_id = ? AND position > ?", workflowID, status.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// ReorderStatuses sets each status's position to its index in statusIDs. The
// ids must be exactly the workflow's current statuses.
func (s *WorkflowService) ReorderStatuses(workflowID uint, statusIDs []uint, userID uint) ([]models.WorkflowStatus, error) {
	if _, err := s.getMutable(workflowID, userID); err != nil {
		return nil, err
	}

	var current []uint
	if err := s.db.Model(&models.WorkflowStatus{}).Where("workflow_id = ?", workflowID).Pluck("id", &current).Error; err != nil {
		return nil, err
	}
	if !sameIDSet(current, statusIDs) {
		return nil, ErrInvalidStatusOrder.WithDetails(map[string]interface{}{
			"expected": current,
			"received": statusIDs,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range statusIDs {
			if err := tx.Model(&models.WorkflowStatus{}).
				Where("id = ? AND workflow_id = ?", id, workflowID).
				Update("position", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var statuses []models.WorkflowStatus
	if err := orderedStatuses(s.db).Where("workflow_id = ?", workflowID).Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// ValidateWorkflowPhases fails unless the workflow has both a backlog and a
// closed status.
func (s *WorkflowService) ValidateWorkflowPhases(workflowID uint) error {
	workflow, err := s.GetByID(workflowID)
	if err != nil {
		return err
	}
	return ValidatePhases(workflow.Statuses)
}

// ValidatePhases reports whether statuses cover the backlog and closed phases.
func ValidatePhases(statuses []models.WorkflowStatus) error {
	var hasBacklog, hasClosed bool
	for _, st := range statuses {
		switch st.Phase {
		case models.PhaseBacklog:
			hasBacklog = true
		case models.PhaseClosed:
			hasClosed = true
		}
	}
	if !hasBacklog || !hasClosed {
		return ErrInvalidWorkflowPhases
	}
	return nil
}

// getMutable loads a workflow the user may change: templates are open, other
// workflows only to their creator.
func (s *WorkflowService) getMutable(id, userID uint) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := s.db.First(&workflow, id).Error; err != nil {
		return nil, notFoundOr(err, ErrWorkflowNotFound)
	}
	if !workflow.IsTemplate && workflow.CreatedBy != userID {
		return nil, ErrForbidden
	}
	return &workflow, nil
}

func (s *WorkflowService) getStatus(workflowID, statusID uint) (*models.WorkflowStatus, error) {
	var status models.WorkflowStatus
	if err := s.db.Where("id = ? AND workflow_id = ?", statusID, workflowID).First(&status).Error; err != nil {
		return nil, notFoundOr(err, ErrStatusNotFound)
	}
	return &status, nil
}

// countStatusReferences counts tasks and subtasks, soft-deleted ones included,
// using any of the given statuses. ids may be a slice or a subquery.
func (s *WorkflowService) countStatusReferences(ids interface{}) (int64, error) {
	var tasks, subtasks int64
	if err := s.db.Unscoped().Model(&models.Task{}).Where("status_id IN (?)", ids).Count(&tasks).Error; err != nil {
		return 0, err
	}
	if err := s.db.Unscoped().Model(&models.Subtask{}).Where("status_id IN (?)", ids).Count(&subtasks).Error; err != nil {
		return 0, err
	}
	return tasks + subtasks, nil
}

func sameIDSet(current, proposed []uint) bool {
	if len(current) != len(proposed) {
		return false
	}
	seen := make(map[uint]bool, len(current))
	for _, id := range current {
		seen[id] = true
	}
	for _, id := range proposed {
		if !seen[id] {
			return false
		}
		delete(seen, id)
	}
	return true
}
