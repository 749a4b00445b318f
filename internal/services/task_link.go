package services

import (
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrLinkNotFound    = response.NewNotFound("LINK_NOT_FOUND", "task link not found")
	ErrSelfLink        = response.NewBadRequest("SELF_LINK", "a task cannot be linked to itself")
	ErrInvalidLinkType = response.NewBadRequest("INVALID_LINK_TYPE", "unknown link type")
	ErrLinkExists      = response.NewConflict("LINK_EXISTS", "link already exists")
)

// inverseLinkTypes pairs each directional link type with its mirror.
// relates_to has none.
var inverseLinkTypes = map[string]string{
	models.LinkBlocks:       models.LinkBlockedBy,
	models.LinkBlockedBy:    models.LinkBlocks,
	models.LinkDependsOn:    models.LinkDependencyOf,
	models.LinkDependencyOf: models.LinkDependsOn,
	models.LinkDuplicates:   models.LinkDuplicatedBy,
	models.LinkDuplicatedBy: models.LinkDuplicates,
}

// InverseLinkType returns the mirror of linkType, if it has one.
func InverseLinkType(linkType string) (string, bool) {
	inv, ok := inverseLinkTypes[linkType]
	return inv, ok
}

func IsValidLinkType(linkType string) bool {
	_, ok := inverseLinkTypes[linkType]
	return ok || linkType == models.LinkRelatesTo
}

type TaskLinkService struct {
	db       *gorm.DB
	projects *ProjectService
}

func NewTaskLinkService(db *gorm.DB, projects *ProjectService) *TaskLinkService {
	return &TaskLinkService{db: db, projects: projects}
}

type CreateTaskLinkRequest struct {
	TargetTaskID uint   `json:"target_task_id" binding:"required"`
	LinkType     string `json:"link_type" binding:"required,oneof=blocks blocked_by depends_on dependency_of duplicates duplicated_by relates_to"`
}

// Create links sourceID to the target and, for paired types, the target back
// to sourceID, atomically.
func (s *TaskLinkService) Create(sourceID uint, req *CreateTaskLinkRequest, userID uint) (*models.TaskLink, error) {
	if !IsValidLinkType(req.LinkType) {
		return nil, ErrInvalidLinkType
	}
	if sourceID == req.TargetTaskID {
		return nil, ErrSelfLink
	}
	if err := s.requireTask(sourceID, userID); err != nil {
		return nil, err
	}
	if err := s.requireTask(req.TargetTaskID, userID); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.Model(&models.TaskLink{}).
		Where("source_task_id = ? AND target_task_id = ? AND link_type = ?", sourceID, req.TargetTaskID, req.LinkType).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrLinkExists
	}

	link := models.TaskLink{
		SourceTaskID: sourceID,
		TargetTaskID: req.TargetTaskID,
		LinkType:     req.LinkType,
		CreatedBy:    userID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		inv, ok := InverseLinkType(req.LinkType)
		if !ok {
			return nil
		}
		mirror := models.TaskLink{
			SourceTaskID: req.TargetTaskID,
			TargetTaskID: sourceID,
			LinkType:     inv,
			CreatedBy:    userID,
		}
		return tx.Where(models.TaskLink{
			SourceTaskID: mirror.SourceTaskID,
			TargetTaskID: mirror.TargetTaskID,
			LinkType:     mirror.LinkType,
		}).FirstOrCreate(&mirror).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("source_task_id", sourceID).Uint("target_task_id", req.TargetTaskID).Str("link_type", req.LinkType).Uint("user_id", userID).Msg("task link created")
	return &link, nil
}

// List returns the outgoing links of a task with their target tasks.
func (s *TaskLinkService) List(taskID, userID uint) ([]models.TaskLink, error) {
	if err := s.requireTask(taskID, userID); err != nil {
		return nil, err
	}

	var links []models.TaskLink
	if err := s.db.Preload("TargetTask").
		Where("source_task_id = ?", taskID).
		Order("id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// Delete removes a link and its mirror, atomically.
func (s *TaskLinkService) Delete(linkID, userID uint) error {
	var link models.TaskLink
	if err := s.db.First(&link, linkID).Error; err != nil {
		return notFoundOr(err, ErrLinkNotFound)
	}
	if err := s.requireTask(link.SourceTaskID, userID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.TaskLink{}, link.ID).Error; err != nil {
			return err
		}
		inv, ok := InverseLinkType(link.LinkType)
		if !ok {
			return nil
		}
		return tx.Where("source_task_id = ? AND target_task_id = ? AND link_type = ?", link.TargetTaskID, link.SourceTaskID, inv).
			Delete(&models.TaskLink{}).Error
	})
}

func (s *TaskLinkService) requireTask(taskID, userID uint) error {
	_, err := s.projects.RequireEntityAccess(models.EntityTypeTask, taskID, userID)
	return err
}
