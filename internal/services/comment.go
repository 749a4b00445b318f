package services

import (
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrCommentNotFound = response.NewNotFound("COMMENT_NOT_FOUND", "comment not found")
	ErrInvalidParent   = response.NewBadRequest("INVALID_PARENT_COMMENT", "parent comment must be a top-level comment on the same entity")
)

type CommentService struct {
	db       *gorm.DB
	projects *ProjectService
	notifier Notifier
}

func NewCommentService(db *gorm.DB, projects *ProjectService, notifier Notifier) *CommentService {
	return &CommentService{db: db, projects: projects, notifier: notifier}
}

type CreateCommentRequest struct {
	EntityType      string `json:"related_entity_type" binding:"required,oneof=task subtask"`
	EntityID        uint   `json:"related_entity_id" binding:"required"`
	Content         string `json:"content" binding:"required,max=10000"`
	ParentCommentID *uint  `json:"parent_comment_id"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required,max=10000"`
}

func (s *CommentService) Create(req *CreateCommentRequest, userID uint) (*models.Comment, error) {
	project, err := s.projects.RequireEntityAccess(req.EntityType, req.EntityID, userID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if req.ParentCommentID != nil {
		parent, err = s.load(*req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.ParentCommentID != nil ||
			parent.RelatedEntityType != req.EntityType ||
			parent.RelatedEntityID != req.EntityID {
			return nil, ErrInvalidParent
		}
	}

	comment := models.Comment{
		RelatedEntityType: req.EntityType,
		RelatedEntityID:   req.EntityID,
		ParentCommentID:   req.ParentCommentID,
		AuthorID:          userID,
		Content:           req.Content,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, err
	}

	if parent != nil && parent.AuthorID != userID {
		entityID := req.EntityID
		projectID := project.ID
		notify(s.notifier, &NotificationJob{
			UserID:     parent.AuthorID,
			Type:       models.NotificationCommentReply,
			Title:      "New reply to your comment",
			Message:    truncate(comment.Content, 200),
			ProjectID:  &projectID,
			EntityType: req.EntityType,
			EntityID:   &entityID,
		})
	}
	return s.load(comment.ID)
}

// List returns the entity's top-level comments in chronological order, each
// with its replies.
func (s *CommentService) List(entityType string, entityID, userID uint) ([]models.Comment, error) {
	if _, err := s.projects.RequireEntityAccess(entityType, entityID, userID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.Preload("Author").
		Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return buildThreads(comments), nil
}

func buildThreads(comments []models.Comment) []models.Comment {
	replies := make(map[uint][]models.Comment)
	for _, c := range comments {
		if c.ParentCommentID != nil {
			replies[*c.ParentCommentID] = append(replies[*c.ParentCommentID], c)
		}
	}

	threads := make([]models.Comment, 0, len(comments)-countReplies(replies))
	for _, c := range comments {
		if c.ParentCommentID == nil {
			c.Replies = replies[c.ID]
			threads = append(threads, c)
		}
	}
	return threads
}

func countReplies(replies map[uint][]models.Comment) int {
	n := 0
	for _, r := range replies {
		n += len(r)
	}
	return n
}

// Update changes the content. Author only.
func (s *CommentService) Update(id uint, content string, userID uint) (*models.Comment, error) {
	comment, err := s.authored(id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Comment{}).Where("id = ?", comment.ID).Update("content", content).Error; err != nil {
		return nil, err
	}
	return s.load(id)
}

// Delete removes the comment and its replies. Author only.
func (s *CommentService) Delete(id, userID uint) error {
	comment, err := s.authored(id, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_comment_id = ?", comment.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, comment.ID).Error
	})
}

func (s *CommentService) authored(id, userID uint) (*models.Comment, error) {
	comment, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireEntityAccess(comment.RelatedEntityType, comment.RelatedEntityID, userID); err != nil {
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, ErrForbidden
	}
	return comment, nil
}

func (s *CommentService) load(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.Preload("Author").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, ErrCommentNotFound)
	}
	return &comment, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
