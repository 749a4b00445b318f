package services

import (
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound       = response.NewNotFound("GROUP_NOT_FOUND", "user group not found")
	ErrGroupMemberExists   = response.NewConflict("GROUP_MEMBER_EXISTS", "user is already in the group")
	ErrGroupMemberNotFound = response.NewNotFound("GROUP_MEMBER_NOT_FOUND", "user is not in the group")
)

type UserGroupService struct {
	db *gorm.DB
}

func NewUserGroupService(db *gorm.DB) *UserGroupService {
	return &UserGroupService{db: db}
}

type CreateUserGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	MemberIDs   []uint `json:"member_ids"`
}

type GroupMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (s *UserGroupService) Create(req *CreateUserGroupRequest, userID uint) (*models.UserGroup, error) {
	group := models.UserGroup{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		seen := make(map[uint]bool)
		for _, id := range req.MemberIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := tx.Select("id").First(&models.User{}, id).Error; err != nil {
				return notFoundOr(err, ErrUserNotFound)
			}
			if err := tx.Create(&models.UserGroupMember{UserGroupID: group.ID, UserID: id}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(group.ID)
}

func (s *UserGroupService) GetByID(id uint) (*models.UserGroup, error) {
	var group models.UserGroup
	if err := s.db.Preload("Members.User").First(&group, id).Error; err != nil {
		return nil, notFoundOr(err, ErrGroupNotFound)
	}
	return &group, nil
}

func (s *UserGroupService) List() ([]models.UserGroup, error) {
	var groups []models.UserGroup
	if err := s.db.Preload("Members").Order("name ASC, id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *UserGroupService) AddMember(groupID, memberID, userID uint, isAdmin bool) (*models.UserGroup, error) {
	if _, err := s.getManaged(groupID, userID, isAdmin); err != nil {
		return nil, err
	}
	if err := s.db.Select("id").First(&models.User{}, memberID).Error; err != nil {
		return nil, notFoundOr(err, ErrUserNotFound)
	}

	var count int64
	if err := s.db.Model(&models.UserGroupMember{}).
		Where("user_group_id = ? AND user_id = ?", groupID, memberID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrGroupMemberExists
	}

	if err := s.db.Create(&models.UserGroupMember{UserGroupID: groupID, UserID: memberID}).Error; err != nil {
		return nil, err
	}
	return s.GetByID(groupID)
}

func (s *UserGroupService) RemoveMember(groupID, memberID, userID uint, isAdmin bool) error {
	if _, err := s.getManaged(groupID, userID, isAdmin); err != nil {
		return err
	}

	result := s.db.Where("user_group_id = ? AND user_id = ?", groupID, memberID).Delete(&models.UserGroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupMemberNotFound
	}
	return nil
}

// Delete removes the group, its memberships and every project grant made to it.
func (s *UserGroupService) Delete(groupID, userID uint, isAdmin bool) error {
	group, err := s.getManaged(groupID, userID, isAdmin)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_group_id = ?", groupID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_group_id = ?", groupID).Delete(&models.UserGroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
}

// getManaged loads a group the caller may change: its creator or an admin.
func (s *UserGroupService) getManaged(groupID, userID uint, isAdmin bool) (*models.UserGroup, error) {
	var group models.UserGroup
	if err := s.db.First(&group, groupID).Error; err != nil {
		return nil, notFoundOr(err, ErrGroupNotFound)
	}
	if !isAdmin && group.CreatedBy != userID {
		return nil, ErrForbidden
	}
	return &group, nil
}
