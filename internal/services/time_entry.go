package services

import (
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrTimeEntryNotFound = response.NewNotFound("TIME_ENTRY_NOT_FOUND", "time entry not found")
	ErrInvalidDuration   = response.NewBadRequest("INVALID_DURATION", "duration must be greater than zero")
	ErrInvalidDate       = response.NewBadRequest("INVALID_DATE", "date must be formatted as YYYY-MM-DD")
)

const dateLayout = "2006-01-02"

type TimeEntryService struct {
	db       *gorm.DB
	projects *ProjectService
}

func NewTimeEntryService(db *gorm.DB, projects *ProjectService) *TimeEntryService {
	return &TimeEntryService{db: db, projects: projects}
}

type CreateTimeEntryRequest struct {
	EntityType      string `json:"related_entity_type" binding:"required,oneof=task subtask"`
	EntityID        uint   `json:"related_entity_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	Date            string `json:"date" binding:"required"`
	Description     string `json:"description" binding:"max=1000"`
}

type UpdateTimeEntryRequest struct {
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,gt=0"`
	Date            *string `json:"date"`
	Description     *string `json:"description" binding:"omitempty,max=1000"`
}

type MyTimeEntriesRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type TimeSummary struct {
	EntityType   string             `json:"related_entity_type"`
	EntityID     uint               `json:"related_entity_id"`
	TotalMinutes int64              `json:"total_minutes"`
	Entries      []models.TimeEntry `json:"entries"`
}

func parseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func (s *TimeEntryService) Create(req *CreateTimeEntryRequest, userID uint) (*models.TimeEntry, error) {
	if req.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireEntityAccess(req.EntityType, req.EntityID, userID); err != nil {
		return nil, err
	}

	entry := models.TimeEntry{
		RelatedEntityType: req.EntityType,
		RelatedEntityID:   req.EntityID,
		UserID:            userID,
		DurationMinutes:   req.DurationMinutes,
		Date:              date,
		Description:       req.Description,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *TimeEntryService) List(entityType string, entityID, userID uint) ([]models.TimeEntry, error) {
	if _, err := s.projects.RequireEntityAccess(entityType, entityID, userID); err != nil {
		return nil, err
	}

	var entries []models.TimeEntry
	if err := s.db.Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Order("date DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListMine returns the user's own entries, optionally bounded by date.
func (s *TimeEntryService) ListMine(userID uint, req *MyTimeEntriesRequest) ([]models.TimeEntry, error) {
	query := s.db.Where("user_id = ?", userID)
	if req.From != "" {
		from, err := parseDate(req.From)
		if err != nil {
			return nil, err
		}
		query = query.Where("date >= ?", from)
	}
	if req.To != "" {
		to, err := parseDate(req.To)
		if err != nil {
			return nil, err
		}
		query = query.Where("date <= ?", to)
	}

	var entries []models.TimeEntry
	if err := query.Order("date DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Summary totals the minutes logged against a task or subtask.
func (s *TimeEntryService) Summary(entityType string, entityID, userID uint) (*TimeSummary, error) {
	entries, err := s.List(entityType, entityID, userID)
	if err != nil {
		return nil, err
	}

	summary := &TimeSummary{EntityType: entityType, EntityID: entityID, Entries: entries}
	for _, e := range entries {
		summary.TotalMinutes += int64(e.DurationMinutes)
	}
	return summary, nil
}

// Update changes an entry. Only the user who logged it may do so.
func (s *TimeEntryService) Update(id uint, req *UpdateTimeEntryRequest, userID uint) (*models.TimeEntry, error) {
	entry, err := s.owned(id, userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, ErrInvalidDuration
		}
		updates["duration_minutes"] = *req.DurationMinutes
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		updates["date"] = date
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		if err := s.db.Model(entry).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

func (s *TimeEntryService) Delete(id, userID uint) error {
	entry, err := s.owned(id, userID)
	if err != nil {
		return err
	}
	return s.db.Delete(&models.TimeEntry{}, entry.ID).Error
}

func (s *TimeEntryService) owned(id, userID uint) (*models.TimeEntry, error) {
	entry, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireEntityAccess(entry.RelatedEntityType, entry.RelatedEntityID, userID); err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrForbidden
	}
	return entry, nil
}

func (s *TimeEntryService) load(id uint) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := s.db.First(&entry, id).Error; err != nil {
		return nil, notFoundOr(err, ErrTimeEntryNotFound)
	}
	return &entry, nil
}
