package services

import (
	"errors"
	"time"

	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

// Errors shared by several services.
var (
	ErrForbidden         = response.NewForbidden("FORBIDDEN", "you do not have access to this resource")
	ErrInvalidEntityType = response.NewBadRequest("INVALID_ENTITY_TYPE", "entity type must be task or subtask")
	ErrInvalidDateRange  = response.NewBadRequest("INVALID_DATE_RANGE", "start date must not be after due date")
	ErrUserNotFound      = response.NewNotFound("USER_NOT_FOUND", "user not found")
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// notFoundOr maps gorm's record-not-found to target and passes other errors through.
func notFoundOr(err error, target error) error {
	if isNotFound(err) {
		return target
	}
	return err
}

func validateDateRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return ErrInvalidDateRange
	}
	return nil
}

func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultSize
	}
	return page, pageSize
}
