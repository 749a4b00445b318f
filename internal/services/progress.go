package services

import (
	"math"

	"github.com/huangang/taskhub/internal/models"
	"gorm.io/gorm"
)

// ProgressService derives task and project progress on demand. Nothing is
// cached and nothing is recomputed automatically when a child changes.
type ProgressService struct {
	db *gorm.DB
}

func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

// WeightedItem is one task's contribution to its project's progress.
type WeightedItem struct {
	Progress int
	Weight   float64
}

// AverageProgress returns the rounded mean of values, or 0 for an empty slice.
func AverageProgress(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}

// WeightedProgress returns round(Σ(progress·weight) / Σweight), or 0 when
// there are no items or the weights sum to zero.
func WeightedProgress(items []WeightedItem) int {
	var total, weights float64
	for _, it := range items {
		total += float64(it.Progress) * it.Weight
		weights += it.Weight
	}
	if weights == 0 {
		return 0
	}
	return int(math.Round(total / weights))
}

// TaskWeight is estimated points, else estimated hours, else 1.
func TaskWeight(task *models.Task) float64 {
	if task.EstimatedPoints != nil {
		return *task.EstimatedPoints
	}
	if task.EstimatedHours != nil {
		return *task.EstimatedHours
	}
	return 1
}

// TaskProgress averages the progress of the task's live subtasks.
func (s *ProgressService) TaskProgress(taskID uint) (int, error) {
	var values []int
	if err := s.db.Model(&models.Subtask{}).
		Where("task_id = ?", taskID).
		Pluck("progress", &values).Error; err != nil {
		return 0, err
	}
	return AverageProgress(values), nil
}

// ProjectProgress weights each live task's progress by its estimate.
func (s *ProgressService) ProjectProgress(projectID uint) (int, error) {
	var tasks []models.Task
	if err := s.db.Select("id", "progress", "estimated_hours", "estimated_points").
		Where("project_id = ?", projectID).
		Find(&tasks).Error; err != nil {
		return 0, err
	}

	items := make([]WeightedItem, 0, len(tasks))
	for i := range tasks {
		items = append(items, WeightedItem{Progress: tasks[i].Progress, Weight: TaskWeight(&tasks[i])})
	}
	return WeightedProgress(items), nil
}
