package models

import (
	"fmt"

	"github.com/huangang/taskhub/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logMode := logger.Warn
	if cfg.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&UserGroup{},
		&UserGroupMember{},
		&RefreshToken{},
		&Workflow{},
		&WorkflowStatus{},
		&Project{},
		&ProjectMember{},
		&Task{},
		&Subtask{},
		&Comment{},
		&Attachment{},
		&TimeEntry{},
		&TaskLink{},
		&Notification{},
		&Audit{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

type seedStatus struct {
	name  string
	phase string
	color string
}

var defaultTemplates = []struct {
	name         string
	description  string
	workflowType string
	statuses     []seedStatus
}{
	{
		name:         "Default Task Workflow",
		description:  "Backlog to done pipeline for project tasks",
		workflowType: WorkflowTypeTask,
		statuses: []seedStatus{
			{"Backlog", PhaseBacklog, "#9e9e9e"},
			{"To Do", PhasePlanning, "#2196f3"},
			{"In Progress", PhaseInProgress, "#ff9800"},
			{"Review", PhaseFeedback, "#9c27b0"},
			{"Done", PhaseClosed, "#4caf50"},
		},
	},
	{
		name:         "Default Subtask Workflow",
		description:  "Minimal pipeline for subtasks",
		workflowType: WorkflowTypeSubtask,
		statuses: []seedStatus{
			{"To Do", PhaseBacklog, "#2196f3"},
			{"In Progress", PhaseInProgress, "#ff9800"},
			{"Done", PhaseClosed, "#4caf50"},
		},
	},
}

// SeedDefaultData creates the template workflows if they do not exist yet.
func SeedDefaultData(db *gorm.DB) error {
	for _, tpl := range defaultTemplates {
		var count int64
		if err := db.Model(&Workflow{}).
			Where("is_template = ? AND name = ?", true, tpl.name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		workflow := Workflow{
			Name:         tpl.name,
			Description:  tpl.description,
			WorkflowType: tpl.workflowType,
			IsTemplate:   true,
		}
		for i, st := range tpl.statuses {
			workflow.Statuses = append(workflow.Statuses, WorkflowStatus{
				Name:      st.name,
				Phase:     st.phase,
				ColorCode: st.color,
				Position:  i,
			})
		}
		if err := db.Create(&workflow).Error; err != nil {
			return err
		}
	}
	return nil
}
