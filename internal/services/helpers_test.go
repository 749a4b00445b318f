package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

// recordingNotifier keeps every job instead of delivering it.
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []NotificationJob
}

func (n *recordingNotifier) Enqueue(job *NotificationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, *job)
	return nil
}

func (n *recordingNotifier) Jobs() []NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationJob(nil), n.jobs...)
}

// fixture wires the core services over one test database.
type fixture struct {
	db          *gorm.DB
	notifier    *recordingNotifier
	workflows   *WorkflowService
	progress    *ProgressService
	projects    *ProjectService
	tasks       *TaskService
	subtasks    *SubtaskService
	assignments *AssignmentService
	groups      *UserGroupService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	n := &recordingNotifier{}
	workflows := NewWorkflowService(db)
	progress := NewProgressService(db)
	projects := NewProjectService(db, workflows, progress)
	return &fixture{
		db:          db,
		notifier:    n,
		workflows:   workflows,
		progress:    progress,
		projects:    projects,
		tasks:       NewTaskService(db, projects, progress, n),
		subtasks:    NewSubtaskService(db, projects, n),
		assignments: NewAssignmentService(db, projects, n),
		groups:      NewUserGroupService(db),
	}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := models.User{Username: username, Role: models.RoleUser, AuthType: models.AuthTypeLocal, IsActive: true}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return &u
}

// taskWorkflow creates a private task workflow with the given phases, one
// status per phase.
func (f *fixture) taskWorkflow(t *testing.T, ownerID uint, phases ...string) *models.Workflow {
	t.Helper()
	req := &CreateWorkflowRequest{Name: "wf", WorkflowType: models.WorkflowTypeTask}
	for i, p := range phases {
		req.Statuses = append(req.Statuses, StatusInput{Name: fmt.Sprintf("%s-%d", p, i), Phase: p})
	}
	wf, err := f.workflows.Create(req, ownerID)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func (f *fixture) project(t *testing.T, ownerID uint) *models.Project {
	t.Helper()
	wf := f.taskWorkflow(t, ownerID, models.PhaseBacklog, models.PhaseInProgress, models.PhaseClosed)
	p, err := f.projects.Create(&CreateProjectRequest{Name: "project", WorkflowID: wf.ID}, ownerID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (f *fixture) task(t *testing.T, projectID, userID uint, title string) *models.Task {
	t.Helper()
	task, err := f.tasks.Create(projectID, &CreateTaskRequest{Title: title}, userID)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) addMember(t *testing.T, projectID, ownerID, userID uint) {
	t.Helper()
	if _, err := f.projects.AddMember(projectID, &AddMemberRequest{UserID: &userID}, ownerID); err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected error %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected error %s, got %s", code, appErr.Code)
	}
}

func uintPtr(v uint) *uint { return &v }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }
