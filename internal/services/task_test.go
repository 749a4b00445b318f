package services

import (
	"testing"
	"time"

	"github.com/huangang/taskhub/internal/models"
)

func TestTaskService_CreateDefaultsToFirstBacklogStatus(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	wf := f.taskWorkflow(t, owner.ID, models.PhasePlanning, models.PhaseBacklog, models.PhaseBacklog, models.PhaseClosed)
	p, err := f.projects.Create(&CreateProjectRequest{Name: "p", WorkflowID: wf.ID}, owner.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	task := f.task(t, p.ID, owner.ID, "t")
	if task.StatusID != wf.Statuses[1].ID {
		t.Errorf("expected first backlog status %d, got %d", wf.Statuses[1].ID, task.StatusID)
	}
	if task.Priority != models.PriorityMedium || task.Progress != 0 {
		t.Errorf("unexpected defaults priority=%s progress=%d", task.Priority, task.Progress)
	}
	if task.Status == nil || task.Status.Phase != models.PhaseBacklog {
		t.Error("status should be preloaded")
	}
}

func TestTaskService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	outsider := f.user(t, "outsider")
	p := f.project(t, owner.ID)
	other := f.project(t, owner.ID)
	otherWF, _ := f.workflows.GetByID(other.WorkflowID)

	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	before := day.Add(-time.Hour)

	tests := []struct {
		name   string
		userID uint
		req    CreateTaskRequest
		code   string
	}{
		{"status from another workflow", owner.ID, CreateTaskRequest{Title: "t", StatusID: &otherWF.Statuses[0].ID}, "INVALID_STATUS"},
		{"start after due", owner.ID, CreateTaskRequest{Title: "t", StartDate: &day, DueDate: &before}, "INVALID_DATE_RANGE"},
		{"assignee outside project", owner.ID, CreateTaskRequest{Title: "t", AssignedTo: &outsider.ID}, "INVALID_ASSIGNEE"},
		{"unknown priority", owner.ID, CreateTaskRequest{Title: "t", Priority: "critical"}, "INVALID_PRIORITY"},
		{"caller without access", outsider.ID, CreateTaskRequest{Title: "t"}, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.tasks.Create(p.ID, &req, tt.userID)
			assertCode(t, err, tt.code)
		})
	}

	task, err := f.tasks.Create(p.ID, &CreateTaskRequest{Title: "same day", StartDate: &day, DueDate: &day}, owner.ID)
	if err != nil {
		t.Fatalf("equal start and due should be accepted: %v", err)
	}
	if !task.StartDate.Equal(*task.DueDate) {
		t.Error("dates should round-trip")
	}
}

func TestTaskService_CreateInArchivedProject(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	if _, err := f.projects.UpdateStatus(p.ID, models.ProjectStatusArchived, owner.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err := f.tasks.Create(p.ID, &CreateTaskRequest{Title: "t"}, owner.ID)
	assertCode(t, err, "PROJECT_ARCHIVED")
}

func TestTaskService_CreateNotifiesAssignee(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	p := f.project(t, owner.ID)
	f.addMember(t, p.ID, owner.ID, member.ID)

	task, err := f.tasks.Create(p.ID, &CreateTaskRequest{Title: "ship it", AssignedTo: &member.ID}, owner.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	jobs := f.notifier.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(jobs))
	}
	job := jobs[0]
	if job.UserID != member.ID || job.Type != models.NotificationTaskAssigned || *job.EntityID != task.ID {
		t.Errorf("unexpected job %+v", job)
	}

	// Self-assignment is silent.
	f.tasks.Create(p.ID, &CreateTaskRequest{Title: "mine", AssignedTo: &owner.ID}, owner.ID)
	if len(f.notifier.Jobs()) != 1 {
		t.Error("self-assignment should not notify")
	}
}

func TestTaskService_UpdateProgressBounds(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	tests := []struct {
		progress int
		wantErr  bool
	}{
		{-1, true},
		{0, false},
		{55, false},
		{100, false},
		{101, true},
	}
	for _, tt := range tests {
		got, err := f.tasks.UpdateProgress(task.ID, tt.progress, owner.ID)
		if tt.wantErr {
			assertCode(t, err, "INVALID_PROGRESS")
			continue
		}
		if err != nil {
			t.Fatalf("UpdateProgress(%d): %v", tt.progress, err)
		}
		if got.Progress != tt.progress {
			t.Errorf("progress = %d, expected %d", got.Progress, tt.progress)
		}
	}
}

func TestTaskService_UpdateMergesDates(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	due := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	task, _ := f.tasks.Create(p.ID, &CreateTaskRequest{Title: "t", DueDate: &due}, owner.ID)

	late := due.AddDate(0, 0, 1)
	_, err := f.tasks.Update(task.ID, &UpdateTaskRequest{StartDate: &late}, owner.ID)
	assertCode(t, err, "INVALID_DATE_RANGE")

	updated, err := f.tasks.Update(task.ID, &UpdateTaskRequest{Title: strPtr("renamed"), StartDate: &due}, owner.ID)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" || updated.StartDate == nil {
		t.Errorf("unexpected task %+v", updated)
	}
}

func TestTaskService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	wf, _ := f.workflows.GetByID(p.WorkflowID)
	task := f.task(t, p.ID, owner.ID, "t")

	closed := wf.Statuses[2]
	got, err := f.tasks.UpdateStatus(task.ID, closed.ID, owner.ID)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.StatusID != closed.ID || got.Status.Phase != models.PhaseClosed {
		t.Errorf("unexpected status %d", got.StatusID)
	}

	var subtaskStatus models.WorkflowStatus
	f.db.Joins("JOIN workflows ON workflows.id = workflow_statuses.workflow_id").
		Where("workflows.workflow_type = ?", models.WorkflowTypeSubtask).
		First(&subtaskStatus)
	_, err = f.tasks.UpdateStatus(task.ID, subtaskStatus.ID, owner.ID)
	assertCode(t, err, "INVALID_STATUS")
}

func TestTaskService_ListFilters(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	f.task(t, p.ID, owner.ID, "write docs")
	f.tasks.Create(p.ID, &CreateTaskRequest{Title: "fix login", Priority: models.PriorityUrgent}, owner.ID)
	f.tasks.Create(p.ID, &CreateTaskRequest{Title: "fix logout", Priority: models.PriorityLow}, owner.ID)

	resp, err := f.tasks.List(p.ID, &TaskListRequest{Search: "fix"}, owner.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 matches, got %d", resp.Total)
	}

	resp, _ = f.tasks.List(p.ID, &TaskListRequest{Priority: models.PriorityUrgent}, owner.ID)
	if resp.Total != 1 || resp.Items[0].Title != "fix login" {
		t.Errorf("unexpected priority filter result %+v", resp.Items)
	}

	resp, _ = f.tasks.List(p.ID, &TaskListRequest{Page: 2, PageSize: 2}, owner.ID)
	if resp.Total != 3 || len(resp.Items) != 1 {
		t.Errorf("expected 1 item on page 2, got %d of %d", len(resp.Items), resp.Total)
	}
}

func TestTaskService_DeleteCascadesToSubtasks(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")
	sub, _ := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s"}, owner.ID)

	if err := f.tasks.Delete(task.ID, owner.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := f.tasks.GetByID(task.ID, owner.ID)
	assertCode(t, err, "TASK_NOT_FOUND")
	_, err = f.subtasks.GetByID(sub.ID, owner.ID)
	assertCode(t, err, "SUBTASK_NOT_FOUND")
}

func TestTaskService_ProgressFromSubtasks(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	empty, err := f.tasks.CalculateProgress(task.ID, owner.ID)
	if err != nil || empty != 0 {
		t.Errorf("no subtasks should give 0, got %d (%v)", empty, err)
	}

	for _, progress := range []int{100, 50, 0} {
		sub, err := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s"}, owner.ID)
		if err != nil {
			t.Fatalf("create subtask: %v", err)
		}
		if _, err := f.subtasks.UpdateProgress(sub.ID, progress, owner.ID); err != nil {
			t.Fatalf("subtask progress: %v", err)
		}
	}

	got, err := f.tasks.CalculateProgress(task.ID, owner.ID)
	if err != nil || got != 50 {
		t.Errorf("CalculateProgress = %d (%v), expected 50", got, err)
	}

	stored, _ := f.tasks.GetByID(task.ID, owner.ID)
	if stored.Progress != 0 {
		t.Error("calculating must not persist")
	}

	synced, err := f.tasks.UpdateProgressFromSubtasks(task.ID, owner.ID)
	if err != nil || synced.Progress != 50 {
		t.Errorf("UpdateProgressFromSubtasks = %d (%v), expected 50", synced.Progress, err)
	}
}

func TestSubtaskService_StatusComesFromSubtaskWorkflows(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	sub, err := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s"}, owner.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.Status == nil || sub.Status.Phase != models.PhaseBacklog {
		t.Errorf("subtask should default to a backlog status, got %+v", sub.Status)
	}

	_, err = f.subtasks.UpdateStatus(sub.ID, task.StatusID, owner.ID)
	assertCode(t, err, "INVALID_STATUS")

	_, err = f.subtasks.Create(9999, &CreateSubtaskRequest{Title: "s"}, owner.ID)
	assertCode(t, err, "TASK_NOT_FOUND")

	_, err = f.subtasks.UpdateProgress(sub.ID, 101, owner.ID)
	assertCode(t, err, "INVALID_PROGRESS")
}

func TestSubtaskService_CreateValidatesPriority(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	_, err := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s", Priority: "someday"}, owner.ID)
	assertCode(t, err, "INVALID_PRIORITY")

	var count int64
	f.db.Model(&models.Subtask{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected subtask must not be stored, got %d", count)
	}

	sub, err := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s", Priority: models.PriorityUrgent}, owner.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.Priority != models.PriorityUrgent {
		t.Errorf("priority = %q, expected urgent", sub.Priority)
	}
}
