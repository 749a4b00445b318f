package services

import (
	"strings"
	"testing"

	"github.com/huangang/taskhub/internal/models"
)

func TestAssignmentService_AssignTask(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	outsider := f.user(t, "outsider")
	p := f.project(t, owner.ID)
	f.addMember(t, p.ID, owner.ID, alice.ID)
	f.addMember(t, p.ID, owner.ID, bob.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	_, err := f.assignments.AssignTask(task.ID, outsider.ID, owner.ID)
	assertCode(t, err, "INVALID_ASSIGNEE")
	_, err = f.assignments.AssignTask(task.ID, alice.ID, outsider.ID)
	assertCode(t, err, "FORBIDDEN")
	_, err = f.assignments.AssignTask(9999, alice.ID, owner.ID)
	assertCode(t, err, "TASK_NOT_FOUND")

	if _, err := f.assignments.AssignTask(task.ID, alice.ID, owner.ID); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	got, err := f.assignments.AssignTask(task.ID, bob.ID, owner.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.AssignedTo == nil || *got.AssignedTo != bob.ID {
		t.Errorf("expected bob, got %v", got.AssignedTo)
	}

	var stored models.Task
	f.db.First(&stored, task.ID)
	if stored.AssignedTo == nil || *stored.AssignedTo != bob.ID {
		t.Error("reassignment should replace the previous assignee")
	}

	var audits []models.Audit
	f.db.Where("entity_type = ? AND entity_id = ?", models.EntityTypeTask, task.ID).Order("id ASC").Find(&audits)
	if len(audits) != 2 {
		t.Fatalf("expected 2 audits, got %d", len(audits))
	}
	last := audits[1]
	if last.Action != "assign" || last.UserID == nil || *last.UserID != owner.ID {
		t.Errorf("unexpected audit %+v", last)
	}
	if !strings.Contains(last.OldValue, "assigned_to") || !strings.Contains(last.NewValue, "assigned_to") {
		t.Errorf("audit should record old and new assignee, got %q -> %q", last.OldValue, last.NewValue)
	}

	if n := len(f.notifier.Jobs()); n != 2 {
		t.Errorf("expected a notification per assignment, got %d", n)
	}
}

func TestAssignmentService_Unassign(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	if _, err := f.assignments.UnassignTask(task.ID, owner.ID); err != nil {
		t.Fatalf("unassign with no assignee: %v", err)
	}
	var count int64
	f.db.Model(&models.Audit{}).Count(&count)
	if count != 0 {
		t.Errorf("no-op unassign should not be audited, got %d audits", count)
	}

	f.assignments.AssignTask(task.ID, owner.ID, owner.ID)
	got, err := f.assignments.UnassignTask(task.ID, owner.ID)
	if err != nil {
		t.Fatalf("UnassignTask: %v", err)
	}
	if got.AssignedTo != nil {
		t.Error("assignee should be cleared")
	}
	var stored models.Task
	f.db.First(&stored, task.ID)
	if stored.AssignedTo != nil {
		t.Error("stored assignee should be NULL")
	}
	if len(f.notifier.Jobs()) != 0 {
		t.Error("self-assignment should not notify")
	}
}

func TestAssignmentService_AssignSubtask(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	p := f.project(t, owner.ID)
	f.addMember(t, p.ID, owner.ID, member.ID)
	task := f.task(t, p.ID, owner.ID, "t")
	sub, _ := f.subtasks.Create(task.ID, &CreateSubtaskRequest{Title: "s"}, owner.ID)

	if _, err := f.assignments.AssignSubtask(sub.ID, member.ID, owner.ID); err != nil {
		t.Fatalf("AssignSubtask: %v", err)
	}
	jobs := f.notifier.Jobs()
	if len(jobs) != 1 || jobs[0].Type != models.NotificationSubtaskAssigned || *jobs[0].ProjectID != p.ID {
		t.Errorf("unexpected jobs %+v", jobs)
	}

	if _, err := f.assignments.UnassignSubtask(sub.ID, owner.ID); err != nil {
		t.Fatalf("UnassignSubtask: %v", err)
	}
}

func TestAssignmentService_ListAssignmentsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	worker := f.user(t, "worker")

	pa := f.project(t, alice.ID)
	pb := f.project(t, bob.ID)
	f.addMember(t, pa.ID, alice.ID, worker.ID)
	f.addMember(t, pb.ID, bob.ID, worker.ID)

	ta := f.task(t, pa.ID, alice.ID, "a")
	tb := f.task(t, pb.ID, bob.ID, "b")
	sub, _ := f.subtasks.Create(ta.ID, &CreateSubtaskRequest{Title: "a-sub"}, alice.ID)
	f.assignments.AssignTask(ta.ID, worker.ID, alice.ID)
	f.assignments.AssignTask(tb.ID, worker.ID, bob.ID)
	f.assignments.AssignSubtask(sub.ID, worker.ID, alice.ID)

	items, err := f.assignments.ListAssignments(worker.ID, worker.ID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("worker sees all own assignments, got %d", len(items))
	}

	items, _ = f.assignments.ListAssignments(worker.ID, alice.ID)
	if len(items) != 2 {
		t.Fatalf("alice should only see assignments in her project, got %d", len(items))
	}
	for _, it := range items {
		if it.ProjectID != pa.ID {
			t.Errorf("leaked item from project %d", it.ProjectID)
		}
		if it.EntityType == models.EntityTypeSubtask && (it.TaskID == nil || *it.TaskID != ta.ID) {
			t.Errorf("subtask item should carry its task id, got %+v", it)
		}
	}
}
