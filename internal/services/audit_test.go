package services

import (
	"testing"

	"github.com/huangang/taskhub/internal/models"
)

func TestAuditService_RecordAndList(t *testing.T) {
	f := newFixture(t)
	audits := NewAuditService(f.db, f.projects)
	owner := f.user(t, "owner")
	outsider := f.user(t, "outsider")
	p := f.project(t, owner.ID)
	task := f.task(t, p.ID, owner.ID, "t")

	audits.Record(AuditEntry{
		EntityType: models.EntityTypeTask,
		EntityID:   task.ID,
		Action:     "priority_changed",
		UserID:     &owner.ID,
		OldValue:   map[string]string{"priority": "low"},
		NewValue:   map[string]string{"priority": "high"},
	})
	audits.Record(AuditEntry{EntityType: EntityTypeHTTP, Action: "DELETE /api/tasks/1"})

	history, err := audits.ListForEntity(models.EntityTypeTask, task.ID, owner.ID)
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(history) == 0 || history[0].Action != "priority_changed" || history[0].NewValue != `{"priority":"high"}` {
		t.Errorf("unexpected history %+v", history)
	}

	_, err = audits.ListForEntity(models.EntityTypeTask, task.ID, outsider.ID)
	assertCode(t, err, "FORBIDDEN")

	resp, err := audits.List(&AuditListRequest{EntityType: EntityTypeHTTP})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].OldValue != "" {
		t.Errorf("unexpected admin list %+v", resp)
	}

	resp, _ = audits.List(&AuditListRequest{Action: "priority"})
	if resp.Total != 1 {
		t.Errorf("action filter should match 1, got %d", resp.Total)
	}
}

func TestAuditService_CleanupDisabled(t *testing.T) {
	db := newTestDB(t)
	audits := NewAuditService(db, nil)
	audits.Record(AuditEntry{EntityType: EntityTypeHTTP, Action: "GET"})

	if n, err := audits.Cleanup(0); err != nil || n != 0 {
		t.Errorf("Cleanup(0) = %d, %v; retention 0 keeps everything", n, err)
	}
}
