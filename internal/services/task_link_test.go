package services

import (
	"testing"

	"github.com/huangang/taskhub/internal/models"
)

func TestInverseLinkType(t *testing.T) {
	tests := []struct {
		linkType string
		want     string
		ok       bool
	}{
		{models.LinkBlocks, models.LinkBlockedBy, true},
		{models.LinkBlockedBy, models.LinkBlocks, true},
		{models.LinkDependsOn, models.LinkDependencyOf, true},
		{models.LinkDuplicatedBy, models.LinkDuplicates, true},
		{models.LinkRelatesTo, "", false},
		{"parent_of", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.linkType, func(t *testing.T) {
			got, ok := InverseLinkType(tt.linkType)
			if got != tt.want || ok != tt.ok {
				t.Errorf("InverseLinkType(%q) = %q, %v; expected %q, %v", tt.linkType, got, ok, tt.want, tt.ok)
			}
		})
	}

	if !IsValidLinkType(models.LinkRelatesTo) || IsValidLinkType("parent_of") {
		t.Error("IsValidLinkType disagrees with the known link types")
	}
}

func linkCount(f *fixture, source, target uint, linkType string) int64 {
	var n int64
	f.db.Model(&models.TaskLink{}).
		Where("source_task_id = ? AND target_task_id = ? AND link_type = ?", source, target, linkType).
		Count(&n)
	return n
}

func TestTaskLinkService_CreateWritesInverse(t *testing.T) {
	f := newFixture(t)
	links := NewTaskLinkService(f.db, f.projects)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	a := f.task(t, p.ID, owner.ID, "a")
	b := f.task(t, p.ID, owner.ID, "b")

	link, err := links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: b.ID, LinkType: models.LinkBlocks}, owner.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if linkCount(f, b.ID, a.ID, models.LinkBlockedBy) != 1 {
		t.Error("inverse blocked_by link should exist")
	}

	_, err = links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: b.ID, LinkType: models.LinkBlocks}, owner.ID)
	assertCode(t, err, "LINK_EXISTS")

	listed, err := links.List(b.ID, owner.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].TargetTaskID != a.ID || listed[0].TargetTask == nil {
		t.Errorf("b should list its mirror link with the target task, got %+v", listed)
	}

	if err := links.Delete(link.ID, owner.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if linkCount(f, b.ID, a.ID, models.LinkBlockedBy) != 0 {
		t.Error("deleting a link should remove its inverse")
	}
	assertCode(t, links.Delete(link.ID, owner.ID), "LINK_NOT_FOUND")
}

func TestTaskLinkService_RelatesToHasNoInverse(t *testing.T) {
	f := newFixture(t)
	links := NewTaskLinkService(f.db, f.projects)
	owner := f.user(t, "owner")
	p := f.project(t, owner.ID)
	a := f.task(t, p.ID, owner.ID, "a")
	b := f.task(t, p.ID, owner.ID, "b")

	if _, err := links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: b.ID, LinkType: models.LinkRelatesTo}, owner.ID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var total int64
	f.db.Model(&models.TaskLink{}).Count(&total)
	if total != 1 {
		t.Errorf("relates_to should store a single row, got %d", total)
	}
}

func TestTaskLinkService_Rejects(t *testing.T) {
	f := newFixture(t)
	links := NewTaskLinkService(f.db, f.projects)
	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	p := f.project(t, owner.ID)
	other := f.project(t, stranger.ID)
	a := f.task(t, p.ID, owner.ID, "a")
	foreign := f.task(t, other.ID, stranger.ID, "foreign")

	_, err := links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: a.ID, LinkType: models.LinkBlocks}, owner.ID)
	assertCode(t, err, "SELF_LINK")
	_, err = links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: foreign.ID, LinkType: "parent_of"}, owner.ID)
	assertCode(t, err, "INVALID_LINK_TYPE")
	_, err = links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: foreign.ID, LinkType: models.LinkBlocks}, owner.ID)
	assertCode(t, err, "FORBIDDEN")
	_, err = links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: 9999, LinkType: models.LinkBlocks}, owner.ID)
	assertCode(t, err, "TASK_NOT_FOUND")
}

func TestTaskLinkService_DeleteFromEitherSide(t *testing.T) {
	tests := []struct {
		linkType    string
		inverse     string
		fromInverse bool
	}{
		{models.LinkBlocks, models.LinkBlockedBy, false},
		{models.LinkBlocks, models.LinkBlockedBy, true},
		{models.LinkDependsOn, models.LinkDependencyOf, false},
		{models.LinkDependsOn, models.LinkDependencyOf, true},
		{models.LinkDuplicates, models.LinkDuplicatedBy, false},
		{models.LinkDuplicates, models.LinkDuplicatedBy, true},
	}

	for _, tt := range tests {
		name := tt.linkType
		if tt.fromInverse {
			name += " via " + tt.inverse
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			links := NewTaskLinkService(f.db, f.projects)
			owner := f.user(t, "owner")
			p := f.project(t, owner.ID)
			a := f.task(t, p.ID, owner.ID, "a")
			b := f.task(t, p.ID, owner.ID, "b")

			link, err := links.Create(a.ID, &CreateTaskLinkRequest{TargetTaskID: b.ID, LinkType: tt.linkType}, owner.ID)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if linkCount(f, b.ID, a.ID, tt.inverse) != 1 {
				t.Fatalf("inverse %s link should exist", tt.inverse)
			}

			target := link.ID
			if tt.fromInverse {
				var mirror models.TaskLink
				if err := f.db.Where("source_task_id = ? AND target_task_id = ? AND link_type = ?", b.ID, a.ID, tt.inverse).
					First(&mirror).Error; err != nil {
					t.Fatalf("load mirror: %v", err)
				}
				target = mirror.ID
			}

			if err := links.Delete(target, owner.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if linkCount(f, a.ID, b.ID, tt.linkType) != 0 || linkCount(f, b.ID, a.ID, tt.inverse) != 0 {
				t.Error("deleting either side should remove both links")
			}
		})
	}
}
