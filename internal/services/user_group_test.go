package services

import (
	"testing"

	"github.com/huangang/taskhub/internal/models"
)

func TestUserGroupService_CreateWithMembers(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "creator")
	a := f.user(t, "a")
	b := f.user(t, "b")

	group, err := f.groups.Create(&CreateUserGroupRequest{Name: "devs", MemberIDs: []uint{a.ID, b.ID, a.ID}}, creator.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(group.Members) != 2 {
		t.Errorf("duplicate member ids should collapse, got %d members", len(group.Members))
	}

	_, err = f.groups.Create(&CreateUserGroupRequest{Name: "ghosts", MemberIDs: []uint{999}}, creator.ID)
	assertCode(t, err, "USER_NOT_FOUND")

	groups, _ := f.groups.List()
	if len(groups) != 1 {
		t.Errorf("failed create must roll back, got %d groups", len(groups))
	}
}

func TestUserGroupService_Members(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "creator")
	other := f.user(t, "other")
	a := f.user(t, "a")
	group, _ := f.groups.Create(&CreateUserGroupRequest{Name: "devs"}, creator.ID)

	_, err := f.groups.AddMember(group.ID, a.ID, other.ID, false)
	assertCode(t, err, "FORBIDDEN")

	if _, err := f.groups.AddMember(group.ID, a.ID, other.ID, true); err != nil {
		t.Fatalf("admin AddMember: %v", err)
	}
	_, err = f.groups.AddMember(group.ID, a.ID, creator.ID, false)
	assertCode(t, err, "GROUP_MEMBER_EXISTS")
	_, err = f.groups.AddMember(group.ID, 999, creator.ID, false)
	assertCode(t, err, "USER_NOT_FOUND")
	_, err = f.groups.AddMember(999, a.ID, creator.ID, false)
	assertCode(t, err, "GROUP_NOT_FOUND")

	if err := f.groups.RemoveMember(group.ID, a.ID, creator.ID, false); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	assertCode(t, f.groups.RemoveMember(group.ID, a.ID, creator.ID, false), "GROUP_MEMBER_NOT_FOUND")
}

func TestUserGroupService_DeleteRevokesProjectAccess(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	dev := f.user(t, "dev")
	p := f.project(t, owner.ID)
	group, _ := f.groups.Create(&CreateUserGroupRequest{Name: "devs", MemberIDs: []uint{dev.ID}}, owner.ID)

	if _, err := f.projects.AddMember(p.ID, &AddMemberRequest{UserGroupID: &group.ID}, owner.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := f.projects.GetByID(p.ID, dev.ID); err != nil {
		t.Fatalf("group member should see the project: %v", err)
	}

	assertCode(t, f.groups.Delete(group.ID, dev.ID, false), "FORBIDDEN")
	if err := f.groups.Delete(group.ID, owner.ID, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var grants int64
	f.db.Model(&models.ProjectMember{}).Where("user_group_id = ?", group.ID).Count(&grants)
	if grants != 0 {
		t.Errorf("project grants should be removed, got %d", grants)
	}
	_, err := f.projects.GetByID(p.ID, dev.ID)
	assertCode(t, err, "FORBIDDEN")
}
