package tests

import (
	"errors"
	"testing"

	"modelstudio/studio/schema"
)

func TestCreateProjectAddsCreatorAsOwner(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	members, err := user.listMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}

	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0].UserId != user.mustUserId() || members[0].Role != schema.RoleOwner {
		t.Fatalf("creator should be an owner member, got %v", members[0])
	}
}

func TestProjectAccessControl(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}
	outsider, err := env.newUser("outsider")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := owner.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := outsider.projectInfo(projectId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-members should not see the project: %v", err)
	}

	if err := owner.addMember(projectId, viewer.userId, schema.RoleViewer); err != nil {
		t.Fatal(err)
	}

	if _, err := viewer.projectInfo(projectId); err != nil {
		t.Fatal(err)
	}

	if err := viewer.updateProject(projectId, map[string]interface{}{"name": "other"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewers should not be able to update the project: %v", err)
	}

	if err := viewer.addMember(projectId, outsider.userId, schema.RoleViewer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewers should not be able to manage members: %v", err)
	}

	if err := owner.updateProject(projectId, map[string]interface{}{"name": "renamed"}); err != nil {
		t.Fatal(err)
	}

	info, err := owner.projectInfo(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "renamed" {
		t.Fatalf("expected renamed project, got %v", info.Name)
	}
}

func TestMemberRoles(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := owner.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.addMember(projectId, other.userId, "superuser"); err == nil {
		t.Fatal("invalid role should be rejected")
	}

	if err := owner.addMember(projectId, other.userId, schema.RoleEditor); err != nil {
		t.Fatal(err)
	}

	if err := owner.addMember(projectId, other.userId, schema.RoleEditor); err == nil {
		t.Fatal("adding an existing member should fail")
	}

	// The only owner cannot step down until someone else owns the project.
	if err := owner.updateMemberRole(projectId, owner.userId, schema.RoleViewer); err == nil {
		t.Fatal("demoting the last owner should fail")
	}
	if err := owner.removeMember(projectId, owner.userId); err == nil {
		t.Fatal("removing the last owner should fail")
	}

	if err := owner.updateMemberRole(projectId, other.userId, schema.RoleOwner); err != nil {
		t.Fatal(err)
	}

	if err := owner.updateMemberRole(projectId, owner.userId, schema.RoleViewer); err != nil {
		t.Fatal(err)
	}

	members, err := other.listMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	roles := map[string]string{}
	for _, m := range members {
		roles[m.UserId.String()] = m.Role
	}
	if roles[owner.userId] != schema.RoleViewer || roles[other.userId] != schema.RoleOwner {
		t.Fatalf("unexpected roles %v", roles)
	}

	if err := other.removeMember(projectId, owner.userId); err != nil {
		t.Fatal(err)
	}

	if _, err := owner.projectInfo(projectId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("removed members should lose access: %v", err)
	}
}

func TestDeleteProjectRemovesContents(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	modelId, err := user.createModel(projectId, "commerce")
	if err != nil {
		t.Fatal(err)
	}

	entity, err := user.createEntity(projectId, modelId, map[string]interface{}{
		"name": "customer", "primary_key_name": "id",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := user.deleteProject(projectId); err != nil {
		t.Fatal(err)
	}

	projects, err := user.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("expected no projects, got %v", projects)
	}

	var count int64
	if err := env.db.Model(&schema.Attribute{}).Where("entity_id = ?", entity.Id).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("attributes of deleted project should be removed, found %d", count)
	}
}
