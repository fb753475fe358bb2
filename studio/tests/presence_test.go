package tests

import (
	"errors"
	"testing"
	"time"

	"modelstudio/studio/schema"
)

func TestPresenceHeartbeat(t *testing.T) {
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
	if err := owner.addMember(projectId, viewer.userId, schema.RoleViewer); err != nil {
		t.Fatal(err)
	}

	if err := outsider.heartbeat(projectId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-members should not report presence: %v", err)
	}

	if err := owner.heartbeat(projectId); err != nil {
		t.Fatal(err)
	}
	if err := viewer.heartbeat(projectId); err != nil {
		t.Fatal(err)
	}

	online, err := viewer.onlineMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 2 {
		t.Fatalf("expected 2 online members, got %v", online)
	}

	if err := viewer.goOffline(projectId); err != nil {
		t.Fatal(err)
	}

	online, err = owner.onlineMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0].UserId != owner.mustUserId() {
		t.Fatalf("expected only the owner online, got %v", online)
	}
	if online[0].Username != "owner" {
		t.Fatalf("online listing should include the username, got %v", online[0])
	}
}

func TestPresenceStaleness(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := owner.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.heartbeat(projectId); err != nil {
		t.Fatal(err)
	}

	// Backdate the heartbeat past the staleness window.
	stale := time.Now().UTC().Add(-schema.PresenceStaleAfter - time.Minute)
	result := env.db.Model(&schema.Presence{}).
		Where("user_id = ?", owner.mustUserId()).
		Update("last_seen", stale)
	if result.Error != nil {
		t.Fatal(result.Error)
	}

	online, err := owner.onlineMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 0 {
		t.Fatalf("stale heartbeats should not count as online, got %v", online)
	}

	// A fresh heartbeat brings the member back.
	if err := owner.heartbeat(projectId); err != nil {
		t.Fatal(err)
	}
	online, err = owner.onlineMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 {
		t.Fatalf("expected owner online after fresh heartbeat, got %v", online)
	}
}
