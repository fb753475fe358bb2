package tests

import (
	"testing"

	"modelstudio/studio/schema"
)

func TestRequestAuditTrail(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.userInfo(); err != nil {
		t.Fatal(err)
	}
	if _, err := user.createProject("orders"); err != nil {
		t.Fatal(err)
	}

	var audits []schema.RequestAudit
	if err := env.db.Order("created_at").Find(&audits).Error; err != nil {
		t.Fatal(err)
	}
	if len(audits) == 0 {
		t.Fatal("authenticated requests should leave audit rows")
	}

	var found bool
	for _, a := range audits {
		if a.Path == "/user/info" && a.Method == "GET" {
			found = true
			if a.Status != 200 {
				t.Fatalf("expected status 200, got %d", a.Status)
			}
			if a.UserId == nil || a.UserId.String() != user.userId {
				t.Fatalf("audit row should record the user, got %v", a.UserId)
			}
			if a.LatencyMs < 0 {
				t.Fatalf("invalid latency %d", a.LatencyMs)
			}
		}
	}
	if !found {
		t.Fatal("expected an audit row for /user/info")
	}
}
