package tests

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if err == nil {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "user@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "password"})
		if err == nil {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestAddUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()

	_, err = user.addUser("xyz", "xyz@mail.com", "123")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot add users")
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err == nil || !strings.Contains(err.Error(), "no user found for given email") {
		t.Fatalf("no login should be created: %v", err)
	}

	login, err := admin.addUser("xyz", "xyz@mail.com", "123")
	if err != nil {
		t.Fatal(err)
	}

	err = client.login(login)
	if err != nil {
		t.Fatal(err)
	}
}

func TestPromoteAndDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.promoteAdmin(user.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot promote themselves")
	}

	err = admin.promoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Admin {
		t.Fatal("user should be an admin after promotion")
	}

	err = user.demoteAdmin(admin.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = user.demoteAdmin(user.userId)
	if err == nil {
		t.Fatal("demoting the last admin should fail")
	}
}

func TestDeleteUserReassignsProjects(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.deleteUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = user.login(loginInfo{Email: "abc@mail.com", Password: "abc_password"})
	if err == nil {
		t.Fatal("deleted user should not be able to log in")
	}

	info, err := admin.projectInfo(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if info.CreatedBy.String() != admin.userId {
		t.Fatalf("project creator should be reassigned to an admin, got %v", info.CreatedBy)
	}

	members, err := admin.listMembers(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 0 {
		t.Fatalf("memberships of the deleted user should be removed, got %v", members)
	}
}
