package tests

import (
	"testing"
)

func TestReferentialAssignment(t *testing.T) {
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

	sales, err := user.createReferential(projectId, modelId, "sales")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.createReferential(projectId, modelId, ""); err == nil {
		t.Fatal("referential name should be required")
	}

	customer, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "customer"})
	if err != nil {
		t.Fatal(err)
	}

	if err := user.assignReferential(projectId, modelId, sales.Id.String(), customer.Id.String()); err != nil {
		t.Fatal(err)
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	if contents.Entities[0].ReferentialId == nil || *contents.Entities[0].ReferentialId != sales.Id {
		t.Fatalf("entity should be assigned to the referential, got %v", contents.Entities[0].ReferentialId)
	}

	if err := user.unassignReferential(projectId, modelId, sales.Id.String(), customer.Id.String()); err != nil {
		t.Fatal(err)
	}

	contents, err = user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	if contents.Entities[0].ReferentialId != nil {
		t.Fatal("entity should be detached from the referential")
	}
}

func TestDeleteReferentialKeepsEntities(t *testing.T) {
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

	sales, err := user.createReferential(projectId, modelId, "sales")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"customer", "order"} {
		entity, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": name})
		if err != nil {
			t.Fatal(err)
		}
		if err := user.assignReferential(projectId, modelId, sales.Id.String(), entity.Id.String()); err != nil {
			t.Fatal(err)
		}
	}

	if err := user.deleteReferential(projectId, modelId, sales.Id.String()); err != nil {
		t.Fatal(err)
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}

	if len(contents.Referentials) != 0 {
		t.Fatalf("referential should be deleted, got %v", contents.Referentials)
	}
	if len(contents.Entities) != 2 {
		t.Fatalf("entities should survive referential deletion, got %v", contents.Entities)
	}
	for _, e := range contents.Entities {
		if e.ReferentialId != nil {
			t.Fatalf("entity %v should be detached after referential deletion", e.Name)
		}
	}
}
