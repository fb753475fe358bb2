package tests

import (
	"errors"
	"testing"

	"modelstudio/studio/schema"
)

func TestCreateModelAndListContents(t *testing.T) {
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

	models, err := user.listModels(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0].Name != "commerce" {
		t.Fatalf("unexpected model list %v", models)
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	if contents.Name != "commerce" || len(contents.Entities) != 0 {
		t.Fatalf("unexpected contents %v", contents)
	}
}

func TestModelScopedToProject(t *testing.T) {
	env := setupTestEnv(t)

	alice, err := env.newUser("alice")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := env.newUser("bob")
	if err != nil {
		t.Fatal(err)
	}

	aliceProject, err := alice.createProject("alice-project")
	if err != nil {
		t.Fatal(err)
	}
	bobProject, err := bob.createProject("bob-project")
	if err != nil {
		t.Fatal(err)
	}

	modelId, err := alice.createModel(aliceProject, "secret")
	if err != nil {
		t.Fatal(err)
	}

	// Reaching another project's model through a project bob does own must fail.
	if _, err := bob.getModel(bobProject, modelId); err == nil {
		t.Fatal("model of another project should not be reachable")
	}

	if _, err := bob.getModel(aliceProject, modelId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-members should not read models: %v", err)
	}
}

func TestEntityPrimaryKeySynthesis(t *testing.T) {
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
		"name": "customer", "primary_key_name": "customer_id", "primary_key_type": "int",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(entity.Attributes) != 1 {
		t.Fatalf("expected synthesized primary key, got %v", entity.Attributes)
	}
	pk := entity.Attributes[0]
	if pk.Name != "customer_id" || pk.DataType != "int" || !pk.IsPrimaryKey || !pk.IsUnique || !pk.IsRequired {
		t.Fatalf("unexpected primary key %v", pk)
	}

	// Default name and type apply when only one of the two is given.
	entity2, err := user.createEntity(projectId, modelId, map[string]interface{}{
		"name": "order", "primary_key_type": "uuid",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entity2.Attributes) != 1 || entity2.Attributes[0].Name != "id" {
		t.Fatalf("expected default primary key name, got %v", entity2.Attributes)
	}

	// No primary key fields means no synthesized attribute.
	entity3, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "invoice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entity3.Attributes) != 0 {
		t.Fatalf("expected no attributes, got %v", entity3.Attributes)
	}

	if _, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": ""}); err == nil {
		t.Fatal("entity name should be required")
	}

	if _, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "x", "entity_type": "weird"}); err == nil {
		t.Fatal("invalid entity type should be rejected")
	}
}

func TestDeleteEntityRemovesRelationships(t *testing.T) {
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

	customer, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "customer", "primary_key_name": "id"})
	if err != nil {
		t.Fatal(err)
	}
	order, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "order", "primary_key_name": "id"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createRelationship(projectId, modelId, map[string]interface{}{
		"source_entity_id": order.Id, "target_entity_id": customer.Id, "relationship_type": schema.OneToMany,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := user.deleteEntity(projectId, modelId, customer.Id.String()); err != nil {
		t.Fatal(err)
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents.Entities) != 1 || contents.Entities[0].Id != order.Id {
		t.Fatalf("unexpected entities %v", contents.Entities)
	}
	if len(contents.Relationships) != 0 {
		t.Fatalf("relationships touching the deleted entity should be removed, got %v", contents.Relationships)
	}
}

func TestRelationshipEndpointsMustShareModel(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}
	modelA, err := user.createModel(projectId, "a")
	if err != nil {
		t.Fatal(err)
	}
	modelB, err := user.createModel(projectId, "b")
	if err != nil {
		t.Fatal(err)
	}

	inA, err := user.createEntity(projectId, modelA, map[string]interface{}{"name": "customer"})
	if err != nil {
		t.Fatal(err)
	}
	inB, err := user.createEntity(projectId, modelB, map[string]interface{}{"name": "order"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createRelationship(projectId, modelA, map[string]interface{}{
		"source_entity_id": inB.Id, "target_entity_id": inA.Id,
	})
	if err == nil {
		t.Fatal("relationship endpoints in different models should be rejected")
	}

	_, err = user.createRelationship(projectId, modelA, map[string]interface{}{
		"source_entity_id": inA.Id, "target_entity_id": inA.Id, "relationship_type": "sideways",
	})
	if err == nil {
		t.Fatal("invalid relationship type should be rejected")
	}
}
