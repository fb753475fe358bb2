package tests

import (
	"testing"
)

func TestForeignKeyAttributeCreatesRelationship(t *testing.T) {
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

	res, err := user.createAttribute(projectId, modelId, order.Id.String(), map[string]interface{}{
		"name": "customer_id", "data_type": "uuid", "is_foreign_key": true,
		"referenced_entity_id": customer.Id,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Relationship == nil {
		t.Fatal("foreign key attribute should create a relationship")
	}
	rel := res.Relationship
	if rel.SourceEntityId != order.Id || rel.TargetEntityId != customer.Id {
		t.Fatalf("unexpected relationship endpoints %v", rel)
	}
	if rel.SourceAttributeId == nil || *rel.SourceAttributeId != res.Attribute.Id {
		t.Fatalf("relationship should record the foreign key as source attribute, got %v", rel.SourceAttributeId)
	}
	if rel.Name != "order to customer" {
		t.Fatalf("unexpected relationship name %v", rel.Name)
	}

	// A foreign key pointing at a non-key attribute is rejected.
	plain, err := user.createAttribute(projectId, modelId, customer.Id.String(), map[string]interface{}{
		"name": "nickname", "data_type": "string",
	})
	if err != nil {
		t.Fatal(err)
	}
	if plain.Relationship != nil {
		t.Fatal("plain attribute should not create a relationship")
	}

	_, err = user.createAttribute(projectId, modelId, order.Id.String(), map[string]interface{}{
		"name": "bad_fk", "data_type": "string", "is_foreign_key": true,
		"referenced_entity_id": customer.Id, "referenced_attribute_id": plain.Attribute.Id,
	})
	if err == nil {
		t.Fatal("foreign key to a non-key attribute should be rejected")
	}
}

func TestDeleteForeignKeyAttributeRemovesRelationship(t *testing.T) {
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

	fk, err := user.createAttribute(projectId, modelId, order.Id.String(), map[string]interface{}{
		"name": "customer_id", "data_type": "uuid", "is_foreign_key": true,
		"referenced_entity_id": customer.Id,
	})
	if err != nil {
		t.Fatal(err)
	}

	removed, err := user.deleteAttribute(projectId, modelId, fk.Attribute.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("deleting the foreign key should remove its relationship")
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents.Relationships) != 0 {
		t.Fatalf("expected no relationships, got %v", contents.Relationships)
	}

	// Deleting an attribute with no relationship reports nothing removed.
	plain, err := user.createAttribute(projectId, modelId, customer.Id.String(), map[string]interface{}{
		"name": "nickname", "data_type": "string",
	})
	if err != nil {
		t.Fatal(err)
	}
	removed, err = user.deleteAttribute(projectId, modelId, plain.Attribute.Id.String())
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("no relationship should be removed for a plain attribute")
	}
}

func TestReplaceAttributes(t *testing.T) {
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
	pkId := customer.Attributes[0].Id

	name, err := user.createAttribute(projectId, modelId, customer.Id.String(), map[string]interface{}{
		"name": "name", "data_type": "string",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Keep the primary key, rename the name column, drop nothing else, add email.
	final, err := user.replaceAttributes(projectId, modelId, customer.Id.String(), []map[string]interface{}{
		{"id": pkId, "name": "id", "data_type": "uuid", "is_primary_key": true, "is_unique": true, "is_required": true},
		{"id": name.Attribute.Id, "name": "full_name", "data_type": "string"},
		{"name": "email", "data_type": "string", "is_unique": true},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(final) != 3 {
		t.Fatalf("expected 3 attributes, got %v", final)
	}

	byName := map[string]bool{}
	for _, a := range final {
		byName[a.Name] = true
	}
	if !byName["id"] || !byName["full_name"] || !byName["email"] {
		t.Fatalf("unexpected attributes %v", final)
	}

	// Omitting an existing attribute deletes it.
	final, err = user.replaceAttributes(projectId, modelId, customer.Id.String(), []map[string]interface{}{
		{"id": pkId, "name": "id", "data_type": "uuid", "is_primary_key": true, "is_unique": true, "is_required": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(final) != 1 || final[0].Id != pkId {
		t.Fatalf("expected only the primary key to remain, got %v", final)
	}

	// An id that does not belong to the entity aborts the whole replacement.
	_, err = user.replaceAttributes(projectId, modelId, customer.Id.String(), []map[string]interface{}{
		{"id": name.Attribute.Id, "name": "ghost", "data_type": "string"},
	})
	if err == nil {
		t.Fatal("replacement referencing a deleted attribute should fail")
	}

	contents, err := user.getModel(projectId, modelId)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range contents.Entities {
		if e.Id == customer.Id && len(e.Attributes) != 1 {
			t.Fatalf("failed replacement should not change attributes, got %v", e.Attributes)
		}
	}
}
