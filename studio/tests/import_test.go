package tests

import (
	"testing"

	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
)

func sampleModel() modelgraph.SerializedModel {
	return modelgraph.SerializedModel{
		Name:    "commerce",
		Version: "1.0",
		Referentials: []modelgraph.SerializedReferential{
			{Id: "ref-1", Name: "sales", Color: "#ff0000"},
		},
		Entities: []modelgraph.SerializedEntity{
			{
				Id: "e-customer", Name: "customer", ReferentialId: "ref-1",
				Attributes: []modelgraph.SerializedAttribute{
					{Id: "a-customer-id", Name: "id", DataType: "uuid", IsPrimaryKey: true, IsUnique: true, IsRequired: true},
					{Name: "name", DataType: "string"},
				},
			},
			{
				Id: "e-product", Name: "product",
				Attributes: []modelgraph.SerializedAttribute{
					{Id: "a-product-id", Name: "id", DataType: "uuid", IsPrimaryKey: true, IsUnique: true, IsRequired: true},
				},
			},
			{
				Id: "e-purchase", Name: "purchase", EntityType: schema.JoinEntity,
				Attributes: []modelgraph.SerializedAttribute{
					{Id: "a-purchase-customer", Name: "customer_id", DataType: "uuid", IsForeignKey: true, ReferencedEntityId: "e-customer"},
					{Id: "a-purchase-product", Name: "product_id", DataType: "uuid", IsForeignKey: true, ReferencedEntityId: "e-product"},
				},
			},
		},
		Relationships: []modelgraph.SerializedRelationship{
			{
				SourceEntityId: "e-customer", TargetEntityId: "e-purchase",
				SourceAttributeId: "a-customer-id", TargetAttributeId: "a-purchase-customer",
				RelationshipType: schema.OneToMany, Name: "customer to purchase",
			},
			{
				SourceEntityId: "e-purchase", TargetEntityId: "e-product",
				RelationshipType: schema.ManyToMany, Name: "purchase to product",
			},
		},
	}
}

func TestImportModel(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importModel(projectId, sampleModel())
	if err != nil {
		t.Fatal(err)
	}

	if report.EntitiesCreated != 3 || report.AttributesCreated != 5 || report.ReferentialsCreated != 1 || report.RelationshipsCreated != 2 {
		t.Fatalf("unexpected import report %+v", report)
	}
	if len(report.RelationshipsSkipped) != 0 {
		t.Fatalf("no relationships should be skipped, got %v", report.RelationshipsSkipped)
	}

	contents, err := user.getModel(projectId, report.DataModelId.String())
	if err != nil {
		t.Fatal(err)
	}

	entityNames := map[string]string{}
	for _, e := range contents.Entities {
		entityNames[e.Id.String()] = e.Name
	}

	// The one-to-many relationship touching the join entity is reoriented so the
	// junction table sits on the source side.
	var found bool
	for _, rel := range contents.Relationships {
		if rel.RelationshipType != schema.OneToMany {
			continue
		}
		found = true
		if entityNames[rel.SourceEntityId.String()] != "purchase" || entityNames[rel.TargetEntityId.String()] != "customer" {
			t.Fatalf("one-to-many touching a join entity should be swapped, got %v -> %v",
				entityNames[rel.SourceEntityId.String()], entityNames[rel.TargetEntityId.String()])
		}
		if rel.Name != "purchase to customer" {
			t.Fatalf("relationship name should follow the swap, got %v", rel.Name)
		}
	}
	if !found {
		t.Fatal("expected a one-to-many relationship in the imported model")
	}

	for _, e := range contents.Entities {
		if e.Name == "customer" {
			if e.ReferentialId == nil {
				t.Fatal("imported entity should keep its referential assignment")
			}
		}
	}
}

func TestImportValidation(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	model := sampleModel()
	model.Name = ""
	if _, err := user.importModel(projectId, model); err == nil {
		t.Fatal("import without a name should fail")
	}

	model = sampleModel()
	model.Entities = nil
	if _, err := user.importModel(projectId, model); err == nil {
		t.Fatal("import without entities should fail")
	}

	models, err := user.listModels(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 0 {
		t.Fatalf("failed imports should not leave data models behind, got %v", models)
	}
}

func TestExportRoundtrip(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	projectId, err := user.createProject("orders")
	if err != nil {
		t.Fatal(err)
	}

	report, err := user.importModel(projectId, sampleModel())
	if err != nil {
		t.Fatal(err)
	}

	exported, err := user.exportModel(projectId, report.DataModelId.String())
	if err != nil {
		t.Fatal(err)
	}

	if exported.Name != "commerce" || exported.Version != "1.0" {
		t.Fatalf("unexpected exported header %v %v", exported.Name, exported.Version)
	}
	if len(exported.Entities) != 3 || len(exported.Relationships) != 2 || len(exported.Referentials) != 1 {
		t.Fatalf("unexpected exported contents %+v", exported)
	}

	// The export of one project imports cleanly into another.
	otherProject, err := user.createProject("staging")
	if err != nil {
		t.Fatal(err)
	}

	report2, err := user.importModel(otherProject, exported)
	if err != nil {
		t.Fatal(err)
	}
	if report2.EntitiesCreated != 3 || report2.AttributesCreated != 5 {
		t.Fatalf("unexpected re-import report %+v", report2)
	}
}
