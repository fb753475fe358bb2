package tests

import (
	"testing"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
)

type ruleFixture struct {
	env       *testEnv
	user      client
	projectId string
	modelId   string
	entityId  string
}

func setupRuleFixture(t *testing.T) ruleFixture {
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
	entity, err := user.createEntity(projectId, modelId, map[string]interface{}{"name": "customer", "primary_key_name": "id"})
	if err != nil {
		t.Fatal(err)
	}

	return ruleFixture{env: env, user: user, projectId: projectId, modelId: modelId, entityId: entity.Id.String()}
}

func (f *ruleFixture) newRule(t *testing.T, ruleType string, deps []uuid.UUID) schema.Rule {
	body := map[string]interface{}{
		"entity_id": f.entityId, "rule_type": ruleType,
		"condition_expression": "amount > 0", "action_expression": "reject",
	}
	if deps != nil {
		body["depends_on"] = deps
	}
	rule, err := f.user.createRule(f.projectId, f.modelId, body)
	if err != nil {
		t.Fatal(err)
	}
	return schema.Rule{Id: rule.Id}
}

func TestRuleValidation(t *testing.T) {
	f := setupRuleFixture(t)

	_, err := f.user.createRule(f.projectId, f.modelId, map[string]interface{}{
		"entity_id": f.entityId, "rule_type": "mystery",
	})
	if err == nil {
		t.Fatal("invalid rule type should be rejected")
	}

	contents, err := f.user.getModel(f.projectId, f.modelId)
	if err != nil {
		t.Fatal(err)
	}
	attributeId := contents.Entities[0].Attributes[0].Id

	// A rule is scoped to an entity or an attribute, never both.
	_, err = f.user.createRule(f.projectId, f.modelId, map[string]interface{}{
		"entity_id": f.entityId, "attribute_id": attributeId, "rule_type": schema.ValidationRule,
	})
	if err == nil {
		t.Fatal("rule scoped to both entity and attribute should be rejected")
	}

	rule, err := f.user.createRule(f.projectId, f.modelId, map[string]interface{}{
		"attribute_id": attributeId, "rule_type": schema.ValidationRule, "condition_expression": "len(id) > 0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rule.IsEnabled {
		t.Fatal("rules should be enabled by default")
	}
	if rule.AttributeId == nil || *rule.AttributeId != attributeId {
		t.Fatalf("unexpected rule scope %v", rule)
	}

	_, err = f.user.createRule(f.projectId, f.modelId, map[string]interface{}{
		"entity_id": uuid.New(), "rule_type": schema.ValidationRule,
	})
	if err == nil {
		t.Fatal("rule scoped to an unknown entity should be rejected")
	}
}

func TestRuleDependencyCycles(t *testing.T) {
	f := setupRuleFixture(t)

	a := f.newRule(t, schema.ValidationRule, nil)
	b := f.newRule(t, schema.BusinessRule, []uuid.UUID{a.Id})
	c := f.newRule(t, schema.AutomationRule, []uuid.UUID{b.Id})

	// Closing the loop a -> b -> c -> a must be rejected.
	err := f.user.updateRule(f.projectId, f.modelId, a.Id.String(), map[string]interface{}{
		"depends_on": []uuid.UUID{c.Id},
	})
	if err == nil {
		t.Fatal("dependency cycle should be rejected")
	}

	// Self dependencies are cycles of length one.
	err = f.user.updateRule(f.projectId, f.modelId, a.Id.String(), map[string]interface{}{
		"depends_on": []uuid.UUID{a.Id},
	})
	if err == nil {
		t.Fatal("self dependency should be rejected")
	}

	// Unknown dependencies are rejected outright.
	_, err = f.user.createRule(f.projectId, f.modelId, map[string]interface{}{
		"entity_id": f.entityId, "rule_type": schema.ValidationRule, "depends_on": []uuid.UUID{uuid.New()},
	})
	if err == nil {
		t.Fatal("unknown dependency should be rejected")
	}
}

func TestRuleDependentsListing(t *testing.T) {
	f := setupRuleFixture(t)

	a := f.newRule(t, schema.ValidationRule, nil)
	b := f.newRule(t, schema.BusinessRule, []uuid.UUID{a.Id})
	c := f.newRule(t, schema.AutomationRule, []uuid.UUID{a.Id})

	rules, err := f.user.listRules(f.projectId, f.modelId)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}

	for _, rule := range rules {
		if rule.Id != a.Id {
			continue
		}
		dependents := map[uuid.UUID]bool{}
		for _, d := range rule.Dependents {
			dependents[d] = true
		}
		if len(dependents) != 2 || !dependents[b.Id] || !dependents[c.Id] {
			t.Fatalf("unexpected dependents %v", rule.Dependents)
		}
	}
}

func TestDeleteRuleScrubsDependencies(t *testing.T) {
	f := setupRuleFixture(t)

	a := f.newRule(t, schema.ValidationRule, nil)
	b := f.newRule(t, schema.BusinessRule, []uuid.UUID{a.Id})

	if err := f.user.deleteRule(f.projectId, f.modelId, a.Id.String()); err != nil {
		t.Fatal(err)
	}

	rules, err := f.user.listRules(f.projectId, f.modelId)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Id != b.Id {
		t.Fatalf("unexpected rules %v", rules)
	}
	if len(rules[0].DependsOn) != 0 {
		t.Fatalf("deleted rule should be scrubbed from dependencies, got %v", rules[0].DependsOn)
	}
}
