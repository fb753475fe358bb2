package services

import (
	"fmt"
	"log/slog"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleInfo struct {
	Id uuid.UUID `json:"id"`

	EntityId    *uuid.UUID `json:"entity_id,omitempty"`
	AttributeId *uuid.UUID `json:"attribute_id,omitempty"`

	RuleType string `json:"rule_type"`

	ConditionExpression string `json:"condition_expression"`
	ActionExpression    string `json:"action_expression"`

	IsEnabled bool `json:"is_enabled"`

	DependsOn []uuid.UUID `json:"depends_on,omitempty"`
}

func convertToRuleInfo(rule *schema.Rule) (RuleInfo, error) {
	deps, err := rule.Dependencies()
	if err != nil {
		return RuleInfo{}, err
	}

	return RuleInfo{
		Id:                  rule.Id,
		EntityId:            rule.EntityId,
		AttributeId:         rule.AttributeId,
		RuleType:            rule.RuleType,
		ConditionExpression: rule.ConditionExpression,
		ActionExpression:    rule.ActionExpression,
		IsEnabled:           rule.IsEnabled,
		DependsOn:           deps,
	}, nil
}

// loadRuleDependencies builds the dependency graph of every rule in the model.
func loadRuleDependencies(txn *gorm.DB, modelId uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	var rules []schema.Rule
	result := txn.Where("data_model_id = ?", modelId).Find(&rules)
	if result.Error != nil {
		slog.Error("sql error loading rules for dependency graph", "data_model_id", modelId, "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	graph := make(map[uuid.UUID][]uuid.UUID, len(rules))
	for _, rule := range rules {
		deps, err := rule.Dependencies()
		if err != nil {
			return nil, CodedError(err, http.StatusInternalServerError)
		}
		graph[rule.Id] = deps
	}

	return graph, nil
}

// checkRuleDependencies verifies that every named dependency is a rule of the same
// model and that the resulting graph stays acyclic.
func checkRuleDependencies(txn *gorm.DB, modelId, ruleId uuid.UUID, deps []uuid.UUID) error {
	graph, err := loadRuleDependencies(txn, modelId)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if dep == ruleId {
			return CodedError(fmt.Errorf("rule %v: %w", ruleId, modelgraph.ErrRuleDependencyCycle), http.StatusUnprocessableEntity)
		}
		if _, ok := graph[dep]; !ok {
			return CodedError(fmt.Errorf("dependency %v: %w", dep, schema.ErrRuleNotFound), http.StatusUnprocessableEntity)
		}
	}

	graph[ruleId] = deps
	if err := modelgraph.CheckRuleCycles(graph); err != nil {
		return graphError(err)
	}

	return nil
}

type createRuleRequest struct {
	EntityId    *uuid.UUID `json:"entity_id"`
	AttributeId *uuid.UUID `json:"attribute_id"`

	RuleType string `json:"rule_type"`

	ConditionExpression string `json:"condition_expression"`
	ActionExpression    string `json:"action_expression"`

	IsEnabled *bool `json:"is_enabled"`

	DependsOn []uuid.UUID `json:"depends_on"`
}

func (s *ModelService) CreateRule(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createRuleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidRuleType(params.RuleType); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if params.EntityId != nil && params.AttributeId != nil {
		http.Error(w, modelgraph.ErrRuleScopeConflict.Error(), http.StatusUnprocessableEntity)
		return
	}

	rule := schema.Rule{
		Id:                  uuid.New(),
		DataModelId:         modelId,
		EntityId:            params.EntityId,
		AttributeId:         params.AttributeId,
		RuleType:            params.RuleType,
		ConditionExpression: params.ConditionExpression,
		ActionExpression:    params.ActionExpression,
		IsEnabled:           true,
	}
	if params.IsEnabled != nil {
		rule.IsEnabled = *params.IsEnabled
	}
	if err := rule.SetDependencies(params.DependsOn); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getProjectDataModel(txn, modelId, projectId); err != nil {
			return err
		}

		if params.EntityId != nil {
			if _, err := getModelEntity(txn, *params.EntityId, modelId, false); err != nil {
				return err
			}
		}
		if params.AttributeId != nil {
			attribute, err := schema.GetAttribute(*params.AttributeId, txn)
			if err != nil {
				return graphError(err)
			}
			if _, err := getModelEntity(txn, attribute.EntityId, modelId, false); err != nil {
				return err
			}
		}

		if len(params.DependsOn) > 0 {
			if err := checkRuleDependencies(txn, modelId, rule.Id, params.DependsOn); err != nil {
				return err
			}
		}

		result := txn.Create(&rule)
		if result.Error != nil {
			slog.Error("sql error creating rule", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating rule: %v", err), GetResponseCode(err))
		return
	}

	info, err := convertToRuleInfo(&rule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, info)
}

type RuleListEntry struct {
	RuleInfo

	// Rules that depend on this rule, derived from the dependency graph.
	Dependents []uuid.UUID `json:"dependents,omitempty"`
}

func (s *ModelService) ListRules(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getProjectDataModel(s.db, modelId, projectId); err != nil {
		http.Error(w, fmt.Sprintf("error listing rules: %v", err), GetResponseCode(err))
		return
	}

	var rules []schema.Rule
	result := s.db.Where("data_model_id = ?", modelId).Find(&rules)
	if result.Error != nil {
		slog.Error("sql error listing rules", "data_model_id", modelId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing rules: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	graph := make(map[uuid.UUID][]uuid.UUID, len(rules))
	infos := make([]RuleListEntry, 0, len(rules))
	for _, rule := range rules {
		info, err := convertToRuleInfo(&rule)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		graph[rule.Id] = info.DependsOn
		infos = append(infos, RuleListEntry{RuleInfo: info})
	}

	_, reverse := modelgraph.RuleDependencySets(graph)
	for i := range infos {
		infos[i].Dependents = reverse[infos[i].Id]
	}

	utils.WriteJsonResponse(w, infos)
}

type updateRuleRequest struct {
	RuleType *string `json:"rule_type"`

	ConditionExpression *string `json:"condition_expression"`
	ActionExpression    *string `json:"action_expression"`

	IsEnabled *bool `json:"is_enabled"`

	DependsOn *[]uuid.UUID `json:"depends_on"`
}

func (s *ModelService) UpdateRule(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ruleId, err := utils.URLParamUUID(r, "rule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateRuleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.RuleType != nil {
		if err := schema.CheckValidRuleType(*params.RuleType); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		rule, err := schema.GetRule(ruleId, txn)
		if err != nil {
			return graphError(err)
		}
		if rule.DataModelId != modelId {
			return CodedError(schema.ErrRuleNotFound, http.StatusNotFound)
		}

		if params.RuleType != nil {
			rule.RuleType = *params.RuleType
		}
		if params.ConditionExpression != nil {
			rule.ConditionExpression = *params.ConditionExpression
		}
		if params.ActionExpression != nil {
			rule.ActionExpression = *params.ActionExpression
		}
		if params.IsEnabled != nil {
			rule.IsEnabled = *params.IsEnabled
		}
		if params.DependsOn != nil {
			if err := checkRuleDependencies(txn, modelId, ruleId, *params.DependsOn); err != nil {
				return err
			}
			if err := rule.SetDependencies(*params.DependsOn); err != nil {
				return CodedError(err, http.StatusBadRequest)
			}
		}

		result := txn.Save(&rule)
		if result.Error != nil {
			slog.Error("sql error updating rule", "rule_id", ruleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating rule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// DeleteRule removes a rule and scrubs it from the dependency lists of every
// other rule in the model so no list ever names a missing rule.
func (s *ModelService) DeleteRule(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ruleId, err := utils.URLParamUUID(r, "rule_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		rule, err := schema.GetRule(ruleId, txn)
		if err != nil {
			return graphError(err)
		}
		if rule.DataModelId != modelId {
			return CodedError(schema.ErrRuleNotFound, http.StatusNotFound)
		}

		var siblings []schema.Rule
		result := txn.Where("data_model_id = ? and id != ?", modelId, ruleId).Find(&siblings)
		if result.Error != nil {
			slog.Error("sql error loading rules for dependency scrub", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		for _, sibling := range siblings {
			deps, err := sibling.Dependencies()
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}

			kept := deps[:0]
			for _, dep := range deps {
				if dep != ruleId {
					kept = append(kept, dep)
				}
			}
			if len(kept) == len(deps) {
				continue
			}

			if err := sibling.SetDependencies(kept); err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			result := txn.Save(&sibling)
			if result.Error != nil {
				slog.Error("sql error scrubbing rule dependency", "rule_id", sibling.Id, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		result = txn.Delete(&schema.Rule{Id: ruleId})
		if result.Error != nil {
			slog.Error("sql error deleting rule", "rule_id", ruleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting rule: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
