package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

func CheckValidRole(role string) error {
	switch role {
	case RoleOwner, RoleEditor, RoleViewer:
		return nil
	}
	return fmt.Errorf("invalid role '%v', must be one of 'owner', 'editor', or 'viewer'", role)
}

const (
	RegularEntity = "regular"
	JoinEntity    = "join"
)

const (
	OneToOne   = "one-to-one"
	OneToMany  = "one-to-many"
	ManyToMany = "many-to-many"
)

func CheckValidRelationshipType(relType string) error {
	switch relType {
	case OneToOne, OneToMany, ManyToMany:
		return nil
	}
	return fmt.Errorf("invalid relationship type '%v'", relType)
}

const (
	ValidationRule = "validation"
	BusinessRule   = "business"
	AutomationRule = "automation"
)

func CheckValidRuleType(ruleType string) error {
	switch ruleType {
	case ValidationRule, BusinessRule, AutomationRule:
		return nil
	}
	return fmt.Errorf("invalid rule type '%v'", ruleType)
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	Memberships []ProjectMember `gorm:"constraint:OnDelete:CASCADE"`
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"size:100;not null"`
	Description string

	CreatedAt time.Time

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	Creator   *User     `gorm:"foreignKey:CreatedBy"`

	Members    []ProjectMember `gorm:"constraint:OnDelete:CASCADE"`
	DataModels []DataModel     `gorm:"constraint:OnDelete:CASCADE"`
}

type ProjectMember struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	Role string `gorm:"size:20;not null;default:'viewer'"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE"`
}

type DataModel struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"size:100;not null"`
	Description string
	Version     string `gorm:"size:50"`

	CreatedAt time.Time

	Entities      []Entity       `gorm:"constraint:OnDelete:CASCADE"`
	Relationships []Relationship `gorm:"constraint:OnDelete:CASCADE"`
	Referentials  []Referential  `gorm:"constraint:OnDelete:CASCADE"`
	Rules         []Rule         `gorm:"constraint:OnDelete:CASCADE"`
}

type Entity struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DataModelId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"size:100;not null"`
	Description string

	EntityType string `gorm:"size:20;not null;default:'regular'"`

	ReferentialId *uuid.UUID   `gorm:"type:uuid"`
	Referential   *Referential `gorm:"constraint:OnDelete:SET NULL"`

	PositionX float64
	PositionY float64

	CreatedAt time.Time

	Attributes []Attribute `gorm:"constraint:OnDelete:CASCADE"`
}

type Attribute struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	EntityId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name     string `gorm:"size:100;not null"`
	DataType string `gorm:"size:50;not null"`

	IsPrimaryKey bool `gorm:"not null;default:false"`
	IsForeignKey bool `gorm:"not null;default:false"`
	IsUnique     bool `gorm:"not null;default:false"`
	IsRequired   bool `gorm:"not null;default:false"`

	DefaultValue *string
	Length       *int

	// Set only when IsForeignKey is true.
	ReferencedEntityId *uuid.UUID `gorm:"type:uuid"`
}

type Relationship struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DataModelId uuid.UUID `gorm:"type:uuid;not null;index"`

	SourceEntityId uuid.UUID `gorm:"type:uuid;not null"`
	TargetEntityId uuid.UUID `gorm:"type:uuid;not null"`

	SourceAttributeId *uuid.UUID `gorm:"type:uuid"`
	TargetAttributeId *uuid.UUID `gorm:"type:uuid"`

	RelationshipType string `gorm:"size:20;not null;default:'one-to-many'"`

	SourceCardinality *string `gorm:"size:20"`
	TargetCardinality *string `gorm:"size:20"`

	Name string `gorm:"size:200"`
}

type Referential struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DataModelId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"size:100;not null"`
	Description string
	Color       string `gorm:"size:20"`
}

type Rule struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	DataModelId uuid.UUID `gorm:"type:uuid;not null;index"`

	// At most one of EntityId/AttributeId is set; neither means the rule is model-level.
	EntityId    *uuid.UUID `gorm:"type:uuid"`
	AttributeId *uuid.UUID `gorm:"type:uuid"`

	RuleType string `gorm:"size:20;not null"`

	ConditionExpression string
	ActionExpression    string

	IsEnabled bool `gorm:"not null;default:true"`

	// JSON encoded list of rule ids this rule depends on.
	DependsOn string
}

func (r *Rule) Dependencies() ([]uuid.UUID, error) {
	if r.DependsOn == "" {
		return nil, nil
	}
	var deps []uuid.UUID
	if err := json.Unmarshal([]byte(r.DependsOn), &deps); err != nil {
		return nil, fmt.Errorf("error decoding rule dependencies: %w", err)
	}
	return deps, nil
}

func (r *Rule) SetDependencies(deps []uuid.UUID) error {
	if len(deps) == 0 {
		r.DependsOn = ""
		return nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("error encoding rule dependencies: %w", err)
	}
	r.DependsOn = string(data)
	return nil
}

type Presence struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	LastSeen time.Time `gorm:"not null"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE"`
}

// A user is shown as online if their last heartbeat is within this threshold.
const PresenceStaleAfter = 2 * time.Minute

type RequestAudit struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Path      string `gorm:"size:500;not null"`
	Method    string `gorm:"size:10;not null"`
	Status    int    `gorm:"not null"`
	LatencyMs int64  `gorm:"not null"`

	ClientIp  string `gorm:"size:100"`
	UserAgent string `gorm:"size:500"`

	UserId *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
}

// Tables lists every model for AutoMigrate, in dependency order.
func Tables() []interface{} {
	return []interface{}{
		&User{}, &Project{}, &ProjectMember{}, &DataModel{}, &Entity{}, &Attribute{},
		&Relationship{}, &Referential{}, &Rule{}, &Presence{}, &RequestAudit{},
	}
}
