package catalog

import "errors"

// #region category
// Category identifies the kind of entity a state vector belongs to.
// The set is closed; categories are assigned at registration and never change.
type Category string

const (
	Individual   Category = "individual"
	Venture      Category = "venture"
	SmallOrg     Category = "small_org"
	LargeOrg     Category = "large_org"
	Municipality Category = "municipality"
	Nation       Category = "nation"
	Institution  Category = "institution"
	Ideology     Category = "ideology"
)

// #endregion category

// #region relation-category
// RelationCategory names one of the 12 typed relation groups of the matrix.
type RelationCategory string

const (
	Bond       RelationCategory = "bond"
	Kin        RelationCategory = "kin"
	Peer       RelationCategory = "peer"
	Employment RelationCategory = "employment"
	Ownership  RelationCategory = "ownership"
	Supply     RelationCategory = "supply"
	Customer   RelationCategory = "customer"
	Governance RelationCategory = "governance"
	Membership RelationCategory = "membership"
	Alliance   RelationCategory = "alliance"
	Rivalry    RelationCategory = "rivalry"
	Influence  RelationCategory = "influence"
)

// #endregion relation-category

// #region constants
// Constants are the physical constants shared by every entity of a category.
type Constants struct {
	Inertia                   float64            `json:"inertia" yaml:"inertia"`                                           // [0,1): resistance to change
	MaxValueDeltaPerDay       float64            `json:"max_value_delta_per_day" yaml:"max_value_delta_per_day"`             // cap on |d value/dt|
	MaxInteractionDeltaPerDay float64            `json:"max_interaction_delta_per_day" yaml:"max_interaction_delta_per_day"` // cap on |d interaction/dt|
	CriticalThreshold         float64            `json:"critical_threshold" yaml:"critical_threshold"`                     // (-1,0]
	ExpectedLifespanYears     float64            `json:"expected_lifespan_years" yaml:"expected_lifespan_years"`
	ReviewCadenceDays         float64            `json:"review_cadence_days" yaml:"review_cadence_days"`
	PrimaryRelations          []RelationCategory `json:"primary_relations" yaml:"primary_relations"`
}

// #endregion constants

// #region errors
// ErrUnknownCategory is returned when parsing a name outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// ErrUnknownRelation is returned when parsing a relation name outside the closed set.
var ErrUnknownRelation = errors.New("unknown relation category")

// #endregion errors
