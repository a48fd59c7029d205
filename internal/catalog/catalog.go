package catalog

import (
	"fmt"
	"strings"
)

// #region tables
var categories = []Category{
	Individual, Venture, SmallOrg, LargeOrg, Municipality, Nation, Institution, Ideology,
}

var relationCategories = []RelationCategory{
	Bond, Kin, Peer, Employment, Ownership, Supply,
	Customer, Governance, Membership, Alliance, Rivalry, Influence,
}

var constants = map[Category]Constants{
	Individual: {
		Inertia: 0.05, MaxValueDeltaPerDay: 0.30, MaxInteractionDeltaPerDay: 0.35,
		CriticalThreshold: -0.6, ExpectedLifespanYears: 80, ReviewCadenceDays: 7,
		PrimaryRelations: []RelationCategory{Bond, Kin, Peer},
	},
	Venture: {
		Inertia: 0.18, MaxValueDeltaPerDay: 0.25, MaxInteractionDeltaPerDay: 0.30,
		CriticalThreshold: -0.3, ExpectedLifespanYears: 5, ReviewCadenceDays: 14,
		PrimaryRelations: []RelationCategory{Ownership, Customer, Supply, Employment},
	},
	SmallOrg: {
		Inertia: 0.30, MaxValueDeltaPerDay: 0.15, MaxInteractionDeltaPerDay: 0.20,
		CriticalThreshold: -0.35, ExpectedLifespanYears: 15, ReviewCadenceDays: 30,
		PrimaryRelations: []RelationCategory{Employment, Customer, Supply},
	},
	LargeOrg: {
		Inertia: 0.50, MaxValueDeltaPerDay: 0.08, MaxInteractionDeltaPerDay: 0.12,
		CriticalThreshold: -0.4, ExpectedLifespanYears: 50, ReviewCadenceDays: 90,
		PrimaryRelations: []RelationCategory{Employment, Supply, Governance, Customer},
	},
	Municipality: {
		Inertia: 0.60, MaxValueDeltaPerDay: 0.05, MaxInteractionDeltaPerDay: 0.08,
		CriticalThreshold: -0.45, ExpectedLifespanYears: 200, ReviewCadenceDays: 90,
		PrimaryRelations: []RelationCategory{Governance, Membership, Alliance},
	},
	Nation: {
		Inertia: 0.80, MaxValueDeltaPerDay: 0.06, MaxInteractionDeltaPerDay: 0.05,
		CriticalThreshold: -0.5, ExpectedLifespanYears: 300, ReviewCadenceDays: 365,
		PrimaryRelations: []RelationCategory{Alliance, Governance, Rivalry, Influence},
	},
	Institution: {
		Inertia: 0.70, MaxValueDeltaPerDay: 0.04, MaxInteractionDeltaPerDay: 0.06,
		CriticalThreshold: -0.45, ExpectedLifespanYears: 150, ReviewCadenceDays: 180,
		PrimaryRelations: []RelationCategory{Governance, Membership, Influence},
	},
	Ideology: {
		Inertia: 0.90, MaxValueDeltaPerDay: 0.02, MaxInteractionDeltaPerDay: 0.04,
		CriticalThreshold: -0.7, ExpectedLifespanYears: 500, ReviewCadenceDays: 365,
		PrimaryRelations: []RelationCategory{Membership, Influence, Rivalry},
	},
}

var defaultInteraction = map[RelationCategory]float64{
	Bond:       0.5,
	Kin:        0.6,
	Peer:       0.4,
	Employment: 0.3,
	Ownership:  0.5,
	Supply:     0.3,
	Customer:   0.3,
	Governance: 0.2,
	Membership: 0.3,
	Alliance:   0.4,
	Rivalry:    -0.3,
	Influence:  0.2,
}

// coefficients[source][target]. Rows and columns follow the categories order.
// Larger sources weigh more on smaller targets than the reverse.
var coefficients = [8][8]float64{
	//  ind   ven   sml   lrg   mun   nat   ins   ide
	{1.00, 0.60, 0.40, 0.20, 0.15, 0.05, 0.10, 0.10}, // individual
	{0.80, 1.00, 0.60, 0.30, 0.20, 0.08, 0.10, 0.05}, // venture
	{1.00, 0.80, 1.00, 0.40, 0.30, 0.10, 0.15, 0.05}, // small_org
	{1.30, 1.20, 1.10, 1.00, 0.60, 0.25, 0.35, 0.10}, // large_org
	{1.20, 1.00, 1.00, 0.80, 1.00, 0.30, 0.40, 0.10}, // municipality
	{1.50, 1.40, 1.30, 1.20, 1.30, 1.00, 0.90, 0.40}, // nation
	{1.20, 0.90, 0.90, 0.70, 0.80, 0.50, 1.00, 0.30}, // institution
	{1.40, 0.80, 0.90, 0.60, 0.70, 0.50, 0.80, 1.00}, // ideology
}

// #endregion tables

// #region lookup
// For returns the constants of a category. Unknown categories fall back to
// Individual; use Valid or Parse to reject them at the edges.
func For(c Category) Constants {
	k, ok := constants[c]
	if !ok {
		k = constants[Individual]
	}
	k.PrimaryRelations = append([]RelationCategory(nil), k.PrimaryRelations...)
	return k
}

// InteractionCoefficient returns the multiplier applied when a change on a
// source entity propagates to a target entity.
func InteractionCoefficient(source, target Category) float64 {
	si, sok := categoryIndex(source)
	ti, tok := categoryIndex(target)
	if !sok || !tok {
		return 1.0
	}
	return coefficients[si][ti]
}

// DefaultInteraction is the interaction value an unbound slot of rc carries.
func DefaultInteraction(rc RelationCategory) float64 {
	return defaultInteraction[rc]
}

// Categories returns the 8 categories in their canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// RelationCategories returns the 12 relation categories in matrix order.
func RelationCategories() []RelationCategory {
	return append([]RelationCategory(nil), relationCategories...)
}

// RelationIndex returns the position of rc in matrix order.
func RelationIndex(rc RelationCategory) (int, bool) {
	for i, r := range relationCategories {
		if r == rc {
			return i, true
		}
	}
	return 0, false
}

func categoryIndex(c Category) (int, bool) {
	for i, k := range categories {
		if k == c {
			return i, true
		}
	}
	return 0, false
}

// #endregion lookup

// #region parse
// Valid reports whether c is one of the 8 known categories.
func Valid(c Category) bool {
	_, ok := constants[c]
	return ok
}

// Parse converts a user supplied name into a Category.
func Parse(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !Valid(c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// ParseRelation converts a user supplied name into a RelationCategory.
func ParseRelation(s string) (RelationCategory, error) {
	rc := RelationCategory(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := RelationIndex(rc); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelation, s)
	}
	return rc, nil
}

// #endregion parse
