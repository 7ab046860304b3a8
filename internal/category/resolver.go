// Package category resolves the reference table and derives each
// category's reporting role once per load, instead of string-matching
// names inside every computation.
//
// The Ukrainian reference data is canonical: "видача" (issuance), "збір"
// (collection), "тіло" (principal), "відсотки" (interest). English aliases
// are accepted for ledgers seeded with translated names. Anything else is
// RoleOther and falls back to the generic payment-sum computation.
package category

import (
	"context"
	"fmt"
	"strings"

	"loanoffice/internal/core"
)

// Lister is the read-only slice of the ledger store the resolver needs.
type Lister interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Resolver loads point-in-time snapshots of the reference table.
type Resolver struct {
	store Lister
}

func NewResolver(store Lister) *Resolver {
	return &Resolver{store: store}
}

// Set is one consistent snapshot of the reference table with derived
// roles. Reference data is immutable, so a snapshot never goes stale
// within a request.
type Set struct {
	byID   map[int64]core.Category
	byName map[string]int64
	byRole map[core.CategoryRole]int64
}

// Load reads the reference table and derives roles. When two categories
// claim the same role the lowest id wins; the rest degrade to the generic
// computation.
func (r *Resolver) Load(ctx context.Context) (Set, error) {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("load categories: %w", err)
	}

	s := Set{
		byID:   make(map[int64]core.Category, len(categories)),
		byName: make(map[string]int64, len(categories)),
		byRole: make(map[core.CategoryRole]int64),
	}
	for _, c := range categories {
		c.Role = RoleForName(c.Name)
		if c.Role != core.RoleOther {
			if _, taken := s.byRole[c.Role]; taken {
				c.Role = core.RoleOther
			} else {
				s.byRole[c.Role] = c.ID
			}
		}
		s.byID[c.ID] = c
		s.byName[c.Name] = c.ID
	}
	return s, nil
}

// RoleForName maps a category name to its reporting role by exact match on
// the canonical names and their English aliases.
func RoleForName(name string) core.CategoryRole {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "видача", "issuance":
		return core.RoleIssuance
	case "збір", "collection":
		return core.RoleCollection
	case "тіло", "body", "principal":
		return core.RolePrincipal
	case "відсотки", "interest":
		return core.RoleInterest
	default:
		return core.RoleOther
	}
}

// All returns every category in the snapshot, id-keyed.
func (s Set) All() map[int64]core.Category {
	return s.byID
}

// NameByID returns the category name, or an empty string for an unknown id.
func (s Set) NameByID(id int64) string {
	return s.byID[id].Name
}

// IDByName finds a category by exact name match.
func (s Set) IDByName(name string) (int64, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// RoleOf returns the derived role of a category id; unknown ids are
// RoleOther.
func (s Set) RoleOf(id int64) core.CategoryRole {
	return s.byID[id].Role
}

// IDByRole returns the category id holding the given role, if any category
// carries the canonical name for it.
func (s Set) IDByRole(role core.CategoryRole) (int64, bool) {
	id, ok := s.byRole[role]
	return id, ok
}
