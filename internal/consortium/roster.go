// Package consortium holds the member institutions whose statistics are collected.
package consortium

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrDuplicateMember is returned when a roster lists the same UNITID twice.
var ErrDuplicateMember = errors.New("duplicate member")

// Institution is a consortium member identified by its IPEDS UNITID.
type Institution struct {
	UnitID int64  `koanf:"unitid" yaml:"unitid" validate:"required,gt=0"`
	Name   string `koanf:"name" yaml:"name"`
}

// Roster is an ordered set of member institutions, sorted by UNITID.
type Roster struct {
	members []Institution
	byID    map[int64]int
}

// NewRoster builds a roster from members, rejecting duplicate IDs.
func NewRoster(members []Institution) (*Roster, error) {
	r := &Roster{byID: make(map[int64]int, len(members))}
	sorted := slices.Clone(members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UnitID < sorted[j].UnitID })
	for _, m := range sorted {
		if _, dup := r.byID[m.UnitID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMember, m.UnitID)
		}
		r.byID[m.UnitID] = len(r.members)
		r.members = append(r.members, m)
	}
	return r, nil
}

// Default returns the built-in BCLA roster.
func Default() *Roster {
	r, err := NewRoster(bclaMembers)
	if err != nil {
		panic(err)
	}
	return r
}

// FromConfig returns the configured roster, or the default roster when none is configured.
func FromConfig(members []Institution) (*Roster, error) {
	if len(members) == 0 {
		return Default(), nil
	}
	return NewRoster(members)
}

// Len returns the number of members.
func (r *Roster) Len() int { return len(r.members) }

// Members returns a copy of the members in UNITID order.
func (r *Roster) Members() []Institution { return slices.Clone(r.members) }

// IDs returns the member UNITIDs in ascending order.
func (r *Roster) IDs() []int64 {
	ids := make([]int64, len(r.members))
	for i, m := range r.members {
		ids[i] = m.UnitID
	}
	return ids
}

// Contains reports whether id is a member.
func (r *Roster) Contains(id int64) bool {
	_, ok := r.byID[id]
	return ok
}

// Name returns the configured name for id, or "" if unknown.
func (r *Roster) Name(id int64) string {
	if i, ok := r.byID[id]; ok {
		return r.members[i].Name
	}
	return ""
}

// Without returns a roster with the given IDs removed.
func (r *Roster) Without(ids ...int64) *Roster {
	kept := make([]Institution, 0, len(r.members))
	for _, m := range r.members {
		if !slices.Contains(ids, m.UnitID) {
			kept = append(kept, m)
		}
	}
	out, _ := NewRoster(kept)
	return out
}
