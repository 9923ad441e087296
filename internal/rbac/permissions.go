package rbac

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedPermissions is returned when the permissions cookie is not a JSON array of strings.
var ErrMalformedPermissions = errors.New("rbac: malformed permissions value")

// PermissionSet is the flat set of permission names used for route gating and menus.
type PermissionSet struct {
	names map[string]struct{}
}

// NewPermissionSet builds a set from raw names, dropping blanks and duplicates.
// Names are stored as given.
func NewPermissionSet(names ...string) PermissionSet {
	set := PermissionSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if blankPermission(name) {
			continue
		}
		set.names[name] = struct{}{}
	}
	return set
}

// Has reports whether name is a member of the set.
func (s PermissionSet) Has(name string) bool {
	if len(s.names) == 0 {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// Len returns the number of names.
func (s PermissionSet) Len() int {
	return len(s.names)
}

// IsEmpty reports whether the set holds no names.
func (s PermissionSet) IsEmpty() bool {
	return len(s.names) == 0
}

// Names returns the members in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodePermissions parses the permissions cookie value. An empty value is the
// empty set. Anything that is not a JSON array of strings yields the empty set
// together with ErrMalformedPermissions, so callers fail closed.
func DecodePermissions(raw string) (PermissionSet, error) {
	if strings.TrimSpace(raw) == "" {
		return NewPermissionSet(), nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return NewPermissionSet(), fmt.Errorf("%w: %v", ErrMalformedPermissions, err)
	}
	return NewPermissionSet(names...), nil
}

// EncodePermissions renders the set as a JSON array for the permissions cookie.
func EncodePermissions(set PermissionSet) string {
	data, err := json.Marshal(set.Names())
	if err != nil {
		return "[]"
	}
	return string(data)
}

// PermissionRecord is a (name, type) pair as returned by the upstream API.
type PermissionRecord struct {
	Name string         `json:"permission_name"`
	Type PermissionType `json:"permission_type"`
}

// PermissionRecords is the canonical permission list for a principal. The flat
// gating set and the UI affordances are both derived from it.
type PermissionRecords []PermissionRecord

// CanonicalPermissions merges per-action records with a flat name list. A flat
// name with no record of its own becomes a "get" record so that Set() always
// covers every name the upstream granted. Invalid types and blank names are dropped.
func CanonicalPermissions(records []PermissionRecord, names []string) PermissionRecords {
	out := make(PermissionRecords, 0, len(records)+len(names))
	seen := make(map[PermissionRecord]struct{}, len(records))
	covered := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if blankPermission(rec.Name) || !rec.Type.Valid() {
			continue
		}
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		covered[rec.Name] = struct{}{}
		out = append(out, rec)
	}
	for _, name := range names {
		if blankPermission(name) {
			continue
		}
		if _, ok := covered[name]; ok {
			continue
		}
		covered[name] = struct{}{}
		out = append(out, PermissionRecord{Name: name, Type: PermissionGet})
	}
	return out
}

// Set derives the flat gating set.
func (p PermissionRecords) Set() PermissionSet {
	names := make([]string, 0, len(p))
	for _, rec := range p {
		names = append(names, rec.Name)
	}
	return NewPermissionSet(names...)
}

// Can reports whether the records grant the given action on name.
func (p PermissionRecords) Can(name string, typ PermissionType) bool {
	for _, rec := range p {
		if rec.Name == name && rec.Type == typ {
			return true
		}
	}
	return false
}

// Affordance is one row of the permission pivot table.
type Affordance struct {
	Name   string
	Read   bool
	Create bool
	Update bool
	Delete bool
}

// Affordances pivots the records per name, ordered by first appearance.
func (p PermissionRecords) Affordances() []Affordance {
	index := make(map[string]int)
	var rows []Affordance
	for _, rec := range p {
		i, ok := index[rec.Name]
		if !ok {
			i = len(rows)
			index[rec.Name] = i
			rows = append(rows, Affordance{Name: rec.Name})
		}
		switch rec.Type {
		case PermissionGet:
			rows[i].Read = true
		case PermissionCreate:
			rows[i].Create = true
		case PermissionUpdate:
			rows[i].Update = true
		case PermissionDelete:
			rows[i].Delete = true
		}
	}
	return rows
}
