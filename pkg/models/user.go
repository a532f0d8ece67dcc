package models

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// UserProfile holds the interaction sets decoded from a users_table row.
// It lives for a single recommendation call.
type UserProfile struct {
	UserID    string             `json:"user_id"`
	Clicks    mapset.Set[string] `json:"-"`
	Purchases mapset.Set[string] `json:"-"`
}

// NewIDSet builds a product or user id set. All sets in the engine are
// created through it so set algebra never mixes implementations.
func NewIDSet(ids ...string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet[string](ids...)
}

// Interacted returns the union of clicked and purchased products.
func (p *UserProfile) Interacted() mapset.Set[string] {
	if p == nil {
		return NewIDSet()
	}
	return p.Clicks.Union(p.Purchases)
}

// InteractionMap maps user ids to item sets and remembers insertion order.
type InteractionMap struct {
	order []string
	items map[string]mapset.Set[string]
}

func NewInteractionMap() *InteractionMap {
	return &InteractionMap{items: make(map[string]mapset.Set[string])}
}

// Put stores the item set for a user. A repeated user id keeps its
// original position.
func (m *InteractionMap) Put(userID string, items mapset.Set[string]) {
	if _, exists := m.items[userID]; !exists {
		m.order = append(m.order, userID)
	}
	if items == nil {
		items = NewIDSet()
	}
	m.items[userID] = items
}

// Get returns the item set for a user, or an empty set for unknown users.
func (m *InteractionMap) Get(userID string) mapset.Set[string] {
	if items, ok := m.items[userID]; ok {
		return items
	}
	return NewIDSet()
}

func (m *InteractionMap) UserIDs() []string {
	return m.order
}

func (m *InteractionMap) Len() int {
	return len(m.order)
}
