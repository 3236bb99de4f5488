// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

// OrderedMap is an insertion-ordered string-keyed map: a plain map for O(1)
// lookup plus a parallel slice recording key insertion order. Removal
// updates both.
type OrderedMap struct {
	items map[string]ObjectValue
	order []string
}

// NewOrderedMap returns an empty OrderedMap ready to use.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{items: make(map[string]ObjectValue)}
}

// Insert sets k to v. If k is new, it is appended to the insertion order;
// if k already exists, its value is replaced and its position unchanged.
func (m *OrderedMap) Insert(k string, v ObjectValue) {
	if _, exists := m.items[k]; !exists {
		m.order = append(m.order, k)
	}
	m.items[k] = v
}

// Get returns the value for k and whether it was present.
func (m *OrderedMap) Get(k string) (ObjectValue, bool) {
	v, ok := m.items[k]
	return v, ok
}

// Remove deletes k, preserving the relative order of the remaining keys.
func (m *OrderedMap) Remove(k string) {
	if _, ok := m.items[k]; !ok {
		return
	}
	delete(m.items, k)
	for i, existing := range m.order {
		if existing == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns the map's keys in insertion order.
func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of entries in the map.
func (m *OrderedMap) Len() int { return len(m.order) }
