//
// Copyright 2024-2026 sandboxrt. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package permission

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Set is a process's capability grant set.
type Set struct {
	caps mapset.Set[Capability]
}

// NewSet builds a Set containing caps.
func NewSet(caps ...Capability) Set {
	return Set{caps: mapset.NewThreadUnsafeSet(caps...)}
}

// Add grants an additional capability.
func (s *Set) Add(c Capability) {
	if s.caps == nil {
		s.caps = mapset.NewThreadUnsafeSet[Capability]()
	}
	s.caps.Add(c)
}

// Remove revokes a capability.
func (s *Set) Remove(c Capability) {
	if s.caps != nil {
		s.caps.Remove(c)
	}
}

// Has reports whether the set grants required, per the Grants law of
// spec.md section 8.4.
func (s Set) Has(required Capability) bool {
	if s.caps == nil {
		return false
	}
	for c := range s.caps.Iter() {
		if c.Grants(required) {
			return true
		}
	}
	return false
}

// Len reports the number of explicit capabilities in the set.
func (s Set) Len() int {
	if s.caps == nil {
		return 0
	}
	return s.caps.Cardinality()
}

// List returns every capability in the set.
func (s Set) List() []Capability {
	if s.caps == nil {
		return nil
	}
	return s.caps.ToSlice()
}
