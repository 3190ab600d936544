// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xuckoo

import "sync"

// SyncTable is a goroutine-safe Table. Inserts are serialized while lookups
// may proceed concurrently with each other, but never with an Insert, which
// can split buckets and rewrite directory slots.
type SyncTable struct {
	mu sync.RWMutex
	t  *Table
}

// NewSync constructs a SyncTable. See New.
func NewSync(capacity int, options ...option) (*SyncTable, error) {
	t, err := New(capacity, options...)
	if err != nil {
		return nil, err
	}
	return &SyncTable{t: t}, nil
}

// Insert adds key to the table. See Table.Insert.
func (s *SyncTable) Insert(key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Insert(key)
}

// Lookup reports whether key is in the table.
func (s *SyncTable) Lookup(key int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.Lookup(key)
}

// All calls yield for each key in the table while holding the read lock.
// yield must not call Insert.
func (s *SyncTable) All(yield func(key int64) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.t.All(yield)
}

// Len returns the number of keys in the table. See Table.Len.
func (s *SyncTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.Len()
}

// Stats returns a snapshot of the table's counters. See Table.Stats.
func (s *SyncTable) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.Stats()
}

// Close releases the table. See Table.Close.
func (s *SyncTable) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.Close()
}
