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

// Package xuckoo implements an extendible cuckoo hash set of int64 keys.
//
// # Extendible cuckoo hashing
//
// A Table is made of two directories, A and B, each an extendible hash
// table: an array of 1<<depth slots, addressed by the low depth bits of a
// hash value, that refer to fixed capacity buckets. Directory A is addressed
// with hash function h1 and directory B with h2. A key lives in exactly one
// bucket of exactly one directory, so a lookup examines at most two buckets.
//
// Insertion places the key into whichever directory currently holds fewer
// keys. If the target bucket is full, a victim key is evicted from it (the
// sole key when buckets hold one key, otherwise a random one) and the
// incoming key takes its place. The victim is then placed into the other
// directory in the same way, possibly evicting in turn. This is cuckoo
// hashing with the tables swapping roles at every step.
//
// Cuckoo eviction chains can cycle. Rather than rehashing into a bigger
// table, each Insert counts its evictions and, once the count passes the
// replacement threshold (1000 by default), splits the bucket it is evicting
// from. A split is the extendible hashing growth step: the bucket gets a
// sibling owning the addresses that differ in the next hash bit, the
// directory doubles first if the bucket owned a single slot, and the keys are
// redistributed between the pair. Each forced split adds capacity, so a
// cycle cannot persist indefinitely. The threshold is a heuristic: a long
// chain is treated as a cycle whether or not it is one.
//
// Capacity is bounded by the maximum directory depth. Insert returns
// ErrCapacityExceeded when a split would exceed it and rolls back every
// eviction it performed, leaving the table exactly as it was.
//
// With WithSingleDirectory the Table degenerates into plain extendible
// hashing over directory A: a full bucket is split until the key fits.
package xuckoo

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	// DefaultReplacementThreshold is the number of evictions an Insert
	// performs before forcing a split.
	DefaultReplacementThreshold = 1000
	// DefaultMaxDepth bounds each directory to 16M slots.
	DefaultMaxDepth = 24

	// maxDepthLimit is the address width. Bucket ids and handles are uint32.
	maxDepthLimit = 32
)

// HashFunc maps a key to a hash value. Only the low-order bits of the result
// are used to address a directory. It must be deterministic.
type HashFunc func(key int64) uint64

// DirectoryStats describes the state of one directory.
type DirectoryStats struct {
	// Size is the number of slots, 1<<Depth.
	Size  int
	Depth int
	Keys  int
	// Buckets is the number of distinct buckets referenced by the slots.
	Buckets int
}

// Stats is a snapshot of the counters of a Table.
type Stats struct {
	A, B           DirectoryStats
	TotalKeys      int
	TotalBuckets   int
	TotalSize      int
	BucketCapacity int
	// Evictions is the number of keys displaced by inserts over the
	// lifetime of the table.
	Evictions uint64
	// ForcedSplits is the number of splits triggered by the replacement
	// threshold.
	ForcedSplits uint64
}

// eviction records a key placed over a victim so that the swap can be
// undone.
type eviction struct {
	dir    int
	placed int64
	victim int64
}

// Table is a set of int64 keys supporting Insert and Lookup. Keys cannot be
// removed.
//
// A Table is NOT goroutine-safe. See SyncTable.
type Table struct {
	dirs      [2]directory
	h1, h2    HashFunc
	capacity  int
	threshold int
	maxDepth  uint32
	single    bool
	rand      *rand.Rand
	allocator Allocator
	logger    *slog.Logger
	// chain holds the evictions performed by the Insert in progress.
	chain        []eviction
	evictions    uint64
	forcedSplits uint64
}

// New constructs a Table whose buckets hold up to capacity keys each. By
// default directory A is addressed with Hash1 and directory B with Hash2.
func New(capacity int, options ...option) (*Table, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	t := &Table{
		h1:        Hash1,
		h2:        Hash2,
		capacity:  capacity,
		threshold: DefaultReplacementThreshold,
		maxDepth:  DefaultMaxDepth,
		allocator: defaultAllocator{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, op := range options {
		op.apply(t)
	}

	switch {
	case t.h1 == nil || t.h2 == nil:
		return nil, fmt.Errorf("%w: nil hash function", ErrInvalidOption)
	case t.threshold < 1:
		return nil, fmt.Errorf("%w: replacement threshold %d", ErrInvalidOption, t.threshold)
	case t.maxDepth > maxDepthLimit:
		return nil, fmt.Errorf("%w: max depth exceeds %d", ErrInvalidOption, maxDepthLimit)
	case t.allocator == nil:
		return nil, fmt.Errorf("%w: nil allocator", ErrInvalidOption)
	case t.logger == nil:
		return nil, fmt.Errorf("%w: nil logger", ErrInvalidOption)
	}
	if t.rand == nil {
		t.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if err := t.dirs[0].init(t, "a", t.h1); err != nil {
		return nil, err
	}
	if !t.single {
		if err := t.dirs[1].init(t, "b", t.h2); err != nil {
			t.dirs[0].release(t)
			return nil, err
		}
	}
	return t, nil
}

// Close releases the key storage of every bucket back to the configured
// allocator. It is unnecessary to close a table using the default allocator.
// It is invalid to use a Table after it has been closed, though Close itself
// is idempotent.
func (t *Table) Close() {
	for i := range t.dirs {
		if t.dirs[i].slots != nil {
			t.dirs[i].release(t)
		}
	}
}

// Insert adds key to the table. It returns true if the key was inserted and
// false if it was already present. An error means the table could not grow
// to make room for the key, in which case the table is unchanged apart from
// any growth that succeeded.
func (t *Table) Insert(key int64) (bool, error) {
	if t.Lookup(key) {
		return false, nil
	}
	if t.single {
		return t.insertExtendible(key)
	}
	return t.insertCuckoo(key)
}

// insertExtendible inserts a key known not to be in directory A, splitting
// the target bucket until it has room.
func (t *Table) insertExtendible(key int64) (bool, error) {
	d := &t.dirs[0]
	for {
		// The address is recomputed because a split may have deepened the
		// directory.
		addr := d.address(key)
		if b := d.bucketAt(addr); !b.full() {
			b.append(key)
			d.nkeys++
			d.checkInvariants()
			return true, nil
		}
		if err := d.split(t, addr); err != nil {
			return false, err
		}
	}
}

// insertCuckoo inserts a key known not to be in either directory.
func (t *Table) insertCuckoo(key int64) (bool, error) {
	// The directory with fewer keys receives the key, directory A on a tie.
	cur := 0
	if t.dirs[1].nkeys < t.dirs[0].nkeys {
		cur = 1
	}

	t.chain = t.chain[:0]
	replacements := 0
	for {
		d := &t.dirs[cur]
		addr := d.address(key)
		b := d.bucketAt(addr)
		if !b.full() {
			b.append(key)
			d.nkeys++
			d.checkInvariants()
			return true, nil
		}

		var i int
		if len(b.keys) > 1 {
			i = t.rand.IntN(len(b.keys))
		}
		victim := b.keys[i]
		b.keys[i] = key
		t.chain = append(t.chain, eviction{dir: cur, placed: key, victim: victim})
		t.evictions++

		// The split fires on eviction threshold+1 of a run, which for an even
		// threshold is in the directory the run started in.
		if replacements >= t.threshold {
			t.logger.Info("eviction cycle suspected, forcing split",
				"directory", d.name, "address", addr, "replacements", replacements,
				"chain", len(t.chain))
			if err := d.split(t, addr); err != nil {
				t.rollback()
				return false, err
			}
			t.forcedSplits++
			replacements = 0
		}
		replacements++

		cur ^= 1
		key = victim
	}
}

// rollback undoes the evictions of the current Insert in reverse order. Each
// placed key is removed from wherever splits may have moved it within its
// directory, and its victim is returned to the bucket now owning its
// address. Undoing in reverse order means every intermediate state is one
// the Insert passed through, refined by the splits since, so the victim's
// bucket always has room.
func (t *Table) rollback() {
	t.logger.Warn("rolling back insert", "evictions", len(t.chain))
	for i := len(t.chain) - 1; i >= 0; i-- {
		e := t.chain[i]
		d := &t.dirs[e.dir]
		b := d.bucketAt(d.address(e.placed))
		j := b.indexOf(e.placed)
		if invariants && j < 0 {
			panic(fmt.Sprintf("invariant failed: evicting key %d not found\n%s", e.placed, d.debugString()))
		}
		b.removeAt(j)
		d.bucketAt(d.address(e.victim)).append(e.victim)
	}
	t.chain = t.chain[:0]
	t.dirs[0].checkInvariants()
	t.dirs[1].checkInvariants()
}

// Lookup reports whether key is in the table. Directory A is always
// addressed with h1 and directory B with h2.
func (t *Table) Lookup(key int64) bool {
	if t.dirs[0].lookup(key) {
		return true
	}
	return !t.single && t.dirs[1].lookup(key)
}

// All calls yield sequentially for each key present in the table. If yield
// returns false, iteration stops. The table must not be mutated during
// iteration.
func (t *Table) All(yield func(key int64) bool) {
	for i := range t.dirs {
		d := &t.dirs[i]
		for j := range d.buckets {
			for _, k := range d.buckets[j].keys {
				if !yield(k) {
					return
				}
			}
		}
	}
}

// Len returns the number of keys in the table.
func (t *Table) Len() int {
	return t.dirs[0].nkeys + t.dirs[1].nkeys
}

// Stats returns a snapshot of the table's counters.
func (t *Table) Stats() Stats {
	s := Stats{
		A:              t.dirs[0].stats(),
		BucketCapacity: t.capacity,
		Evictions:      t.evictions,
		ForcedSplits:   t.forcedSplits,
	}
	if !t.single {
		s.B = t.dirs[1].stats()
	}
	s.TotalKeys = s.A.Keys + s.B.Keys
	s.TotalBuckets = s.A.Buckets + s.B.Buckets
	s.TotalSize = s.A.Size + s.B.Size
	return s
}

// allocKeys allocates the key storage for one bucket.
func (t *Table) allocKeys() ([]int64, error) {
	keys, err := t.allocator.AllocKeys(t.capacity)
	if err != nil {
		t.logger.Warn("bucket allocation failed", "capacity", t.capacity, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	if cap(keys) < t.capacity {
		return nil, fmt.Errorf("%w: allocator returned capacity %d, need %d",
			ErrAllocationFailed, cap(keys), t.capacity)
	}
	return keys[:0:t.capacity], nil
}
