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

import (
	"fmt"
	"strings"
)

// directory is an extendible hash table over a bucket arena. The low depth
// bits of hash(key) index slots, and each slot holds the handle of the
// bucket owning that address. When a bucket's depth is less than the
// directory depth, several slots refer to the same bucket:
//
//	 slots (depth=2)
//	+----+
//	| 00 | --> slots[0] \
//	+----+               +--> bucket[id=0 depth=1]
//	| 10 | --> slots[2] /
//	+----+
//	| 01 | --> slots[1] ----> bucket[id=1 depth=2]
//	+----+
//	| 11 | --> slots[3] ----> bucket[id=3 depth=2]
//	+----+
//
// Because addresses come from the low bits, doubling the directory appends a
// copy of the existing slots: address i and address i|1<<depth refer to the
// same bucket until that bucket is split. Splitting bucket[id=0 depth=1]
// above creates bucket[id=2 depth=2] and redirects slots[2] to it.
//
// Buckets live in an arena and slots store stable handles into it, so a
// bucket shared by many slots has a single owner and is released once.
type directory struct {
	name string
	hash HashFunc
	// buckets is the arena. len(buckets) is the number of distinct buckets.
	buckets []bucket
	// slots has length 1<<depth. Each entry is an index into buckets.
	slots []uint32
	depth uint32
	nkeys int
}

// init sets up the directory with a single empty bucket covering the whole
// address space.
func (d *directory) init(t *Table, name string, hash HashFunc) error {
	keys, err := t.allocKeys()
	if err != nil {
		return err
	}
	*d = directory{
		name:    name,
		hash:    hash,
		buckets: []bucket{{id: 0, depth: 0, keys: keys}},
		slots:   []uint32{0},
	}
	return nil
}

// address returns the low depth bits of hash(key).
func (d *directory) address(key int64) uint64 {
	return d.hash(key) & (uint64(1)<<d.depth - 1)
}

// bucketAt returns the bucket referenced by slot addr. The pointer is only
// valid until the next split, which may reallocate the arena.
func (d *directory) bucketAt(addr uint64) *bucket {
	return &d.buckets[d.slots[addr]]
}

// lookup reports whether key is present in the directory.
func (d *directory) lookup(key int64) bool {
	return d.bucketAt(d.address(key)).contains(key)
}

// grow doubles the slots, duplicating the existing handles into the new upper
// half.
func (d *directory) grow(t *Table) error {
	if d.depth >= t.maxDepth {
		t.logger.Warn("directory depth exhausted",
			"directory", d.name, "depth", d.depth, "max-depth", t.maxDepth)
		return fmt.Errorf("%w: directory %s at depth %d (max %d)",
			ErrCapacityExceeded, d.name, d.depth, t.maxDepth)
	}
	d.slots = append(d.slots, d.slots...)
	d.depth++
	t.logger.Debug("directory grown", "directory", d.name, "depth", d.depth, "size", len(d.slots))
	return nil
}

// split divides the bucket at addr into itself and a new sibling, growing the
// directory first if the bucket is already down to a single slot. The keys of
// the old bucket are redistributed between the two by the next hash bit.
func (d *directory) split(t *Table, addr uint64) error {
	h := d.slots[addr]
	if d.buckets[h].depth == d.depth {
		if err := d.grow(t); err != nil {
			return err
		}
	}

	keys, err := t.allocKeys()
	if err != nil {
		return err
	}

	oldID, oldDepth := d.buckets[h].id, d.buckets[h].depth
	newDepth := oldDepth + 1
	// The sibling's id is a 1 bit followed by the old bucket's address bits.
	siblingID := uint32(1)<<oldDepth | oldID
	sibling := uint32(len(d.buckets))
	d.buckets = append(d.buckets, bucket{id: siblingID, depth: newDepth, keys: keys})
	b := &d.buckets[h]
	b.depth = newDepth

	// Redirect every slot whose low newDepth bits equal siblingID. These are
	// built by joining each prefix of depth-newDepth bits with siblingID.
	for prefix, n := uint64(0), uint64(1)<<(d.depth-newDepth); prefix < n; prefix++ {
		d.slots[prefix<<newDepth|uint64(siblingID)] = sibling
	}

	// Drain and reinsert. NB: keys that stay in b are rewritten at or before
	// the index being read, so iterating over the drained slice is safe.
	old := b.keys
	b.keys = b.keys[:0]
	for _, k := range old {
		d.bucketAt(d.address(k)).append(k)
	}

	t.logger.Debug("bucket split",
		"directory", d.name, "bucket", oldID,
		"sibling", siblingID, "depth", newDepth,
		"kept", len(b.keys), "moved", len(d.buckets[sibling].keys))
	d.checkInvariants()
	return nil
}

// release frees the key storage of every bucket. Slots are walked in
// descending order and a bucket is freed at its canonical slot, the one whose
// index equals its id.
func (d *directory) release(t *Table) {
	for i := len(d.slots) - 1; i >= 0; i-- {
		b := &d.buckets[d.slots[i]]
		if int(b.id) == i {
			t.allocator.FreeKeys(b.keys)
			b.keys = nil
		}
	}
	d.buckets = nil
	d.slots = nil
	d.nkeys = 0
}

func (d *directory) stats() DirectoryStats {
	return DirectoryStats{
		Size:    len(d.slots),
		Depth:   int(d.depth),
		Keys:    d.nkeys,
		Buckets: len(d.buckets),
	}
}

// validate checks the structural invariants of the directory, returning an
// error describing the first violation found.
func (d *directory) validate() error {
	if len(d.slots) != 1<<d.depth {
		return fmt.Errorf("directory %s: %d slots at depth %d", d.name, len(d.slots), d.depth)
	}
	refs := make([]int, len(d.buckets))
	for i, h := range d.slots {
		if int(h) >= len(d.buckets) {
			return fmt.Errorf("directory %s: slot %d refers to bucket %d of %d", d.name, i, h, len(d.buckets))
		}
		b := &d.buckets[h]
		if b.depth > d.depth {
			return fmt.Errorf("directory %s: bucket %d depth %d exceeds directory depth %d",
				d.name, b.id, b.depth, d.depth)
		}
		mask := uint64(1)<<b.depth - 1
		if uint64(i)&mask != uint64(b.id)&mask {
			return fmt.Errorf("directory %s: slot %d refers to bucket %d at depth %d",
				d.name, i, b.id, b.depth)
		}
		refs[h]++
	}
	var nkeys int
	for h := range d.buckets {
		b := &d.buckets[h]
		if want := 1 << (d.depth - b.depth); refs[h] != want {
			return fmt.Errorf("directory %s: bucket %d has %d references, expected %d",
				d.name, b.id, refs[h], want)
		}
		if d.slots[b.id] != uint32(h) {
			return fmt.Errorf("directory %s: canonical slot %d does not refer to bucket %d",
				d.name, b.id, b.id)
		}
		mask := uint64(1)<<b.depth - 1
		for _, k := range b.keys {
			if d.hash(k)&mask != uint64(b.id)&mask {
				return fmt.Errorf("directory %s: key %d does not belong in bucket %d\n%s",
					d.name, k, b.id, d.debugString())
			}
		}
		nkeys += len(b.keys)
	}
	if nkeys != d.nkeys {
		return fmt.Errorf("directory %s: found %d keys, but key count is %d", d.name, nkeys, d.nkeys)
	}
	return nil
}

func (d *directory) checkInvariants() {
	if invariants {
		if err := d.validate(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v", err))
		}
	}
}

func (d *directory) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "directory %s: depth=%d buckets=%d keys=%d\n",
		d.name, d.depth, len(d.buckets), d.nkeys)
	for i, h := range d.slots {
		b := &d.buckets[h]
		fmt.Fprintf(&buf, "  %4d: bucket %d", i, b.id)
		if int(b.id) == i {
			fmt.Fprintf(&buf, " depth=%d %v", b.depth, b.keys)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
