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

// bucket holds up to cap(keys) keys that share the low depth bits of their
// hash values. The keys slice is allocated once with its final capacity and
// never reallocated.
type bucket struct {
	// id is the first directory address that referenced the bucket. Only the
	// low depth bits of id are significant, and id < 1<<depth.
	id uint32
	// depth is the number of low-order hash bits owned by the bucket.
	depth uint32
	keys  []int64
}

func (b *bucket) full() bool {
	return len(b.keys) == cap(b.keys)
}

// append adds key to the bucket. The bucket must not be full.
func (b *bucket) append(key int64) {
	if invariants && b.full() {
		panic("invariant failed: append to full bucket")
	}
	b.keys = append(b.keys, key)
}

func (b *bucket) contains(key int64) bool {
	return b.indexOf(key) >= 0
}

// indexOf returns the index of key in the bucket, or -1.
func (b *bucket) indexOf(key int64) int {
	for i, k := range b.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// removeAt removes the key at index i by moving the last key into its place.
// Only used when rolling back a failed insertion.
func (b *bucket) removeAt(i int) {
	n := len(b.keys) - 1
	b.keys[i] = b.keys[n]
	b.keys = b.keys[:n]
}
