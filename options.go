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
	"log/slog"
	"math/rand/v2"
)

// option provide an interface to do work on Table while it is being created.
type option interface {
	apply(t *Table)
}

type hashOption struct {
	h1, h2 HashFunc
}

func (op hashOption) apply(t *Table) {
	t.h1, t.h2 = op.h1, op.h2
}

// WithHashes is an option to specify the hash functions used to address
// directory A (h1) and directory B (h2). Both are consulted only for their
// low-order bits, which should be well mixed and independent of each other.
func WithHashes(h1, h2 HashFunc) option {
	return hashOption{h1, h2}
}

type thresholdOption int

func (op thresholdOption) apply(t *Table) {
	t.threshold = int(op)
}

// WithReplacementThreshold sets the number of consecutive evictions an Insert
// performs before forcing a split of the bucket it is evicting from. The
// threshold is a heuristic cycle detector: a long eviction chain is taken as
// evidence of a cycle, not proof of one.
func WithReplacementThreshold(n int) option {
	return thresholdOption(n)
}

type maxDepthOption uint

func (op maxDepthOption) apply(t *Table) {
	t.maxDepth = uint32(min(uint(op), maxDepthLimit+1))
}

// WithMaxDepth sets the maximum depth of each directory, bounding it to
// 1<<depth slots. Splits beyond it fail with ErrCapacityExceeded. The depth
// may not exceed 32.
func WithMaxDepth(depth uint) option {
	return maxDepthOption(depth)
}

type randOption struct {
	src rand.Source
}

func (op randOption) apply(t *Table) {
	t.rand = rand.New(op.src)
}

// WithRandSource specifies the source used to choose eviction victims in
// buckets holding more than one key.
func WithRandSource(src rand.Source) option {
	return randOption{src}
}

// WithSeed seeds victim selection so that eviction behavior is reproducible.
func WithSeed(seed uint64) option {
	return randOption{rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

type loggerOption struct {
	logger *slog.Logger
}

func (op loggerOption) apply(t *Table) {
	t.logger = op.logger
}

// WithLogger specifies the logger that receives growth and cycle events. By
// default nothing is logged.
func WithLogger(logger *slog.Logger) option {
	return loggerOption{logger}
}

type singleDirectoryOption struct{}

func (singleDirectoryOption) apply(t *Table) {
	t.single = true
}

// WithSingleDirectory disables directory B and cuckoo eviction entirely. The
// Table behaves as a plain extendible hash table: a full bucket is split
// until the incoming key fits.
//
// With capacity 1 any two keys whose hashes agree in their low max-depth bits
// cannot be stored together, so by the birthday bound a table of roughly
// 2^(maxDepth/2) random keys is likely to hit ErrCapacityExceeded. Use a
// larger capacity for big key sets.
func WithSingleDirectory() option {
	return singleDirectoryOption{}
}

// Allocator specifies an interface for allocating and releasing the key
// storage of buckets. The default allocator utilizes Go's builtin make() and
// allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that key storage
// be freed then Table.Close must be called in order to ensure FreeKeys is
// called.
type Allocator interface {
	// AllocKeys should return a slice equivalent to make([]int64, 0, n). An
	// error fails the operation that needed the bucket with
	// ErrAllocationFailed.
	AllocKeys(n int) ([]int64, error)

	// FreeKeys can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []int64)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocKeys(n int) ([]int64, error) {
	return make([]int64, 0, n), nil
}

func (defaultAllocator) FreeKeys(v []int64) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(t *Table) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a Table.
func WithAllocator(allocator Allocator) option {
	return allocatorOption{allocator}
}
