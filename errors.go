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

import "errors"

var (
	// ErrCapacityExceeded is returned when a split would grow a directory
	// beyond its maximum depth. The table is left holding exactly the keys it
	// held before the failed Insert.
	ErrCapacityExceeded = errors.New("xuckoo: directory depth exceeds maximum")

	// ErrAllocationFailed is returned when the Allocator cannot provide key
	// storage for a new bucket.
	ErrAllocationFailed = errors.New("xuckoo: bucket allocation failed")

	// ErrInvalidCapacity is returned by New for a non-positive bucket
	// capacity.
	ErrInvalidCapacity = errors.New("xuckoo: bucket capacity must be positive")

	// ErrInvalidOption is returned by New when an option value is out of
	// range.
	ErrInvalidOption = errors.New("xuckoo: invalid option")
)
