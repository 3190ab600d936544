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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	for _, k := range []int64{0, 1, -1, 1 << 40, -(1 << 62)} {
		require.Equal(t, Hash1(k), Hash1(k))
		require.Equal(t, Hash2(k), Hash2(k))
		require.NotEqual(t, Hash1(k), Hash2(k))
	}
}

func TestHashLowBits(t *testing.T) {
	// Addressing only consumes the low bits, so these must be well mixed
	// even for sequential keys, and independent between the two functions.
	const n = 4096
	seen1 := make(map[uint64]bool)
	seen2 := make(map[uint64]bool)
	pairs := make(map[[2]uint64]bool)
	for k := int64(0); k < n; k++ {
		a, b := Hash1(k)&0xff, Hash2(k)&0xff
		seen1[a] = true
		seen2[b] = true
		pairs[[2]uint64{a & 0xf, b & 0xf}] = true
	}
	require.Greater(t, len(seen1), 240)
	require.Greater(t, len(seen2), 240)
	require.Greater(t, len(pairs), 240)
}
