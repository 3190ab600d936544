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
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSyncTable(t *testing.T) {
	const (
		preloaded = 1000
		inserted  = 20000
		readers   = 4
	)

	s, err := NewSync(4, WithSeed(1))
	require.NoError(t, err)
	for k := int64(0); k < preloaded; k++ {
		ok, err := s.Insert(k)
		require.NoError(t, err)
		require.True(t, ok)
	}

	var g errgroup.Group
	g.Go(func() error {
		for k := int64(preloaded); k < inserted; k++ {
			if ok, err := s.Insert(k); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("key %d already present", k)
			}
		}
		return nil
	})
	for r := 0; r < readers; r++ {
		g.Go(func() error {
			for i := 0; i < 10*preloaded; i++ {
				k := int64(i % preloaded)
				if !s.Lookup(k) {
					return fmt.Errorf("key %d missing", k)
				}
				if stats := s.Stats(); stats.TotalKeys < preloaded {
					return fmt.Errorf("only %d keys", stats.TotalKeys)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, inserted, s.Len())
	var n int
	s.All(func(int64) bool {
		n++
		return true
	})
	require.Equal(t, inserted, n)
	s.Close()
}

func TestNewSyncInvalid(t *testing.T) {
	_, err := NewSync(0)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}
