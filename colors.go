/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

const (
	// channel values are drawn from [minColorChannel, maxColorChannel)
	minColorChannel = 55
	maxColorChannel = 255
)

// ColorStore persists a user's reason -> color assignments. AddColors must
// keep any color already stored for a reason and return the full stored map.
type ColorStore interface {
	GetColors(ctx context.Context, userID string) (map[string]string, error)
	AddColors(ctx context.Context, userID string, colors map[string]string) (map[string]string, error)
}

// ColorGenerator produces a CSS color string for a new reason.
type ColorGenerator func() string

// RandomColor returns rgb(r, g, b) with every channel in [55, 255).
func RandomColor() string {
	channel := func() int {
		return minColorChannel + rand.Intn(maxColorChannel-minColorChannel)
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", channel(), channel(), channel())
}

// MemoryColorStore keeps color maps in process memory.
type MemoryColorStore struct {
	mu     sync.RWMutex
	colors map[string]map[string]string
}

func NewMemoryColorStore() *MemoryColorStore {
	return &MemoryColorStore{colors: make(map[string]map[string]string)}
}

func (m *MemoryColorStore) GetColors(_ context.Context, userID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	colors := make(map[string]string, len(m.colors[userID]))
	for reason, color := range m.colors[userID] {
		colors[reason] = color
	}
	return colors, nil
}

func (m *MemoryColorStore) AddColors(_ context.Context, userID string, colors map[string]string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.colors[userID]
	if !ok {
		stored = make(map[string]string, len(colors))
		m.colors[userID] = stored
	}
	for reason, color := range colors {
		if _, ok := stored[reason]; !ok {
			stored[reason] = color
		}
	}
	merged := make(map[string]string, len(stored))
	for reason, color := range stored {
		merged[reason] = color
	}
	return merged, nil
}

// assignColors returns a color for every reason. New colors are generated
// only for reasons the store has none for, and the store keeps whichever
// color was written first, so concurrent reports agree.
func (t *Tally) assignColors(ctx context.Context, userID string, reasons []string) (map[string]string, error) {
	colors, err := t.colors.GetColors(ctx, userID)
	if err != nil {
		return nil, err
	}
	missing := missingReasons(colors, reasons)
	if len(missing) == 0 {
		return colors, nil
	}

	generated := make(map[string]string, len(missing))
	for _, reason := range missing {
		generated[reason] = t.newColor()
	}
	return t.colors.AddColors(ctx, userID, generated)
}

func missingReasons(colors map[string]string, reasons []string) []string {
	var missing []string
	for _, reason := range reasons {
		if _, ok := colors[reason]; !ok {
			missing = append(missing, reason)
		}
	}
	return missing
}
