/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package table

import (
	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/types"
)

// Table is the mutable sink of an output callback.
//
// Every mutation is a batch call: at most count leading events of the chunk
// are applied, one after another. The first failure aborts the batch and
// mutations of earlier events stay applied. Implementations must be safe for
// concurrent use by independent callers.
type Table interface {
	// Definition 表结构
	Definition() *types.TableDefinition
	// Insert appends one row per event, built from the base event at slot.
	Insert(events *event.Chunk[*event.StateEvent], slot int, count int) error
	// Delete removes, for each event, every row matching cond. No match is not an error.
	Delete(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, count int) error
	// Update applies set to every row matching cond. No match is not an error.
	Update(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, set condition.CompiledUpdateSet, count int) error
	// UpdateOrInsert behaves like Update, and inserts the base event at slot
	// when cond matches no row for that event.
	UpdateOrInsert(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, set condition.CompiledUpdateSet, slot int, count int) error
}

// Resolver looks up tables by id.
type Resolver interface {
	Table(id string) (Table, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(id string) (Table, bool)

func (f ResolverFunc) Table(id string) (Table, bool) {
	return f(id)
}
