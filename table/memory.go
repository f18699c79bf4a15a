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
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/types"
	"github.com/rulego/streamcep/utils/cast"
)

type row struct {
	values []any
}

// InMemoryTable keeps rows in insertion order, with an optional primary-key
// index. Batch operations hold the write lock for the whole batch.
type InMemoryTable struct {
	mu         sync.RWMutex
	definition *types.TableDefinition
	rows       []*row
	index      map[string]*row
	log        logger.Logger
}

var _ Table = (*InMemoryTable)(nil)

// NewInMemoryTable 创建内存表
func NewInMemoryTable(def *types.TableDefinition) *InMemoryTable {
	t := &InMemoryTable{
		definition: def,
		log:        logger.Named("table:" + def.ID()),
	}
	if def.HasPrimaryKey() {
		t.index = make(map[string]*row)
	}
	return t
}

// FromConfig builds a table and loads its initial rows.
func FromConfig(cfg types.TableConfig) (*InMemoryTable, error) {
	def, err := cfg.Definition()
	if err != nil {
		return nil, err
	}
	t := NewInMemoryTable(def)
	if err := t.Load(cfg.Rows); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *InMemoryTable) Definition() *types.TableDefinition {
	return t.definition
}

// Load inserts rows given as column maps. Unknown columns are rejected.
func (t *InMemoryTable) Load(rows []map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range rows {
		values := make([]any, t.definition.Len())
		for name, v := range m {
			pos, ok := t.definition.Position(name)
			if !ok {
				return fmt.Errorf("%w: row %d: column %s not in table %s", types.ErrConfiguration, i, name, t.definition.ID())
			}
			values[pos] = v
		}
		if err := t.insertLocked(values); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// InsertRow 按列顺序插入一行
func (t *InMemoryTable) InsertRow(values ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	full := make([]any, t.definition.Len())
	copy(full, values)
	return t.insertLocked(full)
}

func (t *InMemoryTable) Insert(events *event.Chunk[*event.StateEvent], slot int, count int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	applied := 0
	events.Reset()
	for ; applied < count && events.HasNext(); applied++ {
		values, err := t.valuesFrom(events.Next(), slot)
		if err != nil {
			return err
		}
		if err := t.insertLocked(values); err != nil {
			return err
		}
	}
	t.log.Debug("inserted %d rows", applied)
	return nil
}

func (t *InMemoryTable) Delete(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, count int) error {
	if cond == nil {
		return fmt.Errorf("%w: delete on %s needs a condition", types.ErrConfiguration, t.definition.ID())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	deleted := 0
	events.Reset()
	for i := 0; i < count && events.HasNext(); i++ {
		matched, err := t.matchLocked(cond, cond.NewEnv(events.Next()))
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			continue
		}
		t.removeLocked(matched)
		deleted += len(matched)
	}
	t.log.Debug("deleted %d rows", deleted)
	return nil
}

func (t *InMemoryTable) Update(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, set condition.CompiledUpdateSet, count int) error {
	if cond == nil || set == nil {
		return fmt.Errorf("%w: update on %s needs a condition and an update set", types.ErrConfiguration, t.definition.ID())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	updated := 0
	events.Reset()
	for i := 0; i < count && events.HasNext(); i++ {
		n, err := t.updateLocked(events.Next(), cond, set)
		if err != nil {
			return err
		}
		updated += n
	}
	t.log.Debug("updated %d rows", updated)
	return nil
}

func (t *InMemoryTable) UpdateOrInsert(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, set condition.CompiledUpdateSet, slot int, count int) error {
	if cond == nil || set == nil {
		return fmt.Errorf("%w: update or insert on %s needs a condition and an update set", types.ErrConfiguration, t.definition.ID())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	updated, inserted := 0, 0
	events.Reset()
	for i := 0; i < count && events.HasNext(); i++ {
		se := events.Next()
		n, err := t.updateLocked(se, cond, set)
		if err != nil {
			return err
		}
		if n > 0 {
			updated += n
			continue
		}
		values, err := t.valuesFrom(se, slot)
		if err != nil {
			return err
		}
		if err := t.insertLocked(values); err != nil {
			return err
		}
		inserted++
	}
	t.log.Debug("updated %d rows, inserted %d rows", updated, inserted)
	return nil
}

// Size 当前行数
func (t *InMemoryTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns a snapshot of all rows in insertion order.
func (t *InMemoryTable) Rows() [][]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]any(nil), r.values...)
	}
	return out
}

// Find looks a row up by its primary key values, given in key order.
func (t *InMemoryTable) Find(key ...any) ([]any, bool) {
	if t.index == nil {
		return nil, false
	}
	pk := t.definition.PrimaryKey()
	if len(key) != len(pk) {
		return nil, false
	}
	coerced := make([]any, len(key))
	for i, pos := range pk {
		v, err := cast.To(key[i], t.definition.Attribute(pos).Type)
		if err != nil {
			return nil, false
		}
		coerced[i] = v
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.index[joinKey(coerced)]
	if !ok {
		return nil, false
	}
	return append([]any(nil), r.values...), true
}

// Truncate 清空表
func (t *InMemoryTable) Truncate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	if t.index != nil {
		t.index = make(map[string]*row)
	}
}

// valuesFrom maps the base event at slot onto the table columns by name.
func (t *InMemoryTable) valuesFrom(se *event.StateEvent, slot int) ([]any, error) {
	if se == nil || slot < 0 || slot >= se.Size() || se.Stream(slot) == nil {
		return nil, fmt.Errorf("%w: no base event at slot %d for table %s", types.ErrConversion, slot, t.definition.ID())
	}
	ev := se.Stream(slot)
	values := make([]any, t.definition.Len())
	def := ev.Definition()
	if def == nil || def.SameShape(t.definition.Definition) {
		copy(values, ev.Data())
		return values, nil
	}
	for i, name := range t.definition.Names() {
		if v, ok := ev.Get(name); ok {
			values[i] = v
		}
	}
	return values, nil
}

func (t *InMemoryTable) coerce(values []any) error {
	for i, v := range values {
		attr := t.definition.Attribute(i)
		c, err := cast.To(v, attr.Type)
		if err != nil {
			return fmt.Errorf("table %s column %s: %w", t.definition.ID(), attr.Name, err)
		}
		values[i] = c
	}
	return nil
}

func (t *InMemoryTable) insertLocked(values []any) error {
	if err := t.coerce(values); err != nil {
		return err
	}
	r := &row{values: values}
	if t.index != nil {
		key := t.keyOf(values)
		if _, exists := t.index[key]; exists {
			return fmt.Errorf("%w: duplicate primary key %s in table %s", types.ErrConstraintViolation, key, t.definition.ID())
		}
		t.index[key] = r
	}
	t.rows = append(t.rows, r)
	return nil
}

// matchLocked evaluates cond against every row before anything is mutated,
// so an evaluation failure leaves the current event unapplied.
func (t *InMemoryTable) matchLocked(cond condition.CompiledCondition, env *condition.Env) ([]*row, error) {
	var matched []*row
	for _, r := range t.rows {
		env.Bind(r.values)
		ok, err := cond.Matches(env)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (t *InMemoryTable) removeLocked(matched []*row) {
	drop := make(map[*row]struct{}, len(matched))
	for _, r := range matched {
		drop[r] = struct{}{}
		if t.index != nil {
			delete(t.index, t.keyOf(r.values))
		}
	}
	kept := t.rows[:0]
	for _, r := range t.rows {
		if _, ok := drop[r]; !ok {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
}

// updateLocked computes every new row for one event first and writes them
// only when all evaluations and constraint checks succeeded.
func (t *InMemoryTable) updateLocked(se *event.StateEvent, cond condition.CompiledCondition, set condition.CompiledUpdateSet) (int, error) {
	env := cond.NewEnv(se)
	type change struct {
		target *row
		values []any
		oldKey string
		newKey string
	}
	var changes []change
	var scratch []condition.SetValue
	for _, r := range t.rows {
		env.Bind(r.values)
		ok, err := cond.Matches(env)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		scratch, err = set.Apply(env, scratch[:0])
		if err != nil {
			return 0, err
		}
		values := append([]any(nil), r.values...)
		for _, sv := range scratch {
			values[sv.Column] = sv.Value
		}
		if err := t.coerce(values); err != nil {
			return 0, err
		}
		c := change{target: r, values: values}
		if t.index != nil {
			c.oldKey, c.newKey = t.keyOf(r.values), t.keyOf(values)
		}
		changes = append(changes, c)
	}
	if len(changes) == 0 {
		return 0, nil
	}

	if t.index != nil {
		// 主键变更时检查唯一性
		moving := make(map[string]struct{})
		for _, c := range changes {
			if c.oldKey != c.newKey {
				moving[c.oldKey] = struct{}{}
			}
		}
		claimed := make(map[string]struct{}, len(changes))
		for _, c := range changes {
			if _, dup := claimed[c.newKey]; dup {
				return 0, fmt.Errorf("%w: update produces duplicate primary key %s in table %s", types.ErrConstraintViolation, c.newKey, t.definition.ID())
			}
			claimed[c.newKey] = struct{}{}
			if c.oldKey == c.newKey {
				continue
			}
			if owner, exists := t.index[c.newKey]; exists && owner != c.target {
				if _, freed := moving[c.newKey]; !freed {
					return 0, fmt.Errorf("%w: update produces duplicate primary key %s in table %s", types.ErrConstraintViolation, c.newKey, t.definition.ID())
				}
			}
		}
		for _, c := range changes {
			if c.oldKey != c.newKey {
				delete(t.index, c.oldKey)
			}
		}
		for _, c := range changes {
			t.index[c.newKey] = c.target
		}
	}
	for _, c := range changes {
		c.target.values = c.values
	}
	return len(changes), nil
}

func (t *InMemoryTable) keyOf(values []any) string {
	pk := t.definition.PrimaryKey()
	key := make([]any, len(pk))
	for i, pos := range pk {
		key[i] = values[pos]
	}
	return joinKey(key)
}

// joinKey encodes key values as length-prefixed parts with a marker for
// nil, so nil, "" and values containing separators never collide.
func joinKey(values []any) string {
	var b strings.Builder
	for _, v := range values {
		if v == nil {
			b.WriteByte('~')
			continue
		}
		s := cast.ToString(v)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
