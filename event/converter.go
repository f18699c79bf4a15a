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

package event

import (
	"fmt"
	"time"

	"github.com/rulego/streamcep/types"
	"github.com/rulego/streamcep/utils/cast"
)

// Converter normalizes events of varying shape into base events of one
// canonical (target) definition. It holds no mutable state and is safe for
// concurrent use.
type Converter struct {
	source   *types.Definition
	target   *types.Definition
	mapping  []int // target position -> source position, -1 when absent
	missing  []string
	identity bool
}

// NewConverter builds a converter from source to target. A nil source means
// the converter only accepts name-keyed maps and events carrying their own
// definition. Attributes of target absent in source convert to nil; a source
// sharing no attribute with target is a configuration error.
func NewConverter(source, target *types.Definition) (*Converter, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: converter target definition is nil", types.ErrConfiguration)
	}
	c := &Converter{source: source, target: target}
	if source == nil {
		return c, nil
	}
	c.identity = source.SameShape(target)
	c.mapping = make([]int, target.Len())
	matched := 0
	for i := 0; i < target.Len(); i++ {
		name := target.Attribute(i).Name
		if pos, ok := source.Position(name); ok {
			c.mapping[i] = pos
			matched++
		} else {
			c.mapping[i] = -1
			c.missing = append(c.missing, name)
		}
	}
	if matched == 0 && target.Len() > 0 {
		return nil, fmt.Errorf("%w: %s shares no attribute with %s", types.ErrConfiguration, source.ID(), target.ID())
	}
	return c, nil
}

// Source 源结构，可能为nil
func (c *Converter) Source() *types.Definition {
	return c.source
}

// Target 目标结构
func (c *Converter) Target() *types.Definition {
	return c.target
}

// IsIdentity reports whether source and target share the same shape, in
// which case source events pass through Convert untouched.
func (c *Converter) IsIdentity() bool {
	return c.identity
}

// Missing lists target attributes the source cannot supply.
func (c *Converter) Missing() []string {
	return c.missing
}

// Convert returns a base event in the target shape.
//
// A *StreamEvent already in the target shape is returned unchanged with
// borrowed=false. Otherwise an event is borrowed from pool and filled;
// the caller releases it when done. Supported sources: *StreamEvent,
// *StateEvent (its output data), map[string]any and []any.
func (c *Converter) Convert(src any, pool *StreamEventPool) (*StreamEvent, bool, error) {
	switch v := src.(type) {
	case *StreamEvent:
		if v == nil {
			return nil, false, fmt.Errorf("%w: nil event", types.ErrConversion)
		}
		if v.definition != nil && v.definition.SameShape(c.target) {
			return v, false, nil
		}
		def := v.definition
		if def == nil {
			def = c.source
		}
		return c.fromRow(v.data, def, v.timestamp, v.kind, pool)
	case *StateEvent:
		if v == nil || v.output == nil {
			return nil, false, fmt.Errorf("%w: correlated event has no output data", types.ErrConversion)
		}
		return c.fromRow(v.output, c.source, v.timestamp, v.kind, pool)
	case map[string]any:
		return c.fromMap(v, pool)
	case []any:
		return c.fromRow(v, c.source, time.Now().UnixMilli(), Current, pool)
	default:
		return nil, false, fmt.Errorf("%w: unsupported event type %T", types.ErrConversion, src)
	}
}

func (c *Converter) fromRow(row []any, def *types.Definition, ts int64, kind Kind, pool *StreamEventPool) (*StreamEvent, bool, error) {
	out := pool.Borrow()
	out.timestamp = ts
	out.kind = kind
	for i := 0; i < c.target.Len(); i++ {
		pos := c.sourcePosition(def, i)
		var value any
		if pos >= 0 && pos < len(row) {
			value = row[pos]
		}
		if err := c.set(out, i, value); err != nil {
			pool.Release(out)
			return nil, false, err
		}
	}
	return out, true, nil
}

func (c *Converter) fromMap(row map[string]any, pool *StreamEventPool) (*StreamEvent, bool, error) {
	out := pool.Borrow()
	out.timestamp = time.Now().UnixMilli()
	out.kind = Current
	for i := 0; i < c.target.Len(); i++ {
		if err := c.set(out, i, row[c.target.Attribute(i).Name]); err != nil {
			pool.Release(out)
			return nil, false, err
		}
	}
	return out, true, nil
}

// sourcePosition resolves where target attribute i lives in def.
// Rows without a definition are read positionally.
func (c *Converter) sourcePosition(def *types.Definition, i int) int {
	switch {
	case def == nil:
		return i
	case def == c.source && c.mapping != nil:
		return c.mapping[i]
	default:
		if pos, ok := def.Position(c.target.Attribute(i).Name); ok {
			return pos
		}
		return -1
	}
}

func (c *Converter) set(out *StreamEvent, i int, value any) error {
	attr := c.target.Attribute(i)
	converted, err := cast.To(value, attr.Type)
	if err != nil {
		return fmt.Errorf("%w: attribute %s of %s: %v", types.ErrConversion, attr.Name, c.target.ID(), err)
	}
	out.data[i] = converted
	return nil
}
