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

package types

import (
	"fmt"
	"strings"
)

// AttributeType 属性类型
type AttributeType string

const (
	STRING = AttributeType("string")
	INT    = AttributeType("int")
	LONG   = AttributeType("long")
	FLOAT  = AttributeType("float")
	DOUBLE = AttributeType("double")
	BOOL   = AttributeType("bool")
	OBJECT = AttributeType("object")
)

// ParseAttributeType parses a type name, case-insensitive.
// Common aliases such as "int64", "float64" and "boolean" are accepted.
func ParseAttributeType(s string) (AttributeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return STRING, nil
	case "int", "int32", "integer":
		return INT, nil
	case "long", "int64", "bigint":
		return LONG, nil
	case "float", "float32":
		return FLOAT, nil
	case "double", "float64":
		return DOUBLE, nil
	case "bool", "boolean":
		return BOOL, nil
	case "object", "any", "":
		return OBJECT, nil
	default:
		return "", fmt.Errorf("%w: unknown attribute type %q", ErrConfiguration, s)
	}
}

// Attribute 属性定义
type Attribute struct {
	Name string        `json:"name" yaml:"name"`
	Type AttributeType `json:"type" yaml:"type"`
}

// Definition is the fixed shape of a stream or table row: an ordered list
// of typed attributes. It is immutable once built.
type Definition struct {
	id         string
	attributes []Attribute
	positions  map[string]int
}

// NewDefinition builds a definition, rejecting empty and duplicate names.
func NewDefinition(id string, attributes ...Attribute) (*Definition, error) {
	d := &Definition{
		id:         id,
		attributes: make([]Attribute, 0, len(attributes)),
		positions:  make(map[string]int, len(attributes)),
	}
	for _, attr := range attributes {
		if attr.Name == "" {
			return nil, fmt.Errorf("%w: definition %s has an attribute without name", ErrConfiguration, id)
		}
		if _, exists := d.positions[attr.Name]; exists {
			return nil, fmt.Errorf("%w: definition %s has duplicate attribute %s", ErrConfiguration, id, attr.Name)
		}
		t, err := ParseAttributeType(string(attr.Type))
		if err != nil {
			return nil, err
		}
		d.positions[attr.Name] = len(d.attributes)
		d.attributes = append(d.attributes, Attribute{Name: attr.Name, Type: t})
	}
	return d, nil
}

// MustDefinition is NewDefinition that panics on error, used for static schemas and tests.
func MustDefinition(id string, attributes ...Attribute) *Definition {
	d, err := NewDefinition(id, attributes...)
	if err != nil {
		panic(err)
	}
	return d
}

// ID 定义标识
func (d *Definition) ID() string {
	return d.id
}

// Len 属性个数
func (d *Definition) Len() int {
	return len(d.attributes)
}

// Attributes returns a copy of the attribute list.
func (d *Definition) Attributes() []Attribute {
	out := make([]Attribute, len(d.attributes))
	copy(out, d.attributes)
	return out
}

// Attribute returns the attribute at position i.
func (d *Definition) Attribute(i int) Attribute {
	return d.attributes[i]
}

// Position returns the position of the named attribute.
func (d *Definition) Position(name string) (int, bool) {
	pos, ok := d.positions[name]
	return pos, ok
}

// Names returns attribute names in order.
func (d *Definition) Names() []string {
	names := make([]string, len(d.attributes))
	for i, attr := range d.attributes {
		names[i] = attr.Name
	}
	return names
}

// SameShape reports whether both definitions carry identical names and types in the same order.
func (d *Definition) SameShape(other *Definition) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil || len(d.attributes) != len(other.attributes) {
		return false
	}
	for i := range d.attributes {
		if d.attributes[i] != other.attributes[i] {
			return false
		}
	}
	return true
}

func (d *Definition) String() string {
	parts := make([]string, len(d.attributes))
	for i, attr := range d.attributes {
		parts[i] = attr.Name + " " + string(attr.Type)
	}
	return d.id + "(" + strings.Join(parts, ", ") + ")"
}

// TableDefinition 表结构定义，主键可选
type TableDefinition struct {
	*Definition
	primaryKey []int
}

// NewTableDefinition builds a table definition; primary key columns must exist.
func NewTableDefinition(def *Definition, primaryKey ...string) (*TableDefinition, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: table definition is nil", ErrConfiguration)
	}
	td := &TableDefinition{Definition: def}
	for _, name := range primaryKey {
		pos, ok := def.Position(name)
		if !ok {
			return nil, fmt.Errorf("%w: primary key column %s not found in table %s", ErrConfiguration, name, def.ID())
		}
		td.primaryKey = append(td.primaryKey, pos)
	}
	return td, nil
}

// PrimaryKey returns primary key column positions, empty when the table has none.
func (td *TableDefinition) PrimaryKey() []int {
	return td.primaryKey
}

// HasPrimaryKey 是否定义了主键
func (td *TableDefinition) HasPrimaryKey() bool {
	return len(td.primaryKey) > 0
}
