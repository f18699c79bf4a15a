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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAttributeType 测试属性类型解析
func TestParseAttributeType(t *testing.T) {
	tests := map[string]AttributeType{
		"string":  STRING,
		"TEXT":    STRING,
		"int32":   INT,
		"bigint":  LONG,
		"float":   FLOAT,
		"float64": DOUBLE,
		"Boolean": BOOL,
		"":        OBJECT,
	}
	for in, want := range tests {
		got, err := ParseAttributeType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAttributeType("blob")
	assert.True(t, errors.Is(err, ErrConfiguration))
}

// TestDefinition_Basic 测试结构定义
func TestDefinition_Basic(t *testing.T) {
	d, err := NewDefinition("Stock",
		Attribute{Name: "symbol", Type: "text"},
		Attribute{Name: "price", Type: DOUBLE},
	)
	require.NoError(t, err)
	assert.Equal(t, "Stock", d.ID())
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"symbol", "price"}, d.Names())
	assert.Equal(t, STRING, d.Attribute(0).Type)
	pos, ok := d.Position("price")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = d.Position("volume")
	assert.False(t, ok)
	assert.Equal(t, "Stock(symbol string, price double)", d.String())

	attrs := d.Attributes()
	attrs[0].Name = "changed"
	assert.Equal(t, "symbol", d.Attribute(0).Name)
}

// TestDefinition_Errors 测试非法结构定义
func TestDefinition_Errors(t *testing.T) {
	_, err := NewDefinition("S", Attribute{Type: INT})
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = NewDefinition("S", Attribute{Name: "a", Type: INT}, Attribute{Name: "a", Type: LONG})
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Panics(t, func() { MustDefinition("S", Attribute{Name: "a", Type: "blob"}) })
}

// TestDefinition_SameShape 测试结构比较
func TestDefinition_SameShape(t *testing.T) {
	a := MustDefinition("A", Attribute{Name: "x", Type: INT}, Attribute{Name: "y", Type: STRING})
	b := MustDefinition("B", Attribute{Name: "x", Type: "int32"}, Attribute{Name: "y", Type: STRING})
	c := MustDefinition("C", Attribute{Name: "y", Type: STRING}, Attribute{Name: "x", Type: INT})
	assert.True(t, a.SameShape(b))
	assert.False(t, a.SameShape(c))
	assert.False(t, a.SameShape(nil))
	assert.True(t, a.SameShape(a))
}

// TestTableDefinition 测试表定义与主键
func TestTableDefinition(t *testing.T) {
	td, err := TableConfig{
		ID:         "T",
		Attributes: []Attribute{{Name: "id", Type: INT}, {Name: "qty", Type: INT}},
		PrimaryKey: []string{"id"},
	}.Definition()
	require.NoError(t, err)
	assert.True(t, td.HasPrimaryKey())
	assert.Equal(t, []int{0}, td.PrimaryKey())

	_, err = TableConfig{ID: "T", Attributes: []Attribute{{Name: "id", Type: INT}}, PrimaryKey: []string{"code"}}.Definition()
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = TableConfig{Attributes: []Attribute{{Name: "id", Type: INT}}}.Definition()
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = NewTableDefinition(nil)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
