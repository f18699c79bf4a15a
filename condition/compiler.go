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

package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/types"
)

// EventVariable is the name under which the base event at the matching
// stream index is visible to expressions.
const EventVariable = "event"

// StreamRef binds a stream alias to a slot of the correlated event.
type StreamRef struct {
	Alias      string
	Position   int
	Definition *types.Definition
}

// Compiler turns expressions into compiled conditions and update sets bound
// to one table and one correlated-event layout. It is used at deployment time
// only.
type Compiler struct {
	table    *types.Definition
	streams  []StreamRef
	matching StreamRef
	known    map[string]struct{}
}

// NewCompiler creates a compiler. streams must contain a reference for
// matchingStreamIndex; aliases may not shadow table columns.
func NewCompiler(table *types.Definition, matchingStreamIndex int, streams ...StreamRef) (*Compiler, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: compiler needs a table definition", types.ErrConfiguration)
	}
	c := &Compiler{
		table:   table,
		streams: streams,
		known:   make(map[string]struct{}, table.Len()+len(streams)+1),
	}
	for _, name := range table.Names() {
		c.known[name] = struct{}{}
	}
	found := false
	for _, ref := range streams {
		if ref.Definition == nil || ref.Position < 0 {
			return nil, fmt.Errorf("%w: invalid stream reference %q", types.ErrConfiguration, ref.Alias)
		}
		if ref.Position == matchingStreamIndex {
			c.matching = ref
			found = true
		}
		if ref.Alias == "" {
			continue
		}
		if _, clash := c.known[ref.Alias]; clash || ref.Alias == EventVariable {
			return nil, fmt.Errorf("%w: stream alias %q clashes with another name", types.ErrConfiguration, ref.Alias)
		}
		c.known[ref.Alias] = struct{}{}
	}
	if !found {
		return nil, fmt.Errorf("%w: no stream bound at matching stream index %d", types.ErrConfiguration, matchingStreamIndex)
	}
	c.known[EventVariable] = struct{}{}
	return c, nil
}

// Table 表结构
func (c *Compiler) Table() *types.Definition {
	return c.table
}

// MatchingStreamIndex 匹配流位置
func (c *Compiler) MatchingStreamIndex() int {
	return c.matching.Position
}

// CompileCondition compiles a boolean expression over table columns and
// stream attributes, e.g. "symbol == event.symbol && price < event.price".
func (c *Compiler) CompileCondition(expression string) (*ExprCondition, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: empty condition", types.ErrConfiguration)
	}
	program, err := c.compile(expression, expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &ExprCondition{compiler: c, expression: expression, program: program}, nil
}

// CompileUpdateSet compiles column assignments. Every column must exist and
// appear at most once.
func (c *Compiler) CompileUpdateSet(assignments []types.Assignment) (*ExprUpdateSet, error) {
	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: empty update set", types.ErrConfiguration)
	}
	set := &ExprUpdateSet{assignments: make([]compiledAssignment, 0, len(assignments))}
	seen := make(map[int]struct{}, len(assignments))
	for _, a := range assignments {
		pos, ok := c.table.Position(a.Column)
		if !ok {
			return nil, fmt.Errorf("%w: update set column %s not in table %s", types.ErrConfiguration, a.Column, c.table.ID())
		}
		if _, dup := seen[pos]; dup {
			return nil, fmt.Errorf("%w: column %s assigned twice", types.ErrConfiguration, a.Column)
		}
		seen[pos] = struct{}{}
		if strings.TrimSpace(a.Expression) == "" {
			return nil, fmt.Errorf("%w: empty expression for column %s", types.ErrConfiguration, a.Column)
		}
		program, err := c.compile(a.Expression)
		if err != nil {
			return nil, err
		}
		set.assignments = append(set.assignments, compiledAssignment{
			column:     pos,
			name:       a.Column,
			expression: a.Expression,
			program:    program,
		})
	}
	return set, nil
}

func (c *Compiler) compile(expression string, extra ...expr.Option) (*vm.Program, error) {
	if err := c.validate(expression); err != nil {
		return nil, err
	}
	options := append(baseOptions(), extra...)
	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", types.ErrConfiguration, expression, err)
	}
	return program, nil
}

// validate rejects identifiers that are neither columns, aliases, the event
// variable nor registered functions, and members of event or an alias that
// the bound stream does not define.
func (c *Compiler) validate(expression string) error {
	tree, err := parser.Parse(expression)
	if err != nil {
		return fmt.Errorf("%w: parse %q: %v", types.ErrConfiguration, expression, err)
	}
	collector := &identifierCollector{streams: c.streamDefinitions()}
	ast.Walk(&tree.Node, collector)

	var unknown []string
	for _, name := range collector.names {
		if _, ok := c.known[name]; ok {
			continue
		}
		if _, ok := functionNames[name]; ok {
			continue
		}
		unknown = append(unknown, name)
	}
	unknown = append(unknown, collector.members...)
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown names %v in %q", types.ErrConfiguration, unknown, expression)
	}
	return nil
}

// streamDefinitions maps event and every alias to the definition it exposes.
func (c *Compiler) streamDefinitions() map[string]*types.Definition {
	defs := make(map[string]*types.Definition, len(c.streams)+1)
	defs[EventVariable] = c.matching.Definition
	for _, ref := range c.streams {
		if ref.Alias != "" {
			defs[ref.Alias] = ref.Definition
		}
	}
	return defs
}

type identifierCollector struct {
	streams map[string]*types.Definition
	names   []string
	members []string
}

func (v *identifierCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.names = append(v.names, n.Value)
	case *ast.MemberNode:
		// event.x, event["x"] and alias.x
		owner, ok := n.Node.(*ast.IdentifierNode)
		if !ok {
			return
		}
		def, ok := v.streams[owner.Value]
		if !ok {
			return
		}
		prop, ok := n.Property.(*ast.StringNode)
		if !ok {
			return
		}
		if _, ok := def.Position(prop.Value); !ok {
			v.members = append(v.members, owner.Value+"."+prop.Value)
		}
	}
}

// NewEnv binds the stream side of an evaluation for one correlated event.
// The returned Env is scratch space for a single caller; row columns are
// bound with Env.Bind before each evaluation.
func (c *Compiler) NewEnv(se *event.StateEvent) *Env {
	vars := make(map[string]any, c.table.Len()+len(c.streams)+1)
	vars[EventVariable] = streamVars(se, c.matching)
	for _, ref := range c.streams {
		if ref.Alias != "" {
			vars[ref.Alias] = streamVars(se, ref)
		}
	}
	return &Env{vars: vars, columns: c.table.Names()}
}

func streamVars(se *event.StateEvent, ref StreamRef) map[string]any {
	if se == nil || ref.Position >= se.Size() {
		return nil
	}
	ev := se.Stream(ref.Position)
	if ev == nil {
		return nil
	}
	data := ev.Data()
	def := ref.Definition
	if evDef := ev.Definition(); evDef != nil {
		def = evDef
	}
	out := make(map[string]any, def.Len())
	for i := 0; i < def.Len() && i < len(data); i++ {
		out[def.Attribute(i).Name] = data[i]
	}
	return out
}

// Env is the variable environment of one evaluation.
type Env struct {
	vars    map[string]any
	columns []string
}

// Bind exposes a table row's columns to the next evaluation.
func (e *Env) Bind(row []any) {
	for i, name := range e.columns {
		if i < len(row) {
			e.vars[name] = row[i]
		} else {
			e.vars[name] = nil
		}
	}
}

// Lookup returns a bound variable, mainly for diagnostics.
func (e *Env) Lookup(name string) (any, bool) {
	v, ok := e.vars[name]
	return v, ok
}
