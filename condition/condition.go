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

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/types"
)

// CompiledCondition is a predicate over (correlated event, table row),
// produced once at deployment and evaluated per row afterwards.
// Implementations are immutable and safe for concurrent use.
type CompiledCondition interface {
	// MatchingStreamIndex is the slot whose base event the condition reads as "event".
	MatchingStreamIndex() int
	// NewEnv binds the correlated event; the Env is then reused for each row.
	NewEnv(se *event.StateEvent) *Env
	// Matches evaluates the condition against the row bound in env.
	Matches(env *Env) (bool, error)
}

// SetValue is one entry of a mutated-row description: the new value of a
// table column. The table performs the actual write.
type SetValue struct {
	Column int
	Value  any
}

// CompiledUpdateSet is a precompiled list of column assignments.
type CompiledUpdateSet interface {
	// Apply evaluates every assignment against the row bound in env and
	// appends the results to dst. All assignments read the row as it was
	// before the update.
	Apply(env *Env, dst []SetValue) ([]SetValue, error)
	// Columns lists the assigned column positions.
	Columns() []int
}

// ExprCondition is a CompiledCondition backed by an expr-lang program.
type ExprCondition struct {
	compiler   *Compiler
	expression string
	program    *vm.Program
}

var _ CompiledCondition = (*ExprCondition)(nil)

func (c *ExprCondition) MatchingStreamIndex() int {
	return c.compiler.MatchingStreamIndex()
}

func (c *ExprCondition) NewEnv(se *event.StateEvent) *Env {
	return c.compiler.NewEnv(se)
}

func (c *ExprCondition) Matches(env *Env) (bool, error) {
	result, err := expr.Run(c.program, env.vars)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", types.ErrEvaluation, c.expression, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s returned %T", types.ErrEvaluation, c.expression, result)
	}
	return matched, nil
}

// String 返回原始表达式
func (c *ExprCondition) String() string {
	return c.expression
}

type compiledAssignment struct {
	column     int
	name       string
	expression string
	program    *vm.Program
}

// ExprUpdateSet is a CompiledUpdateSet backed by expr-lang programs.
type ExprUpdateSet struct {
	assignments []compiledAssignment
}

var _ CompiledUpdateSet = (*ExprUpdateSet)(nil)

func (s *ExprUpdateSet) Apply(env *Env, dst []SetValue) ([]SetValue, error) {
	for _, a := range s.assignments {
		value, err := expr.Run(a.program, env.vars)
		if err != nil {
			return dst, fmt.Errorf("%w: set %s = %s: %v", types.ErrEvaluation, a.name, a.expression, err)
		}
		dst = append(dst, SetValue{Column: a.column, Value: value})
	}
	return dst, nil
}

func (s *ExprUpdateSet) Columns() []int {
	cols := make([]int, len(s.assignments))
	for i, a := range s.assignments {
		cols[i] = a.column
	}
	return cols
}

// functionNames 表达式中可用的自定义函数
var functionNames = map[string]struct{}{
	"like_match":  {},
	"is_null":     {},
	"is_not_null": {},
}

func baseOptions() []expr.Option {
	// 添加自定义字符串函数支持（startsWith、endsWith、contains是内置操作符）
	return []expr.Option{
		expr.Function("like_match", func(params ...any) (any, error) {
			if len(params) != 2 {
				return false, fmt.Errorf("like_match function requires 2 parameters")
			}
			text, ok1 := params[0].(string)
			pattern, ok2 := params[1].(string)
			if !ok1 || !ok2 {
				return false, fmt.Errorf("like_match function requires string parameters")
			}
			return matchesLikePattern(text, pattern), nil
		}),
		expr.Function("is_null", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("is_null function requires 1 parameter")
			}
			return params[0] == nil, nil
		}),
		expr.Function("is_not_null", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("is_not_null function requires 1 parameter")
			}
			return params[0] != nil, nil
		}),
		expr.AllowUndefinedVariables(),
	}
}

// matchesLikePattern 实现LIKE模式匹配
// 支持%（匹配任意字符序列）和_（匹配单个字符）
func matchesLikePattern(text, pattern string) bool {
	return likeMatch(text, pattern, 0, 0)
}

// likeMatch 递归实现LIKE匹配算法
func likeMatch(text, pattern string, textIndex, patternIndex int) bool {
	if patternIndex >= len(pattern) {
		return textIndex >= len(text)
	}

	// 文本已结束，剩余模式必须全部是%
	if textIndex >= len(text) {
		for i := patternIndex; i < len(pattern); i++ {
			if pattern[i] != '%' {
				return false
			}
		}
		return true
	}

	switch patternChar := pattern[patternIndex]; patternChar {
	case '%':
		// %可以匹配0个或多个字符
		for i := textIndex; i <= len(text); i++ {
			if likeMatch(text, pattern, i, patternIndex+1) {
				return true
			}
		}
		return false
	case '_':
		return likeMatch(text, pattern, textIndex+1, patternIndex+1)
	default:
		if text[textIndex] == patternChar {
			return likeMatch(text, pattern, textIndex+1, patternIndex+1)
		}
		return false
	}
}
