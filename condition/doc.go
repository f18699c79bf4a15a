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

/*
Package condition compiles the "on" conditions and "set" clauses of table
outputs into expr-lang programs.

A Compiler is bound to one table definition and to the layout of the
correlated events that reach the table. Expressions may reference:

• table columns by bare name, e.g. symbol
• the base event at the matching stream index as event, e.g. event.symbol
• any aliased stream slot by its alias, e.g. s.price
• like_match, is_null and is_not_null plus the expr-lang builtins

Unknown names are rejected at compile time with types.ErrConfiguration.
Runtime failures wrap types.ErrEvaluation.

# Usage

	compiler, _ := condition.NewCompiler(tableDef, 0,
		condition.StreamRef{Alias: "s", Position: 0, Definition: streamDef})
	cond, _ := compiler.CompileCondition("symbol == event.symbol")
	set, _ := compiler.CompileUpdateSet([]types.Assignment{
		{Column: "volume", Expression: "volume + event.volume"},
	})

	env := cond.NewEnv(stateEvent)
	env.Bind(row)
	if ok, _ := cond.Matches(env); ok {
		values, _ := set.Apply(env, nil)
		// write values into row
	}

Compiled conditions and update sets are immutable and may be shared by
concurrent callers; an Env must not be.
*/
package condition
