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

package output

import (
	"fmt"
	"strings"

	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/types"
)

// Action is the table mutation an output callback performs. The set of
// variants is closed: Insert, Delete, Update and UpdateOrInsert.
type Action interface {
	Name() string
	validate() error
}

// Insert appends the base event at the matching stream index as a new row.
type Insert struct{}

// Delete removes the rows matching Condition.
type Delete struct {
	Condition condition.CompiledCondition
}

// Update applies Set to the rows matching Condition.
type Update struct {
	Condition condition.CompiledCondition
	Set       condition.CompiledUpdateSet
}

// UpdateOrInsert is Update, falling back to Insert when nothing matches.
type UpdateOrInsert struct {
	Condition condition.CompiledCondition
	Set       condition.CompiledUpdateSet
}

func (Insert) Name() string         { return types.ActionInsert }
func (Delete) Name() string         { return types.ActionDelete }
func (Update) Name() string         { return types.ActionUpdate }
func (UpdateOrInsert) Name() string { return types.ActionUpdateOrInsert }

func (Insert) validate() error { return nil }

func (a Delete) validate() error {
	if a.Condition == nil {
		return fmt.Errorf("%w: delete requires a compiled condition", types.ErrConfiguration)
	}
	return nil
}

func (a Update) validate() error {
	return requireBoth(a.Name(), a.Condition, a.Set)
}

func (a UpdateOrInsert) validate() error {
	return requireBoth(a.Name(), a.Condition, a.Set)
}

func requireBoth(name string, cond condition.CompiledCondition, set condition.CompiledUpdateSet) error {
	if cond == nil {
		return fmt.Errorf("%w: %s requires a compiled condition", types.ErrConfiguration, name)
	}
	if set == nil {
		return fmt.Errorf("%w: %s requires a compiled update set", types.ErrConfiguration, name)
	}
	return nil
}

// NewAction builds the variant named by name from compiled artifacts.
// Artifacts a variant does not use must be nil.
func NewAction(name string, cond condition.CompiledCondition, set condition.CompiledUpdateSet) (Action, error) {
	var a Action
	switch strings.ToLower(strings.TrimSpace(name)) {
	case types.ActionInsert, "":
		if cond != nil || set != nil {
			return nil, fmt.Errorf("%w: insert takes no condition or update set", types.ErrConfiguration)
		}
		a = Insert{}
	case types.ActionDelete:
		if set != nil {
			return nil, fmt.Errorf("%w: delete takes no update set", types.ErrConfiguration)
		}
		a = Delete{Condition: cond}
	case types.ActionUpdate:
		a = Update{Condition: cond, Set: set}
	case types.ActionUpdateOrInsert, "upsert":
		a = UpdateOrInsert{Condition: cond, Set: set}
	default:
		return nil, fmt.Errorf("%w: unknown output action %q", types.ErrConfiguration, name)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// conditionOf returns the condition carried by a, if any.
func conditionOf(a Action) condition.CompiledCondition {
	switch v := a.(type) {
	case Delete:
		return v.Condition
	case Update:
		return v.Condition
	case UpdateOrInsert:
		return v.Condition
	}
	return nil
}
