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
Package table provides the mutable sinks that output callbacks write to.

The Table interface has one batch operation per output action: Insert,
Delete, Update and UpdateOrInsert. Each receives a chunk of correlated
events plus a count and applies at most count leading events.

InMemoryTable is the bundled implementation:

• rows kept in insertion order, values coerced to the declared column types
• optional primary key with a uniqueness index (types.ErrConstraintViolation)
• each event is applied atomically; a failing event aborts the batch and
  earlier events of the batch stay applied
• Size, Rows, Find and Truncate for inspection

	def, _ := types.NewTableDefinition(types.MustDefinition("StockTable",
		types.Attribute{Name: "symbol", Type: types.STRING},
		types.Attribute{Name: "volume", Type: types.LONG},
	), "symbol")
	t := table.NewInMemoryTable(def)
*/
package table
