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
Package types provides core type definitions shared by all StreamCEP packages.

# Definitions

A Definition is the fixed, ordered shape of a stream or table row:

	def := types.MustDefinition("StockStream",
		types.Attribute{Name: "symbol", Type: types.STRING},
		types.Attribute{Name: "price", Type: types.DOUBLE},
	)

TableDefinition adds an optional primary key:

	td, err := types.NewTableDefinition(def, "symbol")

# Deployment Plans

Plans are written in YAML and describe tables and the output action of each query:

	tables:
	  - id: StockTable
	    primaryKey: [symbol]
	    attributes:
	      - {name: symbol, type: string}
	      - {name: price, type: double}
	queries:
	  - name: updatePrice
	    streams:
	      - id: StockStream
	        attributes:
	          - {name: symbol, type: string}
	          - {name: price, type: double}
	    output:
	      table: StockTable
	      action: update
	      on: "symbol == event.symbol"
	      set:
	        - {column: price, expression: "event.price"}

# Errors

Sentinel errors classify failures: ErrConfiguration (fatal at deployment),
ErrConversion, ErrTypeMismatch, ErrConstraintViolation and ErrEvaluation
(propagated from a batch). Callers match them with errors.Is.
*/
package types
