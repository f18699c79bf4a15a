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
Package event provides the in-memory event representation of StreamCEP.

# Events

Two kinds of events flow through a deployed query:

• StreamEvent - one row of one stream with a timestamp and a kind tag
• StateEvent - a correlated event holding one StreamEvent slot per stream position

Both implement ComplexEvent.

# Pools

Events are borrowed from pools instead of being allocated per event. A pool is
an arena of fixed-shape slots addressed by handle plus a free list:

	pool := event.NewStreamEventPool(def, 64)
	ev := pool.Borrow()          // arity == def.Len(), values are stale
	ev.SetData("IBM", 75.6)
	...
	pool.Release(ev)             // ev must not be used afterwards

Borrow grows the arena when the free list is empty, it never fails. Pools are
safe for concurrent Borrow and Release.

# Chunks

A Chunk is an ordered batch handed from one stage to the next:

	chunk := event.NewChunk[event.ComplexEvent]()
	chunk.Add(ev)
	chunk.Reset()
	for chunk.HasNext() {
		e := chunk.Next()
		...
	}

Chunks recycle their internal nodes on Clear so that a stage can reuse one
chunk across batches.

# Conversion

A Converter maps events of another shape (another definition, a name-keyed
map, a positional row or a correlated event's output) into the canonical
definition expected downstream, coercing values to the declared attribute
types. Events already in canonical shape pass through without copying.
*/
package event
