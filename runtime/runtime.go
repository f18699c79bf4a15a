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

// Package runtime deploys a query's output stage and feeds it batches.
//
// Deploy is the query-deployment boundary: it builds the pools, converters
// and compiled artifacts of one query and wires them into an output callback.
// Every mismatch is reported as types.ErrConfiguration and the query does not
// start.
package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/debugger"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/output"
	"github.com/rulego/streamcep/table"
	"github.com/rulego/streamcep/types"
)

type options struct {
	poolSize int
	debugger *debugger.Debugger
}

// Option 部署选项
type Option func(*options)

// WithPoolSize sets the initial capacity of the query's event pools when the
// query config does not specify one.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithDebugger attaches a debug hook to the output callback.
func WithDebugger(d *debugger.Debugger) Option {
	return func(o *options) {
		o.debugger = d
	}
}

// Runtime is a deployed query: its pools and its output callback.
type Runtime struct {
	name     string
	config   types.QueryConfig
	streams  []*types.Definition
	matching int

	// events emitted by callers are borrowed from inputPool
	input     *event.Converter
	inputPool *event.StreamEventPool
	callback  *output.TableCallback
	log       logger.Logger
}

// Deploy builds a query runtime from cfg, resolving the target table through tables.
func Deploy(cfg types.QueryConfig, tables table.Resolver, opts ...Option) (*Runtime, error) {
	o := options{poolSize: types.DefaultPoolConfig().InitialSize}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Pool.InitialSize > 0 {
		o.poolSize = cfg.Pool.InitialSize
	}
	if cfg.Name == "" {
		cfg.Name = "query-" + uuid.NewString()
	}
	if tables == nil {
		return nil, fmt.Errorf("%w: query %s: no table resolver", types.ErrConfiguration, cfg.Name)
	}
	if len(cfg.Streams) == 0 {
		return nil, fmt.Errorf("%w: query %s declares no streams", types.ErrConfiguration, cfg.Name)
	}
	out := cfg.Output
	if out.MatchingStreamIndex < 0 || out.MatchingStreamIndex >= len(cfg.Streams) {
		return nil, fmt.Errorf("%w: query %s: matching stream index %d outside %d streams",
			types.ErrConfiguration, cfg.Name, out.MatchingStreamIndex, len(cfg.Streams))
	}
	tbl, ok := tables.Table(out.Table)
	if !ok {
		return nil, fmt.Errorf("%w: query %s: table %q is not defined", types.ErrConfiguration, cfg.Name, out.Table)
	}

	streams := make([]*types.Definition, len(cfg.Streams))
	refs := make([]condition.StreamRef, len(cfg.Streams))
	for i, sc := range cfg.Streams {
		def, err := sc.Definition()
		if err != nil {
			return nil, fmt.Errorf("query %s stream %d: %w", cfg.Name, i, err)
		}
		streams[i] = def
		refs[i] = condition.StreamRef{Alias: sc.Alias, Position: i, Definition: def}
	}
	outputDef := streams[out.MatchingStreamIndex]
	tableDef := tbl.Definition()

	action, err := compileAction(out, tableDef.Definition, refs)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", cfg.Name, err)
	}
	if err := checkInsertable(action, outputDef, tableDef.Definition); err != nil {
		return nil, fmt.Errorf("query %s: %w", cfg.Name, err)
	}

	cbConfig := output.Config{
		QueryName:            cfg.Name,
		Action:               action,
		Table:                tbl,
		MatchingStreamIndex:  out.MatchingStreamIndex,
		ConvertToStreamEvent: out.ConvertToStreamEvent,
		StatePool:            event.NewStateEventPool(len(streams), o.poolSize),
		Debugger:             o.debugger,
	}
	if out.ConvertToStreamEvent {
		// converted events take the shape the condition and update set were compiled against
		conv, err := event.NewConverter(outputDef, outputDef)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", cfg.Name, err)
		}
		cbConfig.Converter = conv
		cbConfig.StreamPool = event.NewStreamEventPool(outputDef, o.poolSize)
	}
	callback, err := output.NewTableCallback(cbConfig)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", cfg.Name, err)
	}

	input, err := event.NewConverter(nil, outputDef)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", cfg.Name, err)
	}
	r := &Runtime{
		name:      cfg.Name,
		config:    cfg,
		streams:   streams,
		matching:  out.MatchingStreamIndex,
		input:     input,
		inputPool: event.NewStreamEventPool(outputDef, o.poolSize),
		callback:  callback,
		log:       logger.Named("query:" + cfg.Name),
	}
	r.log.Info("deployed %s into %s", action.Name(), tableDef.ID())
	return r, nil
}

// compileAction compiles only the artifacts the declared action uses.
func compileAction(out types.OutputConfig, tableDef *types.Definition, refs []condition.StreamRef) (output.Action, error) {
	var (
		cond condition.CompiledCondition
		set  condition.CompiledUpdateSet
	)
	if out.On != "" || len(out.Set) > 0 {
		compiler, err := condition.NewCompiler(tableDef, out.MatchingStreamIndex, refs...)
		if err != nil {
			return nil, err
		}
		if out.On != "" {
			c, err := compiler.CompileCondition(out.On)
			if err != nil {
				return nil, err
			}
			cond = c
		}
		if len(out.Set) > 0 {
			s, err := compiler.CompileUpdateSet(out.Set)
			if err != nil {
				return nil, err
			}
			set = s
		}
	}
	return output.NewAction(out.Action, cond, set)
}

// checkInsertable rejects inserting actions whose base events share no
// attribute with the table, since inserted rows are filled by name.
func checkInsertable(action output.Action, stream, tableDef *types.Definition) error {
	switch action.(type) {
	case output.Insert, output.UpdateOrInsert:
	default:
		return nil
	}
	for _, name := range stream.Names() {
		if _, ok := tableDef.Position(name); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: stream %s shares no attribute with table %s", types.ErrConfiguration, stream.ID(), tableDef.ID())
}

// Name 查询名称
func (r *Runtime) Name() string {
	return r.name
}

// Config 部署时使用的查询配置
func (r *Runtime) Config() types.QueryConfig {
	return r.config
}

// OutputDefinition is the shape of the events the query emits.
func (r *Runtime) OutputDefinition() *types.Definition {
	return r.streams[r.matching]
}

// Callback 输出回调
func (r *Runtime) Callback() *output.TableCallback {
	return r.callback
}

// Send hands a caller-built chunk to the output callback unchanged.
func (r *Runtime) Send(chunk *event.Chunk[event.ComplexEvent], count int) error {
	return r.callback.Send(chunk, count)
}

// Emit turns rows into one batch of pooled events and sends it. Rows are
// keyed by attribute name of the output stream.
func (r *Runtime) Emit(ctx context.Context, rows []map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	chunk := event.NewChunk[event.ComplexEvent]()
	borrowed := make([]*event.StreamEvent, 0, len(rows))
	defer func() {
		for _, ev := range borrowed {
			r.inputPool.Release(ev)
		}
	}()
	for i, row := range rows {
		ev, _, err := r.input.Convert(row, r.inputPool)
		if err != nil {
			return fmt.Errorf("query %s row %d: %w", r.name, i, err)
		}
		borrowed = append(borrowed, ev)
		chunk.Add(ev)
	}
	return r.callback.Send(chunk, len(rows))
}

// EmitPartitioned emits every partition concurrently, one goroutine per
// partition, all against the same output callback. The first error cancels
// the partitions that have not started yet and is returned.
func (r *Runtime) EmitPartitioned(ctx context.Context, partitions [][]map[string]any) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, rows := range partitions {
		rows := rows
		g.Go(func() error {
			return r.Emit(ctx, rows)
		})
	}
	return g.Wait()
}

// Stats 查询运行统计
func (r *Runtime) Stats() map[string]interface{} {
	stats := r.callback.Stats().GetDetailedStats()
	stats["input_pool"] = r.inputPool.Stats()
	return stats
}
