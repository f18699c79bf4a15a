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

package streamcep

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rulego/streamcep/debugger"
	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/repository"
	"github.com/rulego/streamcep/runtime"
	"github.com/rulego/streamcep/table"
	"github.com/rulego/streamcep/types"
	tableprint "github.com/rulego/streamcep/utils/table"
)

// Engine 是StreamCEP的主要入口。
// 它持有表、已部署的查询以及可选的编译单元仓库。
//
// 使用示例:
//
//	engine := streamcep.New()
//	engine.DefineTable(types.TableConfig{ID: "StockTable", ...})
//	rt, _ := engine.Deploy(types.QueryConfig{...})
//	rt.Emit(ctx, []map[string]any{{"symbol": "IBM", "price": 75.5}})
type Engine struct {
	mu       sync.RWMutex
	tables   map[string]*table.InMemoryTable
	runtimes map[string]*runtime.Runtime
	order    []string

	poolSize int
	repo     repository.Repository
	debugger *debugger.Debugger
	log      logger.Logger
}

// New 创建一个新的引擎实例。
//
// 示例:
//
//	// 默认实例
//	engine := streamcep.New()
//
//	// 带仓库和调试日志
//	repo, _ := repository.NewFileSystem("./units")
//	engine := streamcep.New(streamcep.WithRepository(repo), streamcep.WithLogLevel(logger.DEBUG))
func New(options ...Option) *Engine {
	e := &Engine{
		tables:   make(map[string]*table.InMemoryTable),
		runtimes: make(map[string]*runtime.Runtime),
		poolSize: types.DefaultPoolConfig().InitialSize,
	}
	for _, option := range options {
		option(e)
	}
	e.log = logger.Named("engine")
	return e
}

// DefineTable creates a table and loads its initial rows. Table ids are unique.
func (e *Engine) DefineTable(cfg types.TableConfig) (*table.InMemoryTable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: table %s already defined", types.ErrConfiguration, cfg.ID)
	}
	t, err := table.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	e.tables[cfg.ID] = t
	e.log.Debug("table %s defined with %d rows", cfg.ID, t.Size())
	return t, nil
}

// Table 按id查找表
func (e *Engine) Table(id string) (*table.InMemoryTable, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[id]
	return t, ok
}

func (e *Engine) resolve(id string) (table.Table, bool) {
	t, ok := e.tables[id]
	if !ok {
		return nil, false
	}
	return t, true
}

// Deploy deploys a query. Names are unique; an empty name is generated.
func (e *Engine) Deploy(cfg types.QueryConfig) (*runtime.Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.runtimes[cfg.Name]; exists && cfg.Name != "" {
		return nil, fmt.Errorf("%w: query %s already deployed", types.ErrConfiguration, cfg.Name)
	}
	opts := []runtime.Option{runtime.WithPoolSize(e.poolSize)}
	if e.debugger != nil {
		opts = append(opts, runtime.WithDebugger(e.debugger))
	}
	rt, err := runtime.Deploy(cfg, table.ResolverFunc(e.resolve), opts...)
	if err != nil {
		return nil, err
	}
	e.runtimes[rt.Name()] = rt
	e.order = append(e.order, rt.Name())
	return rt, nil
}

// LoadPlan applies the engine settings of plan, defines its tables and
// deploys its queries in order. It stops at the first error.
func (e *Engine) LoadPlan(plan *types.Plan) error {
	if plan.Engine.LogLevel != "" {
		level, err := logger.ParseLevel(plan.Engine.LogLevel)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		logger.GetDefault().SetLevel(level)
	}
	if plan.Engine.Pool.InitialSize > 0 {
		e.mu.Lock()
		e.poolSize = plan.Engine.Pool.InitialSize
		e.mu.Unlock()
	}
	for _, tc := range plan.Tables {
		if _, err := e.DefineTable(tc); err != nil {
			return err
		}
	}
	for _, qc := range plan.Queries {
		if _, err := e.Deploy(qc); err != nil {
			return err
		}
	}
	e.log.Info("plan loaded: %d tables, %d queries", len(plan.Tables), len(plan.Queries))
	return nil
}

// LoadPlanFile 从YAML文件加载部署计划
func (e *Engine) LoadPlanFile(path string) error {
	plan, err := types.LoadPlan(path)
	if err != nil {
		return err
	}
	return e.LoadPlan(plan)
}

// Runtime 按名称查找已部署的查询
func (e *Engine) Runtime(name string) (*runtime.Runtime, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.runtimes[name]
	return rt, ok
}

// Runtimes returns deployed queries in deployment order.
func (e *Engine) Runtimes() []*runtime.Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*runtime.Runtime, len(e.order))
	for i, name := range e.order {
		out[i] = e.runtimes[name]
	}
	return out
}

// TableIDs 返回按字母排序的表id
func (e *Engine) TableIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.tables))
	for id := range e.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Emit sends rows as one batch to the named query.
func (e *Engine) Emit(ctx context.Context, query string, rows []map[string]any) error {
	rt, ok := e.Runtime(query)
	if !ok {
		return fmt.Errorf("%w: query %s is not deployed", types.ErrConfiguration, query)
	}
	return rt.Emit(ctx, rows)
}

// StoreQuery serializes cfg and stores it in the repository under id.
func (e *Engine) StoreQuery(ctx context.Context, id repository.Identity, cfg types.QueryConfig) error {
	if e.repo == nil {
		return fmt.Errorf("%w: no repository configured", types.ErrConfiguration)
	}
	data, err := types.MarshalQuery(cfg)
	if err != nil {
		return fmt.Errorf("encode query %s: %w", cfg.Name, err)
	}
	return e.repo.Store(ctx, id, data)
}

// DeployFromRepository fetches a stored query and deploys it. The tables it
// writes to must already be defined.
func (e *Engine) DeployFromRepository(ctx context.Context, id repository.Identity) (*runtime.Runtime, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("%w: no repository configured", types.ErrConfiguration)
	}
	data, ok, err := e.repo.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: unit %s not found", types.ErrConfiguration, id)
	}
	cfg, err := types.UnmarshalQuery(data)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}
	if cfg.Name == "" {
		cfg.Name = id.Name
	}
	return e.Deploy(cfg)
}

// Repository 编译单元仓库，未配置时为nil
func (e *Engine) Repository() repository.Repository {
	return e.repo
}

// EnableDebugger attaches a debugger to every deployed query and to queries
// deployed afterwards. Calling it again returns the same debugger.
func (e *Engine) EnableDebugger() *debugger.Debugger {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.debugger == nil {
		e.debugger = debugger.New()
		for _, name := range e.order {
			e.runtimes[name].Callback().SetDebugger(e.debugger)
		}
	}
	return e.debugger
}

// PrintTable writes the rows of table id to w.
func (e *Engine) PrintTable(w io.Writer, id string) error {
	t, ok := e.Table(id)
	if !ok {
		return fmt.Errorf("%w: table %s is not defined", types.ErrConfiguration, id)
	}
	if _, err := fmt.Fprintf(w, "%s\n", id); err != nil {
		return err
	}
	return tableprint.Fprint(w, t.Definition().Names(), t.Rows())
}

// Close releases the repository.
func (e *Engine) Close() error {
	if e.repo != nil {
		return e.repo.Close()
	}
	return nil
}
