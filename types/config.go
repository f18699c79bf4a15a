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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Output action names
const (
	ActionInsert         = "insert"
	ActionDelete         = "delete"
	ActionUpdate         = "update"
	ActionUpdateOrInsert = "update_or_insert"
)

// Plan 部署计划：表定义、查询定义以及引擎配置
type Plan struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Tables  []TableConfig `json:"tables" yaml:"tables"`
	Queries []QueryConfig `json:"queries" yaml:"queries"`
}

// StreamConfig 流定义配置
type StreamConfig struct {
	ID         string      `json:"id" yaml:"id"`
	Alias      string      `json:"alias,omitempty" yaml:"alias,omitempty"` // name of the slot in expressions
	Attributes []Attribute `json:"attributes" yaml:"attributes"`
}

// TableConfig 表定义配置
type TableConfig struct {
	ID         string           `json:"id" yaml:"id"`
	Attributes []Attribute      `json:"attributes" yaml:"attributes"`
	PrimaryKey []string         `json:"primaryKey" yaml:"primaryKey"`
	Rows       []map[string]any `json:"rows" yaml:"rows"` // 初始数据
}

// Assignment 更新赋值: column = expression
type Assignment struct {
	Column     string `json:"column" yaml:"column"`
	Expression string `json:"expression" yaml:"expression"`
}

// OutputConfig 查询输出动作配置
type OutputConfig struct {
	Table                string       `json:"table" yaml:"table"`
	Action               string       `json:"action" yaml:"action"` // insert, delete, update, update_or_insert
	On                   string       `json:"on" yaml:"on"`         // compiled condition expression
	Set                  []Assignment `json:"set" yaml:"set"`
	MatchingStreamIndex  int          `json:"matchingStreamIndex" yaml:"matchingStreamIndex"`
	ConvertToStreamEvent bool         `json:"convertToStreamEvent" yaml:"convertToStreamEvent"`
}

// QueryConfig 单个查询的部署配置
type QueryConfig struct {
	Name string `json:"name" yaml:"name"`
	// Streams participating in the correlated event, indexed by stream position.
	// A single-stream query lists only its output stream.
	Streams []StreamConfig `json:"streams" yaml:"streams"`
	Output  OutputConfig   `json:"output" yaml:"output"`
	Pool    PoolConfig     `json:"pool" yaml:"pool"`
}

// PoolConfig 事件池配置
type PoolConfig struct {
	InitialSize int `json:"initialSize" yaml:"initialSize"`
}

// EngineConfig 引擎配置
type EngineConfig struct {
	LogLevel   string           `json:"logLevel" yaml:"logLevel"` // empty keeps the current level
	Pool       PoolConfig       `json:"pool" yaml:"pool"`
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
}

// RepositoryConfig 编译单元仓库配置
type RepositoryConfig struct {
	Backend  string        `json:"backend" yaml:"backend"` // fs, badger, redis
	Path     string        `json:"path" yaml:"path"`
	Address  string        `json:"address" yaml:"address"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	Prefix   string        `json:"prefix" yaml:"prefix"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultPoolConfig 默认事件池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{InitialSize: 64}
}

// DefaultEngineConfig 默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Pool:     DefaultPoolConfig(),
		Repository: RepositoryConfig{
			Backend: "fs",
			Prefix:  "streamcep:units:",
			Timeout: 5 * time.Second,
		},
	}
}

// ParsePlan decodes a YAML (or JSON, which is valid YAML) plan.
func ParsePlan(data []byte) (*Plan, error) {
	plan := &Plan{Engine: DefaultEngineConfig()}
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("%w: parse plan: %v", ErrConfiguration, err)
	}
	if plan.Engine.Pool.InitialSize <= 0 {
		plan.Engine.Pool = DefaultPoolConfig()
	}
	return plan, nil
}

// LoadPlan 从文件加载部署计划
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return ParsePlan(data)
}

// MarshalQuery serializes a single query config as a storable compiled unit.
func MarshalQuery(q QueryConfig) ([]byte, error) {
	return yaml.Marshal(q)
}

// UnmarshalQuery 反序列化查询配置
func UnmarshalQuery(data []byte) (QueryConfig, error) {
	var q QueryConfig
	if err := yaml.Unmarshal(data, &q); err != nil {
		return q, fmt.Errorf("%w: decode query: %v", ErrConfiguration, err)
	}
	return q, nil
}

// Definition builds the stream definition.
func (sc StreamConfig) Definition() (*Definition, error) {
	if sc.ID == "" {
		return nil, fmt.Errorf("%w: stream id is empty", ErrConfiguration)
	}
	return NewDefinition(sc.ID, sc.Attributes...)
}

// Definition builds the table definition including its primary key.
func (tc TableConfig) Definition() (*TableDefinition, error) {
	if tc.ID == "" {
		return nil, fmt.Errorf("%w: table id is empty", ErrConfiguration)
	}
	def, err := NewDefinition(tc.ID, tc.Attributes...)
	if err != nil {
		return nil, err
	}
	return NewTableDefinition(def, tc.PrimaryKey...)
}
