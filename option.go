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
	"io"

	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/repository"
)

// Option 表示对引擎默认行为的修改配置。
type Option func(*Engine)

// WithLogger 设置自定义日志记录器。
//
// 示例:
//
//	customLogger := logger.NewLogger(logger.DEBUG, os.Stderr)
//	engine := streamcep.New(streamcep.WithLogger(customLogger))
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		logger.SetDefault(log)
	}
}

// WithLogLevel 设置日志级别。
func WithLogLevel(level logger.Level) Option {
	return func(e *Engine) {
		logger.GetDefault().SetLevel(level)
	}
}

// WithLogOutput 设置日志输出目标和级别。
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(e *Engine) {
		logger.SetDefault(logger.NewLogger(level, output))
	}
}

// WithDiscardLog 禁用所有日志输出。
func WithDiscardLog() Option {
	return func(e *Engine) {
		logger.SetDefault(logger.NewDiscardLogger())
	}
}

// WithPoolSize 设置每个查询事件池的初始容量。
// 事件池在空闲列表耗尽时自动扩容，这里只影响预分配数量。
func WithPoolSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.poolSize = size
		}
	}
}

// WithRepository 设置编译单元仓库，引擎关闭时一并关闭。
func WithRepository(repo repository.Repository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}
