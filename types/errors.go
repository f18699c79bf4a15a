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

import "errors"

var (
	// ErrConfiguration 部署阶段的配置错误，查询不能启动
	ErrConfiguration = errors.New("configuration error")
	// ErrConversion 事件无法规范化为目标结构
	ErrConversion = errors.New("event conversion error")
	// ErrTypeMismatch 写入表时值无法转换为列类型
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrConstraintViolation 主键冲突等约束错误
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrEvaluation compiled condition or update set failed at runtime
	ErrEvaluation = errors.New("expression evaluation error")
	// ErrUnsupported unsupported value or operation
	ErrUnsupported = errors.New("unsupported")
)
