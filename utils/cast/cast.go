/*
 * Copyright 2024 The RuleGo Authors.
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

// Package cast coerces attribute values into their declared types.
package cast

import (
	"fmt"
	"math"

	"github.com/spf13/cast"

	"github.com/rulego/streamcep/types"
)

// To converts v into the Go representation of t:
// STRING->string, INT->int32, LONG->int64, FLOAT->float32, DOUBLE->float64, BOOL->bool.
// OBJECT and nil values pass through unchanged.
func To(v any, t types.AttributeType) (any, error) {
	if v == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch t {
	case types.STRING:
		out, err = cast.ToStringE(v)
	case types.INT:
		var i int64
		if i, err = toInteger(v, math.MinInt32, math.MaxInt32); err == nil {
			out = int32(i)
		}
	case types.LONG:
		out, err = toInteger(v, math.MinInt64, math.MaxInt64)
	case types.FLOAT:
		out, err = toFloat32(v)
	case types.DOUBLE:
		out, err = cast.ToFloat64E(v)
	case types.BOOL:
		out, err = cast.ToBoolE(v)
	case types.OBJECT:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: attribute type %q", types.ErrUnsupported, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot convert %v (%T) to %s", types.ErrTypeMismatch, v, v, t)
	}
	return out, nil
}

// toInteger converts v into [min, max]. Fractional floats and values out of
// range are errors rather than being truncated or wrapped.
func toInteger(v any, min, max int64) (int64, error) {
	switch n := v.(type) {
	case float64:
		return floatToInteger(n, min, max)
	case float32:
		return floatToInteger(float64(n), min, max)
	case uint64:
		if n > uint64(max) {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return int64(n), nil
	case uint:
		if uint64(n) > uint64(max) {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return int64(n), nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return 0, err
	}
	if i < min || i > max {
		return 0, fmt.Errorf("%d out of range", i)
	}
	return i, nil
}

func floatToInteger(f float64, min, max int64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// -min is 2^31 or 2^63, exactly representable, max is one below it
	if f < float64(min) || f >= -float64(min) {
		return 0, fmt.Errorf("%v out of range", f)
	}
	return int64(f), nil
}

func toFloat32(v any) (float32, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, fmt.Errorf("%v out of range", f)
	}
	return float32(f), nil
}

// ToFloat 转换为float64，失败返回false
func ToFloat(x any) (float64, bool) {
	f, err := cast.ToFloat64E(x)
	return f, err == nil
}

// ToString 转换为字符串
func ToString(arg any) string {
	return cast.ToString(arg)
}
