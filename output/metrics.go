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

import "sync/atomic"

// Statistics field constants
const (
	BatchCount      = "batch_count"
	EventCount      = "event_count"
	FailureCount    = "failure_count"
	ConversionCount = "conversion_count"
	FailureRate     = "failure_rate"
)

// StatsCollector counts what an output callback did. Safe for concurrent use.
type StatsCollector struct {
	batches     int64
	events      int64
	failures    int64
	conversions int64
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// IncrementBatches 批次数加一
func (sc *StatsCollector) IncrementBatches() {
	atomic.AddInt64(&sc.batches, 1)
}

// AddEvents adds the number of events read from a batch.
func (sc *StatsCollector) AddEvents(n int) {
	atomic.AddInt64(&sc.events, int64(n))
}

// IncrementFailures 失败批次数加一
func (sc *StatsCollector) IncrementFailures() {
	atomic.AddInt64(&sc.failures, 1)
}

// IncrementConversions counts events that had to be copied by the converter.
func (sc *StatsCollector) IncrementConversions() {
	atomic.AddInt64(&sc.conversions, 1)
}

func (sc *StatsCollector) GetBatchCount() int64 {
	return atomic.LoadInt64(&sc.batches)
}

func (sc *StatsCollector) GetEventCount() int64 {
	return atomic.LoadInt64(&sc.events)
}

func (sc *StatsCollector) GetFailureCount() int64 {
	return atomic.LoadInt64(&sc.failures)
}

func (sc *StatsCollector) GetConversionCount() int64 {
	return atomic.LoadInt64(&sc.conversions)
}

// Reset resets statistics information
func (sc *StatsCollector) Reset() {
	atomic.StoreInt64(&sc.batches, 0)
	atomic.StoreInt64(&sc.events, 0)
	atomic.StoreInt64(&sc.failures, 0)
	atomic.StoreInt64(&sc.conversions, 0)
}

// GetStats returns a snapshot keyed by the statistics field constants.
func (sc *StatsCollector) GetStats() map[string]int64 {
	return map[string]int64{
		BatchCount:      sc.GetBatchCount(),
		EventCount:      sc.GetEventCount(),
		FailureCount:    sc.GetFailureCount(),
		ConversionCount: sc.GetConversionCount(),
	}
}

// GetDetailedStats adds the failure rate (percent of batches) to GetStats.
func (sc *StatsCollector) GetDetailedStats() map[string]interface{} {
	basic := sc.GetStats()
	rate := 0.0
	if basic[BatchCount] > 0 {
		rate = float64(basic[FailureCount]) / float64(basic[BatchCount]) * 100
	}
	detailed := make(map[string]interface{}, len(basic)+1)
	for k, v := range basic {
		detailed[k] = v
	}
	detailed[FailureRate] = rate
	return detailed
}
