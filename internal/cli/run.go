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

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulego/streamcep"
	"github.com/rulego/streamcep/debugger"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/types"
)

// Batch is one entry of an events file. Events are sent as a single batch;
// Partitions are sent concurrently, one batch per partition.
type Batch struct {
	Query      string             `json:"query"`
	Events     []map[string]any   `json:"events,omitempty"`
	Partitions [][]map[string]any `json:"partitions,omitempty"`
}

type runOptions struct {
	eventsPath string
	logLevel   string
	trace      bool
}

func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Deploy a plan, replay events and print the tables",
		Long: `Deploy the tables and queries of a YAML plan, send the batches of an
events file to their queries in order and print every table afterwards.

Examples:
  # Replay a JSON events file
  cepctl run plan.yaml --events events.json

  # Trace every batch leaving the output callbacks
  cepctl run plan.yaml --events events.json --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.eventsPath, "events", "e", "", "JSON file with batches to replay")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error or off")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the first event of every batch sent to a table")
	return cmd
}

func (a *App) run(cmd *cobra.Command, planPath string, opts *runOptions) error {
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	engine := streamcep.New(streamcep.WithLogOutput(a.stderr, level))
	defer engine.Close()

	if err := engine.LoadPlanFile(planPath); err != nil {
		return err
	}
	if opts.trace {
		a.trace(engine)
	}

	if opts.eventsPath != "" {
		batches, err := loadBatches(opts.eventsPath)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		for i, b := range batches {
			rt, ok := engine.Runtime(b.Query)
			if !ok {
				return fmt.Errorf("batch %d: %w: query %s is not deployed", i, types.ErrConfiguration, b.Query)
			}
			if len(b.Partitions) > 0 {
				err = rt.EmitPartitioned(ctx, b.Partitions)
			} else {
				err = rt.Emit(ctx, b.Events)
			}
			if err != nil {
				return fmt.Errorf("batch %d (%s): %w", i, b.Query, err)
			}
		}
	}

	for _, id := range engine.TableIDs() {
		if err := engine.PrintTable(a.stdout, id); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout)
	}
	for _, rt := range engine.Runtimes() {
		stats := rt.Callback().Stats()
		_, _ = fmt.Fprintf(a.stdout, "%s: batches=%d events=%d failures=%d\n",
			rt.Name(), stats.GetBatchCount(), stats.GetEventCount(), stats.GetFailureCount())
	}
	return nil
}

// trace breaks on the output terminal of every deployed query and resumes at once.
func (a *App) trace(engine *streamcep.Engine) {
	d := engine.EnableDebugger()
	for _, rt := range engine.Runtimes() {
		d.AcquireBreakPoint(rt.Name(), debugger.Out)
	}
	d.SetCallback(func(ev event.ComplexEvent, query string, terminal debugger.Terminal, d *debugger.Debugger) {
		_, _ = fmt.Fprintf(a.stderr, "[%s:%s] %v\n", query, terminal, ev)
		d.Play()
	})
}

func loadBatches(path string) ([]Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", path, err)
	}
	var batches []Batch
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, fmt.Errorf("%w: parse events %s: %v", types.ErrConfiguration, path, err)
	}
	return batches, nil
}
