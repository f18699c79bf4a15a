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

// Package cli implements the cepctl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rulego/streamcep/repository"
	"github.com/rulego/streamcep/types"
)

// Version 构建时注入
var Version = "dev"

// repoOptions 仓库相关的全局参数
type repoOptions struct {
	backend string
	path    string
	address string
	prefix  string
}

// App 命令行应用
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
	repo   repoOptions
}

// New 创建命令行应用
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	app.root = &cobra.Command{
		Use:   "cepctl",
		Short: "Run CEP output plans and manage compiled units",
		Long: `cepctl deploys table and query plans, replays events through the
output callbacks and prints the resulting tables. It also stores, searches
and fetches compiled query units in a repository.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := types.DefaultEngineConfig().Repository
	flags := app.root.PersistentFlags()
	flags.StringVar(&app.repo.backend, "repo", defaults.Backend, "Repository backend: fs, badger or redis")
	flags.StringVar(&app.repo.path, "repo-path", "", "Repository directory for fs and badger backends")
	flags.StringVar(&app.repo.address, "repo-addr", "", "Redis address for the redis backend")
	flags.StringVar(&app.repo.prefix, "repo-prefix", defaults.Prefix, "Key prefix for badger and redis backends")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newRunCmd(),
		app.newStoreCmd(),
		app.newFetchCmd(),
		app.newSearchCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the command line until completion or SIGINT/SIGTERM.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the command line with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "cepctl version %s\n", Version)
		},
	}
}

func (a *App) openRepository() (repository.Repository, error) {
	cfg := types.DefaultEngineConfig().Repository
	cfg.Backend = a.repo.backend
	cfg.Path = a.repo.path
	cfg.Address = a.repo.address
	cfg.Prefix = a.repo.prefix
	return repository.Open(cfg)
}
