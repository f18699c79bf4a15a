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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulego/streamcep/repository"
	"github.com/rulego/streamcep/types"
)

func (a *App) newStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store <org/name[:version]> <query.yaml>",
		Short: "Store a query definition as a compiled unit",
		Long: `Validate a single query definition and store it in the repository
under the given identity. An existing unit with the same identity is replaced.

Examples:
  cepctl store acme/updateStock:1.0.0 query.yaml --repo-path ./units`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := repository.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read query %s: %w", args[1], err)
			}
			q, err := types.UnmarshalQuery(data)
			if err != nil {
				return err
			}
			if len(q.Streams) == 0 || q.Output.Table == "" {
				return fmt.Errorf("%w: query in %s needs streams and an output table", types.ErrConfiguration, args[1])
			}
			if data, err = types.MarshalQuery(q); err != nil {
				return err
			}

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()
			if err := repo.Store(cmd.Context(), id, data); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stdout, "stored %s\n", id)
			return nil
		},
	}
}

func (a *App) newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <org/name[:version]>",
		Short: "Print a stored compiled unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := repository.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()
			data, ok, err := repo.Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unit %s not found", id)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *App) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [term]",
		Short: "List stored units whose org or name contains term",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()
			ids, err := repo.Search(cmd.Context(), term)
			if err != nil {
				return err
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(a.stdout, id.String())
			}
			return nil
		},
	}
}
