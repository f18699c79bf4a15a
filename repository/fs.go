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

package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	cacheDir   = "cache"
	unitSuffix = ".plan"
)

// FileSystem stores units under <root>/cache/<org>/<name>/<version>/<name>.plan.
type FileSystem struct {
	root string
}

var _ Repository = (*FileSystem)(nil)

// NewFileSystem 创建文件系统仓库，根目录为空时使用当前目录下的.streamcep
func NewFileSystem(root string) (*FileSystem, error) {
	if root == "" {
		root = ".streamcep"
	}
	if err := os.MkdirAll(filepath.Join(root, cacheDir), 0o755); err != nil {
		return nil, fmt.Errorf("create repository %s: %w", root, err)
	}
	return &FileSystem{root: root}, nil
}

// Root 仓库根目录
func (r *FileSystem) Root() string {
	return r.root
}

// Path returns where the unit of id is stored.
func (r *FileSystem) Path(id Identity) string {
	seg := id.segments()
	return filepath.Join(r.root, cacheDir, seg[0], seg[1], seg[2], id.Name+unitSuffix)
}

func (r *FileSystem) Fetch(ctx context.Context, id Identity) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	id = id.normalize()
	if err := id.validate(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(r.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s: %w", id, err)
	}
	return data, true, nil
}

func (r *FileSystem) Store(ctx context.Context, id Identity, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = id.normalize()
	if err := id.validate(); err != nil {
		return err
	}
	path := r.Path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	// 先写临时文件再重命名
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	return nil
}

func (r *FileSystem) Search(ctx context.Context, term string) ([]Identity, error) {
	base := filepath.Join(r.root, cacheDir)
	var found []Identity
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), unitSuffix) {
			return nil
		}
		rel, err := filepath.Rel(base, filepath.Dir(path))
		if err != nil {
			return nil
		}
		id, ok := parseKey(filepath.ToSlash(rel))
		if !ok || d.Name() != id.Name+unitSuffix {
			return nil
		}
		if id.Matches(term) {
			found = append(found, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", base, err)
	}
	sortIdentities(found)
	return found, nil
}

func (r *FileSystem) Close() error {
	return nil
}
