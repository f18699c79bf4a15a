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

// Package repository stores compiled units (serialized query plans) by
// identity. Absence is a valid outcome of Fetch, not an error, and no
// operation is retried.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rulego/streamcep/types"
)

// DefaultVersion is used when an identity carries no version.
const DefaultVersion = "0.0.0"

// anonymousOrg names the storage location of identities without an org.
const anonymousOrg = "_"

// Identity addresses a compiled unit.
type Identity struct {
	Org     string `json:"org" yaml:"org"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ParseIdentity parses "org/name:version". Org and version are optional.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	rest := strings.TrimSpace(s)
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		id.Version = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		id.Org = rest[:i]
		rest = rest[i+1:]
	}
	id.Name = rest
	id = id.normalize()
	if err := id.validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (id Identity) normalize() Identity {
	if id.Version == "" {
		id.Version = DefaultVersion
	}
	if id.Org == anonymousOrg {
		id.Org = ""
	}
	return id
}

func (id Identity) validate() error {
	if id.Name == "" {
		return fmt.Errorf("%w: unit identity needs a name", types.ErrConfiguration)
	}
	for _, part := range []string{id.Org, id.Name, id.Version} {
		if strings.ContainsAny(part, `/\:`) || part == "." || part == ".." {
			return fmt.Errorf("%w: invalid identity segment %q", types.ErrConfiguration, part)
		}
	}
	return nil
}

func (id Identity) String() string {
	if id.Org == "" {
		return id.Name + ":" + id.Version
	}
	return id.Org + "/" + id.Name + ":" + id.Version
}

// segments returns org, name and version as stored.
func (id Identity) segments() []string {
	org := id.Org
	if org == "" {
		org = anonymousOrg
	}
	return []string{org, id.Name, id.Version}
}

// key is the flat form used by key-value backends: org/name/version.
func (id Identity) key() string {
	return strings.Join(id.segments(), "/")
}

func parseKey(key string) (Identity, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return Identity{}, false
	}
	id := Identity{Org: parts[0], Name: parts[1], Version: parts[2]}.normalize()
	return id, id.validate() == nil
}

// Matches reports whether term occurs in the org or name, case-insensitive.
// An empty term matches everything.
func (id Identity) Matches(term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(id.Org), term) || strings.Contains(strings.ToLower(id.Name), term)
}

// Repository is the compiled-unit store.
type Repository interface {
	// Fetch returns the unit, or ok=false when it does not exist.
	Fetch(ctx context.Context, id Identity) (data []byte, ok bool, err error)
	// Store writes the unit, replacing an existing one.
	Store(ctx context.Context, id Identity, data []byte) error
	// Search lists identities whose org or name contains term.
	Search(ctx context.Context, term string) ([]Identity, error)
	Close() error
}

// Open creates the backend named by cfg.Backend: fs (default), badger or redis.
func Open(cfg types.RepositoryConfig) (Repository, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "fs", "file":
		return NewFileSystem(cfg.Path)
	case "badger":
		return NewBadger(cfg.Path, cfg.Prefix)
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown repository backend %q", types.ErrConfiguration, cfg.Backend)
	}
}

func sortIdentities(ids []Identity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Org != ids[j].Org {
			return ids[i].Org < ids[j].Org
		}
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Version < ids[j].Version
	})
}
