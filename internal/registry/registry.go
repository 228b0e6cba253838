// Package registry implements C2: named, versioned JSON-Schema validation
// for event payloads. Registration is optional for the event store;
// validation is permissive for unregistered types per §4.2.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// SchemaEntry is one registered (type, version) pair.
type SchemaEntry struct {
	TypeName      string `json:"type_name"`
	SchemaVersion int    `json:"schema_version"`
	JSONSchema    string `json:"json_schema"`
	Description   string `json:"description,omitempty"`
}

type key struct {
	typeName string
	version  int
}

// Registry is an in-memory, mutex-guarded schema store; a Postgres-backed
// variant would share this compiled-schema cache keyed the same way.
type Registry struct {
	mu       sync.RWMutex
	entries  map[key]SchemaEntry
	compiled map[key]*jsonschema.Schema
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[key]SchemaEntry),
		compiled: make(map[key]*jsonschema.Schema),
	}
}

// Register compiles and stores a JSON-Schema document for (type, version).
func (r *Registry) Register(ctx context.Context, entry SchemaEntry) error {
	compiler := jsonschema.NewCompiler()

	resourceURL := fmt.Sprintf("mem://%s/%d", entry.TypeName, entry.SchemaVersion)
	if err := compiler.AddResource(resourceURL, jsonschemaReader(entry.JSONSchema)); err != nil {
		return platform.ValidationError{Field: "json_schema", Message: "invalid schema document: " + err.Error()}
	}

	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return platform.ValidationError{Field: "json_schema", Message: "schema failed to compile: " + err.Error()}
	}

	k := key{typeName: entry.TypeName, version: entry.SchemaVersion}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[k] = entry
	r.compiled[k] = schema

	return nil
}

// GetSchema returns the raw schema document for (type, version).
func (r *Registry) GetSchema(typeName string, version int) (SchemaEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key{typeName: typeName, version: version}]

	return entry, ok
}

// ListVersions returns the known schema versions for a type, ascending.
func (r *Registry) ListVersions(typeName string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []int

	for k := range r.entries {
		if k.typeName == typeName {
			versions = append(versions, k.version)
		}
	}

	sort.Ints(versions)

	return versions
}

// ListTypes returns every distinct registered type name.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})

	for k := range r.entries {
		seen[k.typeName] = struct{}{}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// Validate implements eventstore.SchemaValidator: permissive (returns
// true, nil) for a (type, version) pair that was never registered.
func (r *Registry) Validate(ctx context.Context, typeName string, version int, data map[string]any) (bool, error) {
	r.mu.RLock()
	schema, ok := r.compiled[key{typeName: typeName, version: version}]
	r.mu.RUnlock()

	if !ok {
		return true, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("marshal payload for validation: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("unmarshal payload for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return false, nil
	}

	return true, nil
}
