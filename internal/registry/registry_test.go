package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `{
	"type": "object",
	"properties": {"vendor_id": {"type": "string"}},
	"required": ["vendor_id"]
}`

func TestRegistry_ValidateIsPermissiveForUnregisteredType(t *testing.T) {
	r := New()

	ok, err := r.Validate(context.Background(), "mdm.vendor.created", 1, map[string]any{})

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistry_ValidateEnforcesRegisteredSchema(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(context.Background(), SchemaEntry{
		TypeName: "mdm.vendor.created", SchemaVersion: 1, JSONSchema: sampleSchema,
	}))

	ok, err := r.Validate(context.Background(), "mdm.vendor.created", 1, map[string]any{"vendor_id": "v-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Validate(context.Background(), "mdm.vendor.created", 1, map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_RegisterRejectsInvalidSchemaDocument(t *testing.T) {
	r := New()

	err := r.Register(context.Background(), SchemaEntry{
		TypeName: "mdm.vendor.created", SchemaVersion: 1, JSONSchema: `{not json`,
	})

	require.Error(t, err)
}

func TestRegistry_ListVersionsAndListTypes(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(context.Background(), SchemaEntry{TypeName: "mdm.vendor.created", SchemaVersion: 1, JSONSchema: sampleSchema}))
	require.NoError(t, r.Register(context.Background(), SchemaEntry{TypeName: "mdm.vendor.created", SchemaVersion: 2, JSONSchema: sampleSchema}))
	require.NoError(t, r.Register(context.Background(), SchemaEntry{TypeName: "ap.invoice.submitted", SchemaVersion: 1, JSONSchema: sampleSchema}))

	assert.Equal(t, []int{1, 2}, r.ListVersions("mdm.vendor.created"))
	assert.ElementsMatch(t, []string{"mdm.vendor.created", "ap.invoice.submitted"}, r.ListTypes())
}
