package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GetKnownToolReturnsItsDefinition(t *testing.T) {
	def, ok := Get(DocumentSearch)

	assert.True(t, ok)
	assert.Equal(t, LocationInternal, def.Location)
	assert.Equal(t, 0, def.Priority)
}

func TestRegistry_GetUnknownToolReturnsFalse(t *testing.T) {
	_, ok := Get(Name("no_such_tool"))
	assert.False(t, ok)
}

func TestRegistry_ExternalToolsAreLocationExternal(t *testing.T) {
	for _, name := range []Name{ImageDescribe, FVTTGenericQuery} {
		def, ok := Get(name)
		assert.True(t, ok, "expected %s to be registered", name)
		assert.Equal(t, LocationExternal, def.Location)
	}
}

func TestRegistry_AllReturnsEveryDefinitionExactlyOnce(t *testing.T) {
	seen := make(map[Name]bool)
	for _, d := range All() {
		assert.False(t, seen[d.Name], "duplicate definition for %s", d.Name)
		seen[d.Name] = true
	}
	assert.Len(t, seen, len(All()))
}
