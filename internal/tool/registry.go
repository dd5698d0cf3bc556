// Package tool implements the process-wide tool registry and dispatcher:
// a fixed enumeration of callable tools, each either handled inline
// (internal) or routed to a connected UI process over a duplex
// channel (external), and the dispatch logic that resolves a ToolCall
// by name and runs it.
package tool

import "github.com/modelcontextprotocol/go-sdk/jsonschema"

// Location says where a tool executes.
type Location string

const (
	// LocationInternal tools run inline, inside this process.
	LocationInternal Location = "internal"
	// LocationExternal tools are executed by a connected UI process
	// and awaited over the duplex channel.
	LocationExternal Location = "external"
)

// Name is a stable, snake_case tool identifier.
type Name string

const (
	DocumentSearch     Name = "document_search"
	DocumentSearchText Name = "document_search_text"
	DocumentGet        Name = "document_get"
	DocumentList       Name = "document_list"
	ImageList          Name = "image_list"
	ImageSearch        Name = "image_search"
	ImageGet           Name = "image_get"
	ImageDescribe      Name = "image_describe"
	FVTTGenericQuery   Name = "fvtt_generic_query"
)

// Definition is one registry entry: everything the dispatcher and any
// tool-advertising surface need to know about a tool short of its
// handler function.
type Definition struct {
	Name        Name
	Location    Location
	Category    string
	// Priority controls deferred loading: 0 loads immediately, 3 is
	// loaded lazily on first reference.
	Priority    int
	Schema      *jsonschema.Schema
	Description string
}

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func intSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func stringArraySchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func boolSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

// registry is the exhaustive, build-time tool enumeration. An unknown
// name received from a caller is always a hard error, never treated
// as implicitly external or internal.
var registry = []Definition{
	{
		Name:     DocumentSearch,
		Location: LocationInternal,
		Category: "document",
		Priority: 0,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query":        stringSchema("hybrid dense+lexical search query over document chunks"),
				"limit":        intSchema("maximum number of results, default 10"),
				"allowed_tags": stringArraySchema("access tags the caller may see; empty means every document"),
			},
		},
		Description: "Hybrid dense+lexical search over ingested document chunks, fused with Reciprocal Rank Fusion.",
	},
	{
		Name:     DocumentSearchText,
		Location: LocationInternal,
		Category: "document",
		Priority: 0,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query":        stringSchema("lexical (FTS5) search query over document chunks"),
				"section":      stringSchema("restrict to chunks with this section title"),
				"document_id":  stringSchema("restrict to a single document"),
				"limit":        intSchema("maximum number of results, default 10"),
				"allowed_tags": stringArraySchema("access tags the caller may see; empty means every document"),
			},
		},
		Description: "Keyword-only search over document chunks, skipping the dense vector pass entirely.",
	},
	{
		Name:     DocumentGet,
		Location: LocationInternal,
		Category: "document",
		Priority: 0,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"document_id"},
			Properties: map[string]*jsonschema.Schema{
				"document_id": stringSchema("the document's id"),
			},
		},
		Description: "Fetch a single document's metadata by id.",
	},
	{
		Name:     DocumentList,
		Location: LocationInternal,
		Category: "document",
		Priority: 0,
		Schema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
		Description: "List every ingested document's metadata.",
	},
	{
		Name:     ImageList,
		Location: LocationInternal,
		Category: "image",
		Priority: 1,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"document_id"},
			Properties: map[string]*jsonschema.Schema{
				"document_id": stringSchema("list images extracted from this document"),
			},
		},
		Description: "List every image extracted from a document.",
	},
	{
		Name:     ImageSearch,
		Location: LocationInternal,
		Category: "image",
		Priority: 1,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query": stringSchema("dense search query over captioned image descriptions"),
				"limit": intSchema("maximum number of results, default 10"),
			},
		},
		Description: "Dense-only search over captioned image descriptions.",
	},
	{
		Name:     ImageGet,
		Location: LocationInternal,
		Category: "image",
		Priority: 1,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"image_id"},
			Properties: map[string]*jsonschema.Schema{
				"image_id": stringSchema("the image's id"),
			},
		},
		Description: "Fetch a single extracted image's metadata and caption by id.",
	},
	{
		Name:     ImageDescribe,
		Location: LocationExternal,
		Category: "fvtt",
		Priority: 2,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"image_path"},
			Properties: map[string]*jsonschema.Schema{
				"image_path":     stringSchema("path to the image as reported by the connected UI process"),
				"context":        stringSchema("optional surrounding text to include in the captioning prompt"),
				"force_refresh":  boolSchema("bypass the cache read, but still write the new description through"),
			},
		},
		Description: "Describe an image living on the connected UI process, caching the description by path.",
	},
	{
		Name:     FVTTGenericQuery,
		Location: LocationExternal,
		Category: "fvtt",
		Priority: 2,
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query": stringSchema("opaque query string forwarded to the connected UI process"),
			},
		},
		Description: "Forward an opaque query to the connected UI process and await its reply.",
	},
}

var byName map[Name]Definition

func init() {
	byName = make(map[Name]Definition, len(registry))
	for _, d := range registry {
		byName[d.Name] = d
	}
}

// Get looks up a tool definition by name. The bool result is false for
// any name not in the registry's fixed enumeration.
func Get(name Name) (Definition, bool) {
	d, ok := byName[name]
	return d, ok
}

// All returns every registered tool definition.
func All() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	return out
}
