package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/embed"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/search"
)

// documentImageStore is the slice of *dbstore.Store the internal tool
// handlers depend on, narrowed for testability.
type documentImageStore interface {
	GetDocument(ctx context.Context, id string) (*dbstore.Document, error)
	ListDocuments(ctx context.Context) ([]*dbstore.Document, error)
	GetImage(ctx context.Context, id string) (*dbstore.Image, error)
	GetImagesByDocument(ctx context.Context, documentID string) ([]*dbstore.Image, error)
	GetExternalImageDescription(ctx context.Context, imagePath string) (*dbstore.ExternalImageDescription, error)
	UpsertExternalImageDescription(ctx context.Context, imagePath, description, visionModel string) error
}

var _ documentImageStore = (*dbstore.Store)(nil)

// ExternalRouter forwards an external tool call to a connected UI
// process and waits for the matching correlated reply, or returns a
// senerrors.NoGMConnection/senerrors.ToolTimeout error if none is
// available or none arrives in time.
type ExternalRouter interface {
	CallExternalTool(ctx context.Context, tool Name, args map[string]any) (json.RawMessage, error)
}

// describer captions a caller-supplied, already base64-encoded image.
// Matches (*embed.VisionClient).DescribeImageData.
type describer interface {
	DescribeImageData(ctx context.Context, model, imageB64, prompt string) (string, error)
}

var _ describer = (*embed.VisionClient)(nil)

// Dispatcher resolves a Call against the tool registry and either runs
// it inline (internal tools) or routes it through external for a
// connected UI process to execute.
type Dispatcher struct {
	engine   search.Engine
	store    documentImageStore
	external ExternalRouter
	vision   describer
	log      *slog.Logger
}

// NewDispatcher builds a dispatcher. external may be nil if no duplex
// transport is wired yet, in which case external tool calls fail with
// senerrors.NoGMConnection.
func NewDispatcher(engine search.Engine, store *dbstore.Store, external ExternalRouter, vision describer, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{engine: engine, store: store, external: external, vision: vision, log: log}
}

// Dispatch looks up call.Tool in the registry and runs it, returning a
// Result that is never itself an error - dispatch failures (unknown
// tool, handler error, external timeout) are carried as Result.Err.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Result {
	def, ok := Get(call.Tool)
	if !ok {
		return Failure(call.ID, fmt.Sprintf("unknown tool: %s", call.Tool))
	}

	var (
		value any
		err   error
	)
	switch def.Location {
	case LocationInternal:
		value, err = d.dispatchInternal(ctx, call)
	case LocationExternal:
		value, err = d.dispatchExternal(ctx, call)
	default:
		err = fmt.Errorf("tool %q has no registered location", call.Tool)
	}

	if err != nil {
		d.log.Error("tool call failed", "tool", call.Tool, "id", call.ID, "error", err)
		return Failure(call.ID, err.Error())
	}
	return Success(call.ID, value)
}

func (d *Dispatcher) dispatchInternal(ctx context.Context, call Call) (any, error) {
	switch call.Tool {
	case DocumentSearch:
		return d.documentSearch(ctx, call.Args)
	case DocumentSearchText:
		return d.documentSearchText(ctx, call.Args)
	case DocumentGet:
		return d.documentGet(ctx, call.Args)
	case DocumentList:
		return d.documentList(ctx, call.Args)
	case ImageList:
		return d.imageList(ctx, call.Args)
	case ImageSearch:
		return d.imageSearch(ctx, call.Args)
	case ImageGet:
		return d.imageGet(ctx, call.Args)
	default:
		return nil, fmt.Errorf("tool %q has no internal handler", call.Tool)
	}
}

func (d *Dispatcher) dispatchExternal(ctx context.Context, call Call) (any, error) {
	if call.Tool == ImageDescribe {
		return d.imageDescribe(ctx, call.Args)
	}

	if d.external == nil {
		return nil, senerrors.NoGMConnection(string(call.Tool))
	}
	raw, err := d.external.CallExternalTool(ctx, call.Tool, call.Args)
	if err != nil {
		return nil, err
	}

	var value any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, senerrors.InternalError(fmt.Sprintf("decoding reply for tool %q", call.Tool), err)
		}
	}
	return value, nil
}
