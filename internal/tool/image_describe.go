package tool

import (
	"context"
	"encoding/json"
	"fmt"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// ImageDescribeResult is the shape returned to the caller of the
// image_describe tool, whether the description came from cache or was
// freshly generated.
type ImageDescribeResult struct {
	ImagePath   string `json:"image_path"`
	Description string `json:"description"`
	Cached      bool   `json:"cached"`
}

// fvttImageResponse is what the connected UI process sends back for an
// image_describe call: either an error, or the raw image bytes and the
// vision model it's configured to use.
type fvttImageResponse struct {
	Error       string `json:"error"`
	ImagePath   string `json:"image_path"`
	VisionModel string `json:"vision_model"`
	ImageData   string `json:"image_data"`
}

// imageDescribe implements the two-phase image_describe tool: a cache
// hit by image_path short-circuits the external round trip entirely;
// otherwise the UI is asked for the raw image bytes, the vision model
// describes them, and the description is written through the cache
// under the same key before it's returned.
func (d *Dispatcher) imageDescribe(ctx context.Context, args map[string]any) (any, error) {
	imagePath := stringArg(args, "image_path")
	if imagePath == "" {
		return nil, senerrors.InvalidRequest("image_path is required")
	}
	forceRefresh := boolArg(args, "force_refresh")

	if !forceRefresh {
		cached, err := d.store.GetExternalImageDescription(ctx, imagePath)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return ImageDescribeResult{ImagePath: imagePath, Description: cached.Description, Cached: true}, nil
		}
	}

	if d.external == nil {
		return nil, senerrors.NoGMConnection(string(ImageDescribe))
	}
	raw, err := d.external.CallExternalTool(ctx, ImageDescribe, args)
	if err != nil {
		return nil, err
	}

	var resp fvttImageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, senerrors.InternalError("decoding image_describe response", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	if resp.ImagePath == "" {
		resp.ImagePath = imagePath
	}
	if resp.VisionModel == "" {
		return nil, senerrors.InvalidRequest("no vision model configured in the connected UI process")
	}
	if resp.ImageData == "" {
		return nil, senerrors.InvalidRequest("no image data in the connected UI process's response")
	}

	prompt := buildImageDescribePrompt(stringArg(args, "context"))
	description, err := d.vision.DescribeImageData(ctx, resp.VisionModel, resp.ImageData, prompt)
	if err != nil {
		return nil, senerrors.InternalError("describing external image", err)
	}

	if err := d.store.UpsertExternalImageDescription(ctx, resp.ImagePath, description, resp.VisionModel); err != nil {
		return nil, err
	}

	return ImageDescribeResult{ImagePath: resp.ImagePath, Description: description, Cached: false}, nil
}

func buildImageDescribePrompt(pageContext string) string {
	base := "Describe this image in detail for use in a tabletop RPG. " +
		"Focus on what the image depicts (characters, creatures, locations, items, maps, etc.) " +
		"and any text visible in the image. Be concise but descriptive."
	if pageContext == "" {
		return base
	}
	return base + "\n\nContext: " + pageContext
}
