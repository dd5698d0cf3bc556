package pdfimage

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Saver persists a finished RGBA image to disk and reports its path.
// The production Saver encodes lossless PNG (see DESIGN.md for why
// this stands in for the original WebP output contract); tests can
// substitute an in-memory fake.
type Saver interface {
	Save(path string, img image.Image) error
}

// PNGSaver writes images as PNG files, creating parent directories as
// needed.
type PNGSaver struct{}

func (PNGSaver) Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating image output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(f, img)
}

// saveIndividual renders one ImageMapping to its final RGBA form
// (Cairo-to-RGBA conversion, SMask compositing, CTM warp) and writes
// it, unless it falls below the minimum output size. Returns
// (nil, nil) for an intentional skip, never an error. id is the
// caller-assigned dbstore image id for this record.
func (e *Extractor) saveIndividual(ctx context.Context, m ImageMapping, page, index int, imageType string, sourcePages []int, sourceImageID, id string) (*Extracted, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := convertToRGBA(m)

	if m.smaskData != nil {
		applySMask(img, m.smaskData, m.smaskWidth, m.smaskHeight)
	}

	if m.hasMatrix && needsTransformation(m.matrix) {
		img = applyTransform(img, m.matrix)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < minImagePixels || height < minImagePixels {
		return nil, nil
	}

	filename := fmt.Sprintf("page_%d_img_%d.png", page, index)
	outPath := filepath.Join(e.ImagesDir, e.DocumentID, filename)
	if err := e.Saver.Save(outPath, img); err != nil {
		return nil, err
	}

	return &Extracted{
		ID:            id,
		PageNumber:    page,
		ImageIndex:    index,
		Path:          outPath,
		Width:         width,
		Height:        height,
		ImageType:     imageType,
		SourcePages:   sourcePages,
		SourceImageID: sourceImageID,
	}, nil
}

// saveRegionRender crops a full-page rasterisation down to a group's
// combined region (in page points, converted to pixels at dpi) and
// writes it. id is the caller-assigned dbstore image id for this
// record; sourceImageID points at the group's first member image, per
// the region_render/member linkage invariant.
func (e *Extractor) saveRegionRender(ctx context.Context, rendered image.Image, region Rectangle, pageWidth, pageHeight, dpi float64, page, groupIndex int, id, sourceImageID string) (*Extracted, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cropped := cropPageRegion(rendered, region, pageWidth, pageHeight, dpi)
	bounds := cropped.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < minImagePixels || height < minImagePixels {
		return nil, nil
	}

	filename := fmt.Sprintf("page_%d_group_%d_region.png", page, groupIndex)
	outPath := filepath.Join(e.ImagesDir, e.DocumentID, filename)
	if err := e.Saver.Save(outPath, cropped); err != nil {
		return nil, err
	}

	return &Extracted{
		ID:            id,
		PageNumber:    page,
		ImageIndex:    groupIndex,
		Path:          outPath,
		Width:         width,
		Height:        height,
		ImageType:     "region_render",
		SourceImageID: sourceImageID,
	}, nil
}

// cropPageRegion crops a full-page image rendered at dpi down to the
// pixel rectangle corresponding to region (in PDF points, origin
// bottom-left). PDF Y increases upward; image Y increases downward,
// so the vertical axis flips around page height.
func cropPageRegion(full image.Image, region Rectangle, pageWidth, pageHeight, dpi float64) image.Image {
	pixelsPerPoint := dpi / 72.0
	fullBounds := full.Bounds()

	left := int(region.X1 * pixelsPerPoint)
	top := int((pageHeight - region.Y2) * pixelsPerPoint)
	width := int(region.Width()*pixelsPerPoint + 0.999999)
	height := int(region.Height()*pixelsPerPoint + 0.999999)

	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if left > fullBounds.Dx() {
		left = fullBounds.Dx()
	}
	if top > fullBounds.Dy() {
		top = fullBounds.Dy()
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if left+width > fullBounds.Dx() {
		width = fullBounds.Dx() - left
	}
	if top+height > fullBounds.Dy() {
		height = fullBounds.Dy() - top
	}

	rect := image.Rect(fullBounds.Min.X+left, fullBounds.Min.Y+top, fullBounds.Min.X+left+width, fullBounds.Min.Y+top+height)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, full.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}
