package pdfimage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// PopplerCLI implements RasterEngine by shelling out to poppler-utils
// (pdfinfo, pdfimages). It decodes each embedded image via
// `pdfimages -png`, which does poppler's own format/colourspace
// decoding for us — the CLI surface doesn't expose poppler's raw
// Cairo surface or its image_mapping() page-placement bounds, so
// PageImages reports an empty Area for every image and placement is
// resolved downstream, by CTM matching (ContentStreamReader) falling
// back to the full page rectangle, exactly as the coordinate-fixing
// pipeline's last-resort step already handles.
type PopplerCLI struct{}

var pdfinfoPagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)
var pdfinfoPageSizeRe = regexp.MustCompile(`(?m)^Page size:\s+([\d.]+)\s*x\s*([\d.]+)\s*pts`)

func (PopplerCLI) PageCount(ctx context.Context, path string) (int, error) {
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0, senerrors.TextExtraction(0, fmt.Errorf("pdfinfo: %w", err))
	}
	m := pdfinfoPagesRe.FindSubmatch(out)
	if m == nil {
		return 0, senerrors.TextExtraction(0, fmt.Errorf("pdfinfo: could not parse page count"))
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, senerrors.TextExtraction(0, err)
	}
	return n, nil
}

func (PopplerCLI) PageSize(ctx context.Context, path string, page int) (float64, float64, error) {
	out, err := exec.CommandContext(ctx, "pdfinfo", "-f", strconv.Itoa(page+1), "-l", strconv.Itoa(page+1), path).Output()
	if err != nil {
		return 0, 0, senerrors.TextExtraction(page, fmt.Errorf("pdfinfo: %w", err))
	}
	m := pdfinfoPageSizeRe.FindSubmatch(out)
	if m == nil {
		return 0, 0, senerrors.TextExtraction(page, fmt.Errorf("pdfinfo: could not parse page size"))
	}
	w, _ := strconv.ParseFloat(string(m[1]), 64)
	h, _ := strconv.ParseFloat(string(m[2]), 64)
	return w, h, nil
}

func (p PopplerCLI) PageBoxes(ctx context.Context, path string, page int) (PageBoxes, error) {
	w, h, err := p.PageSize(ctx, path, page)
	if err != nil {
		return PageBoxes{}, err
	}
	// pdfinfo doesn't expose MediaBox/CropBox deltas directly; the
	// common case (no CropBox offset) is assumed, and the
	// pdfium-dimension-match / full-page fallbacks in
	// fixPageCoordinates cover the rest.
	box := Rectangle{X1: 0, Y1: 0, X2: w, Y2: h}
	return PageBoxes{MediaBox: box, CropBox: box}, nil
}

func (PopplerCLI) PageImages(ctx context.Context, path string, page int) ([]ImageMapping, error) {
	tmpDir, err := os.MkdirTemp("", "pdfimages-*")
	if err != nil {
		return nil, senerrors.TextExtraction(page, err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "img")
	pageArg := strconv.Itoa(page + 1)
	cmd := exec.CommandContext(ctx, "pdfimages", "-png", "-f", pageArg, "-l", pageArg, path, prefix)
	if err := cmd.Run(); err != nil {
		return nil, senerrors.TextExtraction(page, fmt.Errorf("pdfimages: %w", err))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, senerrors.TextExtraction(page, err)
	}

	var mappings []ImageMapping
	imageID := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}

		rgba := toRGBABytes(img)
		bounds := img.Bounds()
		mappings = append(mappings, ImageMapping{
			ImageID:     imageID,
			Area:        Rectangle{}, // resolved via CTM match or full-page fallback
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			Stride:      bounds.Dx() * 4,
			AlreadyRGBA: true,
			SurfaceData: rgba,
		})
		imageID++
	}

	return mappings, nil
}

// toRGBABytes flattens any decoded image.Image into straight-alpha
// RGBA bytes, row-major, stride = width*4.
func toRGBABytes(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Bounds().Dx()*4 {
		return append([]byte(nil), rgba.Pix...)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out[i+0] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(b >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out
}
