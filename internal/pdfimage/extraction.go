package pdfimage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Thresholds bundles the corpus-tunable parameters that, unlike the
// fixed geometric constants, are read from configuration.
type Thresholds struct {
	BackgroundMinPages      int
	BackgroundAreaThreshold float64
	TextOverlapMinDPI       float64
}

// Extractor runs the full PDF image extraction pipeline for one
// document, driven by a RasterEngine/ContentEngine/ContentStreamReader
// triple and writing its output through a Saver.
type Extractor struct {
	Raster  RasterEngine
	Content ContentEngine
	Streams ContentStreamReader
	Saver   Saver

	// DocumentID and ImagesDir locate this document's output files:
	// ImagesDir/DocumentID/page_{p}_img_{i}.png and
	// ImagesDir/DocumentID/page_{p}_group_{g}_region.png.
	DocumentID string
	ImagesDir  string

	Thresholds Thresholds
	Logger     *slog.Logger
}

// Extracted is one output record from the pipeline: either an
// individual image or a group region render, ready to persist as a
// dbstore row. ID is assigned by the extractor itself (rather than by
// the caller) so a region_render record's SourceImageID can reference
// a member image's id regardless of insertion order.
type Extracted struct {
	ID              string
	PageNumber      int
	ImageIndex      int
	Path            string
	Width, Height   int
	ImageType       string // "individual", "background", "region_render"
	SourcePages     []int
	HasRegionRender bool
	SourceImageID   string
}

// Run extracts every image from the PDF at path, writing output files
// via Saver and returning one Extracted record per output file. A
// per-image failure is logged and skipped; it never aborts the whole
// document (state machine: decoded -> coord_fixed ->
// background_tagged_or_not -> grouped -> transformed? -> smask_applied?
// -> cropped? -> sized_ok? -> written).
func (e *Extractor) Run(ctx context.Context, path string) ([]Extracted, error) {
	pageCount, err := e.Raster.PageCount(ctx, path)
	if err != nil {
		return nil, senerrors.TextExtraction(0, err)
	}

	transforms, err := e.Streams.ImageTransforms(ctx, path)
	if err != nil {
		// A broken content-stream reader degrades the pipeline (no CTM
		// corrections) rather than failing the whole document.
		e.logf("content stream reader failed, continuing without transforms: %v", err)
		transforms = map[int][]ImageTransform{}
	}

	perPage := make(map[int][]ImageMapping, pageCount)
	pageSizes := make(map[int][2]float64, pageCount)
	pageBoxesByPage := make(map[int]PageBoxes, pageCount)

	for page := 0; page < pageCount; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		w, h, err := e.Raster.PageSize(ctx, path, page)
		if err != nil {
			e.logf("page %d: size lookup failed: %v", page, err)
			continue
		}
		pageSizes[page] = [2]float64{w, h}

		boxes, err := e.Raster.PageBoxes(ctx, path, page)
		if err == nil {
			pageBoxesByPage[page] = boxes
		}

		mappings, err := e.Raster.PageImages(ctx, path, page)
		if err != nil {
			e.logf("page %d: image mapping failed: %v", page, err)
			continue
		}
		if len(mappings) == 0 {
			continue
		}

		var pdfiumImages []PdfiumImageInfo
		if _, _, images, err := e.Content.PageRegions(ctx, path, page); err == nil {
			pdfiumImages = images
		}

		ptrs := make([]*ImageMapping, len(mappings))
		for i := range mappings {
			ptrs[i] = &mappings[i]
		}
		fixPageCoordinates(ptrs, pageBoxesByPage[page], w, h, pdfiumImages)

		for i := range mappings {
			applyMatchedTransform(&mappings[i], page, w, h, transforms)
		}

		perPage[page] = mappings
	}

	backgroundPages, backgrounds := detectBackgrounds(perPage, pageSizes, e.Thresholds.BackgroundMinPages, e.Thresholds.BackgroundAreaThreshold)

	var out []Extracted
	imageCounter := make(map[int]int) // per-page individual-image index

	for _, bg := range backgrounds {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		page := bg.representative.page
		mapping := perPage[page][bg.representative.imageIndex]
		idx := imageCounter[page]
		imageCounter[page]++
		if rec, err := e.saveIndividual(ctx, mapping, page, idx, "background", bg.sourcePages, "", uuid.NewString()); err != nil {
			e.logf("page %d background image: %v", page, err)
		} else if rec != nil {
			out = append(out, *rec)
		}
	}

	for page, mappings := range perPage {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bgSet := backgroundPages[page]
		var localIdx []int
		var localRects []Rectangle
		for i, m := range mappings {
			if bgSet != nil && bgSet[i] {
				continue
			}
			localIdx = append(localIdx, i)
			localRects = append(localRects, m.Area)
		}
		if len(localIdx) == 0 {
			continue
		}

		w, h := pageSizes[page][0], pageSizes[page][1]
		textRegions, pathRegions, _, _ := e.Content.PageRegions(ctx, path, page)
		textRegions = clipToPage(mergeTextLines(textRegions), w, h)
		pathRegions = clipToPage(pathRegions, w, h)

		groups := groupOverlaps(localRects, textRegions, pathRegions)

		for _, g := range groups {
			members := make([]int, len(g.ImageIndices))
			for i, local := range g.ImageIndices {
				members[i] = localIdx[local]
			}

			// Member ids are assigned up front, before the region render
			// is saved, so the render's SourceImageID can point at the
			// first member (by convention) regardless of save order.
			memberIDs := make([]string, len(members))
			for i := range memberIDs {
				memberIDs[i] = uuid.NewString()
			}

			var renderRecordID string
			if g.NeedsRegionRender() {
				dpi := groupRegionDPI(members, mappings, w, h, g, e.Thresholds.TextOverlapMinDPI)
				rendered, err := e.Content.RasterizePage(ctx, path, page, dpi)
				if err != nil {
					e.logf("page %d: region render rasterisation failed: %v", page, err)
				} else {
					idx := imageCounter[page]
					imageCounter[page]++
					rec, err := e.saveRegionRender(ctx, rendered, g.CombinedRegion, w, h, dpi, page, idx, uuid.NewString(), memberIDs[0])
					if err != nil {
						e.logf("page %d: saving region render failed: %v", page, err)
					} else if rec != nil {
						out = append(out, *rec)
						renderRecordID = rec.ID
					}
				}
			}

			for mi, m := range members {
				idx := imageCounter[page]
				imageCounter[page]++
				hasRender := renderRecordID != ""
				rec, err := e.saveIndividual(ctx, mappings[m], page, idx, "individual", nil, "", memberIDs[mi])
				if err != nil {
					e.logf("page %d image %d: %v", page, m, err)
					continue
				}
				if rec == nil {
					continue
				}
				rec.HasRegionRender = hasRender
				out = append(out, *rec)
			}
		}
	}

	return out, nil
}

func (e *Extractor) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Debug(fmt.Sprintf(format, args...))
	}
}

// applyMatchedTransform finds a matching ImageTransform for mapping,
// and if found, narrows its bounds to the CTM-computed bounds (when
// valid) intersected with any clip rect, and carries the transform
// matrix and SMask data onto the mapping for later rendering.
func applyMatchedTransform(mapping *ImageMapping, page int, pageWidth, pageHeight float64, transforms map[int][]ImageTransform) {
	t, ok := findMatchingTransform(page, mapping.Area.Width(), mapping.Area.Height(), mapping.Area, transforms)
	if !ok {
		return
	}

	baseArea := mapping.Area
	if t.HasComputedBounds && isValidBounds(t.ComputedBounds, pageWidth, pageHeight) {
		baseArea = t.ComputedBounds
	}

	if t.HasClipRect {
		baseArea = Rectangle{
			X1: maxF(baseArea.X1, t.ClipRect.X1),
			Y1: maxF(baseArea.Y1, t.ClipRect.Y1),
			X2: minF(baseArea.X2, t.ClipRect.X2),
			Y2: minF(baseArea.Y2, t.ClipRect.Y2),
		}
	}

	mapping.Area = baseArea
	mapping.matrix = t.Matrix
	mapping.hasMatrix = true
	if t.HasSMask {
		mapping.smaskData = t.SMaskData
		mapping.smaskWidth = t.SMaskWidth
		mapping.smaskHeight = t.SMaskHeight
	}
}

// groupRegionDPI computes the effective DPI for a group's region
// render: the max native DPI among its member images, floored by
// textOverlapMinDPI if the group has any text/path overlap, capped at
// maxRegionDPI.
func groupRegionDPI(members []int, mappings []ImageMapping, pageWidth, pageHeight float64, g OverlapGroup, textOverlapMinDPI float64) float64 {
	widthInches := pageWidth / 72.0
	heightInches := pageHeight / 72.0

	dpi := 0.0
	for _, m := range members {
		img := mappings[m]
		imgDPI := imageDPI(img, widthInches, heightInches)
		if imgDPI > dpi {
			dpi = imgDPI
		}
	}

	if (g.TextOverlap || g.PathOverlap) && dpi < textOverlapMinDPI {
		dpi = textOverlapMinDPI
	}
	if dpi > maxRegionDPI {
		dpi = maxRegionDPI
	}
	if dpi <= 0 {
		dpi = 150
	}
	return dpi
}

func imageDPI(m ImageMapping, widthInches, heightInches float64) float64 {
	var dpiW, dpiH float64
	if widthInches > 0 {
		dpiW = float64(m.Width) / widthInches
	}
	if heightInches > 0 {
		dpiH = float64(m.Height) / heightInches
	}
	if dpiW > dpiH {
		return dpiW
	}
	return dpiH
}
