package pdfimage

import (
	"bufio"
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

// PdfiumCLI implements ContentEngine without a pdfium binding: text and
// path regions come from poppler's own bbox/content-stream tools
// (pdftotext -bbox, and the same qdf content-stream tokenizer the
// ContentStreamReader adapter uses, read for `re` rectangles rather
// than Do-time CTMs), and whole-page rasterisation at an arbitrary DPI
// comes from pdftoppm. There's no standalone pdfium CLI to shell out
// to; this adapter is grounded on the same poppler-utils surface as
// PopplerCLI, reused for the pdfium-shaped queries the pipeline needs.
type PdfiumCLI struct{}

var bboxPageRe = regexp.MustCompile(`(?s)<page width="([\d.]+)" height="([\d.]+)"[^>]*>(.*?)</page>`)
var bboxWordRe = regexp.MustCompile(`<word xMin="([\d.]+)" yMin="([\d.]+)" xMax="([\d.]+)" yMax="([\d.]+)"[^>]*>`)

func (PdfiumCLI) PageRegions(ctx context.Context, path string, page int) (text, paths []Rectangle, images []PdfiumImageInfo, err error) {
	pageArg := strconv.Itoa(page + 1)

	out, terr := exec.CommandContext(ctx, "pdftotext", "-bbox", "-f", pageArg, "-l", pageArg, path, "-").Output()
	if terr != nil {
		return nil, nil, nil, senerrors.TextExtraction(page, fmt.Errorf("pdftotext -bbox: %w", terr))
	}

	pageMatch := bboxPageRe.FindSubmatch(out)
	var pageHeight float64
	if pageMatch != nil {
		pageHeight, _ = strconv.ParseFloat(string(pageMatch[2]), 64)
		for _, wm := range bboxWordRe.FindAllSubmatch(pageMatch[3], -1) {
			xMin, _ := strconv.ParseFloat(string(wm[1]), 64)
			yMin, _ := strconv.ParseFloat(string(wm[2]), 64)
			xMax, _ := strconv.ParseFloat(string(wm[3]), 64)
			yMax, _ := strconv.ParseFloat(string(wm[4]), 64)
			// pdftotext -bbox reports y top-down from the page's top edge;
			// flip to page-space (origin bottom-left) to match Rectangle's
			// convention used throughout this package.
			text = append(text, Rectangle{
				X1: xMin, Y1: pageHeight - yMax,
				X2: xMax, Y2: pageHeight - yMin,
			})
		}
	}

	paths, perr := pathRegionsForPage(ctx, path, page)
	if perr != nil {
		// Path regions are a best-effort supplement to text regions; a
		// qpdf failure shouldn't sink region detection entirely.
		paths = nil
	}

	images, ierr := imageRegionsForPage(ctx, path, page)
	if ierr != nil {
		images = nil
	}

	return text, paths, images, nil
}

// pathRegionsForPage re-tokenizes the page's content stream (same qdf
// dump as QPDFContentStreamReader) collecting every `re` rectangle
// under its CTM, regardless of whether it was ever clipped to or
// drawn through — a proxy for "vector art occupies this area" used by
// the overlap grouper to decide whether a region needs re-rendering
// rather than cropping.
func pathRegionsForPage(ctx context.Context, path string, page int) ([]Rectangle, error) {
	out, err := exec.CommandContext(ctx, "qpdf", "--qdf", "--object-streams=disable", "--stream-data=uncompress", path, "-").Output()
	if err != nil {
		return nil, err
	}

	objects := parseQDFObjects(out)
	var pageObjIDs []int
	for id, obj := range objects {
		if typePageRe.MatchString(obj.dict) {
			pageObjIDs = append(pageObjIDs, id)
		}
	}
	ordered := orderPagesByID(pageObjIDs)
	objID, ok := ordered[page]
	if !ok {
		return nil, fmt.Errorf("page %d not found", page)
	}
	m := contentsRefRe.FindStringSubmatch(objects[objID].dict)
	if m == nil {
		return nil, nil
	}
	contentsID, _ := strconv.Atoi(m[1])
	content, ok := objects[contentsID]
	if !ok {
		return nil, nil
	}

	return tokenizePathRects(content.stream), nil
}

// tokenizePathRects is a narrower sibling of tokenizeContentStream: it
// tracks the same CTM stack but collects every `re` operand as a
// page-space rectangle instead of emitting ImageTransforms at Do.
func tokenizePathRects(content string) []Rectangle {
	var rects []Rectangle
	stack := [][6]float64{identityMatrix}
	current := identityMatrix
	var operands []float64

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, tok := range strings.Fields(scanner.Text()) {
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				operands = append(operands, v)
				continue
			}
			switch tok {
			case "q":
				stack = append(stack, current)
			case "Q":
				if len(stack) > 0 {
					current = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
				}
			case "cm":
				if len(operands) >= 6 {
					m := [6]float64{operands[0], operands[1], operands[2], operands[3], operands[4], operands[5]}
					current = concatMatrix(m, current)
				}
			case "re":
				if len(operands) >= 4 {
					x, y, w, h := operands[0], operands[1], operands[2], operands[3]
					rects = append(rects, transformRectByMatrix(Rectangle{X1: x, Y1: y, X2: x + w, Y2: y + h}, current))
				}
			}
			if tok != "" && !isNumericToken(tok) {
				operands = operands[:0]
			}
		}
	}
	return rects
}

func transformRectByMatrix(r Rectangle, m [6]float64) Rectangle {
	corners := [4][2]float64{{r.X1, r.Y1}, {r.X2, r.Y1}, {r.X1, r.Y2}, {r.X2, r.Y2}}
	out := Rectangle{X1: 1e18, Y1: 1e18, X2: -1e18, Y2: -1e18}
	for _, c := range corners {
		x := c[0]*m[0] + c[1]*m[2] + m[4]
		y := c[0]*m[1] + c[1]*m[3] + m[5]
		out.X1 = minF(out.X1, x)
		out.Y1 = minF(out.Y1, y)
		out.X2 = maxF(out.X2, x)
		out.Y2 = maxF(out.Y2, y)
	}
	return out
}

var pdfimagesListLineRe = regexp.MustCompile(`(?m)^\s*(\d+)\s+\d+\s+\S+\s+\S+\s+(\d+)\s+(\d+)\s`)

// imageRegionsForPage shells to `pdfimages -list`, poppler-utils'
// tabular per-image summary, for width/height; it carries no
// page-placement bbox, same limitation as PopplerCLI.PageImages.
func imageRegionsForPage(ctx context.Context, path string, page int) ([]PdfiumImageInfo, error) {
	pageArg := strconv.Itoa(page + 1)
	out, err := exec.CommandContext(ctx, "pdfimages", "-list", "-f", pageArg, "-l", pageArg, path).Output()
	if err != nil {
		return nil, err
	}

	var infos []PdfiumImageInfo
	for _, m := range pdfimagesListLineRe.FindAllStringSubmatch(string(out), -1) {
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		infos = append(infos, PdfiumImageInfo{Width: w, Height: h})
	}
	return infos, nil
}

func (PdfiumCLI) RasterizePage(ctx context.Context, path string, page int, dpi float64) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "pdftoppm-*")
	if err != nil {
		return nil, senerrors.TextExtraction(page, err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(page + 1)
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", strconv.FormatFloat(dpi, 'f', -1, 64), "-png", "-f", pageArg, "-l", pageArg, path, prefix)
	if err := cmd.Run(); err != nil {
		return nil, senerrors.TextExtraction(page, fmt.Errorf("pdftoppm: %w", err))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil || len(entries) == 0 {
		return nil, senerrors.TextExtraction(page, fmt.Errorf("pdftoppm produced no output"))
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, entries[0].Name()))
	if err != nil {
		return nil, senerrors.TextExtraction(page, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, senerrors.TextExtraction(page, err)
	}
	return img, nil
}
