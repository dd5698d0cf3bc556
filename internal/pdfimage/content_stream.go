package pdfimage

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// QPDFContentStreamReader implements ContentStreamReader by running
// `qpdf --qdf --object-streams=disable` (which decompresses content
// streams into human-readable text) and hand-tokenizing each page's
// content stream for cm/q/Q/Do operators, tracking a CTM stack.
//
// Full per-draw clip rects and inline SMask resolution require
// resolving the page's /Resources/XObject dictionary and nested Form
// XObjects, which the qdf text dump doesn't expose cheaply; this
// adapter recovers rotation/mirroring transforms faithfully (the
// common case driving a warp) and leaves ClipRect/SMask unset when it
// can't derive them without a real object-graph parser, relying on
// the pipeline's coordinate-fixing fallback to use the image's own
// bounds in that case.
type QPDFContentStreamReader struct{}

var pageObjectRe = regexp.MustCompile(`(?s)(\d+) 0 obj\s*<<(.*?)>>\s*(?:stream\r?\n(.*?)\r?\nendstream)?`)
var contentsRefRe = regexp.MustCompile(`/Contents\s+(\d+)\s+0\s+R`)
var typePageRe = regexp.MustCompile(`/Type\s*/Page\b`)

func (QPDFContentStreamReader) ImageTransforms(ctx context.Context, path string) (map[int][]ImageTransform, error) {
	out, err := exec.CommandContext(ctx, "qpdf", "--qdf", "--object-streams=disable", "--stream-data=uncompress", path, "-").Output()
	if err != nil {
		return nil, senerrors.TextExtraction(0, err)
	}

	objects := parseQDFObjects(out)

	var pageObjIDs []int
	for id, obj := range objects {
		if typePageRe.MatchString(obj.dict) {
			pageObjIDs = append(pageObjIDs, id)
		}
	}

	result := make(map[int][]ImageTransform)
	for page, objID := range orderPagesByID(pageObjIDs) {
		obj := objects[objID]
		m := contentsRefRe.FindStringSubmatch(obj.dict)
		if m == nil {
			continue
		}
		contentsID, _ := strconv.Atoi(m[1])
		content, ok := objects[contentsID]
		if !ok {
			continue
		}

		transforms := tokenizeContentStream(content.stream)
		if len(transforms) > 0 {
			result[page] = transforms
		}
	}

	return result, nil
}

type qdfObject struct {
	dict   string
	stream string
}

func parseQDFObjects(data []byte) map[int]qdfObject {
	objects := make(map[int]qdfObject)
	matches := pageObjectRe.FindAllSubmatch(data, -1)
	for _, m := range matches {
		id, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		objects[id] = qdfObject{dict: string(m[2]), stream: string(m[3])}
	}
	return objects
}

// orderPagesByID returns pageObjIDs as a 0-indexed page->objID map,
// in ascending object-id order. qpdf --qdf lays out page objects in
// document order, so this is a reasonable proxy for page order
// without fully resolving the /Pages tree.
func orderPagesByID(ids []int) map[int]int {
	sorted := append([]int(nil), ids...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	out := make(map[int]int, len(sorted))
	for i, id := range sorted {
		out[i] = id
	}
	return out
}

// identityMatrix is the CTM at the start of every content stream.
var identityMatrix = [6]float64{1, 0, 0, 1, 0, 0}

// tokenizeContentStream walks a page's content stream, tracking a CTM
// stack across q/Q, concatenating cm, and emitting an ImageTransform
// for every Do that draws under a non-identity (rotated or mirrored)
// CTM.
func tokenizeContentStream(content string) []ImageTransform {
	var transforms []ImageTransform
	stack := [][6]float64{identityMatrix}
	current := identityMatrix

	var pendingClip Rectangle
	var hasPendingClip bool
	var committedClip Rectangle
	var hasCommittedClip bool

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
				hasCommittedClip = false
			case "cm":
				if len(operands) >= 6 {
					m := [6]float64{operands[0], operands[1], operands[2], operands[3], operands[4], operands[5]}
					current = concatMatrix(m, current)
				}
			case "re":
				if len(operands) >= 4 {
					x, y, w, h := operands[0], operands[1], operands[2], operands[3]
					pendingClip = Rectangle{X1: x, Y1: y, X2: x + w, Y2: y + h}
					hasPendingClip = true
				}
			case "W", "W*":
				if hasPendingClip {
					committedClip = pendingClip
					hasCommittedClip = true
				}
			case "Do":
				if needsTransformation(current) || hasCommittedClip {
					bounds := computeBoundsFromCTM(current)
					t := ImageTransform{Matrix: current}
					t.ComputedBounds = bounds
					t.HasComputedBounds = true
					// The qdf dump doesn't resolve the drawn XObject's own
					// /Width //Height, so the CTM's own computed bounds
					// stand in as the expected placement size: a real match
					// is one whose raster-reported area already lands close
					// to where this CTM says it should be.
					t.ExpectedWidth = int(bounds.Width() + 0.5)
					t.ExpectedHeight = int(bounds.Height() + 0.5)
					if hasCommittedClip {
						t.ClipRect = committedClip
						t.HasClipRect = true
					}
					transforms = append(transforms, t)
				}
			}

			if tok != "" && !isNumericToken(tok) {
				operands = operands[:0]
			}
		}
	}

	return transforms
}

func isNumericToken(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

// concatMatrix composes the PDF `cm` operator: newCTM = m * current.
func concatMatrix(m, current [6]float64) [6]float64 {
	a1, b1, c1, d1, e1, f1 := m[0], m[1], m[2], m[3], m[4], m[5]
	a2, b2, c2, d2, e2, f2 := current[0], current[1], current[2], current[3], current[4], current[5]

	return [6]float64{
		a1*a2 + b1*c2,
		a1*b2 + b1*d2,
		c1*a2 + d1*c2,
		c1*b2 + d1*d2,
		e1*a2 + f1*c2 + e2,
		e1*b2 + f1*d2 + f2,
	}
}
