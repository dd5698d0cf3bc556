package extract

import (
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	pdf "github.com/dslipak/pdf"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// pdfRawPage is a page's raw extracted text before watermark
// filtering, keyed by its 1-indexed page number.
type pdfRawPage struct {
	num  int
	text string
}

// extractPDF extracts page text from a PDF, filters out repeating
// watermark lines, and attaches bookmark-derived section titles where
// the document's outline covers a page.
func extractPDF(path string) ([]Section, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, senerrors.TextExtraction(0, err)
	}

	bookmarks := extractBookmarks(path)

	var rawPages []pdfRawPage
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			rawPages = append(rawPages, pdfRawPage{num: i, text: text})
		}
	}

	watermarks := detectWatermarks(rawPages)

	var sections []Section
	currentTitle := ""
	for _, rp := range rawPages {
		if title, ok := bookmarks[rp.num]; ok {
			currentTitle = title
		}

		clean := rp.text
		if len(watermarks) > 0 {
			clean = removeWatermarkLines(clean, watermarks)
		}
		clean = strings.TrimSpace(clean)
		if clean == "" {
			continue
		}

		sections = append(sections, Section{
			Title:      currentTitle,
			Content:    clean,
			PageNumber: rp.num,
		})
	}

	if len(sections) == 0 {
		return nil, senerrors.TextExtraction(0, nil)
	}
	return sections, nil
}

// detectWatermarks finds lines that recur on more than half of a
// document's pages; those are treated as running headers/footers or
// watermark stamps rather than content.
func detectWatermarks(pages []pdfRawPage) map[string]struct{} {
	if len(pages) < 2 {
		return nil
	}

	counts := make(map[string]int)
	for _, p := range pages {
		seen := make(map[string]struct{})
		for _, line := range strings.Split(p.text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			seen[line] = struct{}{}
		}
		for line := range seen {
			counts[line]++
		}
	}

	threshold := len(pages) / 2
	watermarks := make(map[string]struct{})
	for line, count := range counts {
		if count > threshold {
			watermarks[line] = struct{}{}
		}
	}
	if len(watermarks) == 0 {
		return nil
	}
	return watermarks
}

func removeWatermarkLines(text string, watermarks map[string]struct{}) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if _, ok := watermarks[strings.TrimSpace(line)]; ok {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// qpdfOutline mirrors the subset of `qpdf --json`'s "outlines" array
// this code cares about: a title, an optional destination, and
// children.
type qpdfOutline struct {
	Title string          `json:"title"`
	Dest  json.RawMessage `json:"dest"`
	Kids  []qpdfOutline   `json:"kids"`
}

type qpdfDocument struct {
	Outlines []qpdfOutline `json:"outlines"`
}

// extractBookmarks shells out to qpdf to recover the document's
// outline tree, returning a map of 1-indexed page number to a
// hierarchical section title (e.g. "Adventure 1 > NPCs"). Returns an
// empty map if qpdf isn't installed or the PDF has no outline; a
// missing outline is not an ingestion failure.
func extractBookmarks(path string) map[int]string {
	out, err := exec.Command("qpdf", "--json", path).Output()
	if err != nil {
		return nil
	}

	var doc qpdfDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil
	}

	pageSections := make(map[int]string)
	walkOutlines(doc.Outlines, pageSections, nil)
	return pageSections
}

func walkOutlines(outlines []qpdfOutline, pageSections map[int]string, titleStack []string) {
	for _, o := range outlines {
		if o.Title == "" {
			continue
		}
		stack := append(titleStack, o.Title)

		if page, ok := pageFromDest(o.Dest); ok {
			pageSections[page] = strings.Join(stack, " > ")
		}

		if len(o.Kids) > 0 {
			walkOutlines(o.Kids, pageSections, stack)
		}
	}
}

// pageFromDest extracts a 1-indexed page number from qpdf's "dest"
// field, which may be a "page:N" string or an array whose first
// element is that string or a raw page index. qpdf uses 0-indexed
// pages.
func pageFromDest(dest json.RawMessage) (int, bool) {
	if len(dest) == 0 {
		return 0, false
	}

	var s string
	if err := json.Unmarshal(dest, &s); err == nil {
		return pageFromDestString(s)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(dest, &arr); err == nil && len(arr) > 0 {
		if err := json.Unmarshal(arr[0], &s); err == nil {
			return pageFromDestString(s)
		}
		var n int
		if err := json.Unmarshal(arr[0], &n); err == nil {
			return n + 1, true
		}
	}

	return 0, false
}

func pageFromDestString(s string) (int, bool) {
	rest, ok := strings.CutPrefix(s, "page:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n + 1, true
}
