package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// epubContainer is the top-level META-INF/container.xml document,
// which points at the package's OPF rootfile.
type epubContainer struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// epubPackage is the OPF package document: a manifest of every item in
// the book keyed by id, and a spine listing the reading order by
// idref into that manifest.
type epubPackage struct {
	XMLName  xml.Name `xml:"package"`
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// extractEPUB walks an EPUB's spine in reading order, converts each
// chapter's HTML to plain text, and emits one Section per non-empty
// chapter.
func extractEPUB(path_ string) ([]Section, error) {
	r, err := zip.OpenReader(path_)
	if err != nil {
		return nil, senerrors.EpubRead("cannot open epub archive", err)
	}
	defer r.Close()

	rootfilePath, err := findRootfile(&r.Reader)
	if err != nil {
		return nil, err
	}

	pkg, err := readPackage(&r.Reader, rootfilePath)
	if err != nil {
		return nil, err
	}

	manifest := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		manifest[item.ID] = item.Href
	}

	baseDir := path.Dir(rootfilePath)

	var sections []Section
	chapterIndex := 0
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := manifest[ref.IDRef]
		if !ok {
			continue
		}

		chapterPath := path.Join(baseDir, href)
		html, err := readZipFile(&r.Reader, chapterPath)
		if err != nil {
			continue
		}

		text, err := htmltomarkdown.ConvertString(string(html))
		if err != nil {
			text = stripHTMLFallback(string(html))
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sections = append(sections, Section{
			Title:      fmt.Sprintf("Chapter: %s", ref.IDRef),
			Content:    text,
			PageNumber: chapterIndex,
		})
		chapterIndex++
	}

	if len(sections) == 0 {
		return nil, senerrors.EpubRead("no content could be extracted from epub", nil)
	}

	return sections, nil
}

func findRootfile(r *zip.Reader) (string, error) {
	data, err := readZipFile(r, "META-INF/container.xml")
	if err != nil {
		return "", senerrors.EpubRead("missing META-INF/container.xml", err)
	}

	var container epubContainer
	if err := xml.Unmarshal(data, &container); err != nil {
		return "", senerrors.EpubRead("cannot parse container.xml", err)
	}
	if len(container.Rootfiles) == 0 {
		return "", senerrors.EpubRead("container.xml names no rootfile", nil)
	}
	return container.Rootfiles[0].FullPath, nil
}

func readPackage(r *zip.Reader, rootfilePath string) (*epubPackage, error) {
	data, err := readZipFile(r, rootfilePath)
	if err != nil {
		return nil, senerrors.EpubRead("cannot read package document: "+rootfilePath, err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, senerrors.EpubRead("cannot parse package document", err)
	}
	return &pkg, nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("not found in archive: %s", name)
}

// stripHTMLFallback is a defensive fallback for chapter markup the
// converter can't parse; it keeps ingestion moving rather than
// dropping the chapter entirely.
func stripHTMLFallback(html string) string {
	var b strings.Builder
	inTag := false
	lastSpace := true
	for _, c := range html {
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case !inTag:
			if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
				if !lastSpace {
					b.WriteByte(' ')
					lastSpace = true
				}
			} else {
				b.WriteRune(c)
				lastSpace = false
			}
		}
	}
	return b.String()
}
