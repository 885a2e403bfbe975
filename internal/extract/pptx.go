package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	relTypeSlide     = "/slide"
	relTypeNotes     = "/notesSlide"
	presentationPart = "ppt/presentation.xml"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxShape is a text-bearing shape on a slide or notes page.
type pptxShape struct {
	placeholder string // ph type, empty when the shape is not a placeholder
	text        string
}

// extractPptx emits, per slide in presentation order, a
// "--- Slide N[: title] ---" marker, the text of every shape, and the
// speaker notes under "--- Notes for Slide N[: title] ---".
func extractPptx(p string) (string, error) {
	pkg, err := openPackage(p)
	if err != nil {
		return "", err
	}
	defer pkg.Close()

	slides, err := slideOrder(pkg)
	if err != nil {
		return "", err
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in presentation")
	}

	var out strings.Builder
	for i, part := range slides {
		shapes, err := readShapes(pkg, part)
		if err != nil {
			return "", err
		}

		heading := fmt.Sprintf("Slide %d", i+1)
		for _, s := range shapes {
			if s.placeholder == "title" || s.placeholder == "ctrTitle" {
				if s.text != "" {
					heading = fmt.Sprintf("Slide %d: %s", i+1, s.text)
				}
				break
			}
		}

		fmt.Fprintf(&out, "\n--- %s ---\n", heading)
		for _, s := range shapes {
			if s.text != "" {
				out.WriteString(s.text)
				out.WriteByte('\n')
			}
		}

		notes, err := slideNotes(pkg, part)
		if err != nil {
			return "", err
		}
		if notes != "" {
			fmt.Fprintf(&out, "\n--- Notes for %s ---\n%s\n", heading, notes)
		}
	}
	return out.String(), nil
}

// slideOrder lists slide parts in the order of the presentation's slide id
// list, falling back to the numeric order of the slide files.
func slideOrder(pkg *ooxmlPackage) ([]string, error) {
	if pkg.has(presentationPart) {
		rels, err := pkg.relationships(presentationPart)
		if err != nil {
			return nil, err
		}
		rc, err := pkg.open(presentationPart)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		var pres struct {
			SlideIDs []struct {
				Attrs []xml.Attr `xml:",any,attr"`
			} `xml:"sldIdLst>sldId"`
		}
		if err := xml.NewDecoder(rc).Decode(&pres); err != nil {
			return nil, fmt.Errorf("decode presentation.xml: %w", err)
		}

		var ordered []string
		for _, sld := range pres.SlideIDs {
			for _, a := range sld.Attrs {
				// The relationship id is the namespaced "r:id" attribute; the bare "id" is numeric.
				if a.Name.Local != "id" || a.Name.Space == "" {
					continue
				}
				if rel, ok := rels[a.Value]; ok && strings.HasSuffix(rel.Type, relTypeSlide) && pkg.has(rel.Target) {
					ordered = append(ordered, rel.Target)
				}
			}
		}
		if len(ordered) > 0 {
			return ordered, nil
		}
	}

	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range pkg.parts {
		if m := slidePartRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out, nil
}

// slideNotes returns the body text of the slide's notes page, if any.
func slideNotes(pkg *ooxmlPackage, slidePart string) (string, error) {
	rels, err := pkg.relationships(slidePart)
	if err != nil {
		return "", err
	}
	for _, rel := range rels {
		if !strings.HasSuffix(rel.Type, relTypeNotes) || !pkg.has(rel.Target) {
			continue
		}
		shapes, err := readShapes(pkg, rel.Target)
		if err != nil {
			return "", err
		}
		var parts []string
		for _, s := range shapes {
			if s.placeholder == "body" && s.text != "" {
				parts = append(parts, s.text)
			}
		}
		return strings.Join(parts, "\n"), nil
	}
	return "", nil
}

// readShapes returns the shapes of a slide-like part in document order.
func readShapes(pkg *ooxmlPackage, part string) ([]pptxShape, error) {
	rc, err := pkg.open(part)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		shapes     []pptxShape
		cur        *pptxShape
		paragraphs []string
		para       strings.Builder
		inPara     bool
		inText     bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", part, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "sp":
				cur = &pptxShape{}
				paragraphs = paragraphs[:0]
			case cur == nil:
			case t.Name.Local == "ph":
				cur.placeholder, _ = attrValue(t, "type")
				if cur.placeholder == "" {
					cur.placeholder = "obj"
				}
			case t.Name.Space == nsDrawingML && t.Name.Local == "p":
				inPara = true
				para.Reset()
			case t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inText = inPara
			case t.Name.Space == nsDrawingML && t.Name.Local == "br":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch {
			case cur == nil:
			case t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inText = false
			case t.Name.Space == nsDrawingML && t.Name.Local == "p":
				inPara = false
				paragraphs = append(paragraphs, para.String())
			case t.Name.Local == "sp":
				cur.text = strings.TrimSpace(strings.Join(paragraphs, "\n"))
				shapes = append(shapes, *cur)
				cur = nil
			}
		}
	}
	return shapes, nil
}
