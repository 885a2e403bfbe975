package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDocx walks word/document.xml in order. Paragraphs whose style name
// starts with "heading" become "--- Section: <text> ---" markers; other
// non-empty paragraphs are kept verbatim.
func extractDocx(p string) (string, error) {
	pkg, err := openPackage(p)
	if err != nil {
		return "", err
	}
	defer pkg.Close()

	styles, err := docxStyleNames(pkg)
	if err != nil {
		return "", err
	}

	rc, err := pkg.open("word/document.xml")
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		out     strings.Builder
		para    strings.Builder
		styleID string
		depth   int // nested paragraphs (text boxes) fold into the outer one
		inText  bool
		inProps bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					para.Reset()
					styleID = ""
				}
				depth++
			case "pPr":
				inProps = true
			case "pStyle":
				if depth == 1 {
					styleID, _ = attrValue(t, "val")
				}
			case "t":
				inText = depth > 0
			case "tab":
				// Tab stops inside paragraph properties share the element name.
				if depth > 0 && !inProps {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "pPr":
				inProps = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				text := para.String()
				trimmed := strings.TrimSpace(text)
				if trimmed == "" {
					continue
				}
				if isHeadingStyle(styles, styleID) {
					fmt.Fprintf(&out, "\n--- Section: %s ---\n", trimmed)
				} else {
					out.WriteString(text)
					out.WriteByte('\n')
				}
			}
		}
	}
	return out.String(), nil
}

// docxStyleNames maps style ids to display names from word/styles.xml.
func docxStyleNames(pkg *ooxmlPackage) (map[string]string, error) {
	names := make(map[string]string)
	if !pkg.has("word/styles.xml") {
		return names, nil
	}
	rc, err := pkg.open("word/styles.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc struct {
		Styles []struct {
			ID   string `xml:"styleId,attr"`
			Name struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode styles.xml: %w", err)
	}
	for _, s := range doc.Styles {
		if s.ID != "" && s.Name.Val != "" {
			names[s.ID] = s.Name.Val
		}
	}
	return names, nil
}

func isHeadingStyle(names map[string]string, styleID string) bool {
	if styleID == "" {
		return false
	}
	name, ok := names[styleID]
	if !ok {
		name = styleID
	}
	return strings.HasPrefix(strings.ToLower(name), "heading")
}
