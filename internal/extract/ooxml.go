package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPartSize bounds how much of a single archive member is decompressed.
const maxPartSize = 64 << 20

// ooxmlPackage is an opened Office Open XML archive.
type ooxmlPackage struct {
	r     *zip.ReadCloser
	parts map[string]*zip.File
}

func openPackage(p string) (*ooxmlPackage, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	parts := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		parts[f.Name] = f
	}
	return &ooxmlPackage{r: r, parts: parts}, nil
}

func (p *ooxmlPackage) Close() error {
	return p.r.Close()
}

func (p *ooxmlPackage) has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// open returns a size-limited reader over the named part.
func (p *ooxmlPackage) open(name string) (io.ReadCloser, error) {
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, maxPartSize), rc}, nil
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// relationships parses the .rels part belonging to partName and resolves
// targets to archive member names. A missing rels part yields no entries.
func (p *ooxmlPackage) relationships(partName string) (map[string]relationship, error) {
	dir, file := path.Split(partName)
	relsName := dir + "_rels/" + file + ".rels"
	if !p.has(relsName) {
		return map[string]relationship{}, nil
	}
	rc, err := p.open(relsName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc struct {
		Relationships []relationship `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", relsName, err)
	}
	out := make(map[string]relationship, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		if strings.HasPrefix(rel.Target, "/") {
			rel.Target = strings.TrimPrefix(rel.Target, "/")
		} else {
			rel.Target = path.Clean(path.Join(dir, rel.Target))
		}
		out[rel.ID] = rel
	}
	return out, nil
}

func attrValue(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}
