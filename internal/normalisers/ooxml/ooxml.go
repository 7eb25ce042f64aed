// Package ooxml reads the zip container shared by Office Open XML formats.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxPartSize bounds a single decompressed part.
const maxPartSize = 64 << 20

// Package is an opened OOXML container.
type Package struct {
	zr *zip.Reader
}

// Open reads an OOXML container from memory.
func Open(content []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	return &Package{zr: zr}, nil
}

// Has reports whether the part exists.
func (p *Package) Has(name string) bool {
	for _, f := range p.zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Names returns part names with the given prefix and suffix.
func (p *Package) Names(prefix, suffix string) []string {
	var names []string
	for _, f := range p.zr.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, suffix) {
			names = append(names, f.Name)
		}
	}
	return names
}

// ReadPart returns the decompressed bytes of a part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	for _, f := range p.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(data) > maxPartSize {
			return nil, fmt.Errorf("read %s: part exceeds %d bytes", name, maxPartSize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// Title returns the document title from docProps/core.xml, or "".
func (p *Package) Title() string {
	data, err := p.ReadPart("docProps/core.xml")
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

// AttrValue returns the value of the first attribute with the given local name.
func AttrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
