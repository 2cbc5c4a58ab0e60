package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

// File is the on-disk layout of a catalog document.
type File struct {
	Version  string        `yaml:"version"`
	Products []ProductRule `yaml:"products"`
}

// Parse decodes and validates a YAML catalog document. Unknown fields are
// rejected so typos in rule names fail at load time.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("catalog: empty document")
		}
		return nil, eris.Wrap(err, "catalog: parse")
	}
	return New(f.Version, f.Products)
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: load %s", path)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load returns the catalog at path, or the embedded default when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Encode writes c as a YAML catalog document.
func Encode(w io.Writer, c *Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{Version: c.Version(), Products: c.Products()}); err != nil {
		return eris.Wrap(err, "catalog: encode")
	}
	return eris.Wrap(enc.Close(), "catalog: close encoder")
}
