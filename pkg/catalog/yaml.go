package catalog

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes and validates a YAML catalog. Unknown keys are rejected
// so typos in catalog files surface at load time.
func LoadYAML(r io.Reader) (Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, errors.Join(ErrInvalidCatalog, errors.New("empty catalog"))
		}
		return Catalog{}, errors.Join(ErrFailedToLoad, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Catalog{}, errors.Join(ErrCatalogNotFound, err)
		}
		return Catalog{}, errors.Join(ErrFailedToLoad, err)
	}
	defer f.Close()

	return LoadYAML(f)
}

// MarshalYAML encodes the catalog in the format LoadYAML reads.
func MarshalYAML(c Catalog) ([]byte, error) {
	return yaml.Marshal(c)
}
