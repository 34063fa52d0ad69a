// Package catalog provides the bundled course dataset consumed by the catalog loader.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/advising-api/internal/models"
)

//go:embed courses.yaml
var bundled []byte

// Source yields catalog entries in dataset order.
type Source interface {
	Entries() ([]models.CatalogEntry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]models.CatalogEntry, error)

// Entries implements Source.
func (f SourceFunc) Entries() ([]models.CatalogEntry, error) { return f() }

// Bundled returns the dataset compiled into the binary.
func Bundled() Source {
	return SourceFunc(func() ([]models.CatalogEntry, error) {
		return Decode(bytes.NewReader(bundled))
	})
}

// File reads the dataset from path on every call.
func File(path string) Source {
	return SourceFunc(func() ([]models.CatalogEntry, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog %s: %w", path, err)
		}
		defer f.Close()
		return Decode(f)
	})
}

type document struct {
	Courses []models.CatalogEntry `yaml:"courses"`
}

// Decode parses a YAML dataset and trims every field. Unknown fields or a malformed
// document fail; per-row problems are left for Check so one bad row does not reject
// the rest.
func Decode(r io.Reader) ([]models.CatalogEntry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog dataset is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range doc.Courses {
		e := &doc.Courses[i]
		e.Code = strings.TrimSpace(e.Code)
		e.Name = strings.TrimSpace(e.Name)
		e.Track = strings.TrimSpace(e.Track)
		e.Semester = strings.TrimSpace(e.Semester)
		e.Category = strings.TrimSpace(e.Category)
	}
	return doc.Courses, nil
}

// Check reports why a row cannot be loaded, or nil when it can.
func Check(e models.CatalogEntry) error {
	switch {
	case e.Code == "":
		return errors.New("code required")
	case e.Name == "":
		return errors.New("name required")
	case e.Track == "":
		return errors.New("track required")
	case e.Credits <= 0:
		return errors.New("credits must be positive")
	}
	return nil
}
