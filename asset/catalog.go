package asset

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/lyndon/punani-strike/vec"
	"gopkg.in/yaml.v3"
)

// MaxNameLen is the longest asset name a tile file can reference.
const MaxNameLen = 32

// Catalog lists the assets a Library can resolve.
type Catalog struct {
	Assets []BoxDef `yaml:"assets"`
}

// BoxDef describes a box asset in its local frame.
type BoxDef struct {
	Name string     `yaml:"name"`
	Min  [3]float32 `yaml:"min"`
	Max  [3]float32 `yaml:"max"`
}

func (s BoxDef) box() *Box {
	return NewBox(s.Name,
		vec.New(s.Min[0], s.Min[1], s.Min[2]),
		vec.New(s.Max[0], s.Max[1], s.Max[2]),
	)
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading asset catalog failed").
			WithTag("path", path).
			Wrap(err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.New("parsing asset catalog failed").
			WithType(ErrTypeInvalidCatalog).
			Wrap(err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	names := make(map[string]struct{}, len(c.Assets))

	for i, a := range c.Assets {
		if a.Name == "" {
			return errors.New("asset name is empty").
				WithType(ErrTypeInvalidCatalog).
				WithTag("index", i)
		}

		if len(a.Name) > MaxNameLen {
			return errors.New("asset name is too long").
				WithType(ErrTypeInvalidCatalog).
				WithTag("asset", a.Name).
				WithTag("max_len", MaxNameLen)
		}

		if _, ok := names[a.Name]; ok {
			return errors.New("asset is declared twice").
				WithType(ErrTypeInvalidCatalog).
				WithTag("asset", a.Name)
		}
		names[a.Name] = struct{}{}

		for axis := 0; axis < 3; axis++ {
			if a.Min[axis] > a.Max[axis] {
				return errors.New("asset box min is greater than max").
					WithType(ErrTypeInvalidCatalog).
					WithTag("asset", a.Name).
					WithTag("axis", axis)
			}
		}
	}

	return nil
}
