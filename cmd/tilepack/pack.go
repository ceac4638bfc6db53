package main

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/tile"
	"gopkg.in/yaml.v3"
)

const (
	errTypeInvalidLayout = "tilepack-invalid-layout"
	errTypeUnknownAsset  = "tilepack-unknown-asset"
)

// layout is the YAML description of a tile.
type layout struct {
	Items []tile.Placement `yaml:"items"`
}

func parseLayout(data []byte) (*layout, error) {
	var l layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errors.New("parsing layout failed").
			WithType(errTypeInvalidLayout).
			Wrap(err)
	}
	return &l, nil
}

// pack encodes l as a tile file. When catalog is not nil, every placed asset
// must be listed in it.
func pack(l *layout, catalog *asset.Catalog) ([]byte, error) {
	if catalog != nil {
		known := make(map[string]struct{}, len(catalog.Assets))
		for _, a := range catalog.Assets {
			known[a.Name] = struct{}{}
		}

		for i, p := range l.Items {
			if _, ok := known[p.Asset]; !ok {
				return nil, errors.New("layout places an asset missing from the catalog").
					WithType(errTypeUnknownAsset).
					WithTag("item", i).
					WithTag("asset", p.Asset)
			}
		}
	}

	return tile.Encode(tile.NewFile(l.Items))
}
