package main

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/lyndon/punani-strike/asset"
	"github.com/lyndon/punani-strike/blob"
	"github.com/segmentio/encoding/json"
)

type config struct {
	Layout   string `cli:"" env:"TILEPACK_LAYOUT"    help:"The YAML layout to pack."`
	Output   string `cli:"" env:"TILEPACK_OUTPUT"    help:"The tile file to write. A .zst or .gz extension compresses it."`
	Catalog  string `cli:"" env:"TILEPACK_CATALOG"   help:"An asset catalog placed assets are checked against."`
	LogLevel string `cli:"" env:"TILEPACK_LOG_LEVEL" help:"Log level (debug|info|warning|error)."`
	Help     bool   `cli:"" env:"-"                  help:"Show help."`
}

func main() {
	conf := config{
		LogLevel: logs.InfoLevel.String(),
	}

	cli.Register().
		Help("Packs a YAML tile layout into a tile file.").
		Options(&conf)
	cli.Load()

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	if conf.Layout == "" || conf.Output == "" {
		logs.Fatal(errors.New("layout and output are required"))
	}

	if err := run(conf); err != nil {
		logs.Fatal(err)
	}
}

func run(conf config) error {
	var catalog *asset.Catalog
	if conf.Catalog != "" {
		c, err := asset.LoadCatalog(conf.Catalog)
		if err != nil {
			return err
		}
		catalog = c
	}

	src, err := os.ReadFile(conf.Layout)
	if err != nil {
		return errors.New("reading layout failed").
			WithTag("path", conf.Layout).
			Wrap(err)
	}

	l, err := parseLayout(src)
	if err != nil {
		return err
	}

	data, err := pack(l, catalog)
	if err != nil {
		return err
	}

	out, err := blob.Compress(conf.Output, data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(conf.Output, out, 0644); err != nil {
		return errors.New("writing tile file failed").
			WithTag("path", conf.Output).
			Wrap(err)
	}

	logs.WithTag("layout", conf.Layout).
		WithTag("output", conf.Output).
		WithTag("items", len(l.Items)).
		WithTag("size", len(out)).
		Info("tile packed")
	return nil
}
