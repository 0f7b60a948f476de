package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/artifact"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/models"
	"github.com/san-kum/wasmsim/internal/wasm"
)

// Source identifies where a loaded model came from.
type Source struct {
	Ref      string
	Artifact string
	Checksum string
}

// Loader resolves model references: "builtin:<name>" selects an in-process
// model, anything else is a path to a wasm artifact.
type Loader struct {
	Options wasm.Options
	Logger  zerolog.Logger
}

func (l Loader) Open(ctx context.Context, ref string) (dynamo.Model, Source, error) {
	src := Source{Ref: ref}
	if _, ok := models.IsBuiltin(ref); ok {
		m, err := models.Lookup(ref)
		if err != nil {
			return nil, src, err
		}
		return m, src, nil
	}

	art, err := artifact.Open(ref)
	if err != nil {
		return nil, src, err
	}
	src.Artifact = art.Path
	src.Checksum = art.Checksum

	m, err := wasm.Load(ctx, art.Code, l.Options, l.Logger)
	if err != nil {
		return nil, src, fmt.Errorf("loading %s: %w", art.Path, err)
	}
	l.Logger.Debug().
		Str("artifact", art.Path).
		Str("checksum", art.Checksum).
		Int("bytes", len(art.Code)).
		Msg("artifact loaded")
	return m, src, nil
}
