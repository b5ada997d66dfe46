//go:build !demo

package main

import (
	"errors"

	"github.com/patchkit/core/pkg/engine"
)

// newDemoEngine is stubbed out in default builds: the SoundFont-backed
// engine.MeltyEngine only compiles under -tags demo (pkg/engine/melty.go).
func newDemoEngine(soundFontPath string) (engine.Engine, error) {
	return nil, errors.New("soundfont engine requires building with -tags demo")
}
