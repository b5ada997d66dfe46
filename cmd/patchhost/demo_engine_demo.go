//go:build demo

package main

import "github.com/patchkit/core/pkg/engine"

// newDemoEngine wires the real SoundFont-backed engine, built only under
// -tags demo (see pkg/engine/melty.go).
func newDemoEngine(soundFontPath string) (engine.Engine, error) {
	return engine.NewMeltyEngine(soundFontPath), nil
}
