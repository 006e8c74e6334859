//go:build parakeet

package main

import (
	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/parakeet"
)

func init() {
	newParakeetBatch = func(modelDir, libPath string) (backend.BatchTranscriber, error) {
		return parakeet.NewBatch(modelDir, libPath)
	}
}
