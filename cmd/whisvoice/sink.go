package main

import (
	"fmt"
	"os"

	"github.com/MrWong99/whisvoice/internal/config"
	"github.com/MrWong99/whisvoice/internal/sink"
	"github.com/MrWong99/whisvoice/pkg/pipeline"
)

// buildSink translates the configured sink kind into a pipeline.Sink.
func buildSink(sc config.SinkConfig) (pipeline.Sink, error) {
	switch sc.Kind {
	case config.SinkStdout, "":
		return sink.Stdout(os.Stdout), nil
	case config.SinkClipboard:
		return sink.Clipboard(), nil
	case config.SinkAutotype:
		// Real keystroke injection needs a platform-specific library no
		// example repo in the corpus pulls in; autotype is named in the
		// config schema as a seam for an external collaborator to fill,
		// not a capability the core ships.
		return nil, fmt.Errorf("sink: autotype is not implemented by this binary; pipe sink.Stdout output into an external autotyper instead")
	default:
		return nil, fmt.Errorf("sink: unknown kind %q", sc.Kind)
	}
}
