package netio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moolen/riskgraph/internal/bayes"
)

var ErrUnknownFormat = errors.New("unknown network file format")

// Format names a persistence format.
type Format string

const (
	FormatBIF Format = "bif"
	FormatXML Format = "xml"
)

// FormatFor picks the format from the file extension: .bif for BIF text,
// .xml or .xdsl for diagram XML.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bif":
		return FormatBIF, nil
	case ".xml", ".xdsl":
		return FormatXML, nil
	}
	return "", fmt.Errorf("%w: %q (want .bif or .xml)", ErrUnknownFormat, path)
}

// WriteFile writes g to path in the format implied by its extension.
func WriteFile(path string, g *bayes.Graph) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	// #nosec G304 -- output path is user-provided
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	var write func(io.Writer, *bayes.Graph) error = WriteDiagramXML
	if format == FormatBIF {
		write = WriteBIF
	}
	if err := write(f, g); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile reads a network from path in the format implied by its extension.
func ReadFile(path string) (*bayes.Graph, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- input path is user-provided
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var g *bayes.Graph
	if format == FormatBIF {
		g, err = ReadBIF(f)
	} else {
		g, err = ReadDiagramXML(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return g, nil
}
