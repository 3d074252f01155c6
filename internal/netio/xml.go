package netio

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/moolen/riskgraph/internal/bayes"
)

// FormatVersion is written to the VERSION attribute of every diagram.
const FormatVersion = "0.3"

var (
	ErrUnsupportedVersion = errors.New("unsupported diagram format version")
	ErrUnknownNodeType    = errors.New("unknown node type")

	minVersion = version.Must(version.NewVersion(FormatVersion))
)

const (
	typeNature   = "nature"
	typeDecision = "decision"
	typeUtility  = "utility"
)

type xmlDocument struct {
	XMLName xml.Name   `xml:"BIF"`
	Version string     `xml:"VERSION,attr"`
	Network xmlNetwork `xml:"NETWORK"`
}

type xmlNetwork struct {
	Name        string          `xml:"NAME"`
	Variables   []xmlVariable   `xml:"VARIABLE"`
	Definitions []xmlDefinition `xml:"DEFINITION"`
}

type xmlVariable struct {
	Type     string   `xml:"TYPE,attr"`
	Name     string   `xml:"NAME"`
	Outcomes []string `xml:"OUTCOME"`
}

type xmlDefinition struct {
	For   string   `xml:"FOR"`
	Given []string `xml:"GIVEN"`
	Table string   `xml:"TABLE,omitempty"`
}

func roleType(r bayes.Role) string {
	switch r {
	case bayes.Decision:
		return typeDecision
	case bayes.Utility:
		return typeUtility
	default:
		return typeNature
	}
}

// WriteDiagramXML writes every node of g, including decision and utility
// nodes, with their parents and tables. Decision nodes carry no table; their
// DEFINITION only lists informational parents.
func WriteDiagramXML(w io.Writer, g *bayes.Graph) error {
	doc := xmlDocument{Version: FormatVersion, Network: xmlNetwork{Name: g.Name()}}
	for _, n := range g.Nodes() {
		v := xmlVariable{Type: roleType(n.Role()), Name: n.Name()}
		if n.Role() != bayes.Utility {
			v.Outcomes = n.Labels()
		}
		doc.Network.Variables = append(doc.Network.Variables, v)

		def := xmlDefinition{For: n.Name(), Given: n.Parents()}
		if n.HasTable() {
			parts := make([]string, len(n.Table()))
			for i, p := range n.Table() {
				parts[i] = formatFloat(p)
			}
			def.Table = strings.Join(parts, " ")
		}
		doc.Network.Definitions = append(doc.Network.Definitions, def)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode diagram: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadDiagramXML parses a diagram written by WriteDiagramXML. Documents with
// a VERSION older than FormatVersion are rejected. The returned graph is not
// frozen.
func ReadDiagramXML(r io.Reader) (*bayes.Graph, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode diagram: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}

	g := bayes.New(doc.Network.Name)
	for _, v := range doc.Network.Variables {
		var err error
		switch strings.ToLower(v.Type) {
		case typeNature, "":
			err = g.AddNode(v.Name, v.Outcomes)
		case typeDecision:
			err = g.AddDecision(v.Name, v.Outcomes)
		case typeUtility:
			err = g.AddUtility(v.Name)
		default:
			err = fmt.Errorf("%w: %q on %q", ErrUnknownNodeType, v.Type, v.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, def := range doc.Network.Definitions {
		for _, parent := range def.Given {
			if err := g.AddArc(parent, def.For); err != nil {
				return nil, err
			}
		}
	}
	for _, def := range doc.Network.Definitions {
		if strings.TrimSpace(def.Table) == "" {
			continue
		}
		values, err := parseTable(def.Table)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", def.For, err)
		}
		if err := g.SetTable(def.For, values); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func checkVersion(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: missing VERSION attribute", ErrUnsupportedVersion)
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, raw, err)
	}
	if v.LessThan(minVersion) {
		return fmt.Errorf("%w: %s is older than %s", ErrUnsupportedVersion, v, minVersion)
	}
	return nil
}

func parseTable(s string) ([]float64, error) {
	fields := strings.Fields(s)
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad table value %q: %w", f, err)
		}
		values[i] = v
	}
	return values, nil
}
