// Package netio reads and writes networks: chance-only networks in the BIF
// text format and full influence diagrams as versioned XML.
package netio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/moolen/riskgraph/internal/bayes"
)

var ErrSyntax = errors.New("syntax error")

var bareWord = regexp.MustCompile(`^[A-Za-z0-9_.+\-]+$`)

func quoteLabel(s string) string {
	if bareWord.MatchString(s) {
		return s
	}
	return strconv.Quote(s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteBIF writes the chance nodes of g. Decision or utility nodes are
// rejected; use WriteDiagramXML for diagrams.
func WriteBIF(w io.Writer, g *bayes.Graph) error {
	for _, n := range g.Nodes() {
		if n.Role() != bayes.Chance {
			return fmt.Errorf("BIF holds chance nodes only, %q is a %s node: %w", n.Name(), n.Role(), bayes.ErrRoleMismatch)
		}
		if !n.HasTable() {
			return fmt.Errorf("node %q: %w", n.Name(), bayes.ErrMissingTable)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "network %s {\n}\n", quoteLabel(g.Name()))
	for _, n := range g.Nodes() {
		labels := make([]string, len(n.Labels()))
		for i, l := range n.Labels() {
			labels[i] = quoteLabel(l)
		}
		fmt.Fprintf(bw, "variable %s {\n  type discrete [ %d ] { %s };\n}\n",
			quoteLabel(n.Name()), n.Card(), strings.Join(labels, ", "))
	}
	for _, n := range g.Nodes() {
		writeProbability(bw, g, n)
	}
	return bw.Flush()
}

func writeProbability(w *bufio.Writer, g *bayes.Graph, n *bayes.Node) {
	parents := n.Parents()
	quoted := make([]string, len(parents))
	for i, p := range parents {
		quoted[i] = quoteLabel(p)
	}
	if len(parents) == 0 {
		fmt.Fprintf(w, "probability ( %s ) {\n  table %s;\n}\n", quoteLabel(n.Name()), joinFloats(n.Table()))
		return
	}
	fmt.Fprintf(w, "probability ( %s | %s ) {\n", quoteLabel(n.Name()), strings.Join(quoted, ", "))
	cards := n.ParentCards()
	r := n.Card()
	for row := 0; row < n.Configurations(); row++ {
		values := bayes.DecodeConfig(row, cards)
		labels := make([]string, len(values))
		for i, v := range values {
			labels[i] = quoteLabel(g.MustNode(parents[i]).Labels()[v])
		}
		fmt.Fprintf(w, "  (%s) %s;\n", strings.Join(labels, ", "), joinFloats(n.Table()[row*r:(row+1)*r]))
	}
	w.WriteString("}\n")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ", ")
}

type bifVariable struct {
	name   string
	labels []string
}

type bifProbability struct {
	child   string
	parents []string
	table   []float64            // unconditional form
	rows    map[string][]float64 // keyed by joined parent labels
	line    int
}

// ReadBIF parses a network written by WriteBIF or a compatible tool. The
// returned graph is not frozen.
func ReadBIF(r io.Reader) (*bayes.Graph, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read BIF: %w", err)
	}
	p := &bifParser{lex: newLexer(string(src))}
	return p.parse()
}

type bifParser struct {
	lex  *lexer
	name string
	vars []bifVariable
	prob []bifProbability
}

func (p *bifParser) parse() (*bayes.Graph, error) {
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			break
		}
		switch tok.text {
		case "network":
			err = p.network()
		case "variable":
			err = p.variable()
		case "probability":
			err = p.probability()
		default:
			err = p.lex.errorf(tok, "unexpected %q", tok.text)
		}
		if err != nil {
			return nil, err
		}
	}
	return p.build()
}

func (p *bifParser) network() error {
	name, err := p.lex.word()
	if err != nil {
		return err
	}
	p.name = name
	return p.lex.skipBlock()
}

func (p *bifParser) variable() error {
	name, err := p.lex.word()
	if err != nil {
		return err
	}
	if err := p.lex.expect("{"); err != nil {
		return err
	}
	v := bifVariable{name: name}
	for {
		tok, err := p.lex.next()
		if err != nil {
			return err
		}
		if tok.text == "}" && tok.kind == tokPunct {
			break
		}
		if tok.text != "type" {
			// Properties and other attributes are ignored up to the ';'.
			if err := p.lex.skipPast(";"); err != nil {
				return err
			}
			continue
		}
		if err := p.lex.expectWord("discrete"); err != nil {
			return err
		}
		if err := p.lex.expect("["); err != nil {
			return err
		}
		countTok, err := p.lex.word()
		if err != nil {
			return err
		}
		count, err := strconv.Atoi(countTok)
		if err != nil {
			return fmt.Errorf("%w: variable %q: bad cardinality %q", ErrSyntax, name, countTok)
		}
		if err := p.lex.expect("]"); err != nil {
			return err
		}
		labels, err := p.lex.list("{", "}")
		if err != nil {
			return err
		}
		if len(labels) != count {
			return fmt.Errorf("%w: variable %q declares %d states but lists %d", ErrSyntax, name, count, len(labels))
		}
		v.labels = labels
		if err := p.lex.expect(";"); err != nil {
			return err
		}
	}
	p.vars = append(p.vars, v)
	return nil
}

func (p *bifParser) probability() error {
	open, err := p.lex.next()
	if err != nil {
		return err
	}
	if open.text != "(" {
		return p.lex.errorf(open, "expected '('")
	}
	child, err := p.lex.word()
	if err != nil {
		return err
	}
	prob := bifProbability{child: child, rows: make(map[string][]float64), line: open.line}
	sep, err := p.lex.next()
	if err != nil {
		return err
	}
	if sep.text == "|" {
		for {
			parent, err := p.lex.word()
			if err != nil {
				return err
			}
			prob.parents = append(prob.parents, parent)
			tok, err := p.lex.next()
			if err != nil {
				return err
			}
			if tok.text == ")" {
				break
			}
			if tok.text != "," {
				return p.lex.errorf(tok, "expected ',' or ')'")
			}
		}
	} else if sep.text != ")" {
		return p.lex.errorf(sep, "expected '|' or ')'")
	}
	if err := p.lex.expect("{"); err != nil {
		return err
	}

	for {
		tok, err := p.lex.next()
		if err != nil {
			return err
		}
		switch {
		case tok.kind == tokPunct && tok.text == "}":
			p.prob = append(p.prob, prob)
			return nil
		case tok.kind == tokWord && tok.text == "table":
			values, err := p.lex.numbers()
			if err != nil {
				return err
			}
			prob.table = values
		case tok.kind == tokPunct && tok.text == "(":
			p.lex.unread(tok)
			labels, err := p.lex.list("(", ")")
			if err != nil {
				return err
			}
			values, err := p.lex.numbers()
			if err != nil {
				return err
			}
			prob.rows[strings.Join(labels, "\x00")] = values
		default:
			return p.lex.errorf(tok, "unexpected %q in probability block", tok.text)
		}
	}
}

func (p *bifParser) build() (*bayes.Graph, error) {
	g := bayes.New(p.name)
	for _, v := range p.vars {
		if err := g.AddNode(v.name, v.labels); err != nil {
			return nil, err
		}
	}
	for _, prob := range p.prob {
		for _, parent := range prob.parents {
			if err := g.AddArc(parent, prob.child); err != nil {
				return nil, fmt.Errorf("line %d: %w", prob.line, err)
			}
		}
	}
	for _, prob := range p.prob {
		n := g.MustNode(prob.child)
		table := prob.table
		if len(prob.parents) > 0 && table == nil {
			var err error
			if table, err = rowsToTable(g, n, prob); err != nil {
				return nil, err
			}
		}
		if err := g.SetTable(prob.child, table); err != nil {
			return nil, fmt.Errorf("line %d: %w", prob.line, err)
		}
	}
	return g, nil
}

func rowsToTable(g *bayes.Graph, n *bayes.Node, prob bifProbability) ([]float64, error) {
	r := n.Card()
	table := make([]float64, n.TableSize())
	parents := n.Parents()
	cards := n.ParentCards()
	for row := 0; row < n.Configurations(); row++ {
		values := bayes.DecodeConfig(row, cards)
		labels := make([]string, len(values))
		for i, v := range values {
			labels[i] = g.MustNode(parents[i]).Labels()[v]
		}
		cells, ok := prob.rows[strings.Join(labels, "\x00")]
		if !ok {
			return nil, fmt.Errorf("node %q: %w: no row for (%s)", n.Name(), bayes.ErrShapeMismatch, strings.Join(labels, ", "))
		}
		if len(cells) != r {
			return nil, fmt.Errorf("node %q: %w: row (%s) has %d cells, want %d",
				n.Name(), bayes.ErrShapeMismatch, strings.Join(labels, ", "), len(cells), r)
		}
		copy(table[row*r:], cells)
	}
	if len(prob.rows) != n.Configurations() {
		return nil, fmt.Errorf("node %q: %w: %d rows for %d configurations",
			n.Name(), bayes.ErrShapeMismatch, len(prob.rows), n.Configurations())
	}
	return table, nil
}
