package netio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/riskgraph/internal/bayes"
)

func creditNetwork(t *testing.T) *bayes.Graph {
	t.Helper()
	g := bayes.New("credit test")
	require.NoError(t, g.AddNode("Checking Account", []string{"No Checking", "< 0 DM", "0-200"}))
	require.NoError(t, g.AddNode("Age", []string{"Young", "Old"}))
	require.NoError(t, g.AddNode("CreditRisk", []string{"Good", "Bad"}))
	require.NoError(t, g.AddArc("Checking Account", "CreditRisk"))
	require.NoError(t, g.AddArc("Age", "CreditRisk"))
	require.NoError(t, g.SetTable("Checking Account", []float64{0.2, 0.3, 0.5}))
	require.NoError(t, g.SetTable("Age", []float64{1.0 / 3, 2.0 / 3}))
	require.NoError(t, g.SetTable("CreditRisk", []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.7, 0.3,
		0.6, 0.4,
		0.55, 0.45,
		0.125, 0.875,
	}))
	return g
}

func creditDiagram(t *testing.T) *bayes.Graph {
	t.Helper()
	g := creditNetwork(t)
	require.NoError(t, g.AddDecision("ApproveLoan", []string{"Approve", "Reject"}))
	require.NoError(t, g.AddUtility("Utility"))
	require.NoError(t, g.AddArc("CreditRisk", "ApproveLoan"))
	require.NoError(t, g.AddArc("ApproveLoan", "Utility"))
	require.NoError(t, g.AddArc("CreditRisk", "Utility"))
	require.NoError(t, g.SetTable("Utility", []float64{0, -5, -1, 0}))
	return g
}

func TestBIFRoundTrip(t *testing.T) {
	g := creditNetwork(t)

	var buf bytes.Buffer
	require.NoError(t, WriteBIF(&buf, g))
	text := buf.String()
	assert.Contains(t, text, `variable "Checking Account"`)
	assert.Contains(t, text, `probability ( CreditRisk | "Checking Account", Age ) {`)

	back, err := ReadBIF(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, "credit test", back.Name())
	assert.NoError(t, bayes.Compare(g, back, 1e-6))
	assert.False(t, back.Frozen())
}

func TestWriteBIFRejectsDiagrams(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBIF(&buf, creditDiagram(t))
	assert.ErrorIs(t, err, bayes.ErrRoleMismatch)

	g := bayes.New("partial")
	require.NoError(t, g.AddNode("A", []string{"a0", "a1"}))
	assert.ErrorIs(t, WriteBIF(&buf, g), bayes.ErrMissingTable)
}

func TestReadBIFHandWritten(t *testing.T) {
	src := `// exported by hand
network "test" {
  property author;
}
variable A {
  type discrete [ 2 ] { a0, a1 };
  property "position = (1, 2)";
}
/* B depends
   on A */
variable B {
  type discrete [ 2 ] { b0, b1 };
}
probability ( A ) {
  table 0.6, 0.4;
}
probability ( B | A ) {
  (a1) 0.2, 0.8;
  (a0) 0.7, 0.3;
}
`
	g, err := ReadBIF(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, g.Names())
	assert.Equal(t, []string{"A"}, g.MustNode("B").Parents())
	assert.InDeltaSlice(t, []float64{0.7, 0.3, 0.2, 0.8}, g.MustNode("B").Table(), 1e-12)
}

func TestReadBIFErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "missing row",
			src: `variable A { type discrete [ 2 ] { a0, a1 }; }
variable B { type discrete [ 2 ] { b0, b1 }; }
probability ( A ) { table 0.5, 0.5; }
probability ( B | A ) { (a0) 0.5, 0.5; }`,
			want: bayes.ErrShapeMismatch,
		},
		{
			name: "cardinality mismatch",
			src:  `variable A { type discrete [ 3 ] { a0, a1 }; }`,
			want: ErrSyntax,
		},
		{
			name: "bad number",
			src: `variable A { type discrete [ 2 ] { a0, a1 }; }
probability ( A ) { table 0.5, half; }`,
			want: ErrSyntax,
		},
		{
			name: "unterminated string",
			src:  `variable "A { }`,
			want: ErrSyntax,
		},
		{
			name: "unknown parent",
			src: `variable A { type discrete [ 2 ] { a0, a1 }; }
probability ( A | Z ) { (z0) 0.5, 0.5; }`,
			want: bayes.ErrUnknownNode,
		},
		{
			name: "not a distribution",
			src: `variable A { type discrete [ 2 ] { a0, a1 }; }
probability ( A ) { table 0.5, 0.6; }`,
			want: bayes.ErrNotAProbability,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBIF(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDiagramXMLRoundTrip(t *testing.T) {
	g := creditDiagram(t)

	var buf bytes.Buffer
	require.NoError(t, WriteDiagramXML(&buf, g))
	text := buf.String()
	assert.Contains(t, text, `<BIF VERSION="0.3">`)
	assert.Contains(t, text, `<VARIABLE TYPE="decision">`)
	assert.Contains(t, text, "&lt; 0 DM")

	back, err := ReadDiagramXML(strings.NewReader(text))
	require.NoError(t, err)
	assert.NoError(t, bayes.Compare(g, back, 1e-6))
	assert.Equal(t, bayes.Decision, back.MustNode("ApproveLoan").Role())
	assert.Equal(t, []string{"ApproveLoan", "CreditRisk"}, back.MustNode("Utility").Parents())
	assert.False(t, back.MustNode("ApproveLoan").HasTable())
}

func TestReadDiagramXMLVersionGate(t *testing.T) {
	doc := func(v string) string {
		return `<BIF VERSION="` + v + `"><NETWORK><NAME>n</NAME>
<VARIABLE TYPE="nature"><NAME>A</NAME><OUTCOME>a0</OUTCOME><OUTCOME>a1</OUTCOME></VARIABLE>
<DEFINITION><FOR>A</FOR><TABLE>0.5 0.5</TABLE></DEFINITION>
</NETWORK></BIF>`
	}

	for _, v := range []string{"0.3", "0.3.1", "1.0"} {
		_, err := ReadDiagramXML(strings.NewReader(doc(v)))
		assert.NoError(t, err, v)
	}
	for _, v := range []string{"0.2", "0.1.9", "", "not-a-version"} {
		_, err := ReadDiagramXML(strings.NewReader(doc(v)))
		assert.ErrorIs(t, err, ErrUnsupportedVersion, v)
	}
}

func TestReadDiagramXMLUnknownType(t *testing.T) {
	src := `<BIF VERSION="0.3"><NETWORK><NAME>n</NAME>
<VARIABLE TYPE="oracle"><NAME>A</NAME><OUTCOME>a0</OUTCOME></VARIABLE>
</NETWORK></BIF>`
	_, err := ReadDiagramXML(strings.NewReader(src))
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	bif := filepath.Join(dir, "nets", "credit.bif")
	require.NoError(t, WriteFile(bif, creditNetwork(t)))
	g, err := ReadFile(bif)
	require.NoError(t, err)
	assert.NoError(t, bayes.Compare(creditNetwork(t), g, 1e-6))

	xmlPath := filepath.Join(dir, "diagram.xml")
	require.NoError(t, WriteFile(xmlPath, creditDiagram(t)))
	d, err := ReadFile(xmlPath)
	require.NoError(t, err)
	assert.NoError(t, bayes.Compare(creditDiagram(t), d, 1e-6))

	_, err = FormatFor("model.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, WriteFile(filepath.Join(dir, "model.json"), g), ErrUnknownFormat)
}
