package bayes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

const unknownLabel = "unknown"

// InferDomain turns the raw values of a column into an ordered label list.
// The whole column is classified at once, in priority order:
//
//  1. integer-like: every value parses as an integer; labels sorted numerically
//  2. float-like: every value parses as a float; labels sorted numerically
//  3. strings: labels sorted by raw value, then passed through SanitizeLabel
//
// Empty input yields a single "unknown" label. Distinct strings that sanitize
// to the same label are rejected with ErrDuplicateLabel.
func InferDomain(raw []string) ([]string, error) {
	distinct := distinctValues(raw)
	if len(distinct) == 0 {
		return []string{unknownLabel}, nil
	}
	if labels, ok := integerDomain(distinct); ok {
		return labels, nil
	}
	if labels, ok := floatDomain(distinct); ok {
		return labels, nil
	}

	sort.Strings(distinct)
	labels := make([]string, 0, len(distinct))
	seen := make(map[string]string, len(distinct))
	for _, v := range distinct {
		l := SanitizeLabel(v)
		if prev, dup := seen[l]; dup {
			return nil, fmt.Errorf("%w: %q and %q both become %q", ErrDuplicateLabel, prev, v, l)
		}
		seen[l] = v
		labels = append(labels, l)
	}
	return labels, nil
}

func distinctValues(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func integerDomain(values []string) ([]string, bool) {
	ints := make([]int, 0, len(values))
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		if !seen[i] {
			seen[i] = true
			ints = append(ints, i)
		}
	}
	sort.Ints(ints)
	labels := make([]string, len(ints))
	for i, v := range ints {
		labels[i] = strconv.Itoa(v)
	}
	return labels, true
}

func floatDomain(values []string) ([]string, bool) {
	fs := make([]float64, 0, len(values))
	seen := make(map[float64]bool, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		if !seen[f] {
			seen[f] = true
			fs = append(fs, f)
		}
	}
	sort.Float64s(fs)
	labels := make([]string, len(fs))
	for i, v := range fs {
		labels[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return labels, true
}

var sanitizeReplacer = strings.NewReplacer(
	" ", "_", "-", "_", "<", "lt", ">", "gt",
	"(", "_", ")", "_", "[", "_", "]", "_", "/", "_", `\`, "_",
	":", "_", ";", "_", ",", "_", ".", "_",
)

// SanitizeLabel rewrites a free-text category into an identifier-safe label
// for network files.
func SanitizeLabel(s string) string {
	s = sanitizeReplacer.Replace(s)
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.Trim(s, "_")
	if s != "" && unicode.IsDigit(rune(s[0])) {
		s = "_" + s
	}
	if s == "" {
		s = unknownLabel
	}
	return s
}

var normalizeCache = mustCache(4096)

func mustCache(size int) *lru.Cache[string, string] {
	c, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeLabel folds runs of non-word characters into a single underscore
// and prefixes labels that start with a digit but are not purely numeric.
// Results are memoized.
func NormalizeLabel(s string) string {
	if v, ok := normalizeCache.Get(s); ok {
		return v
	}
	v := normalizeLabel(s)
	normalizeCache.Add(s, v)
	return v
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func normalizeLabel(s string) string {
	var b strings.Builder
	inRun := false
	for _, r := range s {
		if isWordRune(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) && !isNumeric(out) {
		out = "_" + out
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// LabelIndex reconciles raw dataset strings with the canonical labels of a
// graph's categorical nodes. It is built once per graph and is safe for
// concurrent reads.
type LabelIndex struct {
	nodes map[string]*labelEntry
}

type labelEntry struct {
	labels     []string
	exact      map[string]int
	normalized map[string]int
	ambiguous  map[string]bool
}

// NewLabelIndex indexes every chance and decision node of g.
func NewLabelIndex(g *Graph) *LabelIndex {
	x := &LabelIndex{nodes: make(map[string]*labelEntry)}
	for _, n := range g.nodes {
		if n.role == Utility {
			continue
		}
		e := &labelEntry{
			labels:     n.labels,
			exact:      make(map[string]int, len(n.labels)),
			normalized: make(map[string]int, len(n.labels)),
			ambiguous:  make(map[string]bool),
		}
		for i, l := range n.labels {
			e.exact[l] = i
		}
		for i, l := range n.labels {
			key := NormalizeLabel(l)
			if prev, dup := e.normalized[key]; dup && prev != i {
				e.ambiguous[key] = true
				continue
			}
			e.normalized[key] = i
		}
		x.nodes[n.name] = e
	}
	return x
}

// Has reports whether node is indexed.
func (x *LabelIndex) Has(node string) bool {
	_, ok := x.nodes[node]
	return ok
}

// ResolveIndex maps a raw value to the domain index of node. Exact matches
// win; otherwise the normalized spellings are compared.
func (x *LabelIndex) ResolveIndex(node, raw string) (int, error) {
	e, ok := x.nodes[node]
	if !ok {
		return 0, unknownNode(node)
	}
	if i, ok := e.exact[raw]; ok {
		return i, nil
	}
	trimmed := strings.TrimSpace(raw)
	if i, ok := e.exact[trimmed]; ok {
		return i, nil
	}
	key := NormalizeLabel(trimmed)
	if !e.ambiguous[key] {
		if i, ok := e.normalized[key]; ok {
			return i, nil
		}
	}
	if key = NormalizeLabel(SanitizeLabel(trimmed)); !e.ambiguous[key] {
		if i, ok := e.normalized[key]; ok {
			return i, nil
		}
	}
	return 0, &ValueError{Node: node, Value: raw}
}

// Resolve maps a raw value to the canonical label of node.
func (x *LabelIndex) Resolve(node, raw string) (string, error) {
	i, err := x.ResolveIndex(node, raw)
	if err != nil {
		return "", err
	}
	return x.nodes[node].labels[i], nil
}
