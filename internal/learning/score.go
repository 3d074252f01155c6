package learning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrUnsupportedScore = errors.New("unsupported score")

// Score selects the penalty applied to the base-2 log-likelihood of a family.
type Score string

const (
	ScoreAIC Score = "aic"
	ScoreBIC Score = "bic"
	ScoreLog Score = "log"
)

// ParseScore accepts aic, bic or log, case-insensitively.
func ParseScore(s string) (Score, error) {
	switch Score(strings.ToLower(strings.TrimSpace(s))) {
	case ScoreAIC:
		return ScoreAIC, nil
	case ScoreBIC:
		return ScoreBIC, nil
	case ScoreLog:
		return ScoreLog, nil
	}
	return "", fmt.Errorf("%w: %q (want aic, bic or log)", ErrUnsupportedScore, s)
}

// penalty for a family with k free parameters fit on n rows.
func (s Score) penalty(k, n float64) float64 {
	switch s {
	case ScoreAIC:
		return k
	case ScoreBIC:
		if n <= 0 {
			return 0
		}
		return k * math.Log2(n) / 2
	}
	return 0
}

const familyCacheSize = 1 << 16

// scorer computes decomposable family scores over one encoded dataset.
// Results are memoized per (child, parent set); parent order does not matter.
type scorer struct {
	data    *encoded
	score   Score
	alpha   float64
	cache   *lru.Cache[string, float64]
	metrics *Metrics
}

func newScorer(data *encoded, score Score, alpha float64, metrics *Metrics) (*scorer, error) {
	cache, err := lru.New[string, float64](familyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create family score cache: %w", err)
	}
	return &scorer{data: data, score: score, alpha: alpha, cache: cache, metrics: metrics}, nil
}

func familyKey(child int, parents []int) string {
	sorted := append([]int(nil), parents...)
	sort.Ints(sorted)
	var b strings.Builder
	b.WriteString(strconv.Itoa(child))
	b.WriteByte('|')
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// family returns the penalized log-likelihood of child given parents.
func (s *scorer) family(child int, parents []int) float64 {
	key := familyKey(child, parents)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.cacheHit()
		return v
	}
	s.metrics.cacheMiss()

	counts := s.data.counts(child, parents)
	r := s.data.cards[child]
	q := len(counts) / r
	ll := 0.0
	for row := 0; row < q; row++ {
		slice := counts[row*r : (row+1)*r]
		total := 0.0
		for _, c := range slice {
			total += c
		}
		denom := total + s.alpha*float64(r)
		if total == 0 || denom == 0 {
			continue
		}
		for _, c := range slice {
			if c == 0 {
				continue
			}
			ll += c * math.Log2((c+s.alpha)/denom)
		}
	}
	k := float64((r - 1) * q)
	v := ll - s.score.penalty(k, float64(s.data.rows))
	s.cache.Add(key, v)
	return v
}

// total sums the family scores of a parent-set assignment.
func (s *scorer) total(parents [][]int) float64 {
	sum := 0.0
	for child, ps := range parents {
		sum += s.family(child, ps)
	}
	return sum
}
