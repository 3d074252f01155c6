package evaluation

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
	"github.com/moolen/riskgraph/internal/decision"
)

func creditDiagram(t *testing.T) *decision.Diagram {
	t.Helper()
	g := bayes.New("credit")
	require.NoError(t, g.AddNode("Checking", []string{"low", "high"}))
	require.NoError(t, g.AddNode(decision.OutcomeNode, []string{"Good", "Bad"}))
	require.NoError(t, g.AddArc("Checking", decision.OutcomeNode))
	require.NoError(t, g.SetTable("Checking", []float64{0.5, 0.5}))
	require.NoError(t, g.SetTable(decision.OutcomeNode, []float64{0.8, 0.2, 0.9, 0.1}))
	d, err := decision.CreditDiagram(g, decision.DefaultPayoffs())
	require.NoError(t, err)
	return d
}

func rows(t *testing.T, values ...[2]string) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New("Checking", decision.OutcomeNode)
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, d.Append(v[0], v[1]))
	}
	return d
}

func TestEvaluateTwoRowTotal(t *testing.T) {
	ev, err := New(creditDiagram(t), Options{})
	require.NoError(t, err)

	// low -> Reject, realized Good/Reject = -1; high -> Approve, realized Bad/Approve = -5.
	s, err := ev.Evaluate(context.Background(), rows(t, [2]string{"low", "Good"}, [2]string{"high", "Bad"}))
	require.NoError(t, err)
	assert.Equal(t, -6.0, s.Total)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, -3.0, s.Mean())
	assert.Empty(t, s.Errors)
	assert.Equal(t, map[string]int{decision.Approve: 1, decision.Reject: 1}, s.Decisions)
	assert.Equal(t, 1, s.Confusion["Good"][decision.Reject])
	assert.Equal(t, 1, s.Confusion["Bad"][decision.Approve])
	assert.NotEmpty(t, s.ID)
}

func TestEvaluateSkipPolicyRecordsRowErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ev, err := New(creditDiagram(t), Options{Policy: PolicySkip, Workers: 3, Metrics: metrics})
	require.NoError(t, err)

	data := rows(t,
		[2]string{"low", "Good"},
		[2]string{"medium", "Good"},
		[2]string{"high", "Good"},
		[2]string{"high", "Unknown"},
	)
	s, err := ev.Evaluate(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count)
	assert.Equal(t, -1.0, s.Total)
	require.Len(t, s.Errors, 2)
	assert.Equal(t, 1, s.Errors[0].Row)
	assert.ErrorIs(t, s.Errors[0].Err, bayes.ErrInvalidValue)
	assert.Equal(t, 3, s.Errors[1].Row)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsTotal.WithLabelValues("evaluated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsTotal.WithLabelValues("skipped")))
	assert.Equal(t, -1.0, testutil.ToFloat64(metrics.UtilityTotal))
}

func TestEvaluateAbortPolicy(t *testing.T) {
	ev, err := New(creditDiagram(t), Options{Policy: PolicyAbort, Workers: 2})
	require.NoError(t, err)

	data := rows(t,
		[2]string{"low", "Good"},
		[2]string{"high", "Good"},
		[2]string{"medium", "Good"},
		[2]string{"high", "Bad"},
	)
	_, err = ev.Evaluate(context.Background(), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, bayes.ErrInvalidValue)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
}

func TestEvaluateAbortReportsEarliestRow(t *testing.T) {
	var data [][2]string
	for i := 0; i < 40; i++ {
		checking := "low"
		switch i {
		case 7, 12, 30:
			checking = "medium"
		}
		data = append(data, [2]string{checking, "Good"})
	}

	for _, workers := range []int{1, 2, 3, 4, 8} {
		for range 10 {
			ev, err := New(creditDiagram(t), Options{Policy: PolicyAbort, Workers: workers})
			require.NoError(t, err)
			_, err = ev.Evaluate(context.Background(), rows(t, data...))
			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 7, rowErr.Row, "workers=%d", workers)
		}
	}
}

func TestEvaluateIsIndependentOfWorkerCount(t *testing.T) {
	var data [][2]string
	for i := 0; i < 25; i++ {
		checking := []string{"low", "high"}[i%2]
		outcome := []string{"Good", "Bad", "Good"}[i%3]
		data = append(data, [2]string{checking, outcome})
	}

	var totals []float64
	for _, workers := range []int{1, 4, 32} {
		ev, err := New(creditDiagram(t), Options{Workers: workers})
		require.NoError(t, err)
		s, err := ev.Evaluate(context.Background(), rows(t, data...))
		require.NoError(t, err)
		assert.Equal(t, 25, s.Count)
		totals = append(totals, s.Total)
	}
	assert.Equal(t, totals[0], totals[1])
	assert.Equal(t, totals[0], totals[2])
}

func TestEvaluateHonorsCancellation(t *testing.T) {
	ev, err := New(creditDiagram(t), Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ev.Evaluate(ctx, rows(t, [2]string{"low", "Good"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(creditDiagram(t), Options{Policy: "retry"})
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)

	_, err = New(creditDiagram(t), Options{Target: "Checking", Decision: "Missing"})
	assert.ErrorIs(t, err, bayes.ErrUnknownNode)

	_, err = New(creditDiagram(t), Options{Utility: "Checking"})
	assert.ErrorIs(t, err, bayes.ErrRoleMismatch)

	ev, err := New(creditDiagram(t), Options{})
	require.NoError(t, err)
	d, err := dataset.New("Checking")
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), d)
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
}

func TestWriteReport(t *testing.T) {
	ev, err := New(creditDiagram(t), Options{})
	require.NoError(t, err)
	s, err := ev.Evaluate(context.Background(), rows(t, [2]string{"low", "Good"}, [2]string{"bogus", "Bad"}))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.WriteReport(&buf))
	var report Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, s.ID, report.SessionID)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, -1.0, report.TotalUtility)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].Row)
	assert.Contains(t, report.Errors[0].Reason, "bogus")

	path := filepath.Join(t.TempDir(), "reports", "eval.yaml")
	require.NoError(t, s.WriteReportFile(path))
	assert.FileExists(t, path)
}
