package metas

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingPartition struct{ name string }

func (p failingPartition) Name() string { return p.name }

func (p failingPartition) Rows(context.Context) ([]RawRow, error) {
	return nil, errors.New("disk on fire")
}

type panickingPartition struct{ name string }

func (p panickingPartition) Name() string { return p.name }

func (p panickingPartition) Rows(context.Context) ([]RawRow, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := ParseRegistry([]byte(`
columns: [M1, M2]
branches:
  - name: Estadual
    formulas:
      - {name: M1, numerator: n, denominator: [a, b, c], mode: ADD_SUB, multiplier: 100}
      - {name: M2, numerator: n2, denominator: [d1, d2], mode: SUB, multiplier: 100}
  - name: Superior
    formulas:
      - {name: M2, numerator: n2, denominator: [d1, d2], mode: SUB, multiplier: 100}
umbrellas:
  Tribunais:
    SUP: Superior
`))
	require.NoError(t, err)
	return reg
}

func TestEngine_Run(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := &Engine{Registry: testRegistry(t), Workers: 3, IncludeOverall: true, Logger: zap.New(core)}

	parts := []Partition{
		SlicePartition{Label: "2023", Data: []RawRow{
			row("TJA", "Estadual", "n", "40", "a", "50", "b", "0", "c", "0", "n2", "1", "d1", "4", "d2", "2"),
			row("SUP", "Tribunais", "n2", "3", "d1", "10", "d2", "4"),
		}},
		failingPartition{name: "2024"},
		SlicePartition{Label: "2025", Data: []RawRow{
			row("TJA", "Estadual", "n", "40", "a", "50", "b", "10", "c", "10"),
			row("XYZ", "Inventada", "n", "1"),
		}},
		panickingPartition{name: "2026"},
	}

	res, err := e.Run(context.Background(), parts)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Stats.Partitions)
	assert.Equal(t, 2, res.Stats.FailedPartitions)
	assert.Equal(t, 4, res.Stats.Rows)
	assert.Equal(t, 3, res.Stats.Courts)
	assert.Equal(t, 1, res.Stats.Excluded)

	tbl := res.Table
	assert.Equal(t, []string{"M1", "M2"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "SUP", tbl.Rows[0].Court)
	assert.Equal(t, []Value{NA, Some(50)}, tbl.Rows[0].Values)

	assert.Equal(t, "TJA", tbl.Rows[1].Court)
	assert.Equal(t, []Value{Some(80), Some(50)}, tbl.Rows[1].Values)
	assert.Equal(t, Some(65), tbl.Rows[1].Overall)

	assert.Equal(t, "XYZ", tbl.Rows[2].Court)
	assert.Equal(t, []Value{NA, NA}, tbl.Rows[2].Values)

	counts := CountByKind(res.Diagnostics)
	assert.Equal(t, 2, counts[KindPartitionFailed])
	assert.Equal(t, 1, counts[KindBranchNotRecognized])
	assert.Zero(t, counts[KindDivisionUndefined], "columns outside a court's branch are NA without a diagnostic")
	assert.Equal(t, 1, counts[KindMissingField])

	var failed []string
	for _, d := range res.Diagnostics {
		if d.Kind == KindPartitionFailed {
			failed = append(failed, d.Partition+": "+d.Detail)
		}
	}
	require.Len(t, failed, 2)
	assert.Equal(t, "2024: read: disk on fire", failed[0])
	assert.Contains(t, failed[1], "2026: panic:")

	assert.Equal(t, 2, logs.FilterMessage("partition excluded").Len())
	assert.Equal(t, 1, logs.FilterMessage("branch not recognized").Len())
	panicked := logs.FilterMessage("partition excluded").FilterField(zap.String("partition", "2026")).All()
	require.Len(t, panicked, 1)
	assert.Contains(t, panicked[0].ContextMap(), "stack")
}

func TestEngine_DiagnosticOrder(t *testing.T) {
	e := &Engine{Registry: testRegistry(t), Workers: 2}
	parts := []Partition{
		SlicePartition{Label: "p1", Data: []RawRow{row("TJA", "Estadual", "n", "1")}},
		SlicePartition{Label: "p2", Data: []RawRow{row("TJA", "Superior", "n", "1")}},
	}
	res, err := e.Run(context.Background(), parts)
	require.NoError(t, err)

	var kinds []Kind
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []Kind{
		KindMissingField, KindMissingField,
		KindBranchConflict,
		KindDivisionUndefined, KindDivisionUndefined,
	}, kinds)
}

func TestEngine_BranchConflictReportedOnce(t *testing.T) {
	e := &Engine{Registry: testRegistry(t), Workers: 2}
	parts := []Partition{
		SlicePartition{Label: "p1", Data: []RawRow{
			row("TJA", "Estadual", "n", "1"),
			row("TJA", "Superior", "n", "1"),
		}},
		SlicePartition{Label: "p2", Data: []RawRow{row("TJA", "Superior", "n", "1")}},
	}
	res, err := e.Run(context.Background(), parts)
	require.NoError(t, err)

	var conflicts []Diagnostic
	for _, d := range res.Diagnostics {
		if d.Kind == KindBranchConflict {
			conflicts = append(conflicts, d)
		}
	}
	require.Len(t, conflicts, 1)
	assert.Equal(t, "p1", conflicts[0].Partition)
	assert.Equal(t, "Superior", conflicts[0].Branch)
}

func TestEngine_WorkerCountDoesNotChangeResult(t *testing.T) {
	reg := testRegistry(t)
	var parts []Partition
	for i := 0; i < 20; i++ {
		var rows []RawRow
		for j := 0; j < 15; j++ {
			court := fmt.Sprintf("TJ%02d", (i*7+j)%11)
			rows = append(rows, row(court, "Estadual",
				"n", fmt.Sprint(i+j), "a", fmt.Sprint(3*j+5), "b", "1", "c", "2",
				"n2", fmt.Sprint(j), "d1", fmt.Sprint(2*j+1), "d2", "0"))
		}
		parts = append(parts, SlicePartition{Label: fmt.Sprintf("p%02d", i), Data: rows})
	}

	var want *Result
	for _, workers := range []int{1, 2, 4, 16} {
		e := &Engine{Registry: reg, Workers: workers, IncludeOverall: true}
		got, err := e.Run(context.Background(), parts)
		require.NoError(t, err)
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want.Table, got.Table); diff != "" {
			t.Errorf("workers=%d: table differs:\n%s", workers, diff)
		}
		assert.Equal(t, want.Diagnostics, got.Diagnostics, "workers=%d", workers)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Engine{Registry: testRegistry(t)}
	_, err := e.Run(ctx, []Partition{SlicePartition{Label: "p", Data: []RawRow{row("TJA", "Estadual")}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_NoPartitions(t *testing.T) {
	e := &Engine{Registry: testRegistry(t)}
	_, err := e.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPartitions)
}

func TestEngine_NilRegistry(t *testing.T) {
	e := &Engine{}
	_, err := e.Run(context.Background(), []Partition{SlicePartition{Label: "p"}})
	assert.Error(t, err)
}

func TestEngine_AllPartitionsFail(t *testing.T) {
	e := &Engine{Registry: testRegistry(t)}
	res, err := e.Run(context.Background(), []Partition{failingPartition{name: "a"}, failingPartition{name: "b"}})
	require.NoError(t, err)
	assert.Empty(t, res.Table.Rows)
	assert.Equal(t, 2, res.Stats.FailedPartitions)
}
