package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalepa/metas/metas"
)

func init() {
	api.DisableConfigDir()
}

func table() metas.SummaryTable {
	return metas.SummaryTable{
		Columns:    []string{"Meta 1", "Meta 2A"},
		HasOverall: true,
		Rows: []metas.SummaryRow{
			{Court: "TJAA", Values: []metas.Value{metas.Some(80), metas.NA}, Overall: metas.Some(80)},
			{Court: "TJBB", Values: []metas.Value{metas.Some(120.5), metas.Some(10)}, Overall: metas.Some(65.25)},
			{Court: "TJCC", Values: []metas.Value{metas.Some(80), metas.NA}, Overall: metas.Some(80)},
			{Court: "TJDD", Values: []metas.Value{metas.NA, metas.NA}, Overall: metas.NA},
		},
	}
}

func TestBars(t *testing.T) {
	bars, err := Bars(table(), "Meta 1")
	require.NoError(t, err)
	assert.Equal(t, []Bar{{"TJBB", 120.5}, {"TJAA", 80}, {"TJCC", 80}}, bars)

	bars, err = Bars(table(), metas.OverallColumn)
	require.NoError(t, err)
	assert.Equal(t, []Bar{{"TJAA", 80}, {"TJCC", 80}, {"TJBB", 65.25}}, bars)
}

func TestBars_Errors(t *testing.T) {
	_, err := Bars(table(), "Meta 99")
	assert.EqualError(t, err, `unknown metric "Meta 99"`)

	tbl := table()
	tbl.HasOverall = false
	_, err = Bars(tbl, metas.OverallColumn)
	assert.Error(t, err)

	tbl = table()
	tbl.Rows = tbl.Rows[3:]
	_, err = Bars(tbl, "Meta 1")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderMetric_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta1.png")
	require.NoError(t, RenderMetric(path, table(), Options{Metric: "Meta 1", Target: 100}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "not a PNG file")
}

func TestRenderMetric_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desempenho_metas.pdf")
	require.NoError(t, RenderMetric(path, table(), Options{Metric: "Meta 2A", Title: "Meta 2A"}))

	pages, err := VerifyPDF(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRenderMetric_NoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	tbl := table()
	tbl.Rows = tbl.Rows[3:]
	assert.ErrorIs(t, RenderMetric(path, tbl, Options{Metric: "Meta 1"}), ErrNoData)
	assert.NoFileExists(t, path)
}

func TestVerifyPDF_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := VerifyPDF(path)
	assert.Error(t, err)
}
