package metas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, "2025", reg.Version())
	assert.Len(t, reg.Branches(), 8)
	assert.Len(t, reg.Columns(), 16)
	assert.Equal(t, "Meta 1", reg.Columns()[0])
	assert.Len(t, reg.Formulas("Justiça Estadual"), 14)
	assert.Equal(t, []string{"Tribunais Superiores"}, reg.Umbrellas())
	assert.Contains(t, reg.Fields(), "julgados_2025")
	assert.IsIncreasing(t, reg.Fields())
}

func TestRegistry_Lookup(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	tests := []struct {
		branch, court string
		wantBranch    string
		wantCount     int
		wantOK        bool
	}{
		{"Justiça Estadual", "TJSP", "Justiça Estadual", 14, true},
		{"Justiça do Trabalho", "TRT1", "Justiça do Trabalho", 3, true},
		{"Tribunais Superiores", "STJ", "Superior Tribunal de Justiça", 9, true},
		{"Tribunais Superiores", "TST", "Tribunal Superior do Trabalho", 4, true},
		{"Tribunais Superiores", "STF", "", 0, false},
		{"Justiça Inventada", "XX", "", 0, false},
		{"", "TJSP", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.branch+"/"+tt.court, func(t *testing.T) {
			res, ok := reg.Lookup(tt.branch, tt.court)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBranch, res.Branch)
			assert.Len(t, res.Formulas, tt.wantCount)
		})
	}
}

func TestRegistry_AccessorsReturnCopies(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	cols := reg.Columns()
	cols[0] = "changed"
	assert.Equal(t, "Meta 1", reg.Columns()[0])

	courts := reg.UmbrellaCourts("Tribunais Superiores")
	courts["STF"] = "Justiça Estadual"
	_, ok := reg.Lookup("Tribunais Superiores", "STF")
	assert.False(t, ok)
}

func TestParseMultiplier(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"100", 100, false},
		{"1000/8", 125, false},
		{" 1000 / 9.5 ", 1000 / 9.5, false},
		{"1e3/8", 125, false},
		{"0.5", 0.5, false},
		{"1000/0", 0, true},
		{"abc", 0, true},
		{"10/x", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMultiplier(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.InDelta(t, tt.want, got, 1e-12, tt.input)
	}
}

func TestParseRegistry_Minimal(t *testing.T) {
	reg, err := ParseRegistry([]byte(`
branches:
  - name: Teste
    formulas:
      - {name: B, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: "10/4"}
      - {name: A, numerator: n, denominator: [d1, d2, d3], mode: ADD_SUB, multiplier: 1}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, reg.Columns(), "columns default to first-appearance order")
	assert.Equal(t, []string{"d1", "d2", "d3", "n"}, reg.Fields())
	assert.InDelta(t, 2.5, float64(reg.Formulas("Teste")[0].Multiplier), 1e-12)
}

func TestParseRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name: "bad mode",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: DIV, multiplier: 1}
`,
			wantErr: []string{`failed "oneof" check`},
		},
		{
			name: "denominator count",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: ADD_SUB, multiplier: 1}
`,
			wantErr: []string{"denominators_for_mode"},
		},
		{
			name: "non-positive multiplier",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 0}
`,
			wantErr: []string{`failed "gt" check`},
		},
		{
			name: "missing numerator",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, denominator: [d1, d2], mode: SUB, multiplier: 1}
`,
			wantErr: []string{"Numerator", `failed "required" check`},
		},
		{
			name: "duplicates",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
`,
			wantErr: []string{`branch "Teste" defined twice`, `branch "Teste": metric "A" defined twice`},
		},
		{
			name: "umbrella",
			yaml: `
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
umbrellas:
  Teste:
    XX: Teste
  Guarda-chuva:
    YY: Nenhum
`,
			wantErr: []string{
				`umbrella "Teste" shadows a branch`,
				`umbrella "Guarda-chuva": court YY maps to unknown branch "Nenhum"`,
			},
		},
		{
			name: "columns",
			yaml: `
columns: [A, A]
branches:
  - name: Teste
    formulas:
      - {name: A, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
      - {name: B, numerator: n, denominator: [d1, d2], mode: SUB, multiplier: 1}
`,
			wantErr: []string{`column "A" listed twice`, `metric "B" missing from columns`},
		},
		{
			name:    "bad multiplier",
			yaml:    "branches:\n  - name: T\n    formulas:\n      - {name: A, numerator: n, denominator: [a, b], mode: SUB, multiplier: \"1/0\"}\n",
			wantErr: []string{"zero divisor"},
		},
		{
			name:    "no branches",
			yaml:    "version: x\n",
			wantErr: []string{"Branches"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.yaml))
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, DefaultRegistryYAML(), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Branches(), 8)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
