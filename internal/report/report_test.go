package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/model"
	"github.com/faf-tools/simlint/internal/resolve"
	"github.com/faf-tools/simlint/internal/scan"
)

func sampleResult() *scan.Result {
	u := model.Unit{
		ID:          "uel0101",
		DisplayName: "MA12 <Striker>",
		SourceFile:  "units/uel0101/uel0101_unit.bp",
		Weapons: []model.Weapon{{
			Index: 1, Label: "Gatling", DamageBase: 10, RateOfFire: 2, HasRateOfFire: true,
			RackSalvoSize: 1, MuzzleSalvoSize: 1, MaxRadius: 26,
		}},
	}
	stats, _ := resolve.Resolve(&u, resolve.NewIndex(nil, false))
	return &scan.Result{
		DataDir: "/data/faf",
		Units: []scan.UnitReport{{
			Unit:              u,
			Weapons:           stats,
			TotalEffectiveDPS: resolve.TotalEffectiveDPS(stats),
			Findings: []anomaly.Finding{
				anomaly.New(anomaly.Warn, anomaly.CodeStarvation, "uel0101", 1, "slow", "numbers"),
			},
		}},
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	require.NoError(t, WriteHTML(res, dir))

	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.FileExists(t, filepath.Join(dir, "anomalies.html"))
	assert.FileExists(t, filepath.Join(dir, "unit_uel0101.html"))

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	// Display names are escaped.
	assert.Contains(t, string(index), "MA12 &lt;Striker&gt;")
	assert.NotContains(t, string(index), "MA12 <Striker>")

	unitPage, err := os.ReadFile(filepath.Join(dir, "unit_uel0101.html"))
	require.NoError(t, err)
	assert.Contains(t, string(unitPage), "STARVATION")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSON(sampleResult(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"uel0101"`)
	assert.Contains(t, string(data), `"WARN"`)
}
