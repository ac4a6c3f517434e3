package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/config"
)

const uel0101 = `UnitBlueprint {
    BlueprintId = 'uel0101',
    DisplayName = 'MA12 Striker',
    Weapon = {
        {
            Label = 'Gatling',
            Damage = 10,
            RateOfFire = 2.0,
            RackSalvoSize = 1,
            MuzzleSalvoSize = 1,
            MaxRadius = 26,
            TargetCategories = { 'LAND' },
        },
    },
}`

const bomber = `UnitBlueprint {
    BlueprintId = 'uea0103',
    DisplayName = 'Scorcher',
    Weapon = {
        {
            Label = 'Bomb',
            Damage = 50,
            InitialDamage = 25,
            RateOfFire = 0.25,
            RackSalvoSize = 1,
            MuzzleSalvoSize = 2,
            MuzzleSalvoDelay = 0.2,
            MaxRadius = 30,
            ProjectileId = '/projectiles/bomb/bomb_proj.bp',
            TargetCategories = { 'LAND', 'STRUCTURE' },
        },
    },
}`

const bombProj = `ProjectileBlueprint {
    Physics = {
        Fragments = 3,
        FragmentId = '/projectiles/frag/frag_proj.bp',
    },
}`

const fragProj = `ProjectileBlueprint {
    Damage = 5,
}`

func writeFixtures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	units := filepath.Join(root, "units")
	projs := filepath.Join(root, "projectiles")
	require.NoError(t, os.MkdirAll(filepath.Join(units, "uel0101"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(units, "uea0103"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(projs, "bomb"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(projs, "frag"), 0o755))
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join(units, "uel0101", "uel0101_unit.bp"), uel0101)
	write(filepath.Join(units, "uea0103", "uea0103_unit.bp"), bomber)
	write(filepath.Join(projs, "bomb", "bomb_proj.bp"), bombProj)
	write(filepath.Join(projs, "frag", "frag_proj.bp"), fragProj)
	// Behavior scripts never reach the parser.
	write(filepath.Join(units, "uel0101", "uel0101_script.lua"), "function OnCreate() end !!")
	return root
}

func TestScanFixtures(t *testing.T) {
	root := writeFixtures(t)
	res, err := Run(root, config.Default(), nil)
	require.NoError(t, err)
	require.Len(t, res.Units, 2)
	// Units ordered by ID.
	assert.Equal(t, "uea0103", res.Units[0].Unit.ID)
	assert.Equal(t, "uel0101", res.Units[1].Unit.ID)

	bomberReport := res.Units[0]
	require.Len(t, bomberReport.Weapons, 1)
	s := bomberReport.Weapons[0]
	assert.True(t, s.ProjectileResolved)
	assert.Equal(t, 3, s.FragmentCount)
	assert.Equal(t, 5.0, s.FragmentDamage)
	// per-shot = 50 + 25 + 3×5 = 90, two bombs per cycle of 4s.
	assert.InDelta(t, 90.0, s.PerShotDamage, 1e-9)
	assert.InDelta(t, 45.0, s.EffectiveDPS, 1e-9)

	striker := res.Units[1]
	assert.InDelta(t, 20.0, striker.TotalEffectiveDPS, 1e-9)
	for _, f := range striker.Findings {
		assert.NotEqual(t, anomaly.CodePhantomDPS, f.Code)
	}
}

func TestScanMissingDirFails(t *testing.T) {
	_, err := Run(filepath.Join(t.TempDir(), "nope"), config.Default(), nil)
	require.Error(t, err)
}

func TestScanDanglingProjectile(t *testing.T) {
	root := writeFixtures(t)
	dangling := `UnitBlueprint {
    BlueprintId = 'xrl0001',
    Weapon = {
        { Damage = 10, RateOfFire = 1, ProjectileId = '/projectiles/foo/bar', MaxRadius = 5 },
    },
}`
	require.NoError(t, os.MkdirAll(filepath.Join(root, "units", "xrl0001"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "units", "xrl0001", "xrl0001_unit.bp"), []byte(dangling), 0o644))

	res, err := Run(root, config.Default(), nil)
	require.NoError(t, err)
	var found *anomaly.Finding
	for i := range res.Units {
		if res.Units[i].Unit.ID != "xrl0001" {
			continue
		}
		assert.Equal(t, 0, res.Units[i].Weapons[0].FragmentCount)
		for j := range res.Units[i].Findings {
			if res.Units[i].Findings[j].Code == anomaly.CodeMissingProjectile {
				found = &res.Units[i].Findings[j]
			}
		}
	}
	require.NotNil(t, found, "expected a missing-projectile finding")
	assert.Equal(t, anomaly.Warn, found.Severity)
}

func TestScanDuplicateUnitID(t *testing.T) {
	root := writeFixtures(t)
	dup := `UnitBlueprint { BlueprintId = 'UEL0101', Weapon = { { Damage = 1, RateOfFire = 1 } } }`
	require.NoError(t, os.MkdirAll(filepath.Join(root, "units", "copy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "units", "copy", "copy_unit.bp"), []byte(dup), 0o644))

	res, err := Run(root, config.Default(), nil)
	require.NoError(t, err)
	var found *anomaly.Finding
	for i := range res.Findings {
		if res.Findings[i].Code == anomaly.CodeDuplicateUnitID {
			found = &res.Findings[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, anomaly.Crit, found.Severity)
	// Both files are named in the detail.
	assert.Contains(t, found.Detail, "uel0101_unit.bp")
	assert.Contains(t, found.Detail, "copy_unit.bp")

	// Only the first file survives into the result; consumers key by ID.
	require.Len(t, res.Units, 2)
	var kept []string
	for i := range res.Units {
		if res.Units[i].Unit.Key() == "uel0101" {
			kept = append(kept, res.Units[i].Unit.SourceFile)
		}
	}
	require.Len(t, kept, 1)
	assert.Contains(t, kept[0], "copy_unit.bp")
}

func TestScanParseErrorIsFinding(t *testing.T) {
	root := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "units", "broken_unit.bp"), []byte("{ Damage = "), 0o644))
	res, err := Run(root, config.Default(), nil)
	require.NoError(t, err)
	var codes []string
	for _, f := range res.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, anomaly.CodeParseError)
	// The broken file does not abort the scan.
	assert.Len(t, res.Units, 2)
}

func TestScanFileCountCeiling(t *testing.T) {
	root := writeFixtures(t)
	cfg := config.Default()
	cfg.MaxFiles = 1
	res, err := Run(root, cfg, nil)
	require.NoError(t, err)
	var codes []string
	for _, f := range res.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, anomaly.CodeResourceLimit)
	assert.LessOrEqual(t, len(res.Units), 1)
}

func TestScanDeclaredOverride(t *testing.T) {
	root := writeFixtures(t)
	declared := map[string]float64{"uel0101": 100} // real effective is 20
	res, err := Run(root, config.Default(), declared)
	require.NoError(t, err)

	striker := res.Units[1]
	require.NotNil(t, striker.DeclaredDPS)
	var found *anomaly.Finding
	for i := range striker.Findings {
		if striker.Findings[i].Code == anomaly.CodeDeclaredMismatch {
			found = &striker.Findings[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, anomaly.Warn, found.Severity)

	// Absent units get no finding.
	bomberReport := res.Units[0]
	assert.Nil(t, bomberReport.DeclaredDPS)
	for _, f := range bomberReport.Findings {
		assert.NotEqual(t, anomaly.CodeDeclaredMismatch, f.Code)
	}
}

func TestLoadDeclaredDPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "declared.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"UEL0101": 120.5, "note": "ignored"}`), 0o644))
	m, err := LoadDeclaredDPS(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"uel0101": 120.5}, m)
}

func TestEncodeJSONDeterministic(t *testing.T) {
	root := writeFixtures(t)
	// The override gives the striker a finding, so severities are encoded.
	declared := map[string]float64{"uel0101": 100}
	resA, err := Run(root, config.Default(), declared)
	require.NoError(t, err)
	resB, err := Run(root, config.Default(), declared)
	require.NoError(t, err)

	a, err := EncodeJSON(resA)
	require.NoError(t, err)
	b, err := EncodeJSON(resB)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"severity":`)
}
