package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/blueprint"
)

func parse(t *testing.T, path, src string) *blueprint.Value {
	t.Helper()
	v, err := blueprint.Parse(path, src)
	require.NoError(t, err)
	return v
}

func findingCodes(fs []anomaly.Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Code)
	}
	return out
}

func TestUnitWithWeapons(t *testing.T) {
	src := `UnitBlueprint {
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
            TurretCapable = true,
            TargetCategories = { 'LAND', 'STRUCTURE' },
        },
    },
}`
	u, findings := UnitFromTree(parse(t, "uel0101_unit.bp", src), "uel0101_unit.bp")
	require.NotNil(t, u)
	assert.Empty(t, findings)
	assert.Equal(t, "uel0101", u.ID)
	assert.Equal(t, "MA12 Striker", u.DisplayName)
	require.Len(t, u.Weapons, 1)
	w := u.Weapons[0]
	assert.Equal(t, 1, w.Index)
	assert.Equal(t, "Gatling", w.Label)
	assert.Equal(t, 10.0, w.DamageBase)
	assert.Equal(t, 2.0, w.RateOfFire)
	assert.True(t, w.HasRateOfFire)
	assert.True(t, w.TurretCapable)
	assert.Equal(t, []string{"LAND", "STRUCTURE"}, w.TargetCategories)
	assert.Equal(t, 26.0, w.MaxRadius)
	assert.Empty(t, w.LegacyFields)
}

func TestLegacyFieldFallbacks(t *testing.T) {
	src := `{
    Damage = 50,
    RateOfFire = 1.5,
    SalvoSize = 3,
    SalvoDelay = 0.05,
    ReloadTime = 0.8,
    ProjectilesPerOnFire = 2,
}`
	u, findings := UnitFromTree(parse(t, "test_weapon_01.lua", src), "test_weapon_01.lua")
	require.NotNil(t, u)
	assert.Equal(t, "test_weapon_01", u.ID)
	require.Len(t, u.Weapons, 1)
	w := u.Weapons[0]
	assert.Equal(t, 2, w.RackSalvoSize)
	assert.Equal(t, 3, w.MuzzleSalvoSize)
	assert.InDelta(t, 0.05, w.MuzzleSalvoDelay, 1e-12)
	assert.InDelta(t, 0.8, w.RackSalvoReloadTime, 1e-12)
	assert.ElementsMatch(t, []string{"ProjectilesPerOnFire", "SalvoSize", "SalvoDelay", "ReloadTime"}, w.LegacyFields)
	assert.Contains(t, findingCodes(findings), anomaly.CodeLegacyField)
}

func TestModernFieldsWinOverLegacy(t *testing.T) {
	src := `{
    Damage = 10,
    RateOfFire = 1,
    RackSalvoSize = 4,
    ProjectilesPerOnFire = 9,
    MuzzleSalvoSize = 2,
    SalvoSize = 7,
}`
	u, findings := UnitFromTree(parse(t, "w.lua", src), "w.lua")
	require.NotNil(t, u)
	w := u.Weapons[0]
	assert.Equal(t, 4, w.RackSalvoSize)
	assert.Equal(t, 2, w.MuzzleSalvoSize)
	assert.Empty(t, w.LegacyFields)
	assert.NotContains(t, findingCodes(findings), anomaly.CodeLegacyField)
}

func TestIDMismatch(t *testing.T) {
	src := `{ UnitId = 'xab1234', BlueprintId = 'xab1235' }`
	u, findings := UnitFromTree(parse(t, "xab_unit.bp", src), "xab_unit.bp")
	require.NotNil(t, u)
	assert.Contains(t, findingCodes(findings), anomaly.CodeIDMismatch)
	for _, f := range findings {
		if f.Code == anomaly.CodeIDMismatch {
			assert.Equal(t, anomaly.Crit, f.Severity)
		}
	}
}

func TestIDCaseInsensitiveMatchIsFine(t *testing.T) {
	src := `{ UnitId = 'UEL0101', BlueprintId = 'uel0101' }`
	_, findings := UnitFromTree(parse(t, "u.bp", src), "u.bp")
	assert.NotContains(t, findingCodes(findings), anomaly.CodeIDMismatch)
}

func TestMissingRateOfFire(t *testing.T) {
	src := `{ BlueprintId = 'test02', Weapon = { { Damage = 10 } } }`
	u, _ := UnitFromTree(parse(t, "test02_unit.bp", src), "test02_unit.bp")
	require.NotNil(t, u)
	require.Len(t, u.Weapons, 1)
	assert.False(t, u.Weapons[0].HasRateOfFire)
	assert.Equal(t, 0.0, u.Weapons[0].RateOfFire)
}

func TestNegativeDamage(t *testing.T) {
	src := `{ BlueprintId = 'test03', Weapon = { { Damage = -5, RateOfFire = 1 } } }`
	u, findings := UnitFromTree(parse(t, "test03_unit.bp", src), "test03_unit.bp")
	require.NotNil(t, u)
	assert.Contains(t, findingCodes(findings), anomaly.CodeNegativeValue)
	// Best-effort default applied so downstream reports stay coherent.
	assert.Equal(t, 0.0, u.Weapons[0].DamageBase)
}

func TestUnknownKeysPreserved(t *testing.T) {
	src := `{ Damage = 1, RateOfFire = 1, FiringTolerance = 2, BeamLifetime = 1 }`
	u, _ := UnitFromTree(parse(t, "w.lua", src), "w.lua")
	require.NotNil(t, u)
	assert.Equal(t, []string{"BeamLifetime", "FiringTolerance"}, u.Weapons[0].UnknownFields)
}

func TestNonBlueprintTreeSkipped(t *testing.T) {
	src := `{ MeshName = 'thing', LODs = { { LODCutoff = 100 } } }`
	u, findings := UnitFromTree(parse(t, "thing_mesh.bp", src), "thing_mesh.bp")
	assert.Nil(t, u)
	assert.Empty(t, findings)
}

func TestProjectileExtraction(t *testing.T) {
	src := `ProjectileBlueprint {
    Damage = 15,
    Physics = {
        Fragments = 4,
        FragmentId = '/projectiles/frag/frag_proj.bp',
    },
}`
	p := ProjectileFromTree(parse(t, "bomb_proj.bp", src), "/projectiles/bomb/bomb_proj.bp", "bomb_proj.bp")
	require.NotNil(t, p)
	assert.Equal(t, 4, p.FragmentCount)
	assert.Equal(t, "/projectiles/frag/frag_proj.bp", p.FragmentRef)
	assert.Equal(t, 15.0, p.Damage)
}
