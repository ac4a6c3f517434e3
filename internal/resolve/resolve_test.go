package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/model"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/projectiles/Foo/Bar_proj.bp", "/projectiles/foo/bar_proj.bp"},
		{`projectiles\foo\bar_proj.bp`, "/projectiles/foo/bar_proj.bp"},
		{` "/Projectiles/X/Y_proj.bp" `, "/projectiles/x/y_proj.bp"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), tt.in)
	}
}

func TestKeyFromFile(t *testing.T) {
	got := KeyFromFile("/data/faf/Projectiles/TDFGauss/TDFGauss01_proj.bp")
	assert.Equal(t, "/projectiles/tdfgauss/tdfgauss01_proj.bp", got)
}

func unitWithRef(ref string) *model.Unit {
	return &model.Unit{
		ID: "uel0103",
		Weapons: []model.Weapon{{
			Index:           1,
			ProjectileRef:   ref,
			DamageBase:      20,
			RateOfFire:      1,
			HasRateOfFire:   true,
			RackSalvoSize:   1,
			MuzzleSalvoSize: 1,
		}},
	}
}

func TestResolveFragments(t *testing.T) {
	idx := NewIndex([]*model.Projectile{
		{Path: "/projectiles/bomb/bomb_proj.bp", FragmentCount: 3, FragmentRef: "/projectiles/frag/frag_proj.bp"},
		{Path: "/projectiles/frag/frag_proj.bp", Damage: 5},
	}, true)
	u := unitWithRef("/projectiles/Bomb/Bomb_proj.bp")
	stats, findings := Resolve(u, idx)
	require.Len(t, stats, 1)
	assert.Empty(t, findings)
	s := stats[0]
	assert.True(t, s.ProjectileResolved)
	assert.Equal(t, 3, s.FragmentCount)
	assert.Equal(t, 5.0, s.FragmentDamage)
	// per-shot = 20 + 3×5
	assert.InDelta(t, 35.0, s.PerShotDamage, 1e-9)
	assert.InDelta(t, 35.0, s.EffectiveDPS, 1e-9)
	assert.InDelta(t, 35.0, s.NominalDPS, 1e-9)
}

func TestResolveDanglingScanned(t *testing.T) {
	idx := NewIndex(nil, true)
	u := unitWithRef("/projectiles/foo/bar")
	stats, findings := Resolve(u, idx)
	require.Len(t, findings, 1)
	assert.Equal(t, anomaly.CodeMissingProjectile, findings[0].Code)
	assert.Equal(t, anomaly.Warn, findings[0].Severity)
	assert.Equal(t, 0, stats[0].FragmentCount)
	assert.False(t, stats[0].ProjectileResolved)
}

func TestResolveDanglingUnscanned(t *testing.T) {
	idx := NewIndex(nil, false)
	u := unitWithRef("/projectiles/foo/bar")
	_, findings := Resolve(u, idx)
	require.Len(t, findings, 1)
	assert.Equal(t, anomaly.CodeMissingProjectile, findings[0].Code)
	assert.Equal(t, anomaly.Info, findings[0].Severity)
}

func TestFragmentChainTooDeep(t *testing.T) {
	idx := NewIndex([]*model.Projectile{
		{Path: "/projectiles/a/a_proj.bp", FragmentCount: 2, FragmentRef: "/projectiles/b/b_proj.bp"},
		{Path: "/projectiles/b/b_proj.bp", Damage: 4, FragmentCount: 3, FragmentRef: "/projectiles/c/c_proj.bp"},
		{Path: "/projectiles/c/c_proj.bp", Damage: 1},
	}, true)
	u := unitWithRef("/projectiles/a/a_proj.bp")
	stats, findings := Resolve(u, idx)
	require.Len(t, findings, 1)
	assert.Equal(t, anomaly.CodeFragmentChainDeep, findings[0].Code)
	// One hop only: count from a, damage from b, c ignored.
	assert.Equal(t, 2, stats[0].FragmentCount)
	assert.Equal(t, 4.0, stats[0].FragmentDamage)
}

func TestTotalEffectiveDPSSkipsZeroRate(t *testing.T) {
	u := &model.Unit{
		ID: "test04",
		Weapons: []model.Weapon{
			{Index: 1, DamageBase: 10, RateOfFire: 2, HasRateOfFire: true, RackSalvoSize: 1, MuzzleSalvoSize: 1},
			{Index: 2, DamageBase: 10, RackSalvoSize: 1, MuzzleSalvoSize: 1},
		},
	}
	stats, _ := Resolve(u, NewIndex(nil, false))
	assert.InDelta(t, 20.0, TotalEffectiveDPS(stats), 1e-9)
}
