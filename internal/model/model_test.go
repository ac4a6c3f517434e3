package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCadenceSimpleWeapon(t *testing.T) {
	// One shot per cycle at 2 shots/s: the nominal interval dominates.
	w := Weapon{
		DamageBase:      10,
		RateOfFire:      2.0,
		HasRateOfFire:   true,
		RackSalvoSize:   1,
		MuzzleSalvoSize: 1,
	}
	assert.Equal(t, 1, w.ShotsPerRack())
	assert.Equal(t, 0.0, w.RackDuration())
	assert.InDelta(t, 0.5, w.CyclePeriod(), 1e-12)
}

func TestCadenceReloadDominated(t *testing.T) {
	// 2 racks × 3 muzzles with 0.05s muzzle delay and 0.8s reload:
	// the salvo-plus-reload span beats the 1/1.5s nominal interval.
	w := Weapon{
		DamageBase:          50,
		RateOfFire:          1.5,
		HasRateOfFire:       true,
		RackSalvoSize:       2,
		MuzzleSalvoSize:     3,
		MuzzleSalvoDelay:    0.05,
		RackSalvoReloadTime: 0.8,
	}
	assert.Equal(t, 6, w.ShotsPerRack())
	assert.InDelta(t, 0.1, w.RackDuration(), 1e-12)
	assert.InDelta(t, 0.9, w.CyclePeriod(), 1e-12)
}

func TestCyclePeriodZeroRate(t *testing.T) {
	w := Weapon{RackSalvoSize: 1, MuzzleSalvoSize: 1}
	assert.Equal(t, 0.0, w.CyclePeriod())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "uel0101", NormalizeID("  UEL0101  "))
	assert.Equal(t, "aeon t1 tank", NormalizeID("Aeon T1 Tank"))
}

func TestTargetsIntersect(t *testing.T) {
	assert.True(t, TargetsIntersect([]string{"AIR", "LAND"}, []string{"land"}))
	assert.False(t, TargetsIntersect([]string{"AIR"}, []string{"LAND"}))
	assert.False(t, TargetsIntersect(nil, []string{"LAND"}))
	assert.False(t, TargetsIntersect([]string{"AIR"}, nil))
}
