// Package model holds the canonical entities produced by the extractor:
// units, weapons, and projectiles. Entities are immutable once extraction
// completes; derived cadence numbers are computed, never stored back.
package model

import "strings"

// Unit is one unit blueprint. Identity is the case-insensitive ID.
type Unit struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	SourceFile  string `json:"source_file"`
	// Weapons in declaration order; Weapon.Index is the 1-based position.
	Weapons []Weapon `json:"weapons"`
}

// Key returns the case-insensitive identity of the unit.
func (u *Unit) Key() string {
	return NormalizeID(u.ID)
}

// NormalizeID lowercases and trims a unit ID or display name for lookup.
func NormalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Weapon is the canonical cadence record for one weapon.
// Legacy blueprint synonyms are already folded in by the extractor;
// LegacyFields records which fallbacks were used.
type Weapon struct {
	Index            int      `json:"index"`
	Label            string   `json:"label,omitempty"`
	ProjectileRef    string   `json:"projectile_ref,omitempty"`
	TargetCategories []string `json:"target_categories,omitempty"`

	DamageBase          float64 `json:"damage_base"`
	InitialDamage       float64 `json:"initial_damage"`
	RateOfFire          float64 `json:"rate_of_fire"`
	HasRateOfFire       bool    `json:"has_rate_of_fire"`
	RackSalvoSize       int     `json:"rack_salvo_size"`
	MuzzleSalvoSize     int     `json:"muzzle_salvo_size"`
	MuzzleSalvoDelay    float64 `json:"muzzle_salvo_delay"`
	RackSalvoReloadTime float64 `json:"rack_salvo_reload_time"`
	MaxRadius           float64 `json:"max_radius"`
	TurretCapable       bool    `json:"turret_capable"`

	LegacyFields  []string `json:"legacy_fields,omitempty"`
	UnknownFields []string `json:"unknown_fields,omitempty"`
}

// ShotsPerRack is the projectile count of one full cycle.
func (w *Weapon) ShotsPerRack() int {
	return w.RackSalvoSize * w.MuzzleSalvoSize
}

// RackDuration is the in-rack firing time: muzzle delays between the
// muzzles of a single rack.
func (w *Weapon) RackDuration() float64 {
	return float64(w.MuzzleSalvoSize-1) * w.MuzzleSalvoDelay
}

// CyclePeriod is the time between rack-cycle starts: the nominal shot
// interval or the salvo-plus-reload span, whichever dominates.
// Zero when the weapon has no usable rate of fire.
func (w *Weapon) CyclePeriod() float64 {
	if w.RateOfFire <= 0 {
		return 0
	}
	nominal := 1.0 / w.RateOfFire
	reloadBound := w.RackDuration() + w.RackSalvoReloadTime
	if reloadBound > nominal {
		return reloadBound
	}
	return nominal
}

// TargetsIntersect reports whether two weapons share a target category.
func TargetsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[strings.ToUpper(c)] = true
	}
	for _, c := range b {
		if set[strings.ToUpper(c)] {
			return true
		}
	}
	return false
}

// Projectile is a shared projectile blueprint record, keyed by its
// normalized path. FragmentRef is followed at most one level by the
// resolver.
type Projectile struct {
	Path           string  `json:"path"`
	SourceFile     string  `json:"source_file"`
	FragmentCount  int     `json:"fragment_count"`
	FragmentDamage float64 `json:"fragment_damage"`
	// Damage carried by this projectile when it is itself a fragment.
	Damage      float64 `json:"damage"`
	FragmentRef string  `json:"fragment_ref,omitempty"`
}
