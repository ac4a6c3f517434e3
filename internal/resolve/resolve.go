// Package resolve joins weapons to projectile records and computes the
// derived per-weapon view: fragment contributions, per-shot damage, cycle
// period and effective DPS. It never mutates model entities.
package resolve

import (
	"fmt"
	"strings"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/model"
)

// NormalizePath canonicalizes a projectile blueprint path for lookup:
// lowercased, backslashes to forward slashes, one leading slash.
func NormalizePath(p string) string {
	s := strings.TrimSpace(p)
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

// KeyFromFile derives the lookup key from a projectile file path on disk:
// everything from the projectiles/ segment on, normalized.
func KeyFromFile(path string) string {
	s := strings.ReplaceAll(path, `\`, "/")
	low := strings.ToLower(s)
	if i := strings.Index(low, "projectiles/"); i >= 0 {
		return NormalizePath(low[i:])
	}
	return NormalizePath(low)
}

// Index is the projectile lookup table for one scan. Scanned records
// whether a projectiles directory was visited at all, which decides the
// severity of dangling references.
type Index struct {
	byPath  map[string]*model.Projectile
	scanned bool
}

// NewIndex builds a lookup over the given projectiles.
func NewIndex(projectiles []*model.Projectile, scanned bool) *Index {
	idx := &Index{byPath: make(map[string]*model.Projectile, len(projectiles)), scanned: scanned}
	for _, p := range projectiles {
		idx.byPath[p.Path] = p
	}
	return idx
}

// Scanned reports whether projectile data was available to this scan.
func (x *Index) Scanned() bool { return x.scanned }

// Lookup finds a projectile by an unnormalized reference.
func (x *Index) Lookup(ref string) *model.Projectile {
	return x.byPath[NormalizePath(ref)]
}

// WeaponStats is the derived view of one weapon after the projectile join.
type WeaponStats struct {
	Weapon             *model.Weapon `json:"-"`
	WeaponIndex        int           `json:"weapon_index"`
	FragmentCount      int           `json:"fragment_count"`
	FragmentDamage     float64       `json:"fragment_damage"`
	ProjectileResolved bool          `json:"projectile_resolved"`

	ShotsPerRack  int     `json:"shots_per_rack"`
	RackDuration  float64 `json:"rack_duration"`
	CyclePeriod   float64 `json:"cycle_period"`
	PerShotDamage float64 `json:"per_shot_damage"`
	EffectiveDPS  float64 `json:"effective_dps"`
	NominalDPS    float64 `json:"nominal_dps"`
}

// Resolve builds the derived view for every weapon of a unit.
func Resolve(u *model.Unit, idx *Index) ([]WeaponStats, []anomaly.Finding) {
	out := make([]WeaponStats, 0, len(u.Weapons))
	var findings []anomaly.Finding
	for i := range u.Weapons {
		w := &u.Weapons[i]
		s := WeaponStats{Weapon: w, WeaponIndex: w.Index}
		if w.ProjectileRef != "" {
			fs := joinProjectile(&s, w, u.ID, idx)
			findings = append(findings, fs...)
		}
		derive(&s, w)
		out = append(out, s)
	}
	return out, findings
}

func joinProjectile(s *WeaponStats, w *model.Weapon, unitID string, idx *Index) []anomaly.Finding {
	var findings []anomaly.Finding
	p := idx.Lookup(w.ProjectileRef)
	if p == nil {
		sev := anomaly.Info
		msg := fmt.Sprintf("weapon %d references a projectile but no projectiles were scanned", w.Index)
		if idx.Scanned() {
			sev = anomaly.Warn
			msg = fmt.Sprintf("weapon %d references a projectile that does not exist", w.Index)
		}
		findings = append(findings, anomaly.New(sev, anomaly.CodeMissingProjectile, unitID, w.Index,
			msg, fmt.Sprintf("projectile_ref=%q normalized=%q", w.ProjectileRef, NormalizePath(w.ProjectileRef))))
		return findings
	}
	s.ProjectileResolved = true
	s.FragmentCount = p.FragmentCount
	s.FragmentDamage = p.FragmentDamage

	// Fragment damage usually lives on the fragment projectile itself;
	// follow the reference exactly one level.
	if s.FragmentDamage == 0 && p.FragmentRef != "" {
		frag := idx.Lookup(p.FragmentRef)
		if frag == nil {
			findings = append(findings, anomaly.New(anomaly.Warn, anomaly.CodeMissingProjectile, unitID, w.Index,
				fmt.Sprintf("weapon %d fragment projectile does not exist", w.Index),
				fmt.Sprintf("fragment_ref=%q via %q", p.FragmentRef, p.Path)))
		} else {
			s.FragmentDamage = frag.Damage
			if frag.FragmentRef != "" || frag.FragmentCount > 0 {
				findings = append(findings, anomaly.New(anomaly.Warn, anomaly.CodeFragmentChainDeep, unitID, w.Index,
					fmt.Sprintf("weapon %d projectile fragments chain deeper than one level; deeper levels ignored", w.Index),
					fmt.Sprintf("%q -> %q -> %q (fragments=%d)", p.Path, frag.Path, frag.FragmentRef, frag.FragmentCount)))
			}
		}
	}
	return findings
}

func derive(s *WeaponStats, w *model.Weapon) {
	s.ShotsPerRack = w.ShotsPerRack()
	s.RackDuration = w.RackDuration()
	s.CyclePeriod = w.CyclePeriod()
	s.PerShotDamage = w.DamageBase + w.InitialDamage + float64(s.FragmentCount)*s.FragmentDamage
	if w.RateOfFire > 0 {
		s.NominalDPS = s.PerShotDamage * float64(s.ShotsPerRack) * w.RateOfFire
	}
	if s.CyclePeriod > 0 {
		s.EffectiveDPS = s.PerShotDamage * float64(s.ShotsPerRack) / s.CyclePeriod
	}
}

// TotalEffectiveDPS sums effective DPS across weapons, skipping weapons
// without a usable rate of fire.
func TotalEffectiveDPS(stats []WeaponStats) float64 {
	var sum float64
	for i := range stats {
		if stats[i].Weapon != nil && stats[i].Weapon.RateOfFire > 0 {
			sum += stats[i].EffectiveDPS
		}
	}
	return sum
}
