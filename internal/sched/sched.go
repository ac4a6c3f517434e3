// Package sched is the multi-weapon micro-scheduler: it replays each
// weapon's rack/muzzle structure over a bounded horizon as exact-time
// discrete events, merges them into one unit trace, and classifies cadence
// anomalies from the merged view.
package sched

import (
	"fmt"
	"sort"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/model"
	"github.com/faf-tools/simlint/internal/resolve"
)

// DefaultHorizon is the default simulation window in seconds.
const DefaultHorizon = 10.0

// maxEventsPerUnit bounds trace size against degenerate cadence values
// (a cycle period of microseconds would otherwise flood the trace).
const maxEventsPerUnit = 100000

// Event is one muzzle fire at an exact time.
type Event struct {
	Time        float64 `json:"time"`
	WeaponIndex int     `json:"weapon_index"`
	Rack        int     `json:"rack"`
	Muzzle      int     `json:"muzzle"`
}

// WeaponTally counts one weapon's shots over the horizon.
type WeaponTally struct {
	WeaponIndex int     `json:"weapon_index"`
	Shots       int     `json:"shots"`
	NominalRate float64 `json:"nominal_rate"` // shots per second if nothing interfered
	Truncated   bool    `json:"truncated"`
}

// Trace is the merged firing record of one unit.
type Trace struct {
	UnitID  string        `json:"unit_id"`
	Horizon float64       `json:"horizon"`
	Events  []Event       `json:"events"`
	Tallies []WeaponTally `json:"tallies"`
}

// Horizon picks the simulation window for a unit: the configured window,
// stretched to three full cycles of the slowest weapon so long-reload siege
// weapons are not misread as starved.
func Horizon(configured float64, stats []resolve.WeaponStats) float64 {
	h := configured
	if h <= 0 {
		h = DefaultHorizon
	}
	for i := range stats {
		if c := stats[i].CyclePeriod; c > 0 && 3*c > h {
			h = 3 * c
		}
	}
	return h
}

// Simulate produces the merged event trace for one unit. Weapons without a
// usable rate of fire emit no events. The result is deterministic: ties are
// broken by weapon index, then rack index, then muzzle index.
func Simulate(u *model.Unit, stats []resolve.WeaponStats, horizon float64) *Trace {
	tr := &Trace{UnitID: u.ID, Horizon: horizon}
	for i := range stats {
		s := &stats[i]
		w := s.Weapon
		if w == nil || w.RateOfFire <= 0 || s.CyclePeriod <= 0 {
			tr.Tallies = append(tr.Tallies, WeaponTally{WeaponIndex: s.WeaponIndex})
			continue
		}
		tally := WeaponTally{
			WeaponIndex: s.WeaponIndex,
			NominalRate: w.RateOfFire * float64(s.ShotsPerRack),
		}
		// Racks inside a cycle are contiguous: rack r starts one muzzle
		// delay after rack r-1's last muzzle.
		rackSpan := float64(w.MuzzleSalvoSize) * w.MuzzleSalvoDelay
		for start := 0.0; start <= horizon; start += s.CyclePeriod {
			for rack := 0; rack < w.RackSalvoSize; rack++ {
				for muzzle := 0; muzzle < w.MuzzleSalvoSize; muzzle++ {
					t := start + float64(rack)*rackSpan + float64(muzzle)*w.MuzzleSalvoDelay
					if t > horizon {
						continue
					}
					tr.Events = append(tr.Events, Event{
						Time:        t,
						WeaponIndex: s.WeaponIndex,
						Rack:        rack + 1,
						Muzzle:      muzzle + 1,
					})
					tally.Shots++
				}
			}
			if len(tr.Events) >= maxEventsPerUnit {
				tally.Truncated = true
				break
			}
		}
		tr.Tallies = append(tr.Tallies, tally)
	}
	sort.SliceStable(tr.Events, func(i, j int) bool {
		a, b := tr.Events[i], tr.Events[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.WeaponIndex != b.WeaponIndex {
			return a.WeaponIndex < b.WeaponIndex
		}
		if a.Rack != b.Rack {
			return a.Rack < b.Rack
		}
		return a.Muzzle < b.Muzzle
	})
	return tr
}

// Classify runs the cadence checks over a unit's derived stats and trace.
func Classify(u *model.Unit, stats []resolve.WeaponStats, tr *Trace) []anomaly.Finding {
	var out []anomaly.Finding
	out = append(out, zeroRate(u, stats)...)
	out = append(out, starvation(u, stats, tr)...)
	out = append(out, phantomDPS(u, stats)...)
	out = append(out, overlap(u, stats, tr)...)
	return out
}

func zeroRate(u *model.Unit, stats []resolve.WeaponStats) []anomaly.Finding {
	var out []anomaly.Finding
	for i := range stats {
		w := stats[i].Weapon
		if w == nil {
			continue
		}
		if !w.HasRateOfFire || w.RateOfFire <= 0 {
			detail := fmt.Sprintf("rate_of_fire=%g declared=%v", w.RateOfFire, w.HasRateOfFire)
			out = append(out, anomaly.New(anomaly.Crit, anomaly.CodeZeroRateWeapon, u.ID, w.Index,
				fmt.Sprintf("weapon %d has no usable rate of fire; excluded from unit DPS", w.Index), detail))
		}
	}
	return out
}

// starvation flags weapons whose delivered cadence over the horizon drops
// below 80% of nominal because the reload-dominated regime stretches the
// cycle past the declared shot interval.
func starvation(u *model.Unit, stats []resolve.WeaponStats, tr *Trace) []anomaly.Finding {
	var out []anomaly.Finding
	for _, tally := range tr.Tallies {
		if tally.NominalRate <= 0 || tr.Horizon <= 0 {
			continue
		}
		s := statByIndex(stats, tally.WeaponIndex)
		if s == nil || s.Weapon == nil {
			continue
		}
		reloadDominated := s.CyclePeriod > 1/s.Weapon.RateOfFire
		actualRate := float64(tally.Shots) / tr.Horizon
		if reloadDominated && actualRate < 0.8*tally.NominalRate {
			out = append(out, anomaly.New(anomaly.Warn, anomaly.CodeStarvation, u.ID, tally.WeaponIndex,
				fmt.Sprintf("weapon %d delivers %.1f shots/s against a nominal %.1f; reload dominates the cycle",
					tally.WeaponIndex, actualRate, tally.NominalRate),
				fmt.Sprintf("shots=%d horizon=%.2fs cycle_period=%.3fs shot_interval=%.3fs rack_duration=%.3fs reload=%.3fs",
					tally.Shots, tr.Horizon, s.CyclePeriod, 1/s.Weapon.RateOfFire, s.RackDuration, s.Weapon.RackSalvoReloadTime)))
		}
	}
	return out
}

// phantomDPS flags weapons whose declared nominal DPS exceeds effective by
// more than 25%, identifying the dominant cause.
func phantomDPS(u *model.Unit, stats []resolve.WeaponStats) []anomaly.Finding {
	var out []anomaly.Finding
	for i := range stats {
		s := &stats[i]
		w := s.Weapon
		if w == nil || w.RateOfFire <= 0 || s.EffectiveDPS <= 0 {
			continue
		}
		if s.NominalDPS <= 1.25*s.EffectiveDPS {
			continue
		}
		cause := "reload-bound"
		switch {
		case !s.ProjectileResolved && w.ProjectileRef != "":
			cause = "fragment-unaccounted"
		case s.RackDuration > w.RackSalvoReloadTime:
			cause = "salvo-gap-bound"
		}
		out = append(out, anomaly.New(anomaly.Warn, anomaly.CodePhantomDPS, u.ID, w.Index,
			fmt.Sprintf("weapon %d nominal DPS %.1f exceeds effective %.1f (%s)",
				w.Index, s.NominalDPS, s.EffectiveDPS, cause),
			fmt.Sprintf("nominal=%.2f effective=%.2f ratio=%.2f cycle_period=%.3fs rack_duration=%.3fs reload=%.3fs cause=%s",
				s.NominalDPS, s.EffectiveDPS, s.NominalDPS/s.EffectiveDPS, s.CyclePeriod, s.RackDuration, w.RackSalvoReloadTime, cause)))
	}
	return out
}

// overlap flags weapon pairs whose rack windows intersect in time while
// their target categories intersect: both are spending shots on the same
// target class at once.
func overlap(u *model.Unit, stats []resolve.WeaponStats, tr *Trace) []anomaly.Finding {
	var out []anomaly.Finding
	for i := range stats {
		for j := i + 1; j < len(stats); j++ {
			a, b := &stats[i], &stats[j]
			if a.Weapon == nil || b.Weapon == nil {
				continue
			}
			if !model.TargetsIntersect(a.Weapon.TargetCategories, b.Weapon.TargetCategories) {
				continue
			}
			if t, ok := firstRackOverlap(a, b, tr.Horizon); ok {
				out = append(out, anomaly.New(anomaly.Info, anomaly.CodeCadenceOverlap, u.ID, a.WeaponIndex,
					fmt.Sprintf("weapons %d and %d fire at the same target class simultaneously",
						a.WeaponIndex, b.WeaponIndex),
					fmt.Sprintf("first overlap at t=%.3fs categories_a=%v categories_b=%v",
						t, a.Weapon.TargetCategories, b.Weapon.TargetCategories)))
			}
		}
	}
	return out
}

// firstRackOverlap finds the earliest time two weapons' firing windows
// intersect within the horizon. A weapon's firing window in each cycle is
// [start, start + total salvo span].
func firstRackOverlap(a, b *resolve.WeaponStats, horizon float64) (float64, bool) {
	if a.CyclePeriod <= 0 || b.CyclePeriod <= 0 {
		return 0, false
	}
	spanA := salvoSpan(a)
	spanB := salvoSpan(b)
	for sa := 0.0; sa <= horizon; sa += a.CyclePeriod {
		for sb := 0.0; sb <= horizon; sb += b.CyclePeriod {
			lo := sa
			if sb > lo {
				lo = sb
			}
			hi := sa + spanA
			if sb+spanB < hi {
				hi = sb + spanB
			}
			if lo <= hi {
				return lo, true
			}
			if sb > sa+spanA {
				break
			}
		}
	}
	return 0, false
}

func salvoSpan(s *resolve.WeaponStats) float64 {
	w := s.Weapon
	if w == nil || s.ShotsPerRack <= 1 {
		return 0
	}
	return float64(s.ShotsPerRack-1) * w.MuzzleSalvoDelay
}

func statByIndex(stats []resolve.WeaponStats, index int) *resolve.WeaponStats {
	for i := range stats {
		if stats[i].WeaponIndex == index {
			return &stats[i]
		}
	}
	return nil
}
