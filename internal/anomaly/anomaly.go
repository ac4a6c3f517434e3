// Package anomaly defines severity-tagged findings and the structural
// checks that do not need the scheduler trace. Cadence findings are
// produced by the sched package using the same Finding type.
package anomaly

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/faf-tools/simlint/internal/model"
)

// Severity orders findings; higher is worse.
type Severity uint8

const (
	Info Severity = iota
	Warn
	Crit
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Crit:
		return "CRIT"
	}
	return "UNKNOWN"
}

// MarshalJSON emits the uppercase string form required by the report schema.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the uppercase string form.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "INFO":
		*s = Info
	case "WARN":
		*s = Warn
	case "CRIT":
		*s = Crit
	default:
		return fmt.Errorf("unknown severity %q", str)
	}
	return nil
}

// Stable finding codes. Reports are diffed across scans, so these never
// change meaning.
const (
	CodeParseError        = "PARSE_ERROR"
	CodeResourceLimit     = "RESOURCE_LIMIT"
	CodeLegacyField       = "LEGACY_FIELD"
	CodeIDMismatch        = "ID_MISMATCH"
	CodeDuplicateUnitID   = "DUPLICATE_UNIT_ID"
	CodeNegativeValue     = "NEGATIVE_VALUE"
	CodeZeroRangeTargeted = "ZERO_RANGE_TARGETED"
	CodeZeroRateWeapon    = "ZERO_RATE_WEAPON"
	CodeMissingProjectile = "MISSING_PROJECTILE"
	CodeFragmentChainDeep = "FRAGMENT_CHAIN_TOO_DEEP"
	CodePhantomDPS        = "PHANTOM_DPS"
	CodeStarvation        = "STARVATION"
	CodeCadenceOverlap    = "CADENCE_OVERLAP"
	CodeDeclaredMismatch  = "DECLARED_VS_EFFECTIVE"
	CodeInternalInvariant = "INTERNAL_INVARIANT"
)

// Finding is one severity-tagged observation. Message explains the
// observation in domain terms; Detail carries the numbers that drove the
// decision so reports are auditable. WeaponIndex is 0 for unit-level and
// scan-level findings.
type Finding struct {
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	UnitID      string   `json:"unit_id,omitempty"`
	WeaponIndex int      `json:"weapon_index,omitempty"`
	Message     string   `json:"message"`
	Detail      string   `json:"detail,omitempty"`
}

// New builds a finding with a formatted message.
func New(sev Severity, code, unitID string, weaponIndex int, msg, detail string) Finding {
	return Finding{
		Severity:    sev,
		Code:        code,
		UnitID:      unitID,
		WeaponIndex: weaponIndex,
		Message:     msg,
		Detail:      detail,
	}
}

// Sort orders findings for stable emission: severity descending, then code,
// then weapon index, then message for full determinism.
func Sort(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.WeaponIndex != b.WeaponIndex {
			return a.WeaponIndex < b.WeaponIndex
		}
		return a.Message < b.Message
	})
}

// CheckUnit runs the structural checks that only need the model: zero range
// with declared targets, and the internal invariant that a positive rate of
// fire yields a positive cycle period.
func CheckUnit(u *model.Unit) []Finding {
	var out []Finding
	for i := range u.Weapons {
		w := &u.Weapons[i]
		if w.MaxRadius == 0 && len(w.TargetCategories) > 0 {
			out = append(out, New(Warn, CodeZeroRangeTargeted, u.ID, w.Index,
				fmt.Sprintf("weapon %d declares target categories but has zero range", w.Index),
				fmt.Sprintf("max_radius=0 target_categories=%v", w.TargetCategories)))
		}
		if w.RateOfFire > 0 && w.CyclePeriod() <= 0 {
			out = append(out, New(Crit, CodeInternalInvariant, u.ID, w.Index,
				fmt.Sprintf("weapon %d has non-positive cycle period despite positive rate of fire", w.Index),
				fmt.Sprintf("rate_of_fire=%g cycle_period=%g rack_duration=%g reload=%g",
					w.RateOfFire, w.CyclePeriod(), w.RackDuration(), w.RackSalvoReloadTime)))
		}
	}
	return out
}
