// Package extract walks a parsed blueprint tree and recognizes unit and
// weapon shapes, folding the dialect's legacy field synonyms into the
// canonical cadence record.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/blueprint"
	"github.com/faf-tools/simlint/internal/model"
)

// weaponFieldNames are the keys the extractor consumes; everything else on a
// weapon table is preserved in the unknown-field side list for diagnostics.
var weaponFieldNames = map[string]bool{
	"Label":                true,
	"DisplayName":          true,
	"Damage":               true,
	"InitialDamage":        true,
	"RateOfFire":           true,
	"RackSalvoSize":        true,
	"ProjectilesPerOnFire": true,
	"MuzzleSalvoSize":      true,
	"SalvoSize":            true,
	"MuzzleSalvoDelay":     true,
	"SalvoDelay":           true,
	"RackSalvoReloadTime":  true,
	"ReloadTime":           true,
	"MaxRadius":            true,
	"TurretCapable":        true,
	"ProjectileId":         true,
	"TargetCategories":     true,
}

// UnitFromTree extracts a unit (or a standalone weapon wrapped as a
// single-weapon unit) from a parsed root table. Returns nil when the tree is
// neither shape (meshes, props, effect definitions).
func UnitFromTree(root *blueprint.Value, path string) (*model.Unit, []anomaly.Finding) {
	if root == nil || root.Kind != blueprint.KindTable {
		return nil, nil
	}
	unitID, _ := root.GetStr("UnitId")
	bpID, _ := root.GetStr("BlueprintId")

	var findings []anomaly.Finding
	isUnit := unitID != "" || bpID != "" || root.GetTable("Weapon") != nil
	if !isUnit {
		if looksLikeWeapon(root) {
			return standaloneWeapon(root, path)
		}
		return nil, nil
	}

	id := bpID
	if id == "" {
		id = unitID
	}
	if id == "" {
		id = stemID(path)
	}
	if unitID != "" && bpID != "" && !strings.EqualFold(unitID, bpID) {
		findings = append(findings, anomaly.New(anomaly.Crit, anomaly.CodeIDMismatch, id, 0,
			"UnitId and BlueprintId disagree",
			fmt.Sprintf("UnitId=%q BlueprintId=%q file=%s", unitID, bpID, path)))
	}

	u := &model.Unit{ID: id, SourceFile: path}
	if name, ok := root.GetStr("DisplayName"); ok {
		u.DisplayName = name
	} else if desc := root.GetTable("Description"); desc != nil {
		// Some blueprints keep the display name one level down.
		if name, ok := desc.GetStr("Name"); ok {
			u.DisplayName = name
		}
	}

	if weapons := root.GetTable("Weapon"); weapons != nil {
		for i, wt := range weapons.Array() {
			if wt.Kind != blueprint.KindTable {
				continue
			}
			w, fs := weaponFromTable(wt, u.ID, i+1)
			u.Weapons = append(u.Weapons, w)
			findings = append(findings, fs...)
		}
	}
	return u, findings
}

// looksLikeWeapon reports whether a root table is a standalone weapon
// blueprint: weapon fields at the top level, no unit marker, no Weapon list.
func looksLikeWeapon(root *blueprint.Value) bool {
	if _, ok := root.GetNum("Damage"); ok {
		return true
	}
	if _, ok := root.GetNum("RateOfFire"); ok {
		return true
	}
	return false
}

func standaloneWeapon(root *blueprint.Value, path string) (*model.Unit, []anomaly.Finding) {
	id := stemID(path)
	w, findings := weaponFromTable(root, id, 1)
	u := &model.Unit{ID: id, SourceFile: path, Weapons: []model.Weapon{w}}
	return u, findings
}

// stemID derives a unit ID from the file name, the way the game names
// blueprint folders: uel0101_unit.bp -> uel0101.
func stemID(path string) string {
	stem := filepath.Base(path)
	if i := strings.LastIndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	stem = strings.TrimSuffix(stem, "_unit")
	return stem
}

// weaponFromTable folds a weapon table into the canonical record. Each
// canonical field walks its precedence list; relying on a legacy synonym is
// recorded and reported once per weapon at INFO.
func weaponFromTable(t *blueprint.Value, unitID string, index int) (model.Weapon, []anomaly.Finding) {
	var findings []anomaly.Finding
	w := model.Weapon{
		Index:           index,
		RackSalvoSize:   1,
		MuzzleSalvoSize: 1,
	}
	if label, ok := t.GetStr("Label"); ok {
		w.Label = label
	} else if label, ok := t.GetStr("DisplayName"); ok {
		w.Label = label
	}
	if ref, ok := t.GetStr("ProjectileId"); ok {
		w.ProjectileRef = ref
	}
	w.TargetCategories = stringList(t.GetTable("TargetCategories"))

	neg := func(field string, v float64) bool {
		if v < 0 {
			findings = append(findings, anomaly.New(anomaly.Crit, anomaly.CodeNegativeValue, unitID, index,
				fmt.Sprintf("weapon %d field %s is negative", index, field),
				fmt.Sprintf("%s=%g file position %s", field, v, t.Pos)))
			return true
		}
		return false
	}
	legacy := func(field string) {
		w.LegacyFields = append(w.LegacyFields, field)
	}

	if v, ok := t.GetNum("Damage"); ok && !neg("Damage", v) {
		w.DamageBase = v
	}
	if v, ok := t.GetNum("InitialDamage"); ok && !neg("InitialDamage", v) {
		w.InitialDamage = v
	}
	if v, ok := t.GetNum("RateOfFire"); ok {
		w.HasRateOfFire = true
		if !neg("RateOfFire", v) {
			w.RateOfFire = v
		}
	}
	if v, ok := t.GetNum("RackSalvoSize"); ok {
		w.RackSalvoSize = positiveCount("RackSalvoSize", v, unitID, index, &findings)
	} else if v, ok := t.GetNum("ProjectilesPerOnFire"); ok {
		w.RackSalvoSize = positiveCount("ProjectilesPerOnFire", v, unitID, index, &findings)
		legacy("ProjectilesPerOnFire")
	}
	if v, ok := t.GetNum("MuzzleSalvoSize"); ok {
		w.MuzzleSalvoSize = positiveCount("MuzzleSalvoSize", v, unitID, index, &findings)
	} else if v, ok := t.GetNum("SalvoSize"); ok {
		w.MuzzleSalvoSize = positiveCount("SalvoSize", v, unitID, index, &findings)
		legacy("SalvoSize")
	}
	if v, ok := t.GetNum("MuzzleSalvoDelay"); ok && !neg("MuzzleSalvoDelay", v) {
		w.MuzzleSalvoDelay = v
	} else if v, ok := t.GetNum("SalvoDelay"); ok && !neg("SalvoDelay", v) {
		w.MuzzleSalvoDelay = v
		legacy("SalvoDelay")
	}
	if v, ok := t.GetNum("RackSalvoReloadTime"); ok && !neg("RackSalvoReloadTime", v) {
		w.RackSalvoReloadTime = v
	} else if v, ok := t.GetNum("ReloadTime"); ok && !neg("ReloadTime", v) {
		w.RackSalvoReloadTime = v
		legacy("ReloadTime")
	}
	if v, ok := t.GetNum("MaxRadius"); ok && !neg("MaxRadius", v) {
		w.MaxRadius = v
	}
	if v, ok := t.GetBool("TurretCapable"); ok {
		w.TurretCapable = v
	}

	if len(w.LegacyFields) > 0 {
		findings = append(findings, anomaly.New(anomaly.Info, anomaly.CodeLegacyField, unitID, index,
			fmt.Sprintf("weapon %d relies on legacy cadence fields", index),
			strings.Join(w.LegacyFields, ", ")))
	}

	w.UnknownFields = unknownKeys(t)
	return w, findings
}

// positiveCount coerces a salvo count: it must be a positive integer, and
// anything else falls back to 1 with a finding.
func positiveCount(field string, v float64, unitID string, index int, findings *[]anomaly.Finding) int {
	n := int(v)
	if v < 1 || float64(n) != v {
		sev := anomaly.Warn
		if v < 0 {
			sev = anomaly.Crit
		}
		*findings = append(*findings, anomaly.New(sev, anomaly.CodeNegativeValue, unitID, index,
			fmt.Sprintf("weapon %d field %s is not a positive integer", index, field),
			fmt.Sprintf("%s=%g, using 1", field, v)))
		return 1
	}
	return n
}

func stringList(t *blueprint.Value) []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, v := range t.Array() {
		if v.Kind == blueprint.KindString {
			out = append(out, v.Str)
		}
	}
	return out
}

func unknownKeys(t *blueprint.Value) []string {
	var out []string
	for _, k := range t.Keys() {
		if !weaponFieldNames[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ProjectileFromTree extracts fragment data from a projectile blueprint.
// Fragment count, the fragment projectile reference and an optional
// per-fragment FragmentDamage are read from Physics; the damage a projectile
// deals when used as a fragment is read from the root Damage only.
func ProjectileFromTree(root *blueprint.Value, key, path string) *model.Projectile {
	if root == nil || root.Kind != blueprint.KindTable {
		return nil
	}
	p := &model.Projectile{Path: key, SourceFile: path}
	if phys := root.GetTable("Physics"); phys != nil {
		if v, ok := phys.GetNum("Fragments"); ok && v > 0 {
			p.FragmentCount = int(v)
		}
		if ref, ok := phys.GetStr("FragmentId"); ok {
			p.FragmentRef = ref
		}
		if v, ok := phys.GetNum("FragmentDamage"); ok && v > 0 {
			p.FragmentDamage = v
		}
	}
	if v, ok := root.GetNum("Damage"); ok && v > 0 {
		p.Damage = v
	}
	return p
}
