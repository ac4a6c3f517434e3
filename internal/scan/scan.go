// Package scan is the single-owner aggregator: it discovers blueprint
// files, drives parser, extractor, resolver and scheduler per file, and
// merges everything into a deterministic ScanResult.
package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/blueprint"
	"github.com/faf-tools/simlint/internal/config"
	"github.com/faf-tools/simlint/internal/extract"
	"github.com/faf-tools/simlint/internal/model"
	"github.com/faf-tools/simlint/internal/resolve"
	"github.com/faf-tools/simlint/internal/sched"
)

// UnitReport is everything the scan knows about one unit.
type UnitReport struct {
	Unit              model.Unit            `json:"unit"`
	Weapons           []resolve.WeaponStats `json:"weapons"`
	TotalEffectiveDPS float64               `json:"total_effective_dps"`
	DeclaredDPS       *float64              `json:"declared_dps,omitempty"`
	Findings          []anomaly.Finding     `json:"findings"`
	Trace             *sched.Trace          `json:"trace,omitempty"`
}

// Result is the full outcome of one scan, ordered for stable serialization:
// units ascending by ID, findings by severity/code/weapon.
type Result struct {
	DataDir     string            `json:"data_dir"`
	FilesSeen   int               `json:"files_seen"`
	FilesParsed int               `json:"files_parsed"`
	Units       []UnitReport      `json:"units"`
	Findings    []anomaly.Finding `json:"findings"` // scan-level: parse errors, limits, duplicates
}

// Run scans a data directory. Boundary failures (missing directory) return
// an error for the CLI to map to an exit code; everything per-entity
// becomes a finding.
func Run(dataDir string, cfg config.Scan, declared map[string]float64) (*Result, error) {
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("data directory does not exist: %s", dataDir)
	}
	unitsRoot, projRoot := resolveDirs(dataDir)

	res := &Result{DataDir: dataDir}

	projIndex, projFindings := loadProjectiles(projRoot, cfg)
	res.Findings = append(res.Findings, projFindings...)
	if projRoot == "" {
		slog.Info("no projectiles directory; fragment resolution degraded")
	}

	unitFiles, limited := collectFiles(unitsRoot, isUnitFile, cfg.MaxFiles)
	if limited {
		res.Findings = append(res.Findings, anomaly.New(anomaly.Warn, anomaly.CodeResourceLimit, "", 0,
			"file-count ceiling reached; scan continued with the accepted subset",
			fmt.Sprintf("max_files=%d root=%s", cfg.MaxFiles, unitsRoot)))
	}
	res.FilesSeen = len(unitFiles)
	sort.Strings(unitFiles)

	seen := map[string]string{} // normalized unit id -> first file
	for _, path := range unitFiles {
		report, fileFindings := scanUnitFile(path, cfg, projIndex, declared)
		res.Findings = append(res.Findings, fileFindings...)
		if report == nil {
			continue
		}
		res.FilesParsed++
		key := report.Unit.Key()
		// Keep the first file for a duplicated ID; downstream consumers
		// (store keys, report pages) assume one report per unit.
		if first, dup := seen[key]; dup {
			res.Findings = append(res.Findings, anomaly.New(anomaly.Crit, anomaly.CodeDuplicateUnitID, report.Unit.ID, 0,
				fmt.Sprintf("unit ID %q appears in more than one file", report.Unit.ID),
				fmt.Sprintf("first=%s second=%s, second file ignored", first, path)))
			continue
		}
		seen[key] = path
		res.Units = append(res.Units, *report)
	}

	sort.SliceStable(res.Units, func(i, j int) bool {
		a, b := res.Units[i].Unit.Key(), res.Units[j].Unit.Key()
		if a != b {
			return a < b
		}
		return res.Units[i].Unit.SourceFile < res.Units[j].Unit.SourceFile
	})
	anomaly.Sort(res.Findings)
	slog.Info("scan complete",
		slog.Int("files", res.FilesSeen),
		slog.Int("units", len(res.Units)),
		slog.Int("scan_findings", len(res.Findings)))
	return res, nil
}

// scanUnitFile parses and analyzes one blueprint file. A nil report with
// findings means the file was rejected (parse error, size); nil with no
// findings means the file is not a unit or weapon blueprint.
func scanUnitFile(path string, cfg config.Scan, projIndex *resolve.Index, declared map[string]float64) (*UnitReport, []anomaly.Finding) {
	if f := checkSize(path, cfg.MaxFileBytes); f != nil {
		return nil, []anomaly.Finding{*f}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, []anomaly.Finding{anomaly.New(anomaly.Warn, anomaly.CodeParseError, "", 0,
			fmt.Sprintf("cannot read %s", path), err.Error())}
	}
	root, err := blueprint.Parse(path, string(src))
	if err != nil {
		return nil, []anomaly.Finding{parseFinding(path, err)}
	}
	unit, findings := extract.UnitFromTree(root, path)
	if unit == nil {
		return nil, nil
	}

	findings = append(findings, anomaly.CheckUnit(unit)...)
	stats, resolveFindings := resolve.Resolve(unit, projIndex)
	findings = append(findings, resolveFindings...)

	horizon := sched.Horizon(cfg.HorizonSec, stats)
	trace := sched.Simulate(unit, stats, horizon)
	findings = append(findings, sched.Classify(unit, stats, trace)...)

	report := &UnitReport{
		Unit:              *unit,
		Weapons:           stats,
		TotalEffectiveDPS: resolve.TotalEffectiveDPS(stats),
	}
	if cfg.IncludeTraces {
		report.Trace = trace
	}
	if declared != nil {
		if dps, ok := declared[unit.Key()]; ok {
			report.DeclaredDPS = &dps
			findings = append(findings, compareDeclared(unit.ID, dps, report.TotalEffectiveDPS)...)
		}
	}
	anomaly.Sort(findings)
	report.Findings = findings
	return report, nil
}

// compareDeclared checks a declared-DPS override against the summed
// effective DPS. Absent units simply fall back to blueprint nominal; only
// present-and-mismatched entries produce a finding.
func compareDeclared(unitID string, declared, effective float64) []anomaly.Finding {
	base := declared
	if base < 1 {
		base = 1
	}
	if diff := declared - effective; diff < -0.01*base || diff > 0.01*base {
		ratio := 0.0
		if declared > 0 {
			ratio = effective / declared
		}
		sev := anomaly.Info
		if ratio < 0.8 || ratio > 1.25 {
			sev = anomaly.Warn
		}
		return []anomaly.Finding{anomaly.New(sev, anomaly.CodeDeclaredMismatch, unitID, 0,
			fmt.Sprintf("declared DPS %.1f differs from summed effective %.1f", declared, effective),
			fmt.Sprintf("declared=%.2f effective=%.2f ratio=%.2f", declared, effective, ratio))}
	}
	return nil
}

func parseFinding(path string, err error) anomaly.Finding {
	if pe, ok := err.(*blueprint.ParseError); ok {
		code := anomaly.CodeParseError
		sev := anomaly.Warn
		if pe.Kind == blueprint.ErrResourceLimit {
			code = anomaly.CodeResourceLimit
		}
		return anomaly.New(sev, code, "", 0, fmt.Sprintf("failed to parse %s", path), pe.Error())
	}
	return anomaly.New(anomaly.Warn, anomaly.CodeParseError, "", 0,
		fmt.Sprintf("failed to parse %s", path), err.Error())
}

func checkSize(path string, maxBytes int64) *anomaly.Finding {
	info, err := os.Stat(path)
	if err != nil {
		f := anomaly.New(anomaly.Warn, anomaly.CodeParseError, "", 0,
			fmt.Sprintf("cannot stat %s", path), err.Error())
		return &f
	}
	if info.Size() > maxBytes {
		f := anomaly.New(anomaly.Warn, anomaly.CodeResourceLimit, "", 0,
			fmt.Sprintf("file exceeds size ceiling, skipped: %s", path),
			fmt.Sprintf("size=%d max=%d", info.Size(), maxBytes))
		return &f
	}
	return nil
}

// resolveDirs maps the input path onto units and projectiles roots: a root
// holding units/ (and optionally projectiles/) uses both; a path that is
// itself units/ looks for a sibling projectiles/; anything else is scanned
// as-is with no projectile data.
func resolveDirs(dataDir string) (unitsRoot, projRoot string) {
	unitsSub := filepath.Join(dataDir, "units")
	projSub := filepath.Join(dataDir, "projectiles")
	if isDir(unitsSub) {
		if isDir(projSub) {
			return unitsSub, projSub
		}
		return unitsSub, ""
	}
	if filepath.Base(dataDir) == "units" {
		sibling := filepath.Join(filepath.Dir(dataDir), "projectiles")
		if isDir(sibling) {
			return dataDir, sibling
		}
	}
	return dataDir, ""
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// isUnitFile accepts blueprint-dialect files: .bp unit blueprints and .lua
// blueprint fixtures, never script files.
func isUnitFile(name string) bool {
	low := strings.ToLower(name)
	if isScriptFile(low) {
		return false
	}
	if strings.HasSuffix(low, ".bp") {
		return strings.HasSuffix(low, "_unit.bp")
	}
	return strings.HasSuffix(low, ".lua")
}

func isProjectileFile(name string) bool {
	low := strings.ToLower(name)
	return !isScriptFile(low) && strings.HasSuffix(low, "_proj.bp")
}

func isScriptFile(lowName string) bool {
	if i := strings.LastIndexByte(lowName, '.'); i >= 0 {
		return strings.HasSuffix(lowName[:i], "_script")
	}
	return false
}

func collectFiles(root string, accept func(string) bool, maxFiles int) (files []string, limited bool) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(files) >= maxFiles {
			limited = true
			return filepath.SkipAll
		}
		if !d.IsDir() && accept(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, limited
}

func loadProjectiles(projRoot string, cfg config.Scan) (*resolve.Index, []anomaly.Finding) {
	if projRoot == "" {
		return resolve.NewIndex(nil, false), nil
	}
	var findings []anomaly.Finding
	files, limited := collectFiles(projRoot, isProjectileFile, cfg.MaxFiles)
	if limited {
		findings = append(findings, anomaly.New(anomaly.Warn, anomaly.CodeResourceLimit, "", 0,
			"projectile file-count ceiling reached",
			fmt.Sprintf("max_files=%d root=%s", cfg.MaxFiles, projRoot)))
	}
	sort.Strings(files)
	var projectiles []*model.Projectile
	for _, path := range files {
		if f := checkSize(path, cfg.MaxFileBytes); f != nil {
			findings = append(findings, *f)
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		root, err := blueprint.Parse(path, string(src))
		if err != nil {
			findings = append(findings, parseFinding(path, err))
			continue
		}
		key := resolve.KeyFromFile(path)
		if p := extract.ProjectileFromTree(root, key, path); p != nil {
			projectiles = append(projectiles, p)
		}
	}
	slog.Info("projectiles loaded", slog.Int("count", len(projectiles)))
	return resolve.NewIndex(projectiles, true), findings
}
