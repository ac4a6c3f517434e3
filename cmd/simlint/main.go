// simlint audits unit and weapon blueprints: it parses blueprint files
// without executing them, computes effective weapon behavior, flags
// anomalies, and persists scans for later diffing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/config"
	"github.com/faf-tools/simlint/internal/gamedata"
	"github.com/faf-tools/simlint/internal/model"
	"github.com/faf-tools/simlint/internal/report"
	"github.com/faf-tools/simlint/internal/scan"
	"github.com/faf-tools/simlint/internal/store"
)

// Exit codes for the CLI surface.
const (
	exitOK       = 0
	exitOther    = 1
	exitUsage    = 2
	exitInput    = 3
	exitResource = 4
)

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type inputError struct{ err error }

func (e inputError) Error() string { return e.err.Error() }

// resourceError reports that a resource ceiling was hit; outputs are still
// written for the accepted subset.
type resourceError struct{ msg string }

func (e resourceError) Error() string { return e.msg }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}
	verbose := false
	for len(args) > 0 && (args[0] == "-verbose" || args[0] == "--verbose") {
		verbose = true
		args = args[1:]
	}
	initLogging(verbose)
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}

	var err error
	switch args[0] {
	case "scan":
		err = runScan(args[1:])
	case "unit":
		err = runUnit(args[1:])
	case "diff":
		err = runDiff(args[1:])
	case "extract":
		err = runExtract(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		return exitUsage
	}
	if err == nil {
		return exitOK
	}
	slog.Error("command failed", slog.String("error", err.Error()))
	switch err.(type) {
	case usageError:
		return exitUsage
	case inputError:
		return exitInput
	case resourceError:
		return exitResource
	default:
		return exitOther
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: simlint [--verbose] <command> [flags]

commands:
  scan     --data-dir PATH [--out DIR] [--config FILE] [--declared-dps JSON] [--horizon SECONDS] [--traces]
  unit     [--data-dir PATH | --scan-db DB] UNIT_ID_OR_NAME
  diff     --a DB --b DB [--out DIR]
  extract  --gamedata PATH [--out DIR]`)
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "path to blueprint data directory")
	out := fs.String("out", "out", "output directory for reports and the scan database")
	cfgPath := fs.String("config", "", "optional YAML config file")
	declaredPath := fs.String("declared-dps", "", "optional JSON file mapping unit IDs to declared DPS")
	horizon := fs.Float64("horizon", 0, "simulation horizon in seconds (overrides config)")
	traces := fs.Bool("traces", false, "embed full firing traces in the result")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *dataDir == "" {
		return usageError{"scan: --data-dir is required"}
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return inputError{err}
		}
	}
	if *horizon > 0 {
		cfg.HorizonSec = *horizon
	}
	if *traces {
		cfg.IncludeTraces = true
	}

	var declared map[string]float64
	if *declaredPath != "" {
		var err error
		if declared, err = scan.LoadDeclaredDPS(*declaredPath); err != nil {
			return inputError{err}
		}
		slog.Info("using declared DPS override", slog.Int("entries", len(declared)))
	}

	res, err := scan.Run(*dataDir, cfg, declared)
	if err != nil {
		return inputError{err}
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	st, err := store.Open(filepath.Join(*out, "scan.sqlite"))
	if err != nil {
		return err
	}
	defer st.Close()
	scanID, err := st.InsertScan(res)
	if err != nil {
		return err
	}
	slog.Info("stored scan", slog.Int64("scan_id", scanID), slog.Int("units", len(res.Units)))

	jsonPath := filepath.Join(*out, "report.json")
	if err := report.WriteJSON(res, jsonPath); err != nil {
		return err
	}
	htmlDir := filepath.Join(*out, "html")
	if err := report.WriteHTML(res, htmlDir); err != nil {
		return err
	}
	slog.Info("wrote reports", slog.String("json", jsonPath), slog.String("html", htmlDir))

	for i := range res.Findings {
		if res.Findings[i].Code == anomaly.CodeResourceLimit {
			return resourceError{res.Findings[i].Message}
		}
	}
	return nil
}

func runUnit(args []string) error {
	fs := flag.NewFlagSet("unit", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "blueprint data directory to scan")
	scanDB := fs.String("scan-db", "", "scan database to query")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() != 1 {
		return usageError{"unit: exactly one UNIT_ID_OR_NAME argument expected"}
	}
	key := model.NormalizeID(fs.Arg(0))

	var units []scan.UnitReport
	switch {
	case *scanDB != "":
		st, err := store.Open(*scanDB)
		if err != nil {
			return inputError{err}
		}
		defer st.Close()
		scans, err := st.ListScans()
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			return inputError{fmt.Errorf("scan database has no scans: %s", *scanDB)}
		}
		if units, err = st.LoadUnits(scans[0].ID); err != nil {
			return err
		}
	case *dataDir != "":
		res, err := scan.Run(*dataDir, config.Default(), nil)
		if err != nil {
			return inputError{err}
		}
		units = res.Units
	default:
		return usageError{"unit: provide --data-dir or --scan-db"}
	}

	for i := range units {
		u := &units[i]
		if u.Unit.Key() == key || model.NormalizeID(u.Unit.DisplayName) == key {
			printUnit(u)
			return nil
		}
	}
	return inputError{fmt.Errorf("unit not found: %s", fs.Arg(0))}
}

func printUnit(u *scan.UnitReport) {
	name := u.Unit.DisplayName
	if name == "" {
		name = "—"
	}
	fmt.Printf("Unit: %s (%s)\n", u.Unit.ID, name)
	fmt.Printf("Blueprint: %s\n", u.Unit.SourceFile)
	fmt.Printf("\nDeclared weapons:\n")
	for i := range u.Unit.Weapons {
		w := &u.Unit.Weapons[i]
		fmt.Printf("  %d %-24s damage=%g ROF=%g racks=%d muzzles=%d delay=%g reload=%g range=%g\n",
			w.Index, w.Label, w.DamageBase, w.RateOfFire,
			w.RackSalvoSize, w.MuzzleSalvoSize, w.MuzzleSalvoDelay, w.RackSalvoReloadTime, w.MaxRadius)
	}
	fmt.Printf("\nEffective (computed):\n")
	for i := range u.Weapons {
		s := &u.Weapons[i]
		fmt.Printf("  %d nominal_dps=%.2f effective_dps=%.2f cycle=%.3fs per_shot=%.1f shots_per_rack=%d\n",
			s.WeaponIndex, s.NominalDPS, s.EffectiveDPS, s.CyclePeriod, s.PerShotDamage, s.ShotsPerRack)
	}
	fmt.Printf("\nTotal effective DPS: %.2f\n", u.TotalEffectiveDPS)
	if u.DeclaredDPS != nil {
		fmt.Printf("Declared DPS (override): %.2f\n", *u.DeclaredDPS)
	}
	fmt.Printf("\nFindings:\n")
	if len(u.Findings) == 0 {
		fmt.Println("  None")
	}
	for i := range u.Findings {
		f := &u.Findings[i]
		fmt.Printf("  [%s] %s — %s\n", f.Severity, f.Code, f.Message)
	}
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	aPath := fs.String("a", "", "scan database A (before)")
	bPath := fs.String("b", "", "scan database B (after)")
	out := fs.String("out", "", "optional directory for diff.json")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *aPath == "" || *bPath == "" {
		return usageError{"diff: --a and --b are required"}
	}
	unitsA, err := loadLatestScan(*aPath)
	if err != nil {
		return err
	}
	unitsB, err := loadLatestScan(*bPath)
	if err != nil {
		return err
	}

	byID := func(units []scan.UnitReport) map[string]*scan.UnitReport {
		m := make(map[string]*scan.UnitReport, len(units))
		for i := range units {
			m[units[i].Unit.Key()] = &units[i]
		}
		return m
	}
	mapA, mapB := byID(unitsA), byID(unitsB)

	var added, removed []string
	for id := range mapB {
		if _, ok := mapA[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range mapA {
		if _, ok := mapB[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	type regression struct {
		Unit      string  `json:"unit"`
		DPSBefore float64 `json:"dps_before"`
		DPSAfter  float64 `json:"dps_after"`
	}
	var regressions []regression
	var common []string
	for id := range mapA {
		if _, ok := mapB[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)
	for _, id := range common {
		before := mapA[id].TotalEffectiveDPS
		after := mapB[id].TotalEffectiveDPS
		if after < before*0.95 {
			regressions = append(regressions, regression{Unit: id, DPSBefore: before, DPSAfter: after})
		}
	}

	fmt.Printf("Diff: %s vs %s\n", *aPath, *bPath)
	fmt.Printf("Units added: %d\n", len(added))
	for _, id := range added {
		fmt.Printf("  + %s\n", id)
	}
	fmt.Printf("Units removed: %d\n", len(removed))
	for _, id := range removed {
		fmt.Printf("  - %s\n", id)
	}
	fmt.Printf("Common units: %d\n", len(common))
	if len(regressions) > 0 {
		fmt.Println("DPS regressions (effective DPS dropped >5%):")
		for _, r := range regressions {
			fmt.Printf("  %s  %.2f -> %.2f\n", r.Unit, r.DPSBefore, r.DPSAfter)
		}
	}

	if *out != "" {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			return fmt.Errorf("create diff output dir: %w", err)
		}
		payload := map[string]any{
			"scan_a":        *aPath,
			"scan_b":        *bPath,
			"units_added":   added,
			"units_removed": removed,
			"regressions":   regressions,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal diff: %w", err)
		}
		path := filepath.Join(*out, "diff.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
		slog.Info("wrote diff", slog.String("path", path))
	}
	return nil
}

func loadLatestScan(dbPath string) ([]scan.UnitReport, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, inputError{err}
	}
	defer st.Close()
	scans, err := st.ListScans()
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, inputError{fmt.Errorf("no scans in %s", dbPath)}
	}
	return st.LoadUnits(scans[0].ID)
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	gd := fs.String("gamedata", "", "path to gamedata folder, gamedata.scd, or install root")
	out := fs.String("out", "extracted_units", "destination directory")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *gd == "" {
		return usageError{"extract: --gamedata is required"}
	}
	resolved := gamedata.ResolvePath(*gd)
	n, err := gamedata.Extract(resolved, *out)
	if err != nil {
		return inputError{err}
	}
	slog.Info("extracted unit blueprints", slog.Int("count", n), slog.String("out", *out))
	return nil
}

