// Package report renders a scan result as a JSON file and a set of static
// HTML pages: a searchable unit index, an anomalies page, and one page per
// unit.
package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/faf-tools/simlint/internal/anomaly"
	"github.com/faf-tools/simlint/internal/model"
	"github.com/faf-tools/simlint/internal/scan"
)

// WriteJSON writes the canonical JSON report.
func WriteJSON(res *scan.Result, path string) error {
	data, err := scan.EncodeJSON(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// WriteHTML writes the HTML report tree into outDir.
func WriteHTML(res *scan.Result, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "index.html"), []byte(renderIndex(res)), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "anomalies.html"), []byte(renderAnomalies(res)), 0o644); err != nil {
		return fmt.Errorf("write anomalies: %w", err)
	}
	for i := range res.Units {
		u := &res.Units[i]
		name := unitPageName(u.Unit.ID)
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(renderUnit(u)), 0o644); err != nil {
			return fmt.Errorf("write unit page %s: %w", name, err)
		}
	}
	return nil
}

func unitPageName(id string) string {
	return "unit_" + strings.ReplaceAll(model.NormalizeID(id), " ", "_") + ".html"
}

const pageStyle = `body{font-family:system-ui,sans-serif;margin:1rem;} table{border-collapse:collapse;} th,td{border:1px solid #ccc;padding:6px;} a{color:#06c;} .info{color:#666;} .warn{color:#c60;} .crit{color:#c00;} .info,.warn,.crit{margin:8px 0;padding:6px;border-left:4px solid;}`

func renderIndex(res *scan.Result) string {
	var rows strings.Builder
	for i := range res.Units {
		u := &res.Units[i]
		display := u.Unit.DisplayName
		if display == "" {
			display = u.Unit.ID
		}
		fmt.Fprintf(&rows, `<tr><td><a href="%s">%s</a></td><td>%s</td><td>%d</td><td>%.1f</td><td>%d</td></tr>`,
			unitPageName(u.Unit.ID), html.EscapeString(u.Unit.ID), html.EscapeString(display),
			len(u.Unit.Weapons), u.TotalEffectiveDPS, len(u.Findings))
		rows.WriteString("\n")
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>simlint – Units</title>
<style>%s</style>
</head>
<body>
<h1>Unit Weapon Behavior Report</h1>
<p>%d units scanned from %s. <a href="anomalies.html">Anomalies</a></p>
<input type="text" id="search" placeholder="Search unit ID or name…" style="margin-bottom:8px;">
<table><thead><tr><th>Unit</th><th>Name</th><th>Weapons</th><th>Effective DPS</th><th>Findings</th></tr></thead>
<tbody>
%s</tbody>
</table>
<script>
document.getElementById('search').oninput=function(){
 var q=this.value.toLowerCase(), rows=document.querySelectorAll('tbody tr');
 rows.forEach(function(r){
   r.style.display=r.textContent.toLowerCase().indexOf(q)===-1?'none':'';
 });
};
</script>
</body>
</html>`, pageStyle, len(res.Units), html.EscapeString(res.DataDir), rows.String())
}

func renderAnomalies(res *scan.Result) string {
	var items strings.Builder
	writeFinding := func(f *anomaly.Finding) {
		fmt.Fprintf(&items, `<div class="%s"><strong>%s – %s:</strong> %s <br><em>%s</em></div>`+"\n",
			strings.ToLower(f.Severity.String()), html.EscapeString(f.UnitID), html.EscapeString(f.Code),
			html.EscapeString(f.Message), html.EscapeString(f.Detail))
	}
	for i := range res.Findings {
		writeFinding(&res.Findings[i])
	}
	for i := range res.Units {
		for j := range res.Units[i].Findings {
			writeFinding(&res.Units[i].Findings[j])
		}
	}
	body := items.String()
	if body == "" {
		body = "<p>No anomalies detected.</p>"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>simlint – Anomalies</title>
<style>%s</style>
</head>
<body>
<h1>Anomalies</h1>
<p><a href="index.html">Back to units</a></p>
%s
</body>
</html>`, pageStyle, body)
}

func renderUnit(u *scan.UnitReport) string {
	display := u.Unit.DisplayName
	if display == "" {
		display = u.Unit.ID
	}
	var declared strings.Builder
	for i := range u.Unit.Weapons {
		w := &u.Unit.Weapons[i]
		fmt.Fprintf(&declared, "<tr><td>%d</td><td>%s</td><td>%g</td><td>%g</td><td>%d×%d</td><td>%g</td></tr>\n",
			w.Index, html.EscapeString(w.Label), w.DamageBase, w.RateOfFire,
			w.RackSalvoSize, w.MuzzleSalvoSize, w.MaxRadius)
	}
	var effective strings.Builder
	for i := range u.Weapons {
		s := &u.Weapons[i]
		fmt.Fprintf(&effective, "<tr><td>%d</td><td>%.2f</td><td>%.2f</td><td>%.3f</td><td>%.1f</td><td>%d</td></tr>\n",
			s.WeaponIndex, s.NominalDPS, s.EffectiveDPS, s.CyclePeriod, s.PerShotDamage, s.ShotsPerRack)
	}
	var findings strings.Builder
	for i := range u.Findings {
		f := &u.Findings[i]
		fmt.Fprintf(&findings, "<li><strong>[%s] %s:</strong> %s</li>\n",
			f.Severity, html.EscapeString(f.Code), html.EscapeString(f.Message))
	}
	findingsBody := findings.String()
	if findingsBody == "" {
		findingsBody = "<li>None</li>"
	}
	override := ""
	if u.DeclaredDPS != nil {
		override = fmt.Sprintf("<p>Declared DPS (from override): %.2f</p>", *u.DeclaredDPS)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s – simlint</title>
<style>%s</style>
</head>
<body>
<h1>%s</h1>
<p><a href="index.html">Back to list</a></p>
<p>Blueprint: %s — total effective DPS %.2f</p>
%s
<h2>Declared weapon stats (blueprint)</h2>
<table><thead><tr><th>#</th><th>Label</th><th>Damage</th><th>ROF</th><th>Racks×Muzzles</th><th>Range</th></tr></thead><tbody>
%s</tbody></table>
<h2>Effective (computed)</h2>
<table><thead><tr><th>#</th><th>Nominal DPS</th><th>Effective DPS</th><th>Cycle (s)</th><th>Per-shot</th><th>Shots/rack</th></tr></thead><tbody>
%s</tbody></table>
<h2>Findings</h2>
<ul>
%s
</ul>
</body>
</html>`, html.EscapeString(display), pageStyle, html.EscapeString(display),
		html.EscapeString(u.Unit.SourceFile), u.TotalEffectiveDPS, override,
		declared.String(), effective.String(), findingsBody)
}
