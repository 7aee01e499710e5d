package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeBatch_SameBaseNamesAndExports(t *testing.T) {
	home := withTestConfig(t)

	// Two files with the same basename in different directories, plus one of
	// our own exports that must be skipped.
	writeFile(t, filepath.Join(home, "d1", "po.csv"), poCSV)
	writeFile(t, filepath.Join(home, "d2", "po.csv"), poCSV)
	writeFile(t, filepath.Join(home, "d2", "po_Output.csv"), poCSV)
	outDir := filepath.Join(home, "reports")

	runCmd(t, "analyze-batch", filepath.Join(home, "d*", "*.csv"), "--out-dir", outDir, "--export", "--jobs", "2", "--quiet")

	for _, name := range []string{"po.report.md", "po__2.report.md", "po_Output.xlsx", "po__2_Output.xlsx"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(entries))
	}
	body, err := os.ReadFile(filepath.Join(outDir, "po.report.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(body), "[CATEGORY SPEND]") {
		t.Fatalf("report body:\n%s", body)
	}
}

func TestAnalyzeBatch_FailureHandling(t *testing.T) {
	home := withTestConfig(t)
	good := writeFile(t, filepath.Join(home, "a.csv"), poCSV)
	bad := writeFile(t, filepath.Join(home, "b.csv"), "Material,Net Order Value\nM1,10\n")
	outDir := filepath.Join(home, "reports")

	if err := runCmdErr(t, "analyze-batch", good, bad, "--out-dir", outDir, "--quiet"); err == nil {
		t.Fatalf("expected failure for file without supplier column")
	}
	if err := runCmdErr(t, "analyze-batch", good, bad, "--out-dir", outDir, "--keep-going", "--quiet"); err == nil {
		t.Fatalf("expected summary error with --keep-going")
	}
	if _, err := os.Stat(filepath.Join(outDir, "a.report.md")); err != nil {
		t.Fatalf("good file not reported with --keep-going: %v", err)
	}
	if err := runCmdErr(t, "analyze-batch", filepath.Join(home, "nothing*.csv")); err == nil {
		t.Fatalf("expected error when nothing matches")
	}
}

func TestReportBaseSuffixesDuplicates(t *testing.T) {
	used := map[string]int{}
	got := []string{
		reportBase("/x/po.csv", used),
		reportBase("/y/po.xlsx", used),
		reportBase("/y/other.csv", used),
		reportBase("/z/po.csv", used),
	}
	want := []string{"po", "po__2", "other", "po__3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reportBase[%d] = %q want %q", i, got[i], want[i])
		}
	}
}
