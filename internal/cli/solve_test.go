package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunSolve_Success(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory("done"))

	code := app.runSolve([]string{"-config", configPath, "-title", "ship the release"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Approach:") {
		t.Errorf("expected approach summary in stdout, got: %s", stdout.String())
	}
}

func TestRunSolve_NoTitle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runSolve(nil)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "title") {
		t.Errorf("expected title error, got: %s", stderr.String())
	}
}

func TestRunSolve_WithOrchestrationConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	orchPath := filepath.Join(dir, "orchestration.yaml")
	orchYAML := `version: "1"
voter:
  strategy: supermajority
  threshold: 0.66
consensus:
  strategy: ranked_choice
  max_rounds: 2
  consensus_threshold: 0.75
`
	if err := os.WriteFile(orchPath, []byte(orchYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory("done"))

	code := app.runSolve([]string{
		"-config", configPath,
		"-orchestration-config", orchPath,
		"-title", "ship the release",
		"-consensus",
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Approach:") {
		t.Errorf("expected approach summary in stdout, got: %s", stdout.String())
	}
}

func TestRunSolve_NoAgents(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/gogrid.yaml"
	if err := os.WriteFile(path, []byte("version: \"1\"\nagents: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runSolve([]string{"-config", path, "-title", "x"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no agents") {
		t.Errorf("expected no agents error, got: %s", stderr.String())
	}
}
