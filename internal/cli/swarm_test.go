package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunSwarm_Success(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory("proposal text"))

	code := app.runSwarm([]string{"-config", configPath, "-task-description", "pick a caching strategy"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Winner:") {
		t.Errorf("expected winner summary in stdout, got: %s", stdout.String())
	}
}

func TestRunSwarm_WithOrchestrationConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	orchPath := filepath.Join(dir, "orchestration.yaml")
	orchYAML := `version: "1"
swarm:
  strategy: bee_colony
  population_size: 10
  max_iterations: 25
`
	if err := os.WriteFile(orchPath, []byte(orchYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory("proposal text"))

	code := app.runSwarm([]string{
		"-config", configPath,
		"-orchestration-config", orchPath,
		"-task-description", "pick a caching strategy",
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Winner:") {
		t.Errorf("expected winner summary in stdout, got: %s", stdout.String())
	}
}

func TestRunSwarm_NoTaskDescription(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runSwarm(nil)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "task-description") {
		t.Errorf("expected task-description error, got: %s", stderr.String())
	}
}
