package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"evaluate", "verify", "assemble", "tokens", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVerifyWithoutResultsFails(t *testing.T) {
	dir := t.TempDir()
	progress := filepath.Join(dir, "progress.json")

	out, err := execute(t, "verify",
		"--results", filepath.Join(dir, "missing.json"),
		"--progress", progress,
		"--documents", filepath.Join(dir, "docs.json"),
	)
	if !errors.Is(err, errVerificationFailed) {
		t.Fatalf("err = %v, want errVerificationFailed", err)
	}
	if !strings.Contains(out, "Results file not found") {
		t.Errorf("transcript missing critical error:\n%s", out)
	}
	if _, err := os.Stat(progress); err != nil {
		t.Errorf("progress report not written: %v", err)
	}
}

func TestTokensCommand(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs.json")
	data := `{"documents": [
		{"id": "doc_001", "title": "Alpha", "content": "Context windows are finite.", "tokens": 6},
		{"id": "doc_002", "title": "Beta", "content": "Models attend to the edges of long prompts.", "tokens": 9}
	]}`
	if err := os.WriteFile(docs, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "tokens", "--documents", docs, "--token-limit", "1000", "--estimate")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	for _, want := range []string{"doc_001", "doc_002", "Documents: 2", "Fit in corpus order: 2/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Problems:") {
		t.Errorf("consistent corpus should report no problems:\n%s", out)
	}
}

func TestTokensCommand_FlagsDriftAndOversizedDocuments(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs.json")
	huge := strings.TrimSpace(strings.Repeat("word ", 160))
	data := fmt.Sprintf(`{"documents": [
		{"id": "doc_001", "title": "Alpha", "content": "Context windows are finite.", "tokens": 6},
		{"id": "doc_002", "title": "Small", "content": "Tiny.", "tokens": 50},
		{"id": "doc_003", "title": "Huge", "content": %q, "tokens": 199}
	]}`, huge)
	if err := os.WriteFile(docs, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	// 估算计数为字符数 / 4；预留 50 后可用 150
	out, err := execute(t, "tokens", "--documents", docs, "--token-limit", "200", "--estimate")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	for _, want := range []string{
		"Fit in corpus order: 2/3",
		"Problems:",
		"doc_002: stored 50 tokens, recounted 1",
		"doc_003: formatted block needs 203 tokens, more than the 150 available",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "doc_001: stored") || strings.Contains(out, "doc_003: stored") {
		t.Errorf("documents within tolerance should not be flagged:\n%s", out)
	}
}

func TestAssembleRequiresQuery(t *testing.T) {
	if _, err := execute(t, "assemble"); err == nil {
		t.Fatal("expected error for missing --query")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "ctxlab dev") {
		t.Errorf("version output = %q", out)
	}
}
