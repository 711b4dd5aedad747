package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yok-tottii/EzCall/internal/history"
)

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	ctx := context.Background()
	started := time.Now().Add(-2 * time.Minute)
	id, err := store.Begin(ctx, "standup", history.RoleCaller, started)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.SetPeer(ctx, id, "bob"); err != nil {
		t.Fatalf("set peer: %v", err)
	}
	if err := store.End(ctx, id, history.Ending{
		EndedAt:     started.Add(90 * time.Second),
		AudioDevice: "earpiece",
		MuteToggles: 3,
		Reason:      "hangup",
	}); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := store.Begin(ctx, "standup", history.RoleCallee, time.Now()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	store.Close()

	configPath := writeTestConfig(t, map[string]interface{}{"history_path": dbPath})

	out, _, err := runCLI(t, []string{"history"}, configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "standup")
	requireContains(t, out, "bob")
	requireContains(t, out, "1m30s")
	requireContains(t, out, "earpiece")
	requireContains(t, out, "ongoing")

	out, _, err = runCLI(t, []string{"history", "--limit", "1"}, configPath)
	if err != nil {
		t.Fatalf("history --limit: %v", err)
	}
	requireContains(t, out, "callee")
	if bytes.Contains([]byte(out), []byte("bob")) {
		t.Errorf("expected only the latest call, got:\n%s", out)
	}
}

func TestHistoryCommandRejectsBadLimit(t *testing.T) {
	configPath := writeTestConfig(t, map[string]interface{}{
		"history_path": filepath.Join(t.TempDir(), "history.db"),
	})
	if _, _, err := runCLI(t, []string{"history", "-n", "0"}, configPath); err == nil {
		t.Fatal("expected an error for --limit 0")
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	if got := renderHistory(&bytes.Buffer{}, nil); got != "No calls recorded" {
		t.Errorf("unexpected empty rendering %q", got)
	}
}
