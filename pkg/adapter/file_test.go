// Copyright 2025 Certen Protocol

package adapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

func testEnvelope(t *testing.T, action, resource string, body map[string]any) *envelope.Envelope {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	env, err := envelope.NewBuilder().
		Actor(envelope.Actor{PrincipalID: "user:test", Kind: envelope.ActorHuman}).
		Resource(envelope.Resource{ID: envelope.ResourceID(resource), Kind: "file"}).
		Action(envelope.NewAction(actionDomain(action), actionVerb(action))).
		Authority(envelope.Authority{Cap: envelope.CapabilityRef{CapRef: "cap:test"}}).
		Body(raw).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func actionDomain(action string) string {
	for i := 0; i < len(action); i++ {
		if action[i] == '.' {
			return action[:i]
		}
	}
	return action
}

func actionVerb(action string) string {
	for i := len(action) - 1; i >= 0; i-- {
		if action[i] == '.' {
			return action[i+1:]
		}
	}
	return action
}

func TestFileWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAdapter().WithBaseDir(dir)
	execCtx := NewExecutionContext()
	ctx := context.Background()

	filePath := filepath.Join(dir, "test.txt")
	resource := "file:" + filePath

	writeEnv := testEnvelope(t, "file.write", resource, map[string]any{"content": "Hello, World!"})
	writeResult, err := a.Execute(ctx, writeEnv, execCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !writeResult.Success {
		t.Fatal("expected success")
	}
	if len(writeResult.Effects) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(writeResult.Effects))
	}
	if writeResult.Effects[0].Bucket != envelope.EffectCreate {
		t.Fatalf("expected CREATE bucket for new file, got %v", writeResult.Effects[0].Bucket)
	}

	readEnv := testEnvelope(t, "file.read", resource, map[string]any{})
	readResult, err := a.Execute(ctx, readEnv, execCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !readResult.Success {
		t.Fatal("expected success")
	}
}

func TestFileDelete(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAdapter().WithBaseDir(dir)
	execCtx := NewExecutionContext()
	ctx := context.Background()

	filePath := filepath.Join(dir, "to_delete.txt")
	if err := os.WriteFile(filePath, []byte("delete me"), 0o644); err != nil {
		t.Fatal(err)
	}

	resource := "file:" + filePath
	env := testEnvelope(t, "file.delete", resource, map[string]any{})
	result, err := a.Execute(ctx, env, execCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if _, err := os.Stat(filePath); err == nil {
		t.Fatal("expected file to be deleted")
	}
}

func TestFilePathSandboxing(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAdapter().WithBaseDir(dir)

	if _, err := a.resolvePath("/etc/passwd"); err == nil {
		t.Fatal("expected path outside base directory to be rejected")
	}
}

func TestFileWriteRollback(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAdapter().WithBaseDir(dir)
	execCtx := NewExecutionContext()
	ctx := context.Background()

	filePath := filepath.Join(dir, "rollback.txt")
	resource := "file:" + filePath

	env := testEnvelope(t, "file.write", resource, map[string]any{"content": "version one"})
	result, err := a.Execute(ctx, env, execCtx)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Rollback(ctx, result.Effects[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filePath); err == nil {
		t.Fatal("expected rollback of a create to remove the file")
	}
}

func TestFileDryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAdapter().WithBaseDir(dir)
	execCtx := NewExecutionContext().WithDryRun()
	ctx := context.Background()

	filePath := filepath.Join(dir, "dry.txt")
	resource := "file:" + filePath

	env := testEnvelope(t, "file.write", resource, map[string]any{"content": "should not land"})
	result, err := a.Execute(ctx, env, execCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if _, err := os.Stat(filePath); err == nil {
		t.Fatal("dry run should not have created the file")
	}
}
