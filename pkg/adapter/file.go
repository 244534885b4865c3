// Copyright 2025 Certen Protocol

package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

var fileDomainActions = []string{
	"file.read",
	"file.write",
	"file.delete",
	"file.list",
	"file.exists",
	"file.metadata",
}

// FileAdapter executes file.* actions against the local filesystem,
// optionally sandboxed to a base directory.
type FileAdapter struct {
	baseDir        string
	maxReadSize    int64
	captureContent bool
}

// NewFileAdapter builds an unsandboxed file adapter with a 10MB read
// limit and content capture enabled.
func NewFileAdapter() *FileAdapter {
	return &FileAdapter{maxReadSize: 10 * 1024 * 1024, captureContent: true}
}

func (a *FileAdapter) WithBaseDir(dir string) *FileAdapter {
	a.baseDir = dir
	return a
}

func (a *FileAdapter) WithMaxReadSize(size int64) *FileAdapter {
	a.maxReadSize = size
	return a
}

func (a *FileAdapter) WithoutContentCapture() *FileAdapter {
	a.captureContent = false
	return a
}

func (a *FileAdapter) Domain() string { return "file" }

func (a *FileAdapter) Version() string { return "1.0.0" }

func (a *FileAdapter) SupportedActions() []string { return fileDomainActions }

func (a *FileAdapter) SupportsAction(action string) bool {
	return SupportsActionDefault(a.Domain(), a.SupportedActions(), action)
}

// resolvePath strips the file: or file:// prefix from a resource id and,
// when a base directory is configured, rejects any path that resolves
// outside it.
func (a *FileAdapter) resolvePath(resourceID envelope.ResourceID) (string, error) {
	pathStr := string(resourceID)
	switch {
	case strings.HasPrefix(pathStr, "file://"):
		pathStr = pathStr[len("file://"):]
	case strings.HasPrefix(pathStr, "file:"):
		pathStr = pathStr[len("file:"):]
	}

	if a.baseDir == "" {
		return pathStr, nil
	}

	canonicalBase, err := filepath.EvalSymlinks(a.baseDir)
	if err != nil {
		canonicalBase = a.baseDir
	}
	canonicalBase, err = filepath.Abs(canonicalBase)
	if err != nil {
		canonicalBase = a.baseDir
	}

	var checkPath string
	if _, err := os.Stat(pathStr); err == nil {
		if resolved, err := filepath.EvalSymlinks(pathStr); err == nil {
			checkPath = resolved
		} else {
			checkPath = pathStr
		}
	} else {
		parent := filepath.Dir(pathStr)
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			checkPath = resolved
		} else {
			checkPath = parent
		}
	}
	checkPath, err = filepath.Abs(checkPath)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %s", ErrPermissionDenied, pathStr)
	}

	rel, err := filepath.Rel(canonicalBase, checkPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %s is outside base directory", ErrPermissionDenied, pathStr)
	}

	return pathStr, nil
}

// captureState snapshots a file's current content. Content is parsed as
// JSON when possible, otherwise wrapped as base64-encoded binary; it is
// omitted entirely when capture is disabled or the file exceeds the
// configured read limit.
func (a *FileAdapter) captureState(path string) effect.Snapshot {
	info, err := os.Stat(path)
	if err != nil {
		return effect.SnapshotNotExists()
	}

	size := info.Size()
	var snapshot effect.Snapshot

	if a.captureContent && size <= a.maxReadSize {
		data, err := os.ReadFile(path)
		if err == nil {
			var parsed any
			if json.Unmarshal(data, &parsed) == nil {
				if s, err := effect.SnapshotFromJSON(parsed); err == nil {
					snapshot = s
				}
			}
			if snapshot.Hash == "" {
				wrapped := map[string]any{
					"_type":     "binary",
					"_encoding": "base64",
					"_data":     base64.StdEncoding.EncodeToString(data),
				}
				if s, err := effect.SnapshotFromJSON(wrapped); err == nil {
					snapshot = s
				} else {
					snapshot = effect.SnapshotFromBytes(data)
				}
			}
		} else {
			snapshot = effect.SnapshotFromHash("ERROR", 0)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			snapshot = effect.SnapshotFromHash("ERROR", 0)
		} else {
			snapshot = effect.SnapshotFromBytes(data)
		}
	}

	sz := uint64(size)
	snapshot.Size = &sz
	snapshot = snapshot.WithProperty("modified", info.ModTime().UTC().Format(time.RFC3339))
	return snapshot
}

// extractContent pulls the bytes to write from an envelope body: an
// inline "content" string or JSON value, a "content_base64" field, or
// (failing both) the entire body.
func (a *FileAdapter) extractContent(body json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		if raw, ok := fields["content"]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				return []byte(s), nil
			}
			return json.MarshalIndent(raw, "", "  ")
		}
		if raw, ok := fields["content_base64"]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("%w: content_base64 must be a string", ErrInvalidInput)
			}
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid base64: %v", ErrInvalidInput, err)
			}
			return decoded, nil
		}
	}
	return json.MarshalIndent(body, "", "  ")
}

func (a *FileAdapter) executeRead(env *envelope.Envelope, path string, start time.Time) (*ExecutionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if info.Size() > a.maxReadSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrInvalidInput, info.Size(), a.maxReadSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	state := a.captureState(path)
	captured := effect.NewBuilder(env.ID, envelope.EffectRead, string(env.Resource.ID)).
		TargetType("file").
		After(state).
		Build()

	var data any
	if json.Unmarshal(content, &data) != nil {
		data = map[string]any{
			"content_type":   "application/octet-stream",
			"size":           len(content),
			"content_base64": base64.StdEncoding.EncodeToString(content),
		}
	}

	durationMs := uint64(time.Since(start).Milliseconds())
	return SuccessResult(data, []*effect.Captured{captured}, durationMs), nil
}

func (a *FileAdapter) executeWrite(env *envelope.Envelope, path string, execCtx *ExecutionContext, start time.Time) (*ExecutionResult, error) {
	before := a.captureState(path)

	content, err := a.extractContent(env.Body)
	if err != nil {
		return nil, err
	}

	if execCtx.DryRun {
		durationMs := uint64(time.Since(start).Milliseconds())
		return SuccessResult(map[string]any{"dry_run": true, "would_write": len(content)}, nil, durationMs), nil
	}

	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, err
	}

	after := a.captureState(path)
	created := before.Hash == effect.NotExistsHash
	bucket := envelope.EffectUpdate
	if created {
		bucket = envelope.EffectCreate
	}

	captured := effect.NewBuilder(env.ID, bucket, string(env.Resource.ID)).
		TargetType("file").
		Before(before).
		After(after).
		Reversible(effect.ReversalRestoreState, map[string]any{
			"path":           path,
			"before_hash":    before.Hash,
			"before_content": before.Content,
		}).
		Build()

	durationMs := uint64(time.Since(start).Milliseconds())
	return SuccessResult(map[string]any{
		"path":    path,
		"size":    len(content),
		"created": created,
	}, []*effect.Captured{captured}, durationMs), nil
}

func (a *FileAdapter) executeDelete(env *envelope.Envelope, path string, execCtx *ExecutionContext, start time.Time) (*ExecutionResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	before := a.captureState(path)

	if execCtx.DryRun {
		durationMs := uint64(time.Since(start).Milliseconds())
		return SuccessResult(map[string]any{"dry_run": true, "would_delete": path}, nil, durationMs), nil
	}

	if err := os.Remove(path); err != nil {
		return nil, err
	}

	after := effect.SnapshotNotExists()
	captured := effect.NewBuilder(env.ID, envelope.EffectDelete, string(env.Resource.ID)).
		TargetType("file").
		Before(before).
		After(after).
		Reversible(effect.ReversalRecreate, map[string]any{
			"path":           path,
			"before_content": before.Content,
		}).
		Build()

	durationMs := uint64(time.Since(start).Milliseconds())
	return SuccessResult(map[string]any{"path": path, "deleted": true}, []*effect.Captured{captured}, durationMs), nil
}

func (a *FileAdapter) executeList(env *envelope.Envelope, path string, start time.Time) (*ExecutionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidInput, path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, len(dirEntries))
	for _, entry := range dirEntries {
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}
		var size any
		if !entry.IsDir() {
			size = entryInfo.Size()
		}
		entries = append(entries, map[string]any{
			"name":    entry.Name(),
			"path":    filepath.Join(path, entry.Name()),
			"is_dir":  entry.IsDir(),
			"is_file": !entry.IsDir(),
			"size":    size,
		})
	}

	captured := effect.NewBuilder(env.ID, envelope.EffectRead, string(env.Resource.ID)).
		TargetType("directory").
		Build()

	durationMs := uint64(time.Since(start).Milliseconds())
	return SuccessResult(map[string]any{
		"path":    path,
		"entries": entries,
		"count":   len(entries),
	}, []*effect.Captured{captured}, durationMs), nil
}

func (a *FileAdapter) Execute(ctx context.Context, env *envelope.Envelope, execCtx *ExecutionContext) (*ExecutionResult, error) {
	start := time.Now()

	path, err := a.resolvePath(env.Resource.ID)
	if err != nil {
		return nil, err
	}

	switch env.Action.Name {
	case "file.read":
		return a.executeRead(env, path, start)
	case "file.write":
		return a.executeWrite(env, path, execCtx, start)
	case "file.delete":
		return a.executeDelete(env, path, execCtx, start)
	case "file.list":
		return a.executeList(env, path, start)
	case "file.exists":
		_, err := os.Stat(path)
		return SuccessResult(map[string]any{"exists": err == nil}, nil, 0), nil
	case "file.metadata":
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return SuccessResult(map[string]any{
			"size":     info.Size(),
			"is_file":  !info.IsDir(),
			"is_dir":   info.IsDir(),
			"readonly": info.Mode().Perm()&0o200 == 0,
		}, nil, 0), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, env.Action.Name)
	}
}

func (a *FileAdapter) CanRollback(action string) bool {
	return action == "file.write" || action == "file.delete"
}

func (a *FileAdapter) Rollback(ctx context.Context, captured *effect.Captured) error {
	if captured.Reversal == nil {
		return fmt.Errorf("%w: no reversal instructions", ErrRollbackFailed)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(captured.Reversal.Data, &data); err != nil {
		return fmt.Errorf("%w: malformed reversal data", ErrRollbackFailed)
	}

	var path string
	if raw, ok := data["path"]; ok {
		_ = json.Unmarshal(raw, &path)
	}
	if path == "" {
		return fmt.Errorf("%w: missing path in reversal", ErrRollbackFailed)
	}

	switch captured.Reversal.Method {
	case effect.ReversalRestoreState, effect.ReversalRecreate:
		rawContent, hasContent := data["before_content"]
		if !hasContent || string(rawContent) == "null" {
			if _, err := os.Stat(path); err == nil {
				return os.Remove(path)
			}
			return nil
		}

		var wrapped map[string]any
		if json.Unmarshal(rawContent, &wrapped) == nil {
			if encoded, ok := wrapped["_data"].(string); ok {
				decoded, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrRollbackFailed, err)
				}
				return os.WriteFile(path, decoded, 0o644)
			}
		}
		return os.WriteFile(path, rawContent, 0o644)
	case effect.ReversalDelete:
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported reversal method: %s", ErrRollbackFailed, captured.Reversal.Method)
	}
}

func (a *FileAdapter) HealthCheck(ctx context.Context) (HealthStatus, error) {
	start := time.Now()
	if a.baseDir != "" {
		if _, err := os.Stat(a.baseDir); err != nil {
			return Unhealthy(fmt.Sprintf("base directory does not exist: %s", a.baseDir)), nil
		}
	}
	latency := uint64(time.Since(start).Milliseconds())
	return Healthy().WithLatency(latency), nil
}

// FileActionDescriptors documents the actions the file adapter supports.
func FileActionDescriptors() []ActionDescriptor {
	return []ActionDescriptor{
		NewActionDescriptor("file.read", "Read file contents").WithEffect(envelope.EffectRead).Idempotent(),
		NewActionDescriptor("file.write", "Write content to file").WithEffect(envelope.EffectUpdate).Reversible(),
		NewActionDescriptor("file.delete", "Delete a file").WithEffect(envelope.EffectDelete).Reversible(),
		NewActionDescriptor("file.list", "List directory contents").WithEffect(envelope.EffectRead).Idempotent(),
		NewActionDescriptor("file.exists", "Check if file exists").WithEffect(envelope.EffectNone).Idempotent(),
		NewActionDescriptor("file.metadata", "Get file metadata").WithEffect(envelope.EffectRead).Idempotent(),
	}
}
