package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// MirrorName is the JSONL mirror of the plans table: one plan document per
// line, in position order. It is rewritten with every successful write and
// reloaded when the database is empty, so the collection survives a lost or
// deleted plans.db and diffs cleanly under version control.
const MirrorName = "plans.jsonl"

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	// Lines may exceed the scanner's 64 KiB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// restoreFromMirror loads plans.jsonl into an empty plans table. Lines that
// are not valid JSON or do not decode as a plan are skipped with a warning.
// Loading is transactional: all rows are inserted or none.
func (b *Backend) restoreFromMirror(ctx context.Context) error {
	var count int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&count); err != nil {
		return fmt.Errorf("counting plans: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := os.Stat(b.mirrorPath); os.IsNotExist(err) {
		return nil
	}

	records, err := readJSONL(b.mirrorPath)
	if err != nil {
		return err
	}
	plans := make([]types.Plan, 0, len(records))
	seen := map[string]bool{}
	for i, rec := range records {
		var p types.Plan
		if err := json.Unmarshal(rec, &p); err != nil || p.PlanID == "" || seen[p.PlanID] {
			b.logger.Warn("skipping unusable plans.jsonl record", zap.Int("record", i), zap.Error(err))
			continue
		}
		seen[p.PlanID] = true
		plans = append(plans, p)
	}
	if len(plans) == 0 {
		return nil
	}

	if err := b.replacePlans(ctx, plans); err != nil {
		return fmt.Errorf("restoring from %s: %w", MirrorName, err)
	}
	b.logger.Info("restored plans from mirror", zap.Int("plans", len(plans)))
	return nil
}
