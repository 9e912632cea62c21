package donations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

type shellTarget struct {
	command string
}

// NewShellTarget returns a target that pipes each change set as JSON into
// the configured command, or nil when no command is configured.
func NewShellTarget(cfg ShellTargetConfig) RecordSyncTarget {
	if cfg.IsEmpty() {
		return nil
	}
	return &shellTarget{command: strings.TrimSpace(cfg.Command)}
}

func (s *shellTarget) ApplyRecordChanges(ctx context.Context, changes RecordChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}

	docs := struct {
		Upserts   []Record `json:"upserts"`
		Deletions []int    `json:"deletions"`
	}{
		Upserts:   changes.Upserts,
		Deletions: changes.Deletions,
	}
	if docs.Upserts == nil {
		docs.Upserts = []Record{}
	}
	if docs.Deletions == nil {
		docs.Deletions = []int{}
	}

	payload, err := json.Marshal(docs)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Stdin = bytes.NewReader(payload)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("shell target failed: %w: %s", err, string(output))
	}

	return nil
}
