// Package checkpoint persists offset checkpoints to the local filesystem.
//
// Store writes atomically (temp file + rename in the same directory) so a
// crash mid-write or a concurrent reader never observes a truncated file.
// Load understands two on-disk formats: the structured JSON record, and the
// legacy format that stored only the bare offset as a decimal integer and
// relied on the consumer's configuration for topic and partition. Every save
// upgrades a legacy file to the structured format, which lets a fleet migrate
// without coordination.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/streamguard/streamguard-go/pkg/checkpoint"
)

// ErrMalformedCheckpoint is returned when a checkpoint file parses as neither
// the structured nor the legacy format. This is deliberately a hard error:
// silently treating garbage as "offset zero" would cause silent reprocessing
// or data loss.
var ErrMalformedCheckpoint = errors.New("checkpoint file is neither structured nor legacy format")

// Store atomically persists cp at path, creating missing parent directories.
func Store(path string, cp *checkpoint.OffsetCheckpoint) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating checkpoint directory %s", dir)
	}

	data, err := cp.Marshal()
	if err != nil {
		return errors.Wrap(err, "serializing checkpoint")
	}

	// Write to a temp file in the same directory so the rename is atomic on
	// the same filesystem.
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary checkpoint file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "writing temporary checkpoint file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "closing temporary checkpoint file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming checkpoint into place at %s", path)
	}
	return nil
}

// Load reads the checkpoint at path. A missing file is not an error and
// returns (nil, nil). A legacy file containing only a bare offset is upgraded
// in memory using the caller's configured topic and partition.
func Load(path string, topic string, partition int32) (*checkpoint.OffsetCheckpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading checkpoint file %s", path)
	}

	// Structured format first. A bare integer is valid JSON but does not
	// unmarshal into the record, so it falls through to the legacy parse.
	var cp checkpoint.OffsetCheckpoint
	if err := json.Unmarshal(data, &cp); err == nil && cp.Topic != "" {
		return &cp, nil
	}

	if offset, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil && offset >= 0 {
		return checkpoint.New(topic, partition, offset), nil
	}

	return nil, errors.Wrapf(ErrMalformedCheckpoint, "parsing %s", path)
}
