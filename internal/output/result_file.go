package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// WriteResultFile writes the summary as indented JSON to path. The file is
// guarded with an advisory lock so concurrent runs pointed at the same path
// do not interleave writes.
func WriteResultFile(path string, s Summary) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock result file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}
	return nil
}
