package timeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a segment list from its JSON artifact and validates the timing
// invariants. The file is the durable hand-off between pipeline stages.
func Load(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments file: %w", err)
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse segments file %s: %w", path, err)
	}

	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segments file %s: %w", path, err)
	}

	return list, nil
}

// Save rewrites the segment list wholesale as indented UTF-8 JSON so the
// artifact stays human-diffable between stages.
func Save(path string, list List) error {
	if err := list.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid segment list: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode segments: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write segments file: %w", err)
	}
	return nil
}
