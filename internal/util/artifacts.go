package util

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONAtomic writes v as indented JSON through the atomic text writer.
func WriteJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteTextAtomic(path, string(b)+"\n")
}

func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read json %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json %s: %w", path, err)
	}
	return nil
}
