package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// readFlexFile reads the flex objects to write. The file holds either a JSON
// array of flex objects or a single object.
func readFlexFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read write file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("write file %s: invalid JSON", path)
	}

	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.IsArray():
		var flex []json.RawMessage
		if err := json.Unmarshal(data, &flex); err != nil {
			return nil, fmt.Errorf("write file %s: %w", path, err)
		}
		return flex, nil
	case parsed.IsObject():
		return []json.RawMessage{json.RawMessage(bytes.TrimSpace(data))}, nil
	default:
		return nil, fmt.Errorf("write file %s: expected a flex object or a list of flex objects", path)
	}
}
