package scan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/faf-tools/simlint/internal/model"
)

// LoadDeclaredDPS reads the declared-DPS override file: a JSON object of
// unit identifier to number. Keys are matched case-insensitively; non-number
// values are ignored.
func LoadDeclaredDPS(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declared-dps file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse declared-dps file %s: %w", path, err)
	}
	out := make(map[string]float64, len(raw))
	for id, v := range raw {
		n, ok := v.(float64)
		if !ok {
			continue
		}
		out[model.NormalizeID(id)] = n
	}
	return out, nil
}
