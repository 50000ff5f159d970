package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// WriteFile persists a history as JSON lines, one op per line, so a run's
// raw history survives as an artifact and can be re-checked offline.
func WriteFile(path string, ops []Op) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encode op %d: %w", op.Index, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush history file: %w", err)
	}
	return nil
}

// ReadFile loads a history previously written with WriteFile.
func ReadFile(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var ops []Op
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var op Op
		if err := dec.Decode(&op); err != nil {
			return nil, fmt.Errorf("decode op %d: %w", len(ops), err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
