package output

import (
	"encoding/json"
	"os"
)

// JSONPrinter renders command results as indented JSON documents, for
// scripting against the CLI. State and queue payloads keep their wire
// field names.
type JSONPrinter struct{}

// Print writes v to stdout.
func (JSONPrinter) Print(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
