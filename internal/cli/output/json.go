package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter prints data as indented JSON, as the broker sent it.
type JSONFormatter struct{}

// Format implements Formatter. Place names and error messages are written
// without HTML escaping.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
