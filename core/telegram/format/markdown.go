// Package format prepares user-supplied text for Telegram's legacy Markdown mode.
package format

import "strings"

var escaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// Escape makes text render literally inside a Markdown message. Only the
// characters that open an entity in legacy Markdown need escaping.
func Escape(text string) string {
	return escaper.Replace(text)
}
