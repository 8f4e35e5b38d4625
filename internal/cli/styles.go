// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Styled rendering for command output.
//
// Colors follow ColorProfile: off for pipes and NO_COLOR, forced by
// FORCE_COLOR. Plain output is byte-for-byte what the styles wrap.

package cli

import (
	"strings"

	"github.com/jeranaias/filescout/internal/events"
)

// styles returns the palette for a.Stdout.
func (a *App) styles() events.Styles {
	return events.NewStyles(a.Stdout, ColorProfile(a.Stdout))
}

// renderTOML colors section headers, keys and comments of a TOML document.
func renderTOML(st events.Styles, doc string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(doc, "\n") {
		body := strings.TrimSuffix(line, "\n")
		trimmed := strings.TrimSpace(body)

		switch {
		case trimmed == "":
			b.WriteString(body)
		case strings.HasPrefix(trimmed, "#"):
			b.WriteString(st.Dim.Render(body))
		case strings.HasPrefix(trimmed, "["):
			b.WriteString(st.Section.Render(body))
		default:
			key, value, ok := strings.Cut(body, "=")
			if !ok {
				b.WriteString(body)
				break
			}
			b.WriteString(st.Label.Render(key) + "=" + st.Value.Render(value))
		}
		if strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
