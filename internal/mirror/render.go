package mirror

import (
	"fmt"
	"strings"
	"time"
)

const queryPreviewMaxRunes = 40

// compressHotKey shortens a chunk key for the hot line, matching the
// shorthand a reader of the mirror file learns once: MEMORY.md:51 -> M:51,
// memory/2026-02-07.md:1 -> m/0207:1, anything else truncated to 15 runes
// with ":" rendered as an arrow.
func compressHotKey(key string) string {
	switch {
	case strings.HasPrefix(key, "MEMORY.md:"):
		return "M:" + strings.TrimPrefix(key, "MEMORY.md:")
	case strings.HasPrefix(key, "memory/"):
		rest := strings.TrimPrefix(key, "memory/")
		parts := strings.SplitN(rest, ":", 2)
		datePart := parts[0]
		datePart = strings.TrimPrefix(datePart, "2026-")
		datePart = strings.ReplaceAll(datePart, "-", "")
		datePart = strings.TrimSuffix(datePart, ".md")
		if len(parts) > 1 {
			return fmt.Sprintf("m/%s:%s", datePart, parts[1])
		}
		return "m/" + datePart
	default:
		short := strings.ReplaceAll(key, ".md", "")
		short = strings.ReplaceAll(short, ":", "→")
		if runes := []rune(short); len(runes) > 15 {
			short = string(runes[:15])
		}
		return short
	}
}

func compressResonanceKey(key string) string {
	key = strings.ReplaceAll(key, "MEMORY.md", "M")
	key = strings.ReplaceAll(key, "memory/", "m/")
	key = strings.ReplaceAll(key, ".md", "")
	return key
}

func truncateQuery(q string) string {
	runes := []rune(q)
	if len(runes) <= queryPreviewMaxRunes {
		return q
	}
	return string(runes[:queryPreviewMaxRunes])
}

// Render produces the mirror file's text content for the given report,
// dated by now.
func Render(r Report, now time.Time) string {
	if r.TotalEvents == 0 {
		return "# mirror — no access data yet\n"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("# mirror [%s]", now.Format("2006-01-02")), "")

	if len(r.Hot) > 0 {
		n := 8
		if n > len(r.Hot) {
			n = len(r.Hot)
		}
		parts := make([]string, 0, n)
		for _, h := range r.Hot[:n] {
			parts = append(parts, fmt.Sprintf("%s(%dx)", compressHotKey(h.ChunkKey), h.Accesses))
		}
		lines = append(lines, "hot: "+strings.Join(parts, " "))
	}

	if len(r.Gaps) > 0 {
		n := 5
		if n > len(r.Gaps) {
			n = len(r.Gaps)
		}
		parts := make([]string, 0, n)
		for _, g := range r.Gaps[:n] {
			parts = append(parts, fmt.Sprintf("%q(%dx)", truncateQuery(g.Query), g.Misses))
		}
		lines = append(lines, "gaps: "+strings.Join(parts, " | "))
	}

	if len(r.Friction) > 0 {
		n := 5
		if n > len(r.Friction) {
			n = len(r.Friction)
		}
		parts := make([]string, 0, n)
		for _, f := range r.Friction[:n] {
			parts = append(parts, fmt.Sprintf("%s(%dx)", f.Pattern, f.TotalRepeats))
		}
		lines = append(lines, "friction: "+strings.Join(parts, " | "))
	}

	if len(r.Resonance) > 0 {
		lines = append(lines, "resonance:")
		n := 5
		if n > len(r.Resonance) {
			n = len(r.Resonance)
		}
		for _, res := range r.Resonance[:n] {
			lines = append(lines, fmt.Sprintf("  %s ↔ %s (%ds)",
				compressResonanceKey(res.A), compressResonanceKey(res.B), res.Sessions))
		}
	}

	if len(r.ToolFailures) > 0 {
		parts := make([]string, 0, len(r.ToolFailures))
		for _, f := range r.ToolFailures {
			parts = append(parts, fmt.Sprintf("%s(%dx)", f.Kind, f.Count))
		}
		lines = append(lines, "errors: "+strings.Join(parts, " "))
	}

	if len(r.Promotions) > 0 {
		n := 5
		if n > len(r.Promotions) {
			n = len(r.Promotions)
		}
		parts := make([]string, 0, n)
		for _, p := range r.Promotions[:n] {
			parts = append(parts, fmt.Sprintf("%s(%dx/%ds)", p.ChunkKey, p.Accesses, p.Sessions))
		}
		lines = append(lines, "promote: "+strings.Join(parts, " | "))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("stats: %dev/%duq/%dsess/%dd",
		r.TotalEvents, r.UniqueQueries, r.SessionsSearched, r.WindowDays))

	return strings.Join(lines, "\n") + "\n"
}
