package mirror

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var exitCodePattern = regexp.MustCompile(`(?:Process |Command )exited with code (\d+)`)

type toolFailureMessage struct {
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// scanToolFailures walks the sessions directory for transcripts modified
// within the window and tallies tool-call failure kinds, keeping only
// kinds seen 2+ times, top 5.
func scanToolFailures(sessionsDir string, since time.Time) ([]ToolFailureEntry, error) {
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	counts := map[string]int{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		path := filepath.Join(sessionsDir, entry.Name())
		scanFileForFailures(path, counts)
	}

	type kv struct {
		kind  string
		count int
	}
	var ranked []kv
	for k, c := range counts {
		if c >= 2 {
			ranked = append(ranked, kv{k, c})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count == ranked[j].count {
			return ranked[i].kind < ranked[j].kind
		}
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	out := make([]ToolFailureEntry, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, ToolFailureEntry{Kind: r.kind, Count: r.count})
	}
	return out, nil
}

func scanFileForFailures(path string, counts map[string]int) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var msg toolFailureMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Message.Role != "toolResult" {
			continue
		}
		for _, block := range msg.Message.Content {
			if block.Type != "text" {
				continue
			}
			classifyFailureText(block.Text, counts)
		}
	}
}

func classifyFailureText(text string, counts map[string]int) {
	if m := exitCodePattern.FindStringSubmatch(text); m != nil && m[1] != "0" {
		counts["exit:"+m[1]]++
		return
	}
	if strings.Contains(text, "Command timed out") {
		counts["timeout"]++
		return
	}
	prefix := text
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	if strings.Contains(prefix, `"status": "error"`) {
		counts["tool-error"]++
	}
}
