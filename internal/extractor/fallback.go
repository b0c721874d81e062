package extractor

import (
	"encoding/json"
	"regexp"
	"time"
)

var (
	searchPattern = regexp.MustCompile(`(?is)memory_search.*?["']query["']\s*[:=]\s*["']([^"']+)["']`)
	resultPattern = regexp.MustCompile(`(?s)(?:snippets|results|matches).*?(\[[\s\S]*?\])`)
)

// ExtractFromText handles transcripts that are neither the structured
// session JSONL format nor a JSON array of messages: plain text logs that
// merely mention memory_search calls. Queries and result blocks are paired
// positionally, best effort — the query alone is still signal even with no
// matching result block.
func ExtractFromText(transcript string) []Extracted {
	queries := searchPattern.FindAllStringSubmatch(transcript, -1)
	resultBlocks := resultPattern.FindAllStringSubmatch(transcript, -1)

	now := float64(time.Now().UnixNano()) / 1e9

	var out []Extracted
	for i, qm := range queries {
		query := qm[1]
		if query == "" {
			continue
		}

		var results []ExtractedResult
		if i < len(resultBlocks) {
			var raw []toolResultEntry
			if err := json.Unmarshal([]byte(resultBlocks[i][1]), &raw); err == nil {
				for _, r := range raw {
					results = append(results, ExtractedResult{
						File:  r.Path,
						Lines: stringifyLine(r.StartLine),
						Score: r.Score,
					})
				}
			}
		}

		out = append(out, Extracted{Query: query, Results: results, Timestamp: now})
	}

	return out
}

// ExtractFromJSONArray handles a transcript supplied as a top-level JSON
// array of messages, the format produced by ad-hoc transcript dumps rather
// than the session-directory JSONL files ExtractSession reads.
func ExtractFromJSONArray(data []byte) ([]Extracted, bool) {
	var messages []rawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, false
	}

	byID := make(map[string]rawMessage)
	for _, msg := range messages {
		if msg.ID != "" {
			byID[msg.ID] = msg
		}
	}

	resultsByParent := make(map[string]rawMessage)
	for _, msg := range messages {
		if msg.Message.Role == "toolResult" && msg.ParentID != "" {
			resultsByParent[msg.ParentID] = msg
		}
	}

	var out []Extracted
	for _, msg := range messages {
		for _, block := range msg.Message.Content {
			if block.Type != "toolCall" || block.Name != "memory_search" {
				continue
			}
			query, _ := block.Arguments["query"].(string)
			if query == "" {
				continue
			}
			var results []ExtractedResult
			if resultMsg, ok := resultsByParent[msg.ID]; ok {
				results = extractResults(resultMsg)
			}
			out = append(out, Extracted{Query: query, Results: results, Timestamp: parseTimestamp(msg.Timestamp)})
		}
	}

	return out, true
}

func stringifyLine(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
