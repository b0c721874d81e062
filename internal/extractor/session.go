package extractor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExtractSession parses one session JSONL transcript (one JSON object per
// line) and returns every memory_search call it contains, paired with its
// tool result by parentId. Malformed lines are skipped rather than failing
// the whole session — a single corrupt line shouldn't lose the rest of a
// transcript's signal.
func ExtractSession(r *bufio.Scanner) ([]Extracted, error) {
	var messages []rawMessage
	byID := make(map[string]rawMessage)

	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" {
			continue
		}
		var msg rawMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
		if msg.ID != "" {
			byID[msg.ID] = msg
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read session transcript: %w", err)
	}

	// Index tool results by the parentId of the call they answer.
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

			ts := parseTimestamp(msg.Timestamp)
			var results []ExtractedResult
			if resultMsg, ok := resultsByParent[msg.ID]; ok {
				results = extractResults(resultMsg)
			}

			out = append(out, Extracted{Query: query, Results: results, Timestamp: ts})
		}
	}

	return out, nil
}

func extractResults(resultMsg rawMessage) []ExtractedResult {
	var results []ExtractedResult
	for _, block := range resultMsg.Message.Content {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		var payload toolResultPayload
		if err := json.Unmarshal([]byte(block.Text), &payload); err != nil {
			continue
		}
		for _, r := range payload.Results {
			if strings.HasPrefix(r.Path, "sessions/") {
				continue
			}
			results = append(results, ExtractedResult{
				File:  r.Path,
				Lines: fmt.Sprintf("%v", r.StartLine),
				Score: r.Score,
			})
		}
		break
	}
	return results
}

func parseTimestamp(s string) float64 {
	if s == "" {
		return float64(time.Now().UnixNano()) / 1e9
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return float64(time.Now().UnixNano()) / 1e9
	}
	return float64(t.UnixNano()) / 1e9
}
