package labeling

import (
	"encoding/json"
	"strings"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

type labelRow struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic"`
	Trend    string   `json:"trend"`
	Urgency  string   `json:"urgency"`
	Keywords []string `json:"keywords"`
}

type labelPayload struct {
	Labels []labelRow `json:"labels"`
}

// parseLabels extracts per-article labels from a raw model response. Models
// frequently wrap JSON in markdown fences or conversational filler, so the
// parser strips fences, cuts at the outermost braces, and only then
// unmarshals. Rows without a usable id or topic are dropped individually; an
// unparsable response yields an empty map, never an error.
func parseLabels(raw string) map[string]news.EventLabel {
	s := strings.TrimSpace(raw)

	// Strip markdown code fences.
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	// Extract JSON object by brace position.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil
	}

	var payload labelPayload
	if err := json.Unmarshal([]byte(s[start:end+1]), &payload); err != nil {
		return nil
	}

	labels := make(map[string]news.EventLabel, len(payload.Labels))
	for _, row := range payload.Labels {
		id := strings.TrimSpace(row.ID)
		topic := strings.TrimSpace(row.Topic)
		if id == "" || len(topic) < 3 {
			continue
		}

		var keywords []string
		for _, kw := range row.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}

		labels[id] = news.EventLabel{
			Topic:    topic,
			Trend:    news.ParseTrend(row.Trend),
			Urgency:  news.ParseUrgency(row.Urgency),
			Keywords: keywords,
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}
