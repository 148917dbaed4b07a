package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// ParseAgentAnswer extracts the recommendation JSON from a raw agent answer.
// Bare JSON, fenced code blocks and JSON wrapped in prose are accepted.
func ParseAgentAnswer(raw string) (*domain.AgentAnswer, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in answer", domain.ErrMalformedAnswer)
	}

	var parsed struct {
		Recommendations *[]domain.AgentPick `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnswer, err)
	}
	if parsed.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing recommendations array", domain.ErrMalformedAnswer)
	}

	return &domain.AgentAnswer{Recommendations: *parsed.Recommendations}, nil
}

// FilterKnown drops picks whose id is not in known and records them as unknown.
func FilterKnown(answer *domain.AgentAnswer, known map[string]bool) *domain.AgentAnswer {
	out := &domain.AgentAnswer{Recommendations: []domain.AgentPick{}}
	for _, pick := range answer.Recommendations {
		if known[pick.ID] {
			out.Recommendations = append(out.Recommendations, pick)
		} else {
			out.Unknown = append(out.Unknown, pick.ID)
		}
	}
	return out
}

func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		// Skip an optional language tag on the fence line
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first < 0 || last < first {
		return ""
	}
	return text[first : last+1]
}
