package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gridsight/gridsight-ai/internal/detection"
	"github.com/gridsight/gridsight-ai/internal/kb"
	"github.com/gridsight/gridsight-ai/internal/llm"
	"github.com/gridsight/gridsight-ai/internal/metrics"
)

// maxToolTurns bounds the tool-calling loop so a confused model cannot spin.
const maxToolTurns = 4

const systemPrompt = `You are a power distribution protection engineer. You are given the
anomaly detection payload for one bus and access to the operator knowledge
base. Use the tools if you need more context, then reply with a single JSON
object: {"summary": string, "root_cause": string, "recommended_actions": [string]}.
Be specific about protection elements (27 undervoltage, 50 overcurrent) and
keep actions executable by a field crew.`

// Coordinator runs the diagnosis flow: detect, retrieve, narrate, assemble.
// With no LLM client configured it produces a deterministic local narrative,
// so the pipeline works offline.
type Coordinator struct {
	detector *detection.Service
	index    *kb.Index
	client   llm.Client // nil enables local mode
	logger   *zap.Logger
}

// NewCoordinator wires a coordinator. client may be nil, logger may be nil.
func NewCoordinator(detector *detection.Service, index *kb.Index, client llm.Client, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{detector: detector, index: index, client: client, logger: logger}
}

// narrative is the free-text portion of a ticket.
type narrative struct {
	Summary            string   `json:"summary"`
	RootCause          string   `json:"root_cause"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Diagnose runs detection for the selection, gathers knowledge base
// citations and produces a complete fault ticket. Detection errors pass
// through unwrapped in kind; narrative failures degrade to the local
// narrative rather than failing the ticket.
func (c *Coordinator) Diagnose(ctx context.Context, scenario, assetID, start, end string, opts detection.Options) (*FaultTicket, error) {
	payload, err := c.detector.Detect(ctx, scenario, assetID, start, end, opts)
	if err != nil {
		return nil, err
	}

	citations := c.index.Search(retrievalQuery(payload), 3)
	ticket := NewTicket(payload, citations)

	var n narrative
	if c.client != nil {
		n, err = c.llmNarrative(ctx, payload, citations)
		if err != nil {
			c.logger.Warn("llm narrative failed, using local narrative",
				zap.String("ticket_id", ticket.TicketID), zap.Error(err))
			n = localNarrative(payload)
		}
	} else {
		n = localNarrative(payload)
	}

	ticket.Summary = n.Summary
	ticket.RootCause = n.RootCause
	ticket.RecommendedActions = n.RecommendedActions

	c.logger.Info("fault ticket assembled",
		zap.String("ticket_id", ticket.TicketID),
		zap.String("scenario", scenario),
		zap.String("asset_id", assetID),
		zap.String("severity", string(ticket.Severity)),
		zap.Int("citations", len(citations)),
	)
	return ticket, nil
}

// retrievalQuery derives knowledge base search terms from the payload.
func retrievalQuery(p *detection.Payload) string {
	terms := []string{strings.ReplaceAll(p.Scenario, "_", " "), p.AssetID}
	switch p.Scenario {
	case "overload_trip":
		terms = append(terms, "overcurrent", "trip")
	case "miscoordination":
		terms = append(terms, "undervoltage", "overcurrent", "coordination")
	case "theft_overload":
		terms = append(terms, "overcurrent", "unmetered", "load")
	}
	return strings.Join(terms, " ")
}

// ─── LLM narrative ────────────────────────────────────────────────────────────

// llmNarrative asks the model for the ticket narrative, serving kb_retrieve
// and detect_signal tool calls until it answers or the turn budget runs out.
func (c *Coordinator) llmNarrative(ctx context.Context, payload *detection.Payload, citations []kb.Citation) (narrative, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return narrative{}, fmt.Errorf("encode payload: %w", err)
	}
	citationsJSON, _ := json.Marshal(citations)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Detection payload:\n%s\n\nKnowledge base citations already retrieved:\n%s",
			payloadJSON, citationsJSON)},
	}

	model := c.client.Model()
	for turn := 0; turn < maxToolTurns; turn++ {
		completion, err := c.client.Complete(ctx, messages, c.tools())
		if err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(model, "failure").Inc()
			return narrative{}, err
		}
		metrics.LLMRequestsTotal.WithLabelValues(model, "success").Inc()
		metrics.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(completion.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(completion.Usage.CompletionTokens))
		if len(completion.ToolCalls) == 0 {
			return parseNarrative(completion.Content)
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			result := c.executeTool(ctx, payload, call)
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
	return narrative{}, fmt.Errorf("model did not answer within %d tool turns", maxToolTurns)
}

func (c *Coordinator) tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "kb_retrieve",
			Description: "Search the operator knowledge base for standard operating procedures and protection notes.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"k":     map[string]any{"type": "integer", "default": 3},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "detect_signal",
			Description: "Re-run anomaly detection for the same scenario and asset over a narrower time window.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{"type": "string", "description": "inclusive lower timestamp bound"},
					"end":   map[string]any{"type": "string", "description": "inclusive upper timestamp bound"},
				},
			},
		},
	}
}

func (c *Coordinator) executeTool(ctx context.Context, payload *detection.Payload, call llm.ToolCall) string {
	switch call.Name {
	case "kb_retrieve":
		query, _ := call.Arguments["query"].(string)
		k := 3
		if kf, ok := call.Arguments["k"].(float64); ok {
			k = int(kf)
		}
		hits := c.index.Search(query, k)
		out, _ := json.Marshal(hits)
		return string(out)

	case "detect_signal":
		start, _ := call.Arguments["start"].(string)
		end, _ := call.Arguments["end"].(string)
		p, err := c.detector.Detect(ctx, payload.Scenario, payload.AssetID, start, end, detection.Options{})
		if err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		out, _ := json.Marshal(p)
		return string(out)

	default:
		return fmt.Sprintf(`{"error": "unknown tool %s"}`, call.Name)
	}
}

// parseNarrative accepts the narrative JSON, tolerating a fenced code block
// around it.
func parseNarrative(content string) (narrative, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	var n narrative
	if err := json.Unmarshal([]byte(text), &n); err != nil {
		return narrative{}, fmt.Errorf("decode narrative: %w", err)
	}
	if n.Summary == "" {
		return narrative{}, fmt.Errorf("narrative missing summary")
	}
	return n, nil
}

// ─── Local narrative ──────────────────────────────────────────────────────────

// localNarrative produces the deterministic offline narrative.
func localNarrative(p *detection.Payload) narrative {
	s := p.Summary
	base := fmt.Sprintf("%d of %d samples on %s flagged anomalous (%.1f%%), severity %s.",
		s.NAnomalies, s.NPoints, p.AssetID, s.AnomalyRate*100, s.SeverityLevel)

	switch p.Scenario {
	case "overload_trip":
		return narrative{
			Summary:   "Sustained overcurrent detected. " + base,
			RootCause: "Load current well above nominal for the full anomaly interval, consistent with a feeder overload followed by a 50 element trip.",
			RecommendedActions: []string{
				"Verify breaker state and relay targets at " + p.AssetID,
				"Check downstream load against the feeder rating before re-closing",
				"Inspect for failed load-shedding automation",
			},
		}
	case "miscoordination":
		return narrative{
			Summary:   "Protection miscoordination signature detected. " + base,
			RootCause: "Undervoltage at the bus overlapping upstream overcurrent indicates the upstream device cleared a fault the feeder breaker should have taken.",
			RecommendedActions: []string{
				"Pull relay event records for " + p.AssetID + " and its upstream device",
				"Review time-current coordination curves for the affected pair",
				"Schedule a coordination study before returning to normal switching",
			},
		}
	case "theft_overload":
		return narrative{
			Summary:   "Gradual unexplained load growth detected. " + base,
			RootCause: "Current ramps steadily without matching metered demand, consistent with unmetered tapping or diversion on the feeder.",
			RecommendedActions: []string{
				"Compare feeder current against aggregated meter data for " + p.AssetID,
				"Dispatch a crew to inspect the feeder for unauthorized taps",
				"Monitor the ramp rate for further growth",
			},
		}
	default:
		if s.NAnomalies == 0 {
			return narrative{
				Summary:            "No anomalous behavior detected. " + base,
				RootCause:          "Signals remained within the trained normal envelope.",
				RecommendedActions: []string{"No action required"},
			}
		}
		return narrative{
			Summary:   "Anomalous signal behavior detected. " + base,
			RootCause: "Signal pattern deviates from the trained baseline without matching a known fault signature.",
			RecommendedActions: []string{
				"Review the flagged intervals on " + p.AssetID,
				"Correlate with switching logs and weather events",
			},
		}
	}
}
