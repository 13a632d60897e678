package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nlq/internal/intent"
)

const systemPromptTemplate = `You are a parser that converts analytics questions into a structured intent JSON object. You do not answer questions; you only parse them.

Output a single JSON object with these fields:
- "intent_type": "snapshot" for point-in-time totals, "trend" for values over time
- "metric": the measure being asked for, as free text taken from the question
- "group_by": optional list of dimensions to break the result down by
- "time_dimension": optional {"dimension": ..., "granularity": "day"|"week"|"month"|"quarter"|"year"}, required for trends
- "time_range": optional {"window": <named window>} or {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}, required for trends
- "filters": optional list of {"dimension": ..., "operator": "equals"|"not_equals"|"in"|"not_in"|"contains", "value": string or list of strings}
- "limit": optional positive integer when the question asks for a top-N

Use only vocabulary from the catalog below for metrics, dimensions, and time windows. If the question does not mention a field, omit it entirely. Never invent values. Output ONLY the JSON object, with no commentary.

CATALOG:
%s`

// Extractor prompts an LLM to parse a natural-language question into a raw
// intent. The catalog travels as opaque prompt text; the extractor itself
// never resolves terms.
type Extractor struct {
	client      Client
	catalogText string
	logger      *zap.Logger
}

// New creates an Extractor. catalogText is the rendered catalog vocabulary
// embedded verbatim in every prompt.
func New(client Client, catalogText string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{client: client, catalogText: catalogText, logger: logger}
}

// Extract parses a question into an untrusted raw intent. Call failures and
// timeouts get a single verbatim retry; malformed output never does, since
// resending an identical prompt after a parse failure rarely changes the
// answer and always doubles the cost.
func (e *Extractor) Extract(ctx context.Context, query string) (intent.RawIntent, error) {
	system := fmt.Sprintf(systemPromptTemplate, e.catalogText)
	e.logger.Info("intent extraction started",
		zap.String("query", query),
		zap.String("prompt_hash", promptHash(system+query)))

	output, err := e.complete(ctx, system, query)
	if err != nil {
		return nil, err
	}

	raw, err := parseIntentJSON(output)
	if err != nil {
		e.logger.Warn("intent extraction produced unparseable output",
			zap.String("query", query), zap.Error(err))
		return nil, err
	}

	e.logger.Info("intent extraction completed",
		zap.String("query", query), zap.Int("fields", len(raw)))
	return raw, nil
}

// complete calls the LLM, retrying exactly once on transient failure.
func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		output, err := e.client.CompleteWithSystem(ctx, system, user)
		if err != nil {
			lastErr = classifyCallError(err)
			e.logger.Warn("llm call failed",
				zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if strings.TrimSpace(output) == "" {
			return "", &EmptyOutputError{}
		}
		return output, nil
	}
	return "", lastErr
}

func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &CallError{Err: err}
}

// parseIntentJSON extracts the first JSON object from LLM output, tolerating
// markdown fences and trailing prose.
func parseIntentJSON(output string) (intent.RawIntent, error) {
	start := strings.Index(output, "{")
	if start == -1 {
		return nil, &MalformedOutputError{
			Output: output,
			Err:    fmt.Errorf("no JSON object found"),
		}
	}

	dec := json.NewDecoder(strings.NewReader(output[start:]))
	var raw intent.RawIntent
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedOutputError{Output: output, Err: err}
	}
	return raw, nil
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:12]
}
