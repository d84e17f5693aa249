package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"qahub/internal/domain"
)

const (
	DefaultTopK            = 3
	DefaultThreshold       = 1.5
	DefaultMaxOutputTokens = 150

	// RefusalMessage is returned when no indexed document is close enough to the question.
	RefusalMessage = "I don't have information about that topic in my documents."
	// UnknownPhrase is what the generator is told to answer when the context is insufficient.
	UnknownPhrase = "I don't know."
)

// Policy holds the retrieval gate parameters. Threshold is on the scale of
// the vector store's distance metric.
type Policy struct {
	TopK            int
	Threshold       float64
	MaxOutputTokens int
}

// DefaultPolicy returns k=3, threshold=1.5, 150 output tokens.
func DefaultPolicy() Policy {
	return Policy{TopK: DefaultTopK, Threshold: DefaultThreshold, MaxOutputTokens: DefaultMaxOutputTokens}
}

// Decision is the result of applying the relevance gate to retrieved matches.
type Decision struct {
	Answerable bool
	Prompt     string
	Sources    []string
}

// Decide applies the relevance gate. The gate keys off the minimum distance
// across all matches.
func (p Policy) Decide(question string, matches []domain.Match) Decision {
	if len(matches) == 0 {
		return Decision{}
	}
	best := matches[0].Distance
	for _, m := range matches[1:] {
		if m.Distance < best {
			best = m.Distance
		}
	}
	if best > p.Threshold {
		return Decision{}
	}
	sources := make([]string, len(matches))
	for i, m := range matches {
		sources[i] = m.Document.Text
	}
	return Decision{Answerable: true, Prompt: BuildPrompt(question, sources), Sources: sources}
}

// BuildPrompt wraps the documents and the question in the grounding template.
func BuildPrompt(question string, docs []string) string {
	var b strings.Builder
	b.WriteString("Context information:\n")
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(doc)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nInstructions: Answer ONLY using the information provided above. ")
	b.WriteString(`If the answer is not in the context, respond with "` + UnknownPhrase + `" `)
	b.WriteString("Do not add information from outside the context.\n\nAnswer:")
	return b.String()
}

// Answerer runs one retrieval, the gate and, when it passes, one generation.
type Answerer struct {
	generator domain.Generator
	policy    Policy
}

func NewAnswerer(generator domain.Generator, policy Policy) *Answerer {
	if policy.TopK <= 0 {
		policy.TopK = DefaultTopK
	}
	if policy.MaxOutputTokens <= 0 {
		policy.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return &Answerer{generator: generator, policy: policy}
}

// Policy returns the effective gate parameters.
func (a *Answerer) Policy() Policy { return a.policy }

// Ask answers question against index. Retrieval and generation failures are
// returned to the caller; a failed gate is not an error.
func (a *Answerer) Ask(ctx context.Context, index domain.Index, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}
	if index == nil {
		return refusal(), nil
	}
	matches, err := index.Query(ctx, question, a.policy.TopK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}
	d := a.policy.Decide(question, matches)
	if !d.Answerable {
		return refusal(), nil
	}
	out, err := a.generator.Generate(ctx, d.Prompt, a.policy.MaxOutputTokens)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate: %w", err)
	}
	return domain.Answer{Text: strings.TrimSpace(out), Sources: d.Sources}, nil
}

func refusal() domain.Answer {
	return domain.Answer{Text: RefusalMessage, Sources: []string{}, Refused: true}
}
