// Package extractive implements an offline generator that answers from the
// grounding prompt by picking the context sentence that best overlaps the
// question.
package extractive

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"qahub/internal/answer"
	"qahub/internal/embedding/tfidf"
)

var (
	sentenceRe   = regexp.MustCompile(`(?m)[^.!?\n]+(?:[.!?]+|$)`)
	tokenRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
)

// Generator ranks context sentences by question-token overlap, weighted by
// term frequency across the context. It returns the unknown phrase when no
// sentence shares a token with the question.
type Generator struct {
	stopwords map[string]struct{}
}

func New() *Generator {
	return &Generator{stopwords: tfidf.Stopwords()}
}

// Generate answers the question embedded in prompt using only the context
// embedded in prompt. The answer is cut to maxTokens words.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	question, docs := parsePrompt(prompt)
	best := g.bestSentence(question, docs)
	if best == "" {
		best = answer.UnknownPhrase
	}
	return truncateWords(best, maxTokens), nil
}

func (g *Generator) bestSentence(question string, docs []string) string {
	qTokens := make(map[string]struct{})
	for _, t := range g.tokens(question) {
		qTokens[t] = struct{}{}
	}
	if len(qTokens) == 0 {
		return ""
	}

	var sentences []string
	for _, d := range docs {
		for _, s := range sentenceRe.FindAllString(d, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}

	// normalised term frequencies across the whole context
	freq := map[string]float64{}
	for _, s := range sentences {
		for _, tok := range g.tokens(s) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	best, bestOverlap, bestScore := "", 0, 0.0
	for _, s := range sentences {
		toks := g.tokens(s)
		overlap := 0
		score := 0.0
		seen := make(map[string]struct{})
		for _, tok := range toks {
			if _, ok := qTokens[tok]; ok {
				if _, dup := seen[tok]; !dup {
					overlap++
					seen[tok] = struct{}{}
				}
			}
			if maxF > 0 {
				score += freq[tok] / maxF
			}
		}
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		if overlap > bestOverlap || (overlap == bestOverlap && overlap > 0 && score > bestScore) {
			best, bestOverlap, bestScore = s, overlap, score
		}
	}
	return best
}

func (g *Generator) tokens(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := g.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// parsePrompt recovers the question and the context documents from a prompt
// built by answer.BuildPrompt. Anything else is treated as bare context.
func parsePrompt(prompt string) (string, []string) {
	body := strings.TrimPrefix(prompt, "Context information:\n")
	qStart := strings.LastIndex(body, "\n\nQuestion: ")
	if qStart < 0 {
		return "", []string{body}
	}
	contextPart := body[:qStart]
	question := body[qStart+len("\n\nQuestion: "):]
	if end := strings.Index(question, "\n\nInstructions:"); end >= 0 {
		question = question[:end]
	}

	return question, splitDocuments(contextPart)
}

// splitDocuments cuts the context at the numbered separators in sequence, so
// a document line that merely looks like a header stays in its document.
func splitDocuments(text string) []string {
	rest, ok := strings.CutPrefix(text, "Document 1: ")
	if !ok {
		if text = strings.TrimSpace(text); text == "" {
			return nil
		}
		return []string{text}
	}
	var docs []string
	for n := 2; ; n++ {
		sep := "\n\nDocument " + strconv.Itoa(n) + ": "
		i := strings.Index(rest, sep)
		if i < 0 {
			docs = append(docs, rest)
			break
		}
		docs = append(docs, rest[:i])
		rest = rest[i+len(sep):]
	}
	out := docs[:0]
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func truncateWords(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= maxTokens {
		return s
	}
	return strings.Join(words[:maxTokens], " ")
}
