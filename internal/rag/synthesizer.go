package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/document"
	"regdocs-rag/internal/llm"
)

const (
	defaultContextBudget     = 3000
	defaultGenerationTimeout = 60 * time.Second
	answerTemperature        = 0.2
)

const systemPrompt = "You answer questions about ISO and IEC medical device standards and regulations. " +
	"Answer using only the numbered context passages below. If the context does not contain enough " +
	"information to answer the question, say so plainly. Never invent requirements, clause numbers or " +
	"document titles that are not in the context. Cite the passages you rely on by their number and " +
	"document title."

// Generator produces a chat completion.
type Generator interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Synthesizer generates grounded answers from retrieved candidates.
type Synthesizer struct {
	generator     Generator
	contextBudget int
	timeout       time.Duration
}

// NewSynthesizer creates a synthesizer. contextBudget is in estimated
// tokens; zero values fall back to the defaults.
func NewSynthesizer(generator Generator, contextBudget int, timeout time.Duration) *Synthesizer {
	if contextBudget <= 0 {
		contextBudget = defaultContextBudget
	}
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &Synthesizer{generator: generator, contextBudget: contextBudget, timeout: timeout}
}

// Select returns the leading candidates that fit the context budget. The
// first candidate is always selected; selection stops at the first
// candidate that does not fit, so lower-ranked chunks are dropped first.
func (s *Synthesizer) Select(candidates []Candidate) []Candidate {
	used := 0
	for i, c := range candidates {
		cost := document.EstimateTokens(contextBlock(i+1, c))
		if i > 0 && used+cost > s.contextBudget {
			return candidates[:i]
		}
		used += cost
	}
	return candidates
}

// Messages builds the prompt for question over the given context.
func (s *Synthesizer) Messages(question string, sources []Candidate) []llm.Message {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n\n")
	for i, c := range sources {
		b.WriteString(contextBlock(i+1, c))
		b.WriteString("\n\n")
	}
	b.WriteString("Answer:")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// Answer makes one generation call for question. The sources of the answer
// are the candidates that were placed in the prompt.
func (s *Synthesizer) Answer(ctx context.Context, question string, candidates []Candidate) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	sources := s.Select(candidates)
	messages := s.Messages(question, sources)

	logger.InfoContext(ctx, "sending request to LLM",
		"candidates", len(candidates),
		"sources", len(sources),
		"user_message_length", len(messages[1].Content),
	)
	logger.DebugContext(ctx, "LLM messages", "system_prompt", messages[0].Content, "user_message", messages[1].Content)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.ChatWithMessages(genCtx, messages, llm.ChatParams{Temperature: answerTemperature})
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded)
		logger.ErrorContext(ctx, "failed to get LLM response", "timeout", timeout, "error", err)
		return Answer{}, &GenerationError{Timeout: timeout, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, &GenerationError{Err: fmt.Errorf("empty response from generation provider")}
	}

	logger.InfoContext(ctx, "received LLM response", "answer_length", len(text))
	return Answer{Question: question, Text: strings.TrimSpace(text), Sources: sources}, nil
}

// contextBlock renders one numbered context passage.
func contextBlock(n int, c Candidate) string {
	header := fmt.Sprintf("[%d] %s", n, c.Title)
	if section := c.Section(); section != "" {
		header += " | " + section
	}
	if c.Source != "" {
		header += " (" + c.Source + ")"
	}
	return header + "\n" + strings.TrimSpace(c.Text)
}
