package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/prompts"
)

// PoorQualityDisclaimer is prepended to answers produced from poor
// retrieval quality.
const PoorQualityDisclaimer = "I don't have enough information to answer precisely;"

// UnavailableMessage is the canned answer returned when generation cannot
// run at all.
const UnavailableMessage = "The assistant is temporarily unavailable. Please try again in a moment."

// GeneratorConfig tunes answer synthesis.
type GeneratorConfig struct {
	Timeout time.Duration
	Retry   llm.RetryConfig
}

// Generator renders the prompt for the chosen template and produces a
// grounded, cited answer from the surviving passages.
type Generator struct {
	chat     llm.ChatModel
	registry *prompts.Registry
	config   GeneratorConfig
	logger   *logrus.Logger
}

// NewGenerator creates a generator.
func NewGenerator(chat llm.ChatModel, registry *prompts.Registry, config GeneratorConfig, logger *logrus.Logger) *Generator {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{chat: chat, registry: registry, config: config, logger: logger}
}

// Generate produces the final answer and its citation list. The survivors
// are numbered 1..n in the prompt context; citation markers in the model's
// answer are then renumbered to a gapless 1..m over the sources actually
// cited, and the citation list contains exactly those sources in order.
func (g *Generator) Generate(ctx context.Context, state *models.PipelineState) error {
	promptName := g.registry.Resolve(state.Query.PromptName, state.Intent)

	prompt, err := g.registry.Render(promptName, FormatContext(state.Survivors), state.RetrievalQuery)
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	var raw string
	err = llm.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		answer, err := g.chat.Chat(callCtx, prompt, llm.ChatOptions{Temperature: 0.2, MaxTokens: 400})
		if err != nil {
			return err
		}
		if strings.TrimSpace(answer) == "" {
			return llm.Transient(fmt.Errorf("empty answer"))
		}
		raw = answer
		return nil
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	answer, citations := RenumberCitations(strings.TrimSpace(raw), state.Survivors)
	if state.Quality == models.QualityPoor {
		answer = PoorQualityDisclaimer + " " + answer
	}
	state.Answer = answer
	state.Citations = citations
	return nil
}

// FormatContext renders survivors as numbered sources for the prompt.
func FormatContext(survivors []models.Passage) string {
	if len(survivors) == 0 {
		return "(no sources available)"
	}
	var b strings.Builder
	for i, p := range survivors {
		fmt.Fprintf(&b, "[%d] %s (chunk %d)\n%s\n\n", i+1, p.SourcePath, p.ChunkIndex, p.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// RenumberCitations rewrites the [n] markers in answer so the cited sources
// are numbered 1..m in order of first appearance, and returns the matching
// citation list. Markers pointing outside the survivor range are removed.
func RenumberCitations(answer string, survivors []models.Passage) (string, []models.Citation) {
	remap := make(map[int]int) // original number -> new number
	var citations []models.Citation

	out := citationMarker.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil || n < 1 || n > len(survivors) {
			return ""
		}
		newN, ok := remap[n]
		if !ok {
			newN = len(remap) + 1
			remap[n] = newN
			p := survivors[n-1]
			citations = append(citations, models.Citation{
				SourcePath: p.SourcePath,
				ChunkIndex: p.ChunkIndex,
				Score:      p.GradeConfidence,
			})
		}
		return "[" + strconv.Itoa(newN) + "]"
	})

	return collapseSpaces(out), citations
}

// collapseSpaces squeezes runs of spaces left by removed markers. Indented
// lines are left alone; formatted answers (tables, fenced formulas) rely on
// their spacing.
func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "|") {
			continue
		}
		for strings.Contains(line, "  ") {
			line = strings.ReplaceAll(line, "  ", " ")
		}
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
