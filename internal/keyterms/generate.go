package keyterms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/services/llm"
)

const systemPrompt = "You are a helpful assistant that generates keyterm lists for transcription accuracy."

const promptTemplate = `You are assisting with audio transcription accuracy by generating a keyterm list for the Deepgram Nova-3 keyterm prompting feature.

TASK:
Research the following show or movie and create a focused list of keyterms that will improve transcription accuracy:
%s
%s
KEYTERMS TO IDENTIFY (priority order):
1. Character names that sound like common words or might be misheard
2. Fictional location and place names
3. Unique terminology, jargon, or invented words specific to the show
4. Multi-word phrases commonly used together
5. Organization, company, or group names
6. Important object or artifact names
7. Uncommon character names (alien, fantasy, or sci-fi names)

FORMATTING RULES:
- Proper nouns keep their natural capitalization (Westeros, Dr. Smith)
- Common nouns and technical terms are lowercase (lightsaber, protocol)
- Multi-word phrases keep natural capitalization

AVOID generic common words, words that are rarely misrecognized, and overly broad terms.

QUANTITY LIMIT:
Generate only the 20-50 most critical terms. The request has a 500 token limit, so prefer terms with the highest risk of transcription errors.

OUTPUT FORMAT:
Provide ONLY a comma-separated list of keyterms. Do not include headers, notes, or explanations.

Example:
Khaleesi,Westeros,Valyrian,Dothraki,Jon Snow,Daenerys Targaryen,White Walkers,Iron Throne,dragonglass`

// Completer is the LLM capability the generator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
	Model() string
}

// Generation is the outcome of one keyterm request.
type Generation struct {
	Keyterms      []string
	Model         string
	TokenCount    int
	EstimatedCost float64
}

// Estimate is a pre-request cost projection.
type Estimate struct {
	Model         string
	Tokens        int
	EstimatedCost float64
}

// Generator builds keyterm lists from media metadata.
type Generator struct {
	client Completer
	logger *slog.Logger
}

// NewGenerator returns a generator backed by client.
func NewGenerator(client Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{client: client, logger: logging.NewComponentLogger(logger, "keyterms")}
}

// Generate asks the LLM for keyterms describing c. When preserve is set the
// existing terms are appended to the result if the model dropped them.
func (g *Generator) Generate(ctx context.Context, c media.Classification, existing []string, preserve bool) (Generation, error) {
	if g == nil || g.client == nil {
		return Generation{}, llm.ErrNotConfigured
	}
	if c.Category() == media.CategoryUnknown {
		return Generation{}, errors.New("generate keyterms: media has no show or movie name")
	}
	prompt := BuildPrompt(c, existing, preserve)
	completion, err := g.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return Generation{}, fmt.Errorf("generate keyterms: %w", err)
	}

	terms := ParseResponse(completion.Content)
	if preserve && len(existing) > 0 {
		terms = Dedupe(append(terms, existing...))
	}
	if len(terms) == 0 {
		return Generation{}, errors.New("generate keyterms: model returned no terms")
	}

	model := completion.Model
	if model == "" {
		model = g.client.Model()
	}
	gen := Generation{
		Keyterms:   terms,
		Model:      model,
		TokenCount: completion.TotalTokens(),
	}
	if completion.PromptTokens > 0 || completion.CompletionTokens > 0 {
		gen.EstimatedCost = UsageCost(model, completion.PromptTokens, completion.CompletionTokens)
	} else {
		gen.EstimatedCost = Cost(model, gen.TokenCount)
	}

	g.logger.Info("keyterms generated",
		logging.String("name", media.DisplayName(c)),
		logging.Int("keyterms", len(terms)),
		logging.Int("tokens", gen.TokenCount),
		logging.Float64("estimated_cost", gen.EstimatedCost),
		logging.String(logging.FieldEventType, "keyterms_generated"),
	)
	return gen, nil
}

// Estimate projects the token count and cost of a request without sending
// it: roughly four characters per prompt token plus 200 response tokens.
func (g *Generator) Estimate(c media.Classification) Estimate {
	model := ""
	if g != nil && g.client != nil {
		model = g.client.Model()
	}
	tokens := len(BuildPrompt(c, nil, false))/4 + 200
	return Estimate{Model: model, Tokens: tokens, EstimatedCost: Cost(model, tokens)}
}

// BuildPrompt renders the user prompt for c.
func BuildPrompt(c media.Classification, existing []string, preserve bool) string {
	return fmt.Sprintf(promptTemplate, describe(c), existingSection(existing, preserve))
}

func describe(c media.Classification) string {
	name := media.DisplayName(c)
	episode, ok := c.(media.TVEpisode)
	if !ok {
		return fmt.Sprintf("Movie: %q", name)
	}
	out := fmt.Sprintf("Show: %q", name)
	if !episode.Numbered {
		return out
	}
	detail := fmt.Sprintf("Season %d, Episode %d", episode.Season, episode.Episode)
	if episode.Title != "" {
		detail += fmt.Sprintf(": %q", episode.Title)
	}
	return out + "\nContext: " + detail
}

func existingSection(existing []string, preserve bool) string {
	if len(existing) == 0 {
		return ""
	}
	list := strings.Join(existing, ", ")
	if preserve {
		return "\nEXISTING KEYTERMS TO PRESERVE:\n" +
			"The following keyterms are already defined and must be included in your response:\n" +
			list + "\n\nAdd new keyterms that complement these existing ones.\n"
	}
	return "\nREFERENCE KEYTERMS:\n" +
		"The following keyterms were previously used (for reference only):\n" +
		list + "\n\nUse them as inspiration but generate a fresh, optimized list.\n"
}

// ParseResponse splits a comma-separated model reply into trimmed, unique
// (case-insensitive) terms.
func ParseResponse(content string) []string {
	content = llm.StripCodeFence(content)
	content = strings.NewReplacer("\r\n", ",", "\n", ",").Replace(content)
	return Dedupe(strings.Split(content, ","))
}
