package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/example/scibot/internal/config"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ErrNoVerdict is returned when the model reply holds neither a score nor a yes/no answer.
var ErrNoVerdict = errors.New("ai: no verdict in model reply")

const systemPrompt = "You grade answers in a science tutoring bot. " +
	"Compare the learner's answer with the expected answer and reply with a single number " +
	"between 0 and 1, where 1 means fully correct and 0 means wrong. Reply with the number only."

var scorePattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Evaluator grades free-text answers into review qualities
type Evaluator struct {
	client openai.Client
	model  openai.ChatModel
	logger *log.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an evaluator from the OpenAI configuration
func NewEvaluator(cfg config.OpenAIConfig, opts ...Option) (*Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	e := &Evaluator{
		client: openai.NewClient(reqOpts...),
		model:  openai.ChatModel(cfg.Model),
		logger: log.Default(),
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Grade asks the model how well answer matches expected and returns a
// quality in [0, 1].
func (e *Evaluator) Grade(ctx context.Context, question, expected, answer string) (float64, error) {
	prompt := fmt.Sprintf("Question: %s\nExpected answer: %s\nLearner's answer: %s", question, expected, answer)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to grade answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no response choices returned: %w", ErrNoVerdict)
	}

	reply := resp.Choices[0].Message.Content
	quality, err := ParseVerdict(reply)
	if err != nil {
		e.logger.Warn("unparseable grading reply", "reply", reply)
		return 0, err
	}
	e.logger.Debug("answer graded", "quality", quality)
	return quality, nil
}

// ParseVerdict turns a model reply into a quality. The first number in
// [0, 1] wins; otherwise a yes or no answer maps to 1 or 0.
func ParseVerdict(reply string) (float64, error) {
	text := strings.ToLower(strings.TrimSpace(reply))

	for _, m := range scorePattern.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
		if err == nil && v >= 0 && v <= 1 {
			return v, nil
		}
	}

	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		switch w {
		case "yes", "correct", "да", "верно":
			return 1, nil
		case "no", "incorrect", "wrong", "нет", "неверно":
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNoVerdict, reply)
}
