package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/scibot/internal/database"
	"github.com/example/scibot/pkg/models"
)

// QuestionType represents different types of questions
type QuestionType string

const (
	// MultipleChoice asks which concept a description belongs to
	MultipleChoice QuestionType = "multiple_choice"
	// TextInput asks the learner to explain a concept in their own words
	TextInput QuestionType = "text_input"
)

const optionCount = 4

// Source provides the learner's knowledge a quiz is built from
type Source interface {
	Due(ctx context.Context, learnerID uuid.UUID, limit int) ([]models.KnowledgeItem, error)
	Knowledge(ctx context.Context, learnerID uuid.UUID) ([]models.KnowledgeItem, error)
}

// Question represents a single quiz question
type Question struct {
	ConceptID int64        `json:"concept_id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Options   []string     `json:"options,omitempty"`  // concept names, multiple choice only
	Expected  string       `json:"-"`                 // reference answer, text input only
}

// Module builds quizzes from due concepts
type Module struct {
	source Source
	mu     sync.Mutex
	rnd    *rand.Rand
}

// New creates a quiz module; seed drives question and option shuffling.
func New(source Source, seed int64) *Module {
	return &Module{source: source, rnd: rand.New(rand.NewSource(seed))}
}

// Create builds up to count questions from the learner's most urgent due
// concepts. A multiple choice question falls back to text input when the
// concept has no usable description or the learner tracks too few concepts
// to offer alternatives.
func (m *Module) Create(ctx context.Context, learnerID uuid.UUID, count int, questionType QuestionType) ([]Question, error) {
	if questionType != MultipleChoice && questionType != TextInput {
		return nil, fmt.Errorf("unknown question type %q", questionType)
	}

	due, err := m.source.Due(ctx, learnerID, count)
	if err != nil {
		return nil, err
	}

	var all []models.KnowledgeItem
	if questionType == MultipleChoice && len(due) > 0 {
		if all, err = m.source.Knowledge(ctx, learnerID); err != nil {
			return nil, err
		}
	}

	questions := make([]Question, 0, len(due))
	for _, item := range due {
		if questionType == MultipleChoice && hasDescription(item) && len(all) > 1 {
			questions = append(questions, m.multipleChoice(item, all))
			continue
		}
		questions = append(questions, textInput(item))
	}
	return questions, nil
}

// Score grades a multiple choice answer: 1 when choice names the concept, 0 otherwise.
func Score(concept *models.Concept, choice string) float64 {
	if strings.EqualFold(strings.TrimSpace(choice), concept.Name) {
		return 1
	}
	return 0
}

func (m *Module) multipleChoice(item models.KnowledgeItem, all []models.KnowledgeItem) Question {
	m.mu.Lock()
	defer m.mu.Unlock()

	others := make([]string, 0, len(all))
	for _, other := range all {
		if other.ConceptID != item.ConceptID {
			others = append(others, other.ConceptName)
		}
	}
	m.rnd.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})
	if len(others) > optionCount-1 {
		others = others[:optionCount-1]
	}

	options := append(others, item.ConceptName)
	m.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		ConceptID: item.ConceptID,
		Type:      MultipleChoice,
		Prompt:    "Which concept matches this description? " + item.ConceptDescription,
		Options:   options,
	}
}

func textInput(item models.KnowledgeItem) Question {
	q := Question{
		ConceptID: item.ConceptID,
		Type:      TextInput,
		Prompt:    fmt.Sprintf("Explain %q in your own words.", item.ConceptName),
	}
	if hasDescription(item) {
		q.Expected = item.ConceptDescription
	}
	return q
}

func hasDescription(item models.KnowledgeItem) bool {
	d := strings.TrimSpace(item.ConceptDescription)
	return d != "" && d != database.DefaultConceptDescription
}
