package database

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/anjiri1684/quiz_audio/models"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question index out of range")
)

type quizEntry struct {
	mu   sync.Mutex
	quiz models.Quiz
}

// QuizRepository keeps quizzes for the life of the process. Identifiers are
// 1-based indices into an append-only table, so they are never reissued.
type QuizRepository struct {
	mu      sync.RWMutex
	entries []*quizEntry
	now     func() time.Time
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{now: time.Now}
}

// Create reserves the next identifier and stores the quiz in one step.
func (r *QuizRepository) Create(title string, questions []models.Question) string {
	quiz := models.Quiz{Title: title, Questions: questions}.Clone()
	for i := range quiz.Questions {
		quiz.Questions[i].AudioReference = ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	quiz.ID = strconv.Itoa(len(r.entries) + 1)
	quiz.CreatedAt = r.now()
	r.entries = append(r.entries, &quizEntry{quiz: quiz})
	return quiz.ID
}

func (r *QuizRepository) Get(id string) (models.Quiz, error) {
	entry, err := r.entry(id)
	if err != nil {
		return models.Quiz{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.quiz.Clone(), nil
}

func (r *QuizRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// UpdateQuestion runs fn against one question while holding that quiz's lock.
// Changes made by fn are discarded when it returns an error.
func (r *QuizRepository) UpdateQuestion(id string, index int, fn func(q *models.Question) error) error {
	entry, err := r.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if index < 0 || index >= len(entry.quiz.Questions) {
		return ErrQuestionNotFound
	}
	question := entry.quiz.Questions[index].Clone()
	if err := fn(&question); err != nil {
		return err
	}
	entry.quiz.Questions[index] = question
	return nil
}

// MissingAudio identifies a question that has no audio attached yet.
type MissingAudio struct {
	QuizID        string
	QuestionIndex int
	QuestionText  string
}

func (r *QuizRepository) MissingAudio() []MissingAudio {
	r.mu.RLock()
	entries := append([]*quizEntry(nil), r.entries...)
	r.mu.RUnlock()

	var missing []MissingAudio
	for _, entry := range entries {
		entry.mu.Lock()
		for i, q := range entry.quiz.Questions {
			if !q.HasAudio() {
				missing = append(missing, MissingAudio{
					QuizID:        entry.quiz.ID,
					QuestionIndex: i,
					QuestionText:  q.QuestionText,
				})
			}
		}
		entry.mu.Unlock()
	}
	return missing
}

func (r *QuizRepository) entry(id string) (*quizEntry, error) {
	n, err := strconv.Atoi(id)
	if err != nil || strconv.Itoa(n) != id {
		return nil, ErrQuizNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n < 1 || n > len(r.entries) {
		return nil, ErrQuizNotFound
	}
	return r.entries[n-1], nil
}
