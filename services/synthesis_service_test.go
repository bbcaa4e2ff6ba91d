package services

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anjiri1684/quiz_audio/database"
	"github.com/anjiri1684/quiz_audio/models"
	"github.com/anjiri1684/quiz_audio/storage"
)

// scriptedSynth returns "<language>:<text>" after the delay configured for that
// text, fails for texts in failing, and blocks until ctx ends for texts in hang.
type scriptedSynth struct {
	delays  map[string]time.Duration
	failing map[string]bool
	hang    map[string]bool
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
}

func (s *scriptedSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.hang[text] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case <-time.After(s.delays[text]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.failing[text] {
		return nil, fmt.Errorf("%w: engine refused %q", ErrSynthesis, text)
	}
	return []byte(language + ":" + text), nil
}

func newTestService(t *testing.T, synth Synthesizer) (*SynthesisService, *database.QuizRepository, *storage.AudioStore) {
	t.Helper()
	repo := database.NewQuizRepository()
	store := storage.NewAudioStore(t.TempDir())
	return &SynthesisService{
		Synth:    synth,
		Store:    store,
		Repo:     repo,
		Language: "ar",
		Workers:  4,
		Timeout:  2 * time.Second,
	}, repo, store
}

func questionsFor(texts ...string) []models.Question {
	out := make([]models.Question, len(texts))
	for i, text := range texts {
		out[i] = models.Question{QuestionText: text, Choices: []string{"a", "b"}, CorrectAnswer: "a"}
	}
	return out
}

func TestRunKeepsPositionsUnderReverseCompletion(t *testing.T) {
	texts := []string{"q0", "q1", "q2", "q3", "q4", "q5"}
	delays := map[string]time.Duration{}
	for i, text := range texts {
		delays[text] = time.Duration(len(texts)-i) * 20 * time.Millisecond
	}
	svc, repo, store := newTestService(t, &scriptedSynth{delays: delays})
	svc.Workers = len(texts)

	questions := questionsFor(texts...)
	id := repo.Create("Order", questions)
	results := svc.Run(context.Background(), id, questions)

	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	quiz, _ := repo.Get(id)
	for i, r := range results {
		if r.QuestionIndex != i || !r.OK() {
			t.Fatalf("result %d: %+v", i, r)
		}
		if quiz.Questions[i].AudioReference != storage.FileName(id, i) {
			t.Fatalf("question %d got reference %q", i, quiz.Questions[i].AudioReference)
		}
		data, err := store.Read(id, i)
		if err != nil || !bytes.Equal(data, []byte("ar:"+texts[i])) {
			t.Fatalf("question %d has wrong audio %q (%v)", i, data, err)
		}
	}
}

func TestRunReportsFailuresWithoutAbortingSiblings(t *testing.T) {
	synth := &scriptedSynth{failing: map[string]bool{"bad": true}}
	svc, repo, store := newTestService(t, synth)

	questions := questionsFor("good", "bad", "fine")
	id := repo.Create("Partial", questions)
	results := svc.Run(context.Background(), id, questions)

	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Fatalf("unexpected statuses: %+v", results)
	}
	if results[1].Status != models.SynthesisFailed || results[1].Error == "" {
		t.Fatalf("failure must carry a status and message: %+v", results[1])
	}
	quiz, _ := repo.Get(id)
	if quiz.Questions[1].HasAudio() || store.Exists(id, 1) {
		t.Fatalf("failed question must stay without audio")
	}
	if !quiz.Questions[0].HasAudio() || !quiz.Questions[2].HasAudio() {
		t.Fatalf("successful siblings lost their audio: %+v", quiz.Questions)
	}
}

func TestRunTimesOutHungJob(t *testing.T) {
	synth := &scriptedSynth{hang: map[string]bool{"stuck": true}}
	svc, repo, _ := newTestService(t, synth)
	svc.Timeout = 50 * time.Millisecond

	questions := questionsFor("stuck", "ok")
	id := repo.Create("Timeout", questions)

	start := time.Now()
	results := svc.Run(context.Background(), id, questions)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("batch waited %s for a hung job", elapsed)
	}
	if results[0].OK() || !results[1].OK() {
		t.Fatalf("unexpected statuses: %+v", results)
	}
}

type deafSynth struct{ release chan struct{} }

func (d *deafSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	<-d.release
	return []byte("late"), nil
}

func TestRunTimesOutEngineIgnoringContext(t *testing.T) {
	synth := &deafSynth{release: make(chan struct{})}
	defer close(synth.release)
	svc, repo, _ := newTestService(t, synth)
	svc.Timeout = 50 * time.Millisecond

	questions := questionsFor("deaf")
	id := repo.Create("Deaf", questions)
	results := svc.Run(context.Background(), id, questions)
	if results[0].OK() || results[0].Error != context.DeadlineExceeded.Error() {
		t.Fatalf("expected deadline failure, got %+v", results[0])
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	texts := make([]string, 12)
	delays := map[string]time.Duration{}
	for i := range texts {
		texts[i] = fmt.Sprintf("q%d", i)
		delays[texts[i]] = 20 * time.Millisecond
	}
	synth := &scriptedSynth{delays: delays}
	svc, repo, _ := newTestService(t, synth)
	svc.Workers = 3

	questions := questionsFor(texts...)
	id := repo.Create("Bounded", questions)
	svc.Run(context.Background(), id, questions)

	if got := synth.calls.Load(); got != int32(len(texts)) {
		t.Fatalf("expected %d calls, got %d", len(texts), got)
	}
	if peak := synth.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 concurrent jobs, saw %d", peak)
	}
}

func TestRunEmptyQuiz(t *testing.T) {
	svc, repo, _ := newTestService(t, &scriptedSynth{})
	id := repo.Create("Empty", nil)
	if results := svc.Run(context.Background(), id, nil); len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestRetryMissingRecoversFailedQuestions(t *testing.T) {
	synth := &scriptedSynth{failing: map[string]bool{"flaky": true}}
	svc, repo, store := newTestService(t, synth)

	questions := questionsFor("stable", "flaky")
	id := repo.Create("Retry", questions)
	svc.Run(context.Background(), id, questions)

	synth.failing = nil
	if n := svc.RetryMissing(context.Background()); n != 1 {
		t.Fatalf("expected one recovered question, got %d", n)
	}
	quiz, _ := repo.Get(id)
	if quiz.Questions[1].AudioReference != storage.FileName(id, 1) || !store.Exists(id, 1) {
		t.Fatalf("retry did not attach audio: %+v", quiz.Questions[1])
	}
	if n := svc.RetryMissing(context.Background()); n != 0 {
		t.Fatalf("expected nothing left to retry, got %d", n)
	}
}

func TestRetryMissingDoesNotOverwriteUpload(t *testing.T) {
	synth := &scriptedSynth{}
	svc, repo, store := newTestService(t, synth)

	id := repo.Create("Upload", questionsFor("q0"))
	// Simulates an upload landing after the retry job took its snapshot.
	svc.Synth = SynthesizerFunc(func(ctx context.Context, text, language string) ([]byte, error) {
		_ = repo.UpdateQuestion(id, 0, func(q *models.Question) error {
			ref, err := store.Write(id, 0, []byte("uploaded"))
			q.AudioReference = ref
			return err
		})
		return []byte("synthesized"), nil
	})

	if n := svc.RetryMissing(context.Background()); n != 0 {
		t.Fatalf("expected upload to win, got %d recovered", n)
	}
	data, _ := store.Read(id, 0)
	if string(data) != "uploaded" {
		t.Fatalf("uploaded audio was overwritten: %q", data)
	}
}

func TestRunKeepsUploadMadeDuringSynthesis(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc, repo, store := newTestService(t, SynthesizerFunc(func(ctx context.Context, text, language string) ([]byte, error) {
		close(started)
		<-release
		return []byte("synthesized"), nil
	}))

	questions := questionsFor("q0")
	id := repo.Create("Upload", questions)

	done := make(chan []models.SynthesisResult, 1)
	go func() { done <- svc.Run(context.Background(), id, questions) }()

	<-started
	err := repo.UpdateQuestion(id, 0, func(q *models.Question) error {
		ref, err := store.Write(id, 0, []byte("uploaded"))
		q.AudioReference = ref
		return err
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	close(release)
	results := <-done

	if !results[0].OK() || results[0].AudioFile != storage.FileName(id, 0) {
		t.Fatalf("expected ready result keeping the upload, got %+v", results[0])
	}
	data, _ := store.Read(id, 0)
	if string(data) != "uploaded" {
		t.Fatalf("uploaded audio was overwritten: %q", data)
	}
	quiz, _ := repo.Get(id)
	if quiz.Questions[0].AudioReference != storage.FileName(id, 0) {
		t.Fatalf("unexpected reference %q", quiz.Questions[0].AudioReference)
	}
}
