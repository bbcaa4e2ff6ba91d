package services

import (
	"context"
	"errors"
	"log"
	"runtime"
	"time"

	"github.com/anjiri1684/quiz_audio/database"
	"github.com/anjiri1684/quiz_audio/models"
	"github.com/anjiri1684/quiz_audio/storage"
	"golang.org/x/sync/errgroup"
)

var errAudioAlreadyAttached = errors.New("audio already attached")

// SynthesisService fans synthesis jobs out over a bounded pool of workers and
// attaches the resulting audio to the quiz repository.
type SynthesisService struct {
	Synth    Synthesizer
	Store    *storage.AudioStore
	Repo     *database.QuizRepository
	Language string
	Workers  int
	Timeout  time.Duration
}

type synthesisJob struct {
	quizID string
	index  int
	text   string
}

// saveFunc persists one job's audio and returns the stored reference.
type saveFunc func(job synthesisJob, audio []byte) (string, error)

// Run synthesizes every question of a freshly created quiz. It returns only
// after all jobs have finished, with one result per question in question order.
// Failed jobs leave their question without audio and are reported as failed.
func (s *SynthesisService) Run(ctx context.Context, quizID string, questions []models.Question) []models.SynthesisResult {
	start := time.Now()
	jobs := make([]synthesisJob, len(questions))
	for i, q := range questions {
		jobs[i] = synthesisJob{quizID: quizID, index: i, text: q.QuestionText}
	}

	// Audio is held in memory until every job has finished.
	pending := make([][]byte, len(jobs))
	results := s.runJobs(ctx, jobs, func(job synthesisJob, audio []byte) (string, error) {
		pending[job.index] = audio
		return "", nil
	})

	for i, result := range results {
		if !result.OK() {
			continue
		}
		ref, err := s.attachIfMissing(jobs[i], pending[i])
		switch {
		case errors.Is(err, errAudioAlreadyAttached):
			log.Printf("Quiz %s question %d already has audio %s, keeping it.", quizID, i, ref)
		case err != nil:
			log.Printf("🔥 Error saving audio for quiz %s question %d: %v", quizID, i, err)
			results[i] = failed(i, err)
			continue
		}
		results[i].AudioFile = ref
	}

	log.Printf("Total audio generation for quiz %s took %s (%d questions).", quizID, time.Since(start), len(questions))
	return results
}

// RetryMissing re-synthesizes every question that still has no audio. A
// question that received audio in the meantime, e.g. by upload, is left alone.
func (s *SynthesisService) RetryMissing(ctx context.Context) int {
	missing := s.Repo.MissingAudio()
	if len(missing) == 0 {
		return 0
	}

	jobs := make([]synthesisJob, len(missing))
	for i, m := range missing {
		jobs[i] = synthesisJob{quizID: m.QuizID, index: m.QuestionIndex, text: m.QuestionText}
	}

	results := s.runJobs(ctx, jobs, s.attachIfMissing)

	recovered := 0
	for _, r := range results {
		if r.OK() {
			recovered++
		}
	}
	log.Printf("Audio retry recovered %d of %d missing files across %d quizzes.", recovered, len(missing), s.Repo.Count())
	return recovered
}

// attachIfMissing writes audio for a question that has none yet, under the
// quiz lock. If the question already has audio, its reference is returned
// together with errAudioAlreadyAttached and nothing is written.
func (s *SynthesisService) attachIfMissing(job synthesisJob, audio []byte) (string, error) {
	var ref string
	err := s.Repo.UpdateQuestion(job.quizID, job.index, func(q *models.Question) error {
		if q.HasAudio() {
			ref = q.AudioReference
			return errAudioAlreadyAttached
		}
		var err error
		ref, err = s.Store.Write(job.quizID, job.index, audio)
		if err != nil {
			return err
		}
		q.AudioReference = ref
		return nil
	})
	return ref, err
}

func (s *SynthesisService) runJobs(ctx context.Context, jobs []synthesisJob, save saveFunc) []models.SynthesisResult {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Each job owns exactly one slot, so completion order cannot reorder results.
	results := make([]models.SynthesisResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = s.runJob(ctx, job, save)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *SynthesisService) runJob(ctx context.Context, job synthesisJob, save saveFunc) models.SynthesisResult {
	start := time.Now()
	jobCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	audio, err := s.synthesize(jobCtx, job.text)
	if err != nil {
		log.Printf("🔥 Error generating audio for quiz %s question %d: %v", job.quizID, job.index, err)
		return failed(job.index, err)
	}

	ref, err := save(job, audio)
	if err != nil {
		if !errors.Is(err, errAudioAlreadyAttached) {
			log.Printf("🔥 Error saving audio for quiz %s question %d: %v", job.quizID, job.index, err)
		}
		return failed(job.index, err)
	}

	log.Printf("Audio generation for quiz %s question %d took %s.", job.quizID, job.index, time.Since(start))
	return models.SynthesisResult{QuestionIndex: job.index, Status: models.SynthesisReady, AudioFile: ref}
}

// synthesize gives up when ctx ends even if the engine ignores cancellation.
func (s *SynthesisService) synthesize(ctx context.Context, text string) ([]byte, error) {
	type outcome struct {
		audio []byte
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		audio, err := s.Synth.Synthesize(ctx, text, s.Language)
		done <- outcome{audio, err}
	}()

	select {
	case o := <-done:
		return o.audio, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func failed(index int, err error) models.SynthesisResult {
	return models.SynthesisResult{QuestionIndex: index, Status: models.SynthesisFailed, Error: err.Error()}
}
