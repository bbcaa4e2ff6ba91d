package handlers

import (
	"errors"
	"log"
	"slices"

	"github.com/anjiri1684/quiz_audio/database"
	"github.com/anjiri1684/quiz_audio/models"
	"github.com/anjiri1684/quiz_audio/services"
	"github.com/anjiri1684/quiz_audio/storage"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(QuestionRequest)
		if q.CorrectAnswer != "" && !slices.Contains(q.Choices, q.CorrectAnswer) {
			sl.ReportError(q.CorrectAnswer, "CorrectAnswer", "correct_answer", "in_choices", "")
		}
	}, QuestionRequest{})
	return v
}

type QuestionRequest struct {
	QuestionText  string   `json:"question_text"`
	Choices       []string `json:"choices" validate:"required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

type CreateQuizRequest struct {
	Title     string            `json:"title" validate:"required"`
	Questions []QuestionRequest `json:"questions" validate:"required,dive"`
}

// QuizHandler serves the quiz and audio endpoints.
type QuizHandler struct {
	Repo      *database.QuizRepository
	Store     *storage.AudioStore
	Synthesis *services.SynthesisService
}

func NewQuizHandler(repo *database.QuizRepository, store *storage.AudioStore, synthesis *services.SynthesisService) *QuizHandler {
	return &QuizHandler{Repo: repo, Store: store, Synthesis: synthesis}
}

func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	var req CreateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	questions := make([]models.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = models.Question{
			QuestionText:  q.QuestionText,
			Choices:       q.Choices,
			CorrectAnswer: q.CorrectAnswer,
		}
	}

	quizID := h.Repo.Create(req.Title, questions)
	results := h.Synthesis.Run(c.UserContext(), quizID, questions)

	missing := []int{}
	for _, r := range results {
		if !r.OK() {
			missing = append(missing, r.QuestionIndex)
		}
	}

	message := "Quiz created successfully"
	if len(missing) > 0 {
		message = "Quiz created, but audio generation failed for some questions"
		log.Printf("Quiz %s created with %d question(s) missing audio: %v", quizID, len(missing), missing)
	}

	return c.JSON(fiber.Map{
		"quiz_id":       quizID,
		"message":       message,
		"audio":         results,
		"missing_audio": missing,
	})
}

func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	quiz, err := h.Repo.Get(c.Params("quiz_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Quiz not found")
	}
	return c.JSON(quiz)
}

func (h *QuizHandler) PlayAudio(c *fiber.Ctx) error {
	quizID := c.Params("quiz_id")
	quiz, err := h.Repo.Get(quizID)
	if err != nil {
		log.Printf("Quiz with id %s not found", quizID)
		return fiber.NewError(fiber.StatusNotFound, "Quiz not found")
	}

	index, err := c.ParamsInt("question_index")
	if err != nil || index < 0 || index >= len(quiz.Questions) {
		log.Printf("Question index %s out of range for quiz %s", c.Params("question_index"), quizID)
		return fiber.NewError(fiber.StatusNotFound, "Question index out of range")
	}

	ref := quiz.Questions[index].AudioReference
	if ref == "" {
		return fiber.NewError(fiber.StatusNotFound, "Audio not found")
	}
	return h.sendAudio(c, ref, "Audio not found")
}

func (h *QuizHandler) UploadAudio(c *fiber.Ctx) error {
	quizID := c.Params("quiz_id")
	quiz, err := h.Repo.Get(quizID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Quiz or question not found")
	}
	index, err := c.ParamsInt("question_index")
	if err != nil || index < 0 || index >= len(quiz.Questions) {
		return fiber.NewError(fiber.StatusNotFound, "Quiz or question not found")
	}

	data, err := uploadedAudio(c)
	if err != nil {
		return err
	}

	var ref string
	err = h.Repo.UpdateQuestion(quizID, index, func(q *models.Question) error {
		var err error
		ref, err = h.Store.Write(quizID, index, data)
		if err != nil {
			return err
		}
		q.AudioReference = ref
		return nil
	})
	switch {
	case errors.Is(err, database.ErrQuizNotFound), errors.Is(err, database.ErrQuestionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Quiz or question not found")
	case err != nil:
		log.Printf("🔥 Failed to save uploaded audio for quiz %s question %d: %v", quizID, index, err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save audio file")
	}

	return c.JSON(fiber.Map{
		"message":    "Audio uploaded successfully",
		"audio_file": ref,
	})
}

func (h *QuizHandler) ServeAudioFile(c *fiber.Ctx) error {
	return h.sendAudio(c, c.Params("filename"), "Audio file not found")
}

func (h *QuizHandler) sendAudio(c *fiber.Ctx, name, notFound string) error {
	data, err := h.Store.ReadNamed(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		return fiber.NewError(fiber.StatusBadRequest, "Invalid audio file name")
	case errors.Is(err, storage.ErrAudioNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFound)
	case err != nil:
		log.Printf("🔥 Failed to read audio %s: %v", name, err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read audio file")
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(data)
}
