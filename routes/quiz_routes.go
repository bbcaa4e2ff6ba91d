package routes

import (
	"github.com/anjiri1684/quiz_audio/handlers"
	"github.com/gofiber/fiber/v2"
)

func QuizRoutes(app *fiber.App, h *handlers.QuizHandler) {
	app.Post("/create-quiz/", h.CreateQuiz)
	app.Get("/quizzes/:quiz_id", h.GetQuiz)
}

func AudioRoutes(app *fiber.App, h *handlers.QuizHandler) {
	app.Get("/play-audio/:quiz_id/:question_index", h.PlayAudio)
	app.Post("/upload-audio/:quiz_id/:question_index", h.UploadAudio)
	app.Get("/audio/:filename", h.ServeAudioFile)
}
