package main

import (
	"log"
	"time"

	config "github.com/anjiri1684/quiz_audio/configs"
	"github.com/anjiri1684/quiz_audio/database"
	"github.com/anjiri1684/quiz_audio/handlers"
	"github.com/anjiri1684/quiz_audio/jobs"
	"github.com/anjiri1684/quiz_audio/middleware"
	"github.com/anjiri1684/quiz_audio/routes"
	"github.com/anjiri1684/quiz_audio/services"
	"github.com/anjiri1684/quiz_audio/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	settings := config.Load()

	store := storage.NewAudioStore(settings.AudioDir)
	if err := store.Init(); err != nil {
		log.Fatalf("🔥 Failed to create audio directory %s: %v", settings.AudioDir, err)
	}
	log.Printf("✅ Audio directory ready at %s", store.Dir)

	if settings.CloudinaryURL != "" {
		mirror, err := services.NewCloudinaryMirror(settings.CloudinaryURL, settings.CloudinaryFolder)
		if err != nil {
			log.Printf("🔥 Cloudinary mirror disabled: %v", err)
		} else {
			store.SetMirror(mirror)
			log.Println("✅ Audio files will be mirrored to Cloudinary.")
		}
	}

	repo := database.NewQuizRepository()
	synthesis := &services.SynthesisService{
		Synth:    services.NewGoogleTTS(settings.TTSBaseURL),
		Store:    store,
		Repo:     repo,
		Language: settings.TTSLanguage,
		Workers:  settings.SynthesisWorkers,
		Timeout:  settings.SynthesisTimeout,
	}

	c, err := jobs.Schedule(settings.RetrySchedule, synthesis, 10*time.Minute)
	if err != nil {
		log.Fatalf("🔥 Invalid AUDIO_RETRY_SCHEDULE %q: %v", settings.RetrySchedule, err)
	}
	if c != nil {
		c.Start()
		defer c.Stop()
		log.Println("✅ Cron job for missing audio scheduled successfully.")
	}

	// Quiz creation waits for every synthesis job before it responds.
	app := fiber.New(fiber.Config{
		AppName:       settings.AppName,
		CaseSensitive: true,
		StrictRouting: true,
		BodyLimit:     20 * 1024 * 1024,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  settings.SynthesisTimeout + 30*time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  middleware.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
		MaxAge:       86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	h := handlers.NewQuizHandler(repo, store, synthesis)
	routes.PublicRoutes(app)
	routes.QuizRoutes(app, h)
	routes.AudioRoutes(app, h)

	log.Printf("✅ Server is running on port %s", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
