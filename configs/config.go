package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

func Config(key string) string {
	loadEnvOnce.Do(func() {
		err := godotenv.Load(".env")
		if err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

// Settings is the resolved process configuration.
type Settings struct {
	AppName          string
	Port             string
	AudioDir         string
	TTSLanguage      string
	TTSBaseURL       string
	SynthesisWorkers int
	SynthesisTimeout time.Duration
	RetrySchedule    string
	CloudinaryURL    string
	CloudinaryFolder string
}

func Load() Settings {
	s := Settings{
		AppName:          getEnv("APP_NAME", "Arabic Quiz Audio"),
		Port:             getEnv("PORT", "8080"),
		AudioDir:         getEnv("AUDIO_DIR", "/app/audio"),
		TTSLanguage:      getEnv("TTS_LANGUAGE", "ar"),
		TTSBaseURL:       getEnv("TTS_BASE_URL", "https://translate.google.com"),
		SynthesisWorkers: getEnvInt("SYNTHESIS_WORKERS", runtime.NumCPU()),
		SynthesisTimeout: getEnvDuration("SYNTHESIS_TIMEOUT", 30*time.Second),
		RetrySchedule:    "*/5 * * * *",
		CloudinaryURL:    Config("CLOUDINARY_URL"),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "quiz_audio"),
	}
	// An explicitly empty schedule turns the retry job off.
	if v, ok := os.LookupEnv("AUDIO_RETRY_SCHEDULE"); ok {
		s.RetrySchedule = v
	}
	return s
}

func getEnv(key, def string) string {
	if v := Config(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := Config(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := Config(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
