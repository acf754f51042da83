package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Окна неактивности таймированных этапов матча.
	PreparationWindow time.Duration
	GameWindow        time.Duration

	// Сезонный менеджер.
	SeasonWarningWindow time.Duration
	DecayInterval       time.Duration
	SchedulerInterval   time.Duration

	// Redis-кеш таблицы лидеров (пустой адрес выключает кеш).
	RedisAddr     string
	RedisPassword string

	// Kafka-зеркало событий (пустой список брокеров выключает публикацию).
	KafkaBrokers []string
	KafkaTopic   string

	// Cloudflare R2 для доказательств по судейским кейсам
	// (пустой AccountID выключает загрузку).
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	prepWindow, err := durationEnv("MATCH_PREPARATION_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	gameWindow, err := durationEnv("MATCH_GAME_WINDOW", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	warningWindow, err := durationEnv("SEASON_WARNING_WINDOW", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	decayInterval, err := durationEnv("RATING_DECAY_INTERVAL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	schedulerInterval, err := durationEnv("SCHEDULER_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "duel-events"
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		PreparationWindow: prepWindow,
		GameWindow:        gameWindow,

		SeasonWarningWindow: warningWindow,
		DecayInterval:       decayInterval,
		SchedulerInterval:   schedulerInterval,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: brokers,
		KafkaTopic:   topic,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}
