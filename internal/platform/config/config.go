package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings用）
	OpenAI OpenAIConfig

	// ナレッジベース設定
	KnowledgeBase KnowledgeBaseConfig

	// HTTPサーバ設定
	Server ServerConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	MaxRetries         int
}

// KnowledgeBaseConfig はナレッジベースの取り込み・検索設定
type KnowledgeBaseConfig struct {
	// BatchSize は取り込み時の並行Embedding数（1バッチあたりのレコード数）
	BatchSize int
	// MatchThreshold は類似度検索のデフォルト閾値
	MatchThreshold float64
	// TopK は検索結果のデフォルト件数
	TopK int
	// DataDir はナレッジベースJSONファイルの相対パス解決に使うディレクトリ
	DataDir string
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "protocolkb"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "protocolkb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			MaxRetries:         getEnvAsInt("OPENAI_MAX_RETRIES", 5),
		},
		KnowledgeBase: KnowledgeBaseConfig{
			BatchSize:      getEnvAsInt("KB_BATCH_SIZE", 10),
			MatchThreshold: getEnvAsFloat("KB_MATCH_THRESHOLD", 0.7),
			TopK:           getEnvAsInt("KB_TOP_K", 5),
			DataDir:        getEnv("KB_DATA_DIR", "./data/knowledge-base"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("PORT", 8080),
		},
	}

	return cfg, nil
}

// Validate は起動に必須の設定値を検証します。
// 欠落は設定エラーとして即座に失敗させ、リトライや回復は行いません。
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		return fmt.Errorf("OPENAI_EMBEDDING_DIMENSION must be positive: %d", c.OpenAI.EmbeddingDimension)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.KnowledgeBase.BatchSize <= 0 {
		return fmt.Errorf("KB_BATCH_SIZE must be positive: %d", c.KnowledgeBase.BatchSize)
	}
	if c.KnowledgeBase.MatchThreshold < 0 || c.KnowledgeBase.MatchThreshold > 1 {
		return fmt.Errorf("KB_MATCH_THRESHOLD must be in [0, 1]: %f", c.KnowledgeBase.MatchThreshold)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
