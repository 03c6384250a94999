package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultPollInterval ジョブステータスの問い合わせ間隔（実測 3〜4 秒に合わせる）
	DefaultPollInterval = 3 * time.Second
	// DefaultHTTPTimeout 生成バックエンドの応答を考慮したタイムアウト
	DefaultHTTPTimeout = 60 * time.Second
	// DefaultEntryDelay ウィザード開始時の演出用ディレイ（UX ペーシング）
	DefaultEntryDelay = 1200 * time.Millisecond
	// DefaultProbeDelay おとり要素の描画判定までの待機時間
	DefaultProbeDelay = 150 * time.Millisecond
	// DefaultDailyQuota セッションあたりの一日の生成回数上限
	DefaultDailyQuota = 10
	// DefaultRateLimit IP あたりの毎分リクエスト数上限
	DefaultRateLimit = 60
)

// Config は環境変数から読み込まれたアプリケーションの全設定を保持します。
type Config struct {
	ServiceURL string
	Port       string

	// ProphesyBaseURL は生成ジョブを受け付ける AI バックエンドのベース URL です。
	ProphesyBaseURL string
	// ProphesyToken はバックエンドへ渡す Bearer トークンです。（空の場合はヘッダーを付与しない）
	ProphesyToken string
	// GrimoireAdminKey は記事管理エンドポイント用の静的シークレットです。
	// 空の場合はリクエストヘッダーからの持ち回りのみ許可します。
	GrimoireAdminKey string

	PollInterval time.Duration
	HTTPTimeout  time.Duration
	EntryDelay   time.Duration
	ProbeDelay   time.Duration

	// ProbeDecoyURL は広告ブロック検知に使用するおとりリソースの URL です。
	ProbeDecoyURL string

	DailyQuota int
	RateLimit  int

	SlackWebhookURL string

	// SessionSecret はセッション Cookie の HMAC 署名用シークレットキーです。
	SessionSecret string
	// SessionEncryptKey はセッション Cookie の AES 暗号化用シークレットキーです。
	// 16, 24, 32 バイトのいずれかである必要があります。
	SessionEncryptKey string

	ShutdownTimeout time.Duration
}

// LoadConfig は環境変数から設定を読み込み、Config 構造体を生成します。
func LoadConfig() *Config {
	return &Config{
		ServiceURL:       getEnv("SERVICE_URL", "http://localhost:8080"),
		Port:             getEnv("PORT", "8080"),
		ProphesyBaseURL:  getEnv("PROPHESY_API_URL", ""),
		ProphesyToken:    getEnv("PROPHESY_API_TOKEN", ""),
		GrimoireAdminKey: getEnv("GRIMOIRE_ADMIN_KEY", ""),

		PollInterval: getEnvDuration("POLL_INTERVAL", DefaultPollInterval),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		EntryDelay:   getEnvDuration("ENTRY_DELAY", DefaultEntryDelay),
		ProbeDelay:   getEnvDuration("PROBE_DELAY", DefaultProbeDelay),

		ProbeDecoyURL: getEnv("PROBE_DECOY_URL", "https://pagead2.googlesyndication.com/pagead/js/adsbygoogle.js"),

		DailyQuota: getEnvInt("DAILY_QUOTA", DefaultDailyQuota),
		RateLimit:  getEnvInt("RATE_LIMIT", DefaultRateLimit),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionEncryptKey: getEnv("SESSION_ENCRYPT_KEY", ""),

		ShutdownTimeout: 15 * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
