package config

import (
	"fmt"

	"github.com/shouni/netarmor/securenet"
)

// --- バリデーション ---

// ValidateEssentialConfig はアプリケーション実行に不可欠な設定を検証します。
func ValidateEssentialConfig(cfg *Config) error {
	if cfg.ProphesyBaseURL == "" {
		return fmt.Errorf("configuration error: PROPHESY_API_URL is not set")
	}

	if !IsSecureURL(cfg.ProphesyBaseURL) {
		return fmt.Errorf("security error: PROPHESY_API_URL ('%s') must be HTTPS in production", cfg.ProphesyBaseURL)
	}

	if !IsSecureURL(cfg.ServiceURL) {
		return fmt.Errorf("security error: SERVICE_URL ('%s') must be HTTPS in production", cfg.ServiceURL)
	}

	if cfg.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET が設定されていません")
	}

	if cfg.SessionEncryptKey == "" {
		return fmt.Errorf("SESSION_ENCRYPT_KEY が設定されていません。セキュアな運用のために必須です")
	}

	// SessionEncryptKey の長さチェック (AES要件: 16, 24, 32 bytes)
	keyLen := len([]byte(cfg.SessionEncryptKey))
	if keyLen != 16 && keyLen != 24 && keyLen != 32 {
		return fmt.Errorf("SESSION_ENCRYPT_KEY の長さが不正です (%d バイト)。16, 24, 32 バイトのいずれかにしてください", keyLen)
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("configuration error: POLL_INTERVAL must be positive")
	}

	if cfg.DailyQuota <= 0 {
		return fmt.Errorf("configuration error: DAILY_QUOTA must be positive")
	}

	return nil
}

// IsSecureURL は指定された URL が HTTPS または localhost であるか判定します。
func IsSecureURL(rawURL string) bool {
	return securenet.IsSecureServiceURL(rawURL)
}
