package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	sessionName  = "saga-session"
	idKey        = "session_id"
	quotaDayKey  = "quota_day"
	quotaUsedKey = "quota_used"
)

// CookieStore は gorilla/sessions による Cookie ベースの永続化層です。
// セッション識別子と生成回数カウンターのみを保持します。
type CookieStore struct {
	store *sessions.CookieStore
}

// NewCookieStore は署名鍵と暗号鍵から新しいストアを生成します。
func NewCookieStore(authKey, encryptKey string, secure bool) *CookieStore {
	store := sessions.NewCookieStore([]byte(authKey), []byte(encryptKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 365,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieStore{store: store}
}

// Load は永続化済みの識別子を読み出します。
func (s *CookieStore) Load(r *http.Request) (string, bool) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		// 復号できない古い Cookie は未発行として扱い、再発行に委ねます。
		return "", false
	}
	id, ok := sess.Values[idKey].(string)
	return id, ok && id != ""
}

// Save は識別子を Cookie に書き込みます。
func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, id string) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[idKey] = id
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}
	return nil
}

// QuotaUsed は当日の生成回数を返します。日付が変わっていれば 0 です。
func (s *CookieStore) QuotaUsed(r *http.Request, now time.Time) int {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return 0
	}
	day, _ := sess.Values[quotaDayKey].(string)
	if day != now.Format("2006-01-02") {
		return 0
	}
	used, _ := sess.Values[quotaUsedKey].(int)
	return used
}

// IncrementQuota は当日の生成回数を一つ進めて永続化し、更新後の値を返します。
func (s *CookieStore) IncrementQuota(w http.ResponseWriter, r *http.Request, now time.Time) (int, error) {
	sess, _ := s.store.Get(r, sessionName)

	today := now.Format("2006-01-02")
	day, _ := sess.Values[quotaDayKey].(string)
	used, _ := sess.Values[quotaUsedKey].(int)
	if day != today {
		used = 0
	}
	used++

	sess.Values[quotaDayKey] = today
	sess.Values[quotaUsedKey] = used
	if err := sess.Save(r, w); err != nil {
		return used, fmt.Errorf("failed to save quota counter: %w", err)
	}
	return used, nil
}
