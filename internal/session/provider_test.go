package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCreator struct {
	calls atomic.Int32
	id    string
	err   error
}

func (c *stubCreator) CreateSession(ctx context.Context) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return c.id, nil
}

// memoryStore はテスト用のインメモリ永続化層です。
type memoryStore struct {
	id      string
	saveErr error
}

func (s *memoryStore) Load(r *http.Request) (string, bool) {
	return s.id, s.id != ""
}

func (s *memoryStore) Save(w http.ResponseWriter, r *http.Request, id string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.id = id
	return nil
}

func TestSessionIDReturnsPersistedWithoutCreating(t *testing.T) {
	creator := &stubCreator{id: "fresh"}
	provider := NewProvider(creator, &memoryStore{id: "cached-id"})

	id, err := provider.SessionID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err)
	assert.Equal(t, "cached-id", id)
	assert.Zero(t, creator.calls.Load(), "永続化済みなのに発行リクエストが発生した")
}

func TestSessionIDCreatesAndPersistsOnce(t *testing.T) {
	creator := &stubCreator{id: "anon-123"}
	store := &memoryStore{}
	provider := NewProvider(creator, store)

	id, err := provider.SessionID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "anon-123", id)
	assert.Equal(t, "anon-123", store.id)

	// 二度目は永続化済みの値が返り、再発行は起きません。
	id, err = provider.SessionID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "anon-123", id)
	assert.Equal(t, int32(1), creator.calls.Load())
}

func TestSessionIDCreateFailureReturnsErrNotReady(t *testing.T) {
	creator := &stubCreator{err: errors.New("backend down")}
	provider := NewProvider(creator, &memoryStore{})

	id, err := provider.SessionID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, id, "発行失敗時に空でない識別子が返った")
}

func TestSessionIDToleratesPersistFailure(t *testing.T) {
	creator := &stubCreator{id: "anon-456"}
	provider := NewProvider(creator, &memoryStore{saveErr: errors.New("cookie too large")})

	id, err := provider.SessionID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err, "永続化失敗はこのリクエストの処理を止めない")
	assert.Equal(t, "anon-456", id)
}

func TestCookieStoreSaveThenLoad(t *testing.T) {
	store := NewCookieStore("0123456789abcdef0123456789abcdef", "0123456789abcdef", false)

	w := httptest.NewRecorder()
	require.NoError(t, store.Save(w, httptest.NewRequest(http.MethodGet, "/", nil), "anon-789"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	id, ok := store.Load(r)
	require.True(t, ok)
	assert.Equal(t, "anon-789", id)
}

func TestCookieStoreLoadRejectsTamperedCookie(t *testing.T) {
	store := NewCookieStore("0123456789abcdef0123456789abcdef", "0123456789abcdef", false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionName, Value: "forged"})

	_, ok := store.Load(r)
	assert.False(t, ok, "改ざんされた Cookie から識別子が読み出された")
}

func TestQuotaIncrementAndDayRollover(t *testing.T) {
	store := NewCookieStore("0123456789abcdef0123456789abcdef", "0123456789abcdef", false)
	day1 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, 0, store.QuotaUsed(r, day1))

	w := httptest.NewRecorder()
	used, err := store.IncrementQuota(w, r, day1)
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r2.AddCookie(c)
	}
	assert.Equal(t, 1, store.QuotaUsed(r2, day1))

	// 日付が変わればカウンターは 0 にリセットされます。
	day2 := day1.Add(24 * time.Hour)
	assert.Equal(t, 0, store.QuotaUsed(r2, day2))

	w2 := httptest.NewRecorder()
	used, err = store.IncrementQuota(w2, r2, day2)
	require.NoError(t, err)
	assert.Equal(t, 1, used, "翌日の加算が前日の値を引き継いだ")
}
