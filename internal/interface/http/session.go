package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
	"github.com/jinford/srt-generator/internal/platform/container"
)

const (
	sessionCookieName = "srt_session"
	sessionContextKey = "session"
)

// DefaultSessionTTL は無操作のセッションを破棄するまでの時間
const DefaultSessionTTL = 60 * time.Minute

// lastUpload は再生成で再利用する直前のアップロード
type lastUpload struct {
	Source   domain.SourceLocation
	Filename string
}

type sessionEntry struct {
	*container.Session

	mu       sync.Mutex
	upload   *lastUpload
	lastSeen time.Time
}

func (e *sessionEntry) setUpload(source domain.SourceLocation, filename string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upload = &lastUpload{Source: source, Filename: filename}
}

func (e *sessionEntry) previousUpload() *lastUpload {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.upload == nil {
		return nil
	}
	u := *e.upload
	return &u
}

// sessionStore はクッキーごとのセッションを保持する。
// セッションは初回アクセス時に作成され、TTL を過ぎると破棄される。
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	create   func(ctx context.Context) (*container.Session, error)
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, create func(ctx context.Context) (*container.Session, error)) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		create:   create,
		now:      time.Now,
	}
}

// lookup は有効なセッションを返す。期限切れのセッションはここで破棄する。
func (s *sessionStore) lookup(id string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, key)
		}
	}

	entry, ok := s.sessions[id]
	if !ok {
		return nil
	}
	entry.lastSeen = now
	return entry
}

func (s *sessionStore) add(session *container.Session) *sessionEntry {
	entry := &sessionEntry{Session: session}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.lastSeen = s.now()
	s.sessions[session.ID] = entry
	return entry
}

// Middleware はクッキーからセッションを解決し、無ければ作成してクッキーを発行する
func (s *sessionStore) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var entry *sessionEntry
		if id, err := c.Cookie(sessionCookieName); err == nil && id != "" {
			entry = s.lookup(id)
		}
		if entry == nil {
			session, err := s.create(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusServiceUnavailable, err)
				c.Abort()
				return
			}
			entry = s.add(session)
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookieName, session.ID, int(s.ttl.Seconds()), "/", "", false, true)
		}

		c.Set(sessionContextKey, entry)
		c.Next()
	}
}

func currentSession(c *gin.Context) *sessionEntry {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	entry, _ := v.(*sessionEntry)
	return entry
}
