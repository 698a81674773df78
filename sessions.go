package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionCookie = "session"

type ctxKey int

const ownerKey ctxKey = iota

// SessionManager hands each browser an owner identity via a signed
// cookie and mirrors it as a serialized record on disk, which is what
// the reaper scans for expiry.
type SessionManager struct {
	dir    string
	ttl    time.Duration
	secret []byte
}

type sessionRecord struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSessionManager(dir string, ttl time.Duration) (*SessionManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// Secret is per-boot: a restart invalidates outstanding cookies,
	// which just mints visitors a fresh owner id.
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return &SessionManager{dir: dir, ttl: ttl, secret: secret}, nil
}

// Middleware ensures every request carries an owner id, creating one
// (cookie + on-disk record) when absent or invalid.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := m.sessionFrom(r)
		if !ok {
			var err error
			sid, err = m.establish(w)
			if err != nil {
				http.Error(w, "could not establish session", http.StatusInternalServerError)
				return
			}
		} else {
			m.touch(sid)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, sid)))
	})
}

// ownerID returns the session identity placed by Middleware.
func ownerID(r *http.Request) string {
	sid, _ := r.Context().Value(ownerKey).(string)
	return sid
}

func (m *SessionManager) sessionFrom(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	tok, err := jwt.Parse(c.Value, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sid, _ := claims["sid"].(string)
	return sid, sid != ""
}

func (m *SessionManager) establish(w http.ResponseWriter) (string, error) {
	sid := uuid.New().String()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sid,
		"iat": time.Now().Unix(),
	}).SignedString(m.secret)
	if err != nil {
		return "", err
	}

	rec := sessionRecord{SessionID: sid, CreatedAt: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(m.recordPath(sid), data, 0o644); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

// touch refreshes the record's mtime so active sessions outlive the
// reaper's mtime scan.
func (m *SessionManager) touch(sid string) {
	now := time.Now()
	if err := os.Chtimes(m.recordPath(sid), now, now); err != nil && !os.IsNotExist(err) {
		log.Printf("Session %s: touch failed: %v", sid, err)
	}
}

func (m *SessionManager) recordPath(sid string) string {
	return filepath.Join(m.dir, fmt.Sprintf("sess_%s", sid))
}

// readSessionRecord extracts the owner id from a serialized record,
// used by the reaper to locate the owner's working directory.
func readSessionRecord(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", err
	}
	return rec.SessionID, nil
}
