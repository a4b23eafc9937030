package api

import (
	"context"
	"net/http"

	"github.com/raushankrgupta/virtual-tryon-studio/session"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"go.uber.org/zap"
)

const sessionCookieName = "vton_session"

type sessionContextKey struct{}

// sessionMiddleware resolves the caller's session from its cookie, creating a
// fresh one when the cookie is missing, invalid, or refers to a pruned session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookupSession(r)
		if sess == nil {
			sess = s.sessions.Create()
			token, err := utils.GenerateSessionToken(s.opts.SessionSecret, sess.ID, s.opts.SessionTTL)
			if err != nil {
				s.logger.Error("failed to sign session token", zap.Error(err))
				utils.RespondError(w, nil, "failed to start session", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(s.opts.SessionTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) lookupSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	id, err := utils.ValidateSessionToken(s.opts.SessionSecret, cookie.Value)
	if err != nil {
		return nil
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil
	}
	return sess
}

// GetSessionFromContext returns the session attached by sessionMiddleware.
func GetSessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess
}
