package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/auth"
	"github.com/nimbusworks/workchat/internal/config"
	"github.com/nimbusworks/workchat/pkg/httpext"
)

var accessTokenLifetime = 15 * time.Minute

// AccessClaims is the JWT payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid,omitempty"`
}

// HandleToken implements the token endpoint: password and refresh_token
// grants. The dev server accepts any non-empty username/password pair.
func (s *Server) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode token request")
		httpext.JsonError(w, "invalid_request", http.StatusBadRequest)
		return
	}

	var session Session
	switch req.GrantType {
	case auth.GrantTypePassword:
		if req.Username == "" || req.Password == "" {
			httpext.JsonError(w, "invalid_credentials", http.StatusUnauthorized)
			return
		}
		created, err := s.sessions.Create(r.Context(), req.Username)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session")
			httpext.JsonError(w, "server_error", http.StatusInternalServerError)
			return
		}
		session = created

	case auth.GrantTypeRefresh:
		rotated, ok, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			log.Error().Err(err).Msg("Session refresh failed")
			httpext.JsonError(w, "server_error", http.StatusInternalServerError)
			return
		}
		if !ok {
			log.Warn().Str("remote", r.RemoteAddr).Msg("Refresh attempted with unknown token")
			httpext.JsonError(w, "invalid_grant", http.StatusUnauthorized)
			return
		}
		session = rotated

	default:
		httpext.JsonError(w, "unsupported_grant_type", http.StatusBadRequest)
		return
	}

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        session.ID,
		},
		SessionID: session.ID,
		UserID:    session.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(config.GetJWTSecret())
	if err != nil {
		log.Error().Err(err).Msg("JWT signing failed")
		httpext.JsonError(w, "server_error", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("session_id", session.ID).
		Str("grant_type", req.GrantType).
		Msg("Issued access token")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(auth.TokenResponse{
		AccessToken:  signed,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessTokenLifetime.Seconds()),
		RefreshToken: session.RefreshToken,
	})
}

// validateAccessToken parses and verifies an access token, returning
// its claims.
func validateAccessToken(tokenString string) (*AccessClaims, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return config.GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || claims.SessionID == "" {
		return nil, false
	}
	return claims, true
}
