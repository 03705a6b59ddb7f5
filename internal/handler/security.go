package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/auth"
)

// HeaderAPIKey carries the storefront API key.
const HeaderAPIKey = "api_key"

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, the form API
// keys are stored in.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// requireKey authenticates the request by its API key and checks the key
// was granted scope.
func (h *Handler) requireKey(scope string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		hash := HashAPIKey(h.pepper, key)

		info, err := h.apikeys.FindByHash(r.Context(), hash)
		if err != nil {
			if !errors.Is(err, auth.ErrUnknownKey) {
				zctx.From(r.Context()).Error("Find API key", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error", "")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		if !info.Allows(scope) {
			writeError(w, http.StatusForbidden, "api key lacks scope "+scope, "")
			return
		}
		next(w, r.WithContext(auth.WithKey(r.Context(), info)))
	})
}
