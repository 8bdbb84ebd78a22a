package providers

import (
	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/logger"
)

// AuthKey wraps the PASETO key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the PASETO key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Auth.KeyPath)
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded", "token_ttl", cfg.Auth.TokenTTL)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.TokenTTL)
}

// ProvideVerifier provides the bearer token verifier for the configured
// provider.
func ProvideVerifier(i do.Injector) (auth.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](i)

	if cfg.Auth.Provider == config.AuthJWT {
		return auth.NewJWTVerifier(auth.JWTConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		})
	}
	return do.MustInvoke[*auth.TokenService](i), nil
}
