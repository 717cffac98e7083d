package providers

import (
	"github.com/samber/do/v2"

	"github.com/notedly/notedly-server/internal/auth"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/logger"
)

// AuthKey is the PASETO symmetric key loaded from disk.
type AuthKey []byte

// ProvideAuthKey loads or generates the access token key and stores it on
// the config for downstream providers.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.Auth.AccessTokenKey = key

	log.Debug("Auth key loaded")
	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(key, cfg.Auth.AccessTokenDuration)
}
