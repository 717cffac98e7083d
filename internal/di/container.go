// Package di provides dependency injection configuration for the Notedly server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/notedly/notedly-server/internal/auth"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/di/providers"
	"github.com/notedly/notedly-server/internal/enhance"
	"github.com/notedly/notedly-server/internal/logger"
	"github.com/notedly/notedly-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database and storage
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideBlobStore)

	// Outbound clients
	do.Provide(injector, providers.ProvideEnhanceClient)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideNoteService)
	do.Provide(injector, providers.ProvideCategoryService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.BlobStoreHandle](injector)
	_ = do.MustInvoke[*enhance.Client](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.NoteService](injector)
	_ = do.MustInvoke[*service.CategoryService](injector)

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
