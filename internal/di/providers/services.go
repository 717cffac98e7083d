package providers

import (
	"github.com/samber/do/v2"

	"github.com/notedly/notedly-server/internal/auth"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/enhance"
	"github.com/notedly/notedly-server/internal/logger"
	"github.com/notedly/notedly-server/internal/service"
)

// ProvideEnhanceClient provides the AI enhancement client.
func ProvideEnhanceClient(i do.Injector) (*enhance.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Enhance.Endpoint == "" {
		log.Info("No enhancement endpoint configured; enhance requests will be rejected")
	}

	return enhance.New(enhance.Config{
		Endpoint: cfg.Enhance.Endpoint,
		APIKey:   cfg.Enhance.APIKey,
		Model:    cfg.Enhance.Model,
		Timeout:  cfg.Enhance.Timeout,
		RPS:      cfg.Enhance.RPS,
	}, log.Logger), nil
}

// ProvideAuthService provides the auth service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokens, log.Logger), nil
}

// ProvideNoteService provides the note service.
func ProvideNoteService(i do.Injector) (*service.NoteService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobHandle := do.MustInvoke[*BlobStoreHandle](i)
	enhancer := do.MustInvoke[*enhance.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNoteService(storeHandle.Store, blobHandle.Store, enhancer, log.Logger), nil
}

// ProvideCategoryService provides the category service.
func ProvideCategoryService(i do.Injector) (*service.CategoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCategoryService(storeHandle.Store, log.Logger), nil
}
