package providers

import (
	"github.com/samber/do/v2"

	"github.com/notedly/notedly-server/internal/blob"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/logger"
	"github.com/notedly/notedly-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DBPath()
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// BlobStoreHandle wraps the attachment blob store.
type BlobStoreHandle struct {
	*blob.Store
}

// ProvideBlobStore provides local-disk attachment storage.
func ProvideBlobStore(i do.Injector) (*BlobStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	blobs, err := blob.NewStore(cfg.Blob.Path, cfg.Blob.BaseURL)
	if err != nil {
		return nil, err
	}

	log.Info("Attachment storage ready", "path", cfg.Blob.Path)

	return &BlobStoreHandle{Store: blobs}, nil
}
