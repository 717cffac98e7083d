package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/notedly/notedly-server/internal/api"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/logger"
	"github.com/notedly/notedly-server/internal/service"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	server *http.Server
	logger *logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	h.logger.Info("Stopping HTTP server")
	return h.server.Shutdown(ctx)
}

// ProvideHTTPServer builds the API server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobHandle := do.MustInvoke[*BlobStoreHandle](i)

	services := &api.Services{
		Auth:     do.MustInvoke[*service.AuthService](i),
		Note:     do.MustInvoke[*service.NoteService](i),
		Category: do.MustInvoke[*service.CategoryService](i),
	}

	apiServer := api.NewServer(cfg, storeHandle.Store, services, blobHandle.Store, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
		}
	}()

	return &HTTPServerHandle{server: srv, logger: log}, nil
}
