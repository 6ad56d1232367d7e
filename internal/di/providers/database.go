package providers

import (
	"context"
	"fmt"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/logger"
	"github.com/apphub/apphub-server/internal/store"
	"github.com/apphub/apphub-server/internal/store/badgerstore"
	"github.com/apphub/apphub-server/internal/store/firebasestore"
	"github.com/apphub/apphub-server/internal/store/sqlstore"
	"github.com/apphub/apphub-server/internal/store/supabasestore"
	"github.com/apphub/apphub-server/internal/supabase"
)

// StoreHandle wraps the selected store backend with shutdown capability.
type StoreHandle struct {
	store.Store
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// FirebaseAppHandle holds the Firebase app shared by the store and the token verifier.
type FirebaseAppHandle struct {
	*firebase.App
}

// ProvideFirebaseApp initializes the Firebase Admin SDK. It is only invoked
// when BMS_DATABASE=firebase.
func ProvideFirebaseApp(i do.Injector) (*FirebaseAppHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	app, err := firebasestore.NewApp(context.Background(), cfg.Firebase.ProjectID, cfg.Firebase.ServiceAccount)
	if err != nil {
		return nil, err
	}
	return &FirebaseAppHandle{App: app}, nil
}

// ProvideStore opens the backend named by BMS_DATABASE.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx := context.Background()
	storeLog := log.Component("store")
	defaults := store.StaticAppConfig(cfg.Features.ShowRegisterTab)

	var (
		st  store.Store
		err error
	)
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		dbPath := filepath.Join(cfg.Storage.DataPath, "badger")
		st, err = badgerstore.Open(dbPath, storeLog, badgerstore.WithDefaultAppConfig(defaults))
		if err == nil {
			log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", dbPath)
		}

	case config.BackendSQLite:
		dbPath := filepath.Join(cfg.Storage.DataPath, "apphub.db")
		st, err = sqlstore.OpenSQLite(ctx, dbPath, storeLog, sqlstore.WithDefaultAppConfig(defaults))
		if err == nil {
			log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", dbPath)
		}

	case config.BackendPostgres:
		st, err = sqlstore.OpenPostgres(ctx, cfg.Storage.DatabaseURL, storeLog, sqlstore.WithDefaultAppConfig(defaults))
		if err == nil {
			log.Info("Database initialized", "backend", cfg.Storage.Backend)
		}

	case config.BackendSupabase:
		var client *supabase.Client
		client, err = supabase.New(supabase.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.Key})
		if err == nil {
			st = supabasestore.New(client, storeLog, supabasestore.WithDefaultAppConfig(defaults))
			log.Info("Database initialized", "backend", cfg.Storage.Backend, "url", cfg.Supabase.URL)
		}

	case config.BackendFirebase:
		var app *FirebaseAppHandle
		app, err = do.Invoke[*FirebaseAppHandle](i)
		if err == nil {
			st, err = firebasestore.Open(ctx, app.App, storeLog, firebasestore.WithDefaultAppConfig(defaults))
		}
		if err == nil {
			log.Info("Database initialized", "backend", cfg.Storage.Backend, "project", cfg.Firebase.ProjectID)
		}

	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	return &StoreHandle{Store: st, Backend: cfg.Storage.Backend}, nil
}
