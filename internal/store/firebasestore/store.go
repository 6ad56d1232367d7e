// Package firebasestore implements store.Store on Cloud Firestore, with
// accounts held by Firebase Auth.
//
// Document layout:
//
//	users/{uid}/categories/{categoryId}
//	users/{uid}/apps/{appId}          categoryId field links the category
//	users/{uid}/favorites/{appId}
//	users/{uid}/history/{ulid}
//	config/appConfig
package firebasestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/apphub/apphub-server/internal/store"
)

var _ store.Store = (*Store)(nil)

const (
	collUsers      = "users"
	collCategories = "categories"
	collApps       = "apps"
	collFavorites  = "favorites"
	collHistory    = "history"
	collConfig     = "config"
	docAppConfig   = "appConfig"
)

// recentPageSize is how many history documents GetRecentApps reads per query.
const recentPageSize = 500

// Store provides Firestore-backed persistence.
type Store struct {
	fs       *firestore.Client
	dir      Directory
	logger   *slog.Logger
	defaults store.DefaultAppConfig
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultAppConfig sets the AppConfig written on first read.
func WithDefaultAppConfig(fn store.DefaultAppConfig) Option {
	return func(s *Store) { s.defaults = fn }
}

// NewApp initializes the Firebase app. serviceAccount may be inline JSON,
// a file path, or empty to use application default credentials.
func NewApp(ctx context.Context, projectID, serviceAccount string) (*firebase.App, error) {
	var opts []option.ClientOption
	switch sa := strings.TrimSpace(serviceAccount); {
	case sa == "":
	case strings.HasPrefix(sa, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(sa)))
	default:
		if _, err := os.Stat(sa); err != nil {
			return nil, fmt.Errorf("firebase service account: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(sa))
	}

	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

// Open builds a Store from an initialized Firebase app.
func Open(ctx context.Context, app *firebase.App, logger *slog.Logger, opts ...Option) (*Store, error) {
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return New(fs, NewAuthDirectory(authClient), logger, opts...), nil
}

// New wraps an existing Firestore client and account directory.
func New(fs *firestore.Client, dir Directory, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		fs:       fs,
		dir:      dir,
		logger:   logger,
		defaults: store.StaticAppConfig(true),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reads the config document; a missing document still proves connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.configRef().Get(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("ping firestore: %w", err)
	}
	return nil
}

// Close releases the Firestore connection.
func (s *Store) Close() error {
	s.logger.Info("closing firestore client")
	return s.fs.Close()
}

func (s *Store) user(uid string) *firestore.DocumentRef {
	return s.fs.Collection(collUsers).Doc(uid)
}

func (s *Store) categories(uid string) *firestore.CollectionRef {
	return s.user(uid).Collection(collCategories)
}

func (s *Store) apps(uid string) *firestore.CollectionRef {
	return s.user(uid).Collection(collApps)
}

func (s *Store) favorites(uid string) *firestore.CollectionRef {
	return s.user(uid).Collection(collFavorites)
}

func (s *Store) history(uid string) *firestore.CollectionRef {
	return s.user(uid).Collection(collHistory)
}

func (s *Store) configRef() *firestore.DocumentRef {
	return s.fs.Collection(collConfig).Doc(docAppConfig)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// notFound maps a missing document to store.ErrNotFound and wraps anything else.
func notFound(err error, kind, id string) error {
	if isNotFound(err) {
		return store.ErrNotFound.WithMessagef("%s %s not found", kind, id).WithCause(err)
	}
	return fmt.Errorf("firestore %s %s: %w", kind, id, err)
}

func millis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
