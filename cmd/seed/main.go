// Package main seeds a backend with a demo account and a handful of
// categories, apps, favorites and access history.
//
// It reads the same configuration as the server, so it seeds whichever
// backend BMS_DATABASE selects. Only backends with local accounts can create
// the demo user; for Firebase and Supabase pass SEED_USER_ID of an existing user.
//
// Usage:
//
//	BMS_DATABASE=local DATA_PATH=~/.apphub go run ./cmd/seed
//	SEED_EMAIL=demo@example.com SEED_PASSWORD=demo-password go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/di/providers"
	domainerrors "github.com/apphub/apphub-server/internal/errors"
	"github.com/apphub/apphub-server/internal/service"
)

type seedApp struct {
	name, url, description string
}

var catalog = []struct {
	category string
	apps     []seedApp
}{
	{"Development", []seedApp{
		{"GitHub", "https://github.com", "Code hosting and review"},
		{"Go Packages", "https://pkg.go.dev", "Go module documentation"},
		{"Sentry", "https://sentry.io", "Error monitoring"},
	}},
	{"Productivity", []seedApp{
		{"Calendar", "https://calendar.google.com", ""},
		{"Notion", "https://notion.so", "Notes and docs"},
	}},
	{"Media", []seedApp{
		{"YouTube", "https://youtube.com", ""},
		{"Spotify", "https://open.spotify.com", "Music streaming"},
	}},
}

func main() {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideFirebaseApp)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideVerifier)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideActivityService)
	defer injector.Shutdown()

	ctx := context.Background()

	userID, err := seedUser(ctx, injector)
	if err != nil {
		log.Fatalf("Failed to prepare seed user: %v", err)
	}

	catalogSvc := do.MustInvoke[*service.CatalogService](injector)
	activitySvc := do.MustInvoke[*service.ActivityService](injector)

	var appIDs []string
	for _, c := range catalog {
		cat, err := catalogSvc.CreateCategory(ctx, userID, service.CreateCategoryRequest{Name: c.category})
		if err != nil {
			log.Fatalf("Failed to create category %q: %v", c.category, err)
		}
		fmt.Printf("Category: %s (%s)\n", cat.Name, cat.ID)

		for _, a := range c.apps {
			app, err := catalogSvc.CreateApp(ctx, userID, cat.ID, service.AppRequest{
				Name:        a.name,
				URL:         a.url,
				Description: a.description,
			})
			if err != nil {
				log.Fatalf("Failed to create app %q: %v", a.name, err)
			}
			appIDs = append(appIDs, app.ID)
			fmt.Printf("  App: %s\n", app.Name)
		}
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	favorites := 0
	for _, appID := range appIDs {
		if rng.IntN(3) == 0 {
			if err := activitySvc.SetFavorite(ctx, userID, appID, true); err != nil {
				log.Printf("Failed to favorite %s: %v", appID, err)
				continue
			}
			favorites++
		}
	}

	accesses := 0
	for range 40 {
		appID := appIDs[rng.IntN(len(appIDs))]
		if err := activitySvc.RecordAccess(ctx, userID, appID); err != nil {
			log.Printf("Failed to record access to %s: %v", appID, err)
			continue
		}
		accesses++
	}

	fmt.Printf("\nSeeded %d apps, %d favorites and %d accesses for user %s\n", len(appIDs), favorites, accesses, userID)
}

// seedUser returns SEED_USER_ID if set, otherwise registers (or logs into)
// the SEED_EMAIL account.
func seedUser(ctx context.Context, injector do.Injector) (string, error) {
	if id := os.Getenv("SEED_USER_ID"); id != "" {
		return id, nil
	}

	authSvc := do.MustInvoke[*service.AuthService](injector)
	if !authSvc.LocalAccounts() {
		return "", errors.New("this backend delegates accounts; set SEED_USER_ID")
	}

	email := getenv("SEED_EMAIL", "demo@example.com")
	password := getenv("SEED_PASSWORD", "demo-password")

	resp, err := authSvc.Register(ctx, service.RegisterRequest{
		Username: "demo",
		Email:    email,
		Password: password,
	})
	if err == nil {
		fmt.Printf("Created user %s (%s, role %s)\n", resp.User.Email, resp.User.ID, resp.User.Role)
		return resp.User.ID, nil
	}

	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != domainerrors.CodeAlreadyExists {
		return "", err
	}

	resp, err = authSvc.Login(ctx, service.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("user %s exists but login failed: %w", email, err)
	}
	fmt.Printf("Using existing user %s (%s)\n", resp.User.Email, resp.User.ID)
	return resp.User.ID, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
