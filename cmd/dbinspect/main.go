// Package main prints a summary of the configured AppHub backend and can
// change a user's role without going through the HTTP API.
//
// Flags after "--" are passed to the server configuration loader.
//
// Usage:
//
//	go run ./cmd/dbinspect
//	go run ./cmd/dbinspect -promote usr-abc123
//	go run ./cmd/dbinspect -demote usr-abc123 -- -database sqlite -data-path ./data
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/di/providers"
	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

var (
	promote = flag.String("promote", "", "User ID to grant the ADMIN role")
	demote  = flag.String("demote", "", "User ID to reset to the USER role")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(flag.Args())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideFirebaseApp)
	do.Provide(injector, providers.ProvideStore)
	defer injector.Shutdown()

	st := do.MustInvoke[*providers.StoreHandle](injector)
	ctx := context.Background()

	if err := st.Ping(ctx); err != nil {
		log.Fatalf("Backend %s unreachable: %v", st.Backend, err)
	}

	switch {
	case *promote != "":
		setRole(ctx, st, *promote, domain.RoleAdmin)
	case *demote != "":
		setRole(ctx, st, *demote, domain.RoleUser)
	}

	if err := inspect(ctx, st); err != nil {
		log.Fatalf("Failed to inspect backend: %v", err)
	}
}

func setRole(ctx context.Context, st store.Store, userID string, role domain.Role) {
	u, err := st.UpdateUserRole(ctx, userID, role)
	if err != nil {
		log.Fatalf("Failed to set role of %s: %v", userID, err)
	}
	fmt.Printf("User %s (%s) is now %s\n\n", u.ID, u.Email, u.Role)
}

func inspect(ctx context.Context, st *providers.StoreHandle) error {
	fmt.Println("=== Database Inspection ===")
	fmt.Printf("Backend: %s\n\n", st.Backend)

	cfg, err := st.GetAppConfig(ctx)
	if err != nil {
		return fmt.Errorf("read app config: %w", err)
	}
	fmt.Printf("App config: showRegisterTab=%t (updated %s)\n\n", cfg.ShowRegisterTab, cfg.UpdatedAt.Format("2006-01-02 15:04"))

	users, err := st.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("Users: (none)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSTATUS\tCATEGORIES\tAPPS\tFAVORITES")

	var totalCats, totalApps int
	for _, u := range users {
		cats, err := st.GetCategories(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("list categories of %s: %w", u.ID, err)
		}
		apps := 0
		for _, c := range cats {
			apps += len(c.Apps)
		}
		favs, err := st.GetFavorites(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("list favorites of %s: %w", u.ID, err)
		}

		status := "active"
		if u.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n", u.ID, u.Email, u.Role, status, len(cats), apps, len(favs))

		totalCats += len(cats)
		totalApps += apps
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d users, %d categories, %d apps\n", len(users), totalCats, totalApps)
	return nil
}
