package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/users"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

const usage = `usage: admin [flags] grant <email>

Promotes an existing account to the back office.
`

func main() {
	role := flag.String("role", "admin", "admin or super_admin")
	perms := flag.String("perms", "", "comma separated permission list")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 || flag.Arg(0) != "grant" {
		flag.Usage()
		os.Exit(2)
	}
	_ = godotenv.Load()

	if err := grant(flag.Arg(1), *role, splitPerms(*perms)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func grant(email, role string, perms []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "email", email)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	repo := users.NewRepository(dbClient.DB())
	user, err := repo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no account for %s", email)
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if _, err := repo.FindAdmin(ctx, user.ID); err == nil {
		return fmt.Errorf("%s is already an admin", email)
	}

	admin, err := repo.GrantAdmin(ctx, user.ID, role, perms)
	if err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"user_id":    user.ID.String(),
		"admin_role": admin.Role,
	}), "admin granted")
	return nil
}

func splitPerms(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
