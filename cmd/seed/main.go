// seed inserts a dev organization, an admin user, a data source pointing
// back at the metadata database, and one sample query.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/biexec/core/config"
	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/infrastructure/postgres"
	"github.com/biexec/core/internal/usecase"
)

const (
	seedOrgName     = "Acme Analytics"
	seedEmail       = "admin@acme.test"
	seedPassword    = "seed-password-please-change"
	seedDisplayName = "Seed Admin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: int32(cfg.DBMaxConns), MinConns: int32(cfg.DBMinConns), ConnLifetimeMin: cfg.DBConnLifetimeMin,
	})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("sealer: %v", err)
	}

	orgRepo := postgres.NewOrganizationRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	dsRepo := postgres.NewDataSourceRepository(pool)
	queryRepo := postgres.NewQueryRepository(pool)

	authUsecase := usecase.NewAuthUsecase(orgRepo, userRepo, []byte(cfg.JWTSecret), time.Duration(cfg.JWTExpirationHours)*time.Hour)
	dsUsecase := usecase.NewDataSourceUsecase(dsRepo, sealer, connector.NewRegistry(slog.Default()))
	queryUsecase := usecase.NewQueryUsecase(queryRepo, dsRepo)

	user, token, err := authUsecase.Register(ctx, usecase.RegisterInput{
		OrgName: seedOrgName, Email: seedEmail, Password: seedPassword, DisplayName: seedDisplayName,
	})
	if err != nil {
		log.Fatalf("register seed user: %v", err)
	}

	ds, err := dsUsecase.CreateDataSource(ctx, usecase.CreateDataSourceInput{
		OrgID: user.OrgID, Name: "metadata-db (self)", Type: domain.DataSourceTypePostgres,
		ConnectionString: cfg.DatabaseURL, CreatedBy: user.ID,
	})
	if err != nil {
		log.Fatalf("create seed data source: %v", err)
	}

	q, err := queryUsecase.CreateQuery(ctx, usecase.SaveQueryInput{
		OrgID: user.OrgID, DataSourceID: ds.ID, Name: "List organizations",
		SQL:            "SELECT id, name, created_at FROM organizations ORDER BY created_at DESC",
		TimeoutSeconds: 30, MaxRows: 1000, CreatedBy: user.ID,
	})
	if err != nil {
		log.Fatalf("create seed query: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Org:        %s (%s)\n", seedOrgName, user.OrgID)
	fmt.Printf("  Admin user: %s\n", seedEmail)
	fmt.Printf("  Data source: %s (%s)\n", ds.Name, ds.ID)
	fmt.Printf("  Sample query: %s (%s)\n", q.Name, q.ID)
	fmt.Println()
	fmt.Println("  Login token (re-fetch via POST /auth/login if it expires):")
	fmt.Printf("    %s\n", token)
	fmt.Println()
	fmt.Println("  Try it:")
	fmt.Printf("    curl -s -X POST http://localhost:8080/runs -H \"Authorization: Bearer %s\" \\\n", token)
	fmt.Printf("      -H 'Content-Type: application/json' -d '{\"query_id\":%q}'\n", q.ID)
}
