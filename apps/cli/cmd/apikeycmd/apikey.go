package apikeycmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/repairhero/platform/domains/apikeys/be/repo"
	"github.com/repairhero/platform/domains/apikeys/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Command groups API key helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "API key utilities (create/list/revoke)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(revokeCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL   string
		tenantSub     string
		roleName      string
		name          string
		environment   string
		expires       string
		notes         string
		integrationID string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key bound to a tenant and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, svc, tenants, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			input := service.CreateInput{
				Name:        name,
				RoleName:    roleName,
				Environment: environment,
				Notes:       notes,
			}

			if expires != "" {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("parse --expires (RFC 3339 expected): %w", err)
				}
				input.ExpiresAt = &t
			}

			if integrationID != "" {
				id, err := uuid.Parse(integrationID)
				if err != nil {
					return fmt.Errorf("parse --integration: %w", err)
				}
				input.IntegrationID = &id
			}

			created, err := svc.Create(ctx, tenant.TenantID, input)
			if err != nil {
				return fmt.Errorf("create api key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API key created: %s (%s)\n", created.Name, created.ID)
			fmt.Fprintf(out, "Role: %s  Tenant: %s\n", created.RoleName, tenant.Subdomain)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %s\n", created.Plaintext)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store this key now. It cannot be shown again.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain the key belongs to")
	c.Flags().StringVar(&roleName, "role", "", "Role name granting the key's permissions")
	c.Flags().StringVar(&name, "name", "", "Key name for operator display")
	c.Flags().StringVar(&environment, "environment", platformauth.KeyEnvironmentLive, "Key environment: live or test")
	c.Flags().StringVar(&expires, "expires", "", "Optional expiration (RFC 3339)")
	c.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	c.Flags().StringVar(&integrationID, "integration", "", "Optional integration id (UUID)")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("role")
	_ = c.MarkFlagRequired("name")

	return c
}

func listCommand() *cobra.Command {
	var (
		databaseURL string
		tenantSub   string
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's API keys (metadata only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, svc, tenants, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			keys, err := svc.List(ctx, tenant.TenantID)
			if err != nil {
				return fmt.Errorf("list api keys: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPREFIX\tROLE\tACTIVE\tUSES\tLAST USED")
			for _, key := range keys {
				lastUsed := "never"
				if key.LastUsedAt != nil {
					lastUsed = key.LastUsedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%s\n",
					key.ID, key.Name, key.Prefix, key.RoleName, key.IsActive, key.UsageCount, lastUsed)
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain")

	_ = c.MarkFlagRequired("tenant")

	return c
}

func revokeCommand() *cobra.Command {
	var (
		databaseURL string
		tenantSub   string
		keyID       string
	)

	c := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate an API key (the record is kept for audit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, svc, tenants, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			id, err := uuid.Parse(keyID)
			if err != nil {
				return fmt.Errorf("parse --key-id: %w", err)
			}

			if err := svc.Revoke(ctx, tenant.TenantID, id); err != nil {
				return fmt.Errorf("revoke api key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API key %s revoked\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain")
	c.Flags().StringVar(&keyID, "key-id", "", "Key id (UUID)")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("key-id")

	return c
}

func buildService(ctx context.Context, databaseURL string) (*pgxpool.Pool, service.Service, *persistence.TenantStore, error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init pool: %w", err)
	}

	keys, err := persistence.NewAPIKeyStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, nil, err
	}
	roles, err := persistence.NewRoleStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, nil, err
	}
	tenants, err := persistence.NewTenantStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, nil, err
	}

	return pool, service.New(repo.NewPostgresRepository(keys, roles)), tenants, nil
}
