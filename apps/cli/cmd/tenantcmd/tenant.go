package tenantcmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/repairhero/platform/domains/tenants/be/repo"
	"github.com/repairhero/platform/domains/tenants/be/service"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant registry utilities (create/list)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		subdomain   string
		displayName string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a new tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := svc.Create(ctx, service.CreateInput{
				Subdomain:   subdomain,
				DisplayName: displayName,
			})
			if err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant created: %s (%s)\n", created.Subdomain, created.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&subdomain, "subdomain", "", "Tenant subdomain (DNS label, immutable)")
	c.Flags().StringVar(&displayName, "display-name", "", "Human-readable tenant name")

	_ = c.MarkFlagRequired("subdomain")

	return c
}

func listCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := buildService(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			tenants, err := svc.List(ctx)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBDOMAIN\tNAME\tCREATED")
			for _, t := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Subdomain, t.DisplayName, t.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	return c
}

func buildService(ctx context.Context, databaseURL string) (service.Service, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewTenantStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init tenant store: %w", err)
	}

	return service.New(repo.NewPostgresRepository(store)), func() { persistence.ClosePool(pool) }, nil
}
