package rolecmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/repairhero/platform/platform/go/persistence"
)

// Command groups role and permission helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Role and permission utilities (create/grant/assign)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(grantCommand())
	cmd.AddCommand(assignCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		tenantSub   string
		name        string
		description string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a role within a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, stores, err := openStores(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := stores.tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			created, err := stores.roles.CreateRole(ctx, persistence.Role{
				RoleID:      uuid.New(),
				TenantID:    tenant.TenantID,
				Name:        strings.TrimSpace(name),
				Description: description,
			})
			if err != nil {
				return fmt.Errorf("create role: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Role created: %s (%s) in tenant %s\n", created.Name, created.RoleID, tenant.Subdomain)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain the role belongs to")
	c.Flags().StringVar(&name, "name", "", "Role name (unique per tenant)")
	c.Flags().StringVar(&description, "description", "", "Role description")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("name")

	return c
}

func grantCommand() *cobra.Command {
	var (
		databaseURL string
		tenantSub   string
		roleName    string
		permissions []string
	)

	c := &cobra.Command{
		Use:   "grant",
		Short: "Grant permission codes to a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, stores, err := openStores(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := stores.tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			role, err := stores.roles.GetRoleByName(ctx, tenant.TenantID, roleName)
			if err != nil {
				return fmt.Errorf("find role %q: %w", roleName, err)
			}

			if err := stores.roles.GrantPermissions(ctx, role.RoleID, permissions); err != nil {
				return fmt.Errorf("grant permissions: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Granted %d permission(s) to role %s\n", len(permissions), role.Name)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain the role belongs to")
	c.Flags().StringVar(&roleName, "role", "", "Role name")
	c.Flags().StringSliceVar(&permissions, "permissions", nil, "Permission codes, e.g. customers.add_customer")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("role")
	_ = c.MarkFlagRequired("permissions")

	return c
}

func assignCommand() *cobra.Command {
	var (
		databaseURL string
		tenantSub   string
		roleName    string
		email       string
	)

	c := &cobra.Command{
		Use:   "assign",
		Short: "Assign a tenant role to a user, making them a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, stores, err := openStores(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			tenant, err := stores.tenants.GetTenantBySubdomain(ctx, strings.ToLower(tenantSub))
			if err != nil {
				return fmt.Errorf("find tenant %q: %w", tenantSub, err)
			}

			role, err := stores.roles.GetRoleByName(ctx, tenant.TenantID, roleName)
			if err != nil {
				return fmt.Errorf("find role %q: %w", roleName, err)
			}

			user, err := stores.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return fmt.Errorf("find user %q: %w", email, err)
			}

			if err := stores.roles.AssignUserRole(ctx, user.UserID, role.RoleID); err != nil {
				return fmt.Errorf("assign role: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Assigned role %s to %s in tenant %s\n", role.Name, user.Email, tenant.Subdomain)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&tenantSub, "tenant", "", "Tenant subdomain")
	c.Flags().StringVar(&roleName, "role", "", "Role name")
	c.Flags().StringVar(&email, "user-email", "", "User email")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("role")
	_ = c.MarkFlagRequired("user-email")

	return c
}

type storeSet struct {
	tenants *persistence.TenantStore
	roles   *persistence.RoleStore
	users   *persistence.UserStore
}

func openStores(ctx context.Context, databaseURL string) (*pgxpool.Pool, *storeSet, error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	tenants, err := persistence.NewTenantStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, err
	}
	roles, err := persistence.NewRoleStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, err
	}
	users, err := persistence.NewUserStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, err
	}

	return pool, &storeSet{tenants: tenants, roles: roles, users: users}, nil
}
