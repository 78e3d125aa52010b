package usercmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/persistence"
)

// Command groups user management helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management utilities",
	}

	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		email       string
		fullName    string
		password    string
		superuser   bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a user with a password login",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" {
				return fmt.Errorf("email is required")
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			users, err := persistence.NewUserStore(pool)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}

			hash, err := platformauth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			created, err := users.CreateUser(ctx, persistence.User{
				UserID:       uuid.New(),
				Email:        email,
				FullName:     strings.TrimSpace(fullName),
				PasswordHash: hash,
				IsSuperuser:  superuser,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User created: %s (%s)\n", created.Email, created.UserID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&email, "email", "", "Login email")
	c.Flags().StringVar(&fullName, "full-name", "", "Full name")
	c.Flags().StringVar(&password, "password", "", "Initial password")
	c.Flags().BoolVar(&superuser, "superuser", false, "Grant global superuser access")

	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")

	return c
}
