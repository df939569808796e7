package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stripe-minter.backend/internal/config"
	"stripe-minter.backend/pkg/jwt"
)

type opsTokenDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	out     io.Writer
}

func defaultOpsTokenDeps() opsTokenDeps {
	return opsTokenDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		out:     os.Stdout,
	}
}

func newRootCommand(deps opsTokenDeps) *cobra.Command {
	var (
		subject string
		expiry  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ops-token",
		Short: "Issue an operator token for the /ops endpoints",
		Long: `Signs a JWT with the operator role using JWT_SECRET.

Example:
  ops-token --subject oncall --expiry 2h`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}

			if err := deps.loadEnv(); err != nil {
				log.Println("No .env file found, using environment variables")
			}
			cfg := deps.loadCfg()
			if strings.TrimSpace(cfg.JWT.Secret) == "" {
				return errors.New("JWT_SECRET is not defined in your environment")
			}

			ttl := cfg.JWT.OperatorExpiry
			if cmd.Flags().Changed("expiry") {
				ttl = expiry
			}
			if ttl <= 0 {
				return fmt.Errorf("expiry must be positive, got %s", ttl)
			}

			token, err := jwt.NewJWTService(cfg.JWT.Secret, ttl).GenerateToken(subject, jwt.RoleOperator)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintln(deps.out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to (required)")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime, defaults to JWT_OPERATOR_EXPIRY")
	return cmd
}

func main() {
	if err := newRootCommand(defaultOpsTokenDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
