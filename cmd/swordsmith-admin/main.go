package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"swordsmith/internal/auth"
	"swordsmith/internal/catalog"
	"swordsmith/internal/config"
	"swordsmith/internal/db"
	"swordsmith/internal/game"
	"swordsmith/internal/store/pgstore"
)

type admin struct {
	cfg    config.AdminConfig
	logger *slog.Logger
}

func main() {
	cfg, err := config.LoadAdminFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	a := &admin{cfg: cfg, logger: config.NewLogger(cfg.LogLevel)}

	root := &cobra.Command{
		Use:          "swordsmith-admin",
		Short:        "Operator tooling for the swordsmith economy",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.DatabaseURL, "database-url", a.cfg.DatabaseURL, "Postgres connection URL")

	root.AddCommand(
		a.newMigrateCmd(),
		a.newSeedCatalogCmd(),
		a.newGiftCmd(),
		a.newBanCmd(true),
		a.newBanCmd(false),
		a.newDeleteAccountCmd(),
		a.newResetCountersCmd(),
		a.newTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *admin) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if strings.TrimSpace(a.cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL or --database-url is required")
	}
	return db.Connect(ctx, a.cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
}

// withService runs fn against the postgres-backed engine.
func (a *admin) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *game.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	pool, err := a.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	svc := game.NewService(pgstore.New(pool, a.logger), catalog.NewPostgres(pool), a.logger)
	return fn(ctx, svc)
}

func (a *admin) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := db.Migrate(ctx, pool, a.logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return nil
		},
	}
}

func (a *admin) newSeedCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-catalog <file.toml>",
		Short: "Replace the reference data with a TOML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := catalog.Seed(ctx, pool, src); err != nil {
				return err
			}
			levels, _ := src.SwordLevels(ctx)
			mats, _ := src.Materials(ctx)
			fmt.Printf("catalog seeded: %d sword tiers, %d materials\n", len(levels), len(mats))
			return nil
		},
	}
}

func (a *admin) newGiftCmd() *cobra.Command {
	gift := &cobra.Command{
		Use:   "gift",
		Short: "Issue and cancel gifts",
	}

	var spec catalog.RewardSpec
	issue := &cobra.Command{
		Use:   "issue <account-id>",
		Short: "Send a gift to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reward, err := spec.Reward()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *game.Service) error {
				g, err := svc.IssueGift(ctx, args[0], reward)
				if err != nil {
					return err
				}
				fmt.Printf("gift %s issued to %s\n", g.ID, g.ReceiverID)
				return nil
			})
		},
	}
	issue.Flags().StringVar(&spec.Type, "type", catalog.RewardTypeGold, "reward type: GOLD, TRUST_POINTS, SHIELD, MATERIAL or SWORD")
	issue.Flags().Int64Var(&spec.Amount, "amount", 0, "amount for GOLD, TRUST_POINTS and SHIELD")
	issue.Flags().Int64Var(&spec.MaterialID, "material-id", 0, "material for MATERIAL rewards")
	issue.Flags().IntVar(&spec.Tier, "tier", 0, "sword tier for SWORD rewards")
	issue.Flags().Int64Var(&spec.Quantity, "quantity", 0, "quantity for MATERIAL and SWORD rewards")

	cancelCmd := &cobra.Command{
		Use:   "cancel <gift-id>",
		Short: "Cancel a pending gift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if err := svc.CancelGift(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("gift %s cancelled\n", args[0])
				return nil
			})
		},
	}

	gift.AddCommand(issue, cancelCmd)
	return gift
}

func (a *admin) newBanCmd(banned bool) *cobra.Command {
	use, verb := "unban", "unbanned"
	if banned {
		use, verb = "ban", "banned"
	}
	return &cobra.Command{
		Use:   use + " <account-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if err := svc.SetBanned(ctx, args[0], banned); err != nil {
					return err
				}
				fmt.Printf("account %s %s\n", args[0], verb)
				return nil
			})
		},
	}
}

func (a *admin) newDeleteAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-account <account-id>",
		Short: "Erase an account and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *game.Service) error {
				if err := svc.DeleteAccount(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("account %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func (a *admin) newResetCountersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-counters",
		Short: "Zero stale daily ad counters now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *game.Service) error {
				n, err := svc.ResetDailyCounters(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%d accounts reset\n", n)
				return nil
			})
		},
	}
}

func (a *admin) newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <account-id> <email>",
		Short: "Mint an access token for local and test deployments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(a.cfg.JWTSecret) == "" {
				return errors.New("SWORDSMITH_JWT_SECRET is required")
			}
			v := auth.NewVerifier(a.cfg.JWTSecret, auth.WithIssuer(a.cfg.JWTIssuer), auth.WithAudience(a.cfg.JWTAudience))
			token, err := v.Sign(auth.User{ID: args[0], Email: args[1]}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
