package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "swordsmith/internal/cli"
	"swordsmith/internal/config"
)

type app struct {
	apiBase  string
	sessions cl.SessionStore
}

func main() {
	cfg := config.LoadCLIFromEnv()
	sessions, err := cl.DefaultSessionStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	a := &app{apiBase: cfg.APIBaseURL, sessions: sessions}

	root := &cobra.Command{
		Use:          "sw",
		Short:        "Swordsmith player client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")

	root.AddCommand(
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newDashCmd(),
		a.newCatalogCmd(),
		a.newMarketCmd(),
		a.newAnvilCmd(),
		a.newSynthCmd(),
		a.newVoucherCmd(),
		a.newGiftCmd(),
		a.newAdsCmd(),
		a.newMissionsCmd(),
		a.newDeleteAccountCmd(),
	)

	if err := root.Execute(); err != nil {
		printError(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

// run loads the saved session and calls fn with an authenticated client.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, c *cl.Client) error) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return fmt.Errorf("login required: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, cl.NewClient(a.apiBase, sess.AccessToken))
}

// public calls fn with an anonymous client.
func (a *app) public(cmd *cobra.Command, fn func(ctx context.Context, c *cl.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, cl.NewClient(a.apiBase, ""))
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an access token issued by the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptSecret("Access token")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			d, err := cl.NewClient(a.apiBase, token).Dashboard(ctx)
			if err != nil {
				return err
			}
			if err := a.sessions.Save(cl.Session{
				AccessToken: token,
				AccountID:   d.Account.ID,
				Email:       d.Account.Email,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s.", d.Account.Email))
			return nil
		},
	}
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show balances, anvil and inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
				d, err := c.Dashboard(ctx)
				if err != nil {
					return err
				}
				renderDashboard(d)
				return nil
			})
		},
	}
}

func (a *app) newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse sword tiers and materials",
	}
	catalogCmd.AddCommand(&cobra.Command{
		Use:   "swords",
		Short: "List sword tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.public(cmd, func(ctx context.Context, c *cl.Client) error {
				levels, err := c.SwordLevels(ctx)
				if err != nil {
					return err
				}
				renderSwordLevels(levels)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "materials",
		Short: "List materials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.public(cmd, func(ctx context.Context, c *cl.Client) error {
				mats, err := c.Materials(ctx)
				if err != nil {
					return err
				}
				renderMaterials(mats)
				return nil
			})
		},
	})
	return catalogCmd
}

func (a *app) newMarketCmd() *cobra.Command {
	market := &cobra.Command{
		Use:     "market",
		Short:   "Buy and sell swords, materials and shields",
		Aliases: []string{"m"},
	}
	market.AddCommand(
		&cobra.Command{
			Use:   "buy-sword <tier> <qty>",
			Short: "Buy swords of a purchasable tier",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				tier, qty, err := tierAndQty(args)
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.BuySword(ctx, tier, qty)
					if err != nil {
						return err
					}
					renderTrade(fmt.Sprintf("Bought %d x tier %d", qty, tier), res)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "sell-sword <tier> <qty>",
			Short: "Sell unsold swords",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				tier, qty, err := tierAndQty(args)
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.SellSword(ctx, tier, qty)
					if err != nil {
						return err
					}
					renderTrade(fmt.Sprintf("Sold %d x tier %d", qty, tier), res)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "buy-material <id> <qty>",
			Short: "Buy a purchasable material",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, qty, err := idAndQty(args)
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.BuyMaterial(ctx, id, qty)
					if err != nil {
						return err
					}
					renderTrade(fmt.Sprintf("Bought %d x material %d", qty, id), res)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "sell-material <id> <qty>",
			Short: "Sell unsold material",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, qty, err := idAndQty(args)
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.SellMaterial(ctx, id, qty)
					if err != nil {
						return err
					}
					renderTrade(fmt.Sprintf("Sold %d x material %d", qty, id), res)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "buy-shield <qty>",
			Short: "Buy upgrade shields",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				qty, err := parsePositive(args[0], "quantity")
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.BuyShield(ctx, qty)
					if err != nil {
						return err
					}
					renderTrade(fmt.Sprintf("Bought %d shield(s)", qty), res)
					return nil
				})
			},
		},
	)
	return market
}

func (a *app) newAnvilCmd() *cobra.Command {
	anvil := &cobra.Command{
		Use:   "anvil",
		Short: "Mount, upgrade and protect swords",
	}
	anvil.AddCommand(
		&cobra.Command{
			Use:   "mount <tier>",
			Short: "Put a sword tier on the anvil",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tier, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid tier %q", args[0])
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					state, err := c.Mount(ctx, tier)
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Anvil: %s", anvilLabel(state.Tier)))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "unmount",
			Short: "Clear the anvil",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					if _, err := c.Unmount(ctx); err != nil {
						return err
					}
					printSuccess("Anvil cleared.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "upgrade <tier>",
			Short: "Try to upgrade the mounted sword",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tier, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid tier %q", args[0])
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					res, err := c.Upgrade(ctx, tier)
					if err != nil {
						return err
					}
					renderUpgrade(res)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Show recent upgrade attempts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					rows, err := c.UpgradeLog(ctx, 20)
					if err != nil {
						return err
					}
					renderUpgradeLog(rows)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:       "protect <on|off>",
			Short:     "Toggle shield protection for upgrades",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				var enabled bool
				switch strings.ToLower(args[0]) {
				case "on":
					enabled = true
				case "off":
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					acct, err := c.SetShieldProtection(ctx, enabled)
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Shield protection %s (%d shields held).", onOff(acct.ShieldProtectionEnabled), acct.ShieldCount))
					return nil
				})
			},
		},
	)
	return anvil
}

func (a *app) newSynthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "synth <tier>",
		Short: "Craft a sword from its recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tier %q", args[0])
			}
			return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
				res, err := c.Synthesize(ctx, tier)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Crafted tier %d for %s gold. Gold left: %s", res.Tier, comma(res.GoldSpent), comma(res.Gold)))
				return nil
			})
		},
	}
}

func (a *app) newVoucherCmd() *cobra.Command {
	voucher := &cobra.Command{
		Use:     "voucher",
		Short:   "Create, share and redeem gold vouchers",
		Aliases: []string{"vouchers"},
	}
	voucher.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List vouchers you created",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					list, err := c.ListVouchers(ctx)
					if err != nil {
						return err
					}
					renderVouchers(list)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "create <gold>",
			Short: "Lock gold into a new voucher",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := parsePositive(args[0], "gold")
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					v, err := c.CreateVoucher(ctx, amount)
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Voucher %s worth %s gold. Code: ", v.ID, comma(v.GoldAmount)) + accent.Sprint(v.Code))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "redeem <code>",
			Short: "Redeem a voucher code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					v, err := c.RedeemVoucher(ctx, strings.TrimSpace(args[0]))
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Redeemed %s gold.", comma(v.GoldAmount)))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "assign <voucher-id> <email>",
			Short: "Restrict a voucher to one redeemer",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					if _, err := c.AssignRedeemer(ctx, args[0], args[1]); err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Voucher %s reserved for %s.", args[0], args[1]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "unassign <voucher-id>",
			Short: "Remove the redeemer restriction",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					if _, err := c.RemoveRedeemer(ctx, args[0]); err != nil {
						return err
					}
					printSuccess("Redeemer removed.")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cancel <voucher-id>",
			Short: "Cancel a pending voucher and get the gold back",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					v, err := c.CancelVoucher(ctx, args[0])
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Voucher cancelled, %s gold returned.", comma(v.GoldAmount)))
					return nil
				})
			},
		},
	)
	return voucher
}

func (a *app) newGiftCmd() *cobra.Command {
	gift := &cobra.Command{
		Use:     "gift",
		Short:   "See and claim gifts",
		Aliases: []string{"gifts"},
	}
	gift.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List gifts sent to you",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					gifts, err := c.Gifts(ctx)
					if err != nil {
						return err
					}
					renderGifts(gifts)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "claim <gift-id>",
			Short: "Claim a pending gift",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					grant, gold, err := c.ClaimGift(ctx, args[0])
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Received %s. Gold: %s", grantLabel(grant), comma(gold)))
					return nil
				})
			},
		},
	)
	return gift
}

func (a *app) newAdsCmd() *cobra.Command {
	ads := &cobra.Command{
		Use:   "ads",
		Short: "Rewarded ad sessions",
	}
	ads.AddCommand(
		&cobra.Command{
			Use:       "start <GOLD|SHIELD|OLD_SWORD>",
			Short:     "Open an ad session and print its nonce",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"GOLD", "SHIELD", "OLD_SWORD"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					sess, err := c.StartAdSession(ctx, args[0])
					if err != nil {
						return err
					}
					printInfo("Show the ad with custom data set to this nonce, then run `sw ads claim <nonce>`.")
					accent.Println(sess.Nonce)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "claim <nonce>",
			Short: "Claim the reward of a verified ad session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					claim, err := c.ClaimAdReward(ctx, args[0])
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Received %s (%d/%d %s ads today).",
						grantLabel(claim.Grant), claim.DailyViews, claim.DailyCap, claim.RewardType))
					return nil
				})
			},
		},
	)
	return ads
}

func (a *app) newMissionsCmd() *cobra.Command {
	missions := &cobra.Command{
		Use:     "missions",
		Short:   "Daily and one-time missions",
		Aliases: []string{"mission"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
				board, err := c.Missions(ctx)
				if err != nil {
					return err
				}
				renderMissions(board)
				return nil
			})
		},
	}
	missions.AddCommand(
		&cobra.Command{
			Use:   "claim-daily <mission-id>",
			Short: "Claim today's reward of a daily mission",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					claim, err := c.ClaimDailyMission(ctx, args[0])
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Mission %s complete: %s.", claim.MissionID, grantLabel(claim.Grant)))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "claim <mission-id>",
			Short: "Claim a one-time mission",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, c *cl.Client) error {
					claim, err := c.ClaimOneTimeMission(ctx, args[0])
					if err != nil {
						return err
					}
					printSuccess(fmt.Sprintf("Mission %s complete: %s.", claim.MissionID, grantLabel(claim.Grant)))
					return nil
				})
			},
		},
	)
	return missions
}

func (a *app) newDeleteAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently erase your account and inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, err := promptRequired("Type DELETE to confirm")
			if err != nil {
				return err
			}
			if confirm != "DELETE" {
				printWarn("Aborted.")
				return nil
			}
			err = a.run(cmd, func(ctx context.Context, c *cl.Client) error {
				return c.DeleteAccount(ctx)
			})
			if err != nil {
				return err
			}
			_ = a.sessions.Clear()
			printSuccess("Account deleted.")
			return nil
		},
	}
}

func tierAndQty(args []string) (int, int64, error) {
	tier, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tier %q", args[0])
	}
	qty, err := parsePositive(args[1], "quantity")
	return tier, qty, err
}

func idAndQty(args []string) (int64, int64, error) {
	id, err := parsePositive(args[0], "material id")
	if err != nil {
		return 0, 0, err
	}
	qty, err := parsePositive(args[1], "quantity")
	return id, qty, err
}

func parsePositive(raw, label string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", label)
	}
	return v, nil
}
