package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "auctionhouse/internal/cli"
	"auctionhouse/internal/config"
	"auctionhouse/internal/ledger"

	"github.com/spf13/cobra"
)

const defaultAPIBase = "http://localhost:8080"

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "ahctl",
		Short:        "Auction house command line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL (overrides the saved session)")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newStatusCmd(&apiBase),
		newRegisterCmd(&apiBase),
		newBidCmd(&apiBase),
		newWatchCmd(&apiBase),
		newWalletCmd(&apiBase),
		newGroupCmd(&apiBase),
		newClubCmd(&apiBase),
		newSharesCmd(&apiBase),
		newConfirmCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadClient(apiBase *string) (*cl.Client, ledger.Identity, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, ledger.Identity{}, fmt.Errorf("login required: %w", err)
	}
	actor, err := ledger.ParseIdentity(sess.Actor)
	if err != nil {
		return nil, ledger.Identity{}, err
	}
	// an explicit --api or AHCTL_API_BASE_URL beats the saved address
	base := sess.APIBaseURL
	if override := strings.TrimSpace(*apiBase); override != "" && (base == "" || override != defaultAPIBase) {
		base = override
	}
	return cl.NewClient(base, sess.Token, sess.Actor), actor, nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func parseKey(typ, id string) (ledger.ItemKey, error) {
	return ledger.ParseItemKey(typ, id)
}

func parseInt(label, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", label)
	}
	return v, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	var token, actor string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the API address, token and acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if token == "" {
				if token, err = promptSecret("Token"); err != nil {
					return err
				}
			}
			if actor == "" {
				if actor, err = promptRequired("User id"); err != nil {
					return err
				}
			}
			if !strings.Contains(actor, ":") {
				actor = "user:" + actor
			}
			id, err := ledger.ParseIdentity(actor)
			if err != nil {
				return err
			}
			if !id.IsUser() {
				return fmt.Errorf("actor must be a user, got %s", id)
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: *apiBase, Token: token, Actor: id.String()}); err != nil {
				return err
			}
			printSuccess("Logged in as " + id.String() + ".")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "command or admin token")
	cmd.Flags().StringVar(&actor, "as", "", "acting user id")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <club|duelist> <id>",
		Short: "Show an auction's price, leader and countdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := client.Status(ctx, key)
			if err != nil {
				return err
			}
			fmt.Println(renderStatusCard(st))
			return nil
		},
	}
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register <club|duelist> <id>",
		Short: "Open an item for bidding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := client.RegisterAuction(ctx, key)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s is open for bids.", key))
			fmt.Println(renderStatusCard(st))
			return nil
		},
	}
}

func newBidCmd(apiBase *string) *cobra.Command {
	var group string
	var club int64
	cmd := &cobra.Command{
		Use:   "bid <club|duelist> <id> <amount>",
		Short: "Place a bid, personally or for a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			amount, err := parseInt("amount", args[2])
			if err != nil {
				return err
			}
			in := cl.BidInput{Amount: amount, Group: group}
			if club > 0 {
				in.ClubID = &club
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := client.PlaceBid(ctx, key, in)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bid %s accepted for %s.", comma(out.Bid.Amount), out.Bid.Bidder))
			fmt.Println(renderStatusCard(out.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "bid from this group's funds")
	cmd.Flags().Int64Var(&club, "club", 0, "club that signs the duelist")
	return cmd
}

func newWatchCmd(apiBase *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch <club|duelist> <id>",
		Short: "Follow an auction live until it closes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1])
			if err != nil {
				return err
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), client, key, every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", time.Second, "poll interval")
	return cmd
}

func newWalletCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show your wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, actor, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			w, err := client.Wallet(ctx, actor.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", accent.Sprint(w.UserID), colorizeAmount(w.Balance))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open your wallet with the starter balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, actor, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			w, err := client.EnsureWallet(ctx, actor.ID)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Wallet ready with %s.", comma(w.Balance)))
			return nil
		},
	})
	return cmd
}

func newGroupCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Investor group commands"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <name>",
			Short: "Show funds, members and clubs",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				info, err := client.Group(ctx, args[0])
				if err != nil {
					return err
				}
				renderGroup(info)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name> <share-pct>",
			Short: "Found a group",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pct, err := parseInt("share-pct", args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				info, err := client.CreateGroup(ctx, args[0], pct)
				if err != nil {
					return err
				}
				renderGroup(info)
				return nil
			},
		},
		&cobra.Command{
			Use:   "join <name> <share-pct>",
			Short: "Join a group with a share",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pct, err := parseInt("share-pct", args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				if err := client.JoinGroup(ctx, args[0], pct); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Joined %s with %d%%.", args[0], pct))
				return nil
			},
		},
		&cobra.Command{
			Use:   "leave <name>",
			Short: "Leave a group once your share is zero",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				penalty, err := client.LeaveGroup(ctx, args[0])
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Left %s. Penalty charged to the fund: %s.", args[0], comma(penalty)))
				return nil
			},
		},
		fundsCmd(apiBase, "deposit", true),
		fundsCmd(apiBase, "withdraw", false),
	)
	return cmd
}

func fundsCmd(apiBase *string, verb string, deposit bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <name> <amount>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " between your wallet and the group fund",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseInt("amount", args[1])
			if err != nil {
				return err
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			info, err := client.MoveFunds(ctx, args[0], amount, deposit)
			if err != nil {
				return err
			}
			renderGroup(info)
			return nil
		},
	}
}

func newClubCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{Use: "club", Short: "Club commands"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List clubs",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				clubs, err := client.Clubs(ctx)
				if err != nil {
					return err
				}
				renderClubs(clubs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "standing <id>",
			Short: "Show a club's level progress",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("id", args[0])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				st, err := client.Standing(ctx, id)
				if err != nil {
					return err
				}
				renderStanding(st)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sell <id>",
			Short: "Sell your club to the market at its current value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("id", args[0])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				proceeds, err := client.SellClub(ctx, id)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Club %d sold for %s.", id, comma(proceeds)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "offer <id> <buyer> <price>",
			Short: "Offer your club to another user",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("id", args[0])
				if err != nil {
					return err
				}
				price, err := parseInt("price", args[2])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				p, err := client.OfferClub(ctx, id, args[1], price)
				if err != nil {
					return err
				}
				renderProposal(p)
				return nil
			},
		},
	)
	return cmd
}

func newSharesCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{Use: "shares", Short: "Group share trading"}
	cmd.AddCommand(&cobra.Command{
		Use:   "offer <group> <club-id> <buyer> <pct>",
		Short: "Offer part of your stake in a group club",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clubID, err := parseInt("club-id", args[1])
			if err != nil {
				return err
			}
			pct, err := parseInt("pct", args[3])
			if err != nil {
				return err
			}
			client, _, err := loadClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			p, err := client.OfferShares(ctx, args[0], clubID, args[2], pct)
			if err != nil {
				return err
			}
			renderProposal(p)
			return nil
		},
	})
	return cmd
}

func newConfirmCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{Use: "confirm", Short: "Answer trade confirmations"}
	resolve := func(use, short string, accept bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				p, err := client.Resolve(ctx, args[0], accept)
				if err != nil {
					return err
				}
				renderProposal(p)
				return nil
			},
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a confirmation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				p, err := client.Confirmation(ctx, args[0])
				if err != nil {
					return err
				}
				renderProposal(p)
				return nil
			},
		},
		resolve("accept", "Accept and execute the trade", true),
		resolve("reject", "Reject the trade", false),
	)
	return cmd
}

func newAdminCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Admin verbs (needs the admin token)"}
	freeze := func(use string, frozen bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: use + " all bidding",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				if err := client.SetFrozen(ctx, frozen); err != nil {
					return err
				}
				printSuccess("Bidding " + map[bool]string{true: "frozen", false: "open"}[frozen] + ".")
				return nil
			},
		}
	}
	cmd.AddCommand(
		freeze("freeze", true),
		freeze("unfreeze", false),
		&cobra.Command{
			Use:   "finalize <club|duelist> <id>",
			Short: "Settle an auction now",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseKey(args[0], args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				out, err := client.Finalize(ctx, key)
				if err != nil {
					return err
				}
				renderOutcome(out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset <club|duelist> <id>",
			Short: "Cancel the countdown and drop all bids",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseKey(args[0], args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				if err := client.ResetAuction(ctx, key); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("%s reset.", key))
				return nil
			},
		},
		&cobra.Command{
			Use:   "tip <user> <amount>",
			Short: "Credit a wallet",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := parseInt("amount", args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				w, err := client.Tip(ctx, args[0], amount)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("%s now has %s.", w.UserID, comma(w.Balance)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "club <name> <base-price>",
			Short: "Register a club",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				base, err := parseInt("base-price", args[1])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				c, err := client.RegisterClub(ctx, args[0], base)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Club %d %q registered at %s.", c.ID, c.Name, comma(c.BasePrice)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "duelist <name> <base-price> <salary>",
			Short: "Register a duelist",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				base, err := parseInt("base-price", args[1])
				if err != nil {
					return err
				}
				salary, err := parseInt("salary", args[2])
				if err != nil {
					return err
				}
				client, _, err := loadClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				d, err := client.RegisterDuelist(ctx, args[0], base, salary)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Duelist %d %q registered at %s.", d.ID, d.Name, comma(d.BasePrice)))
				return nil
			},
		},
	)
	return cmd
}
