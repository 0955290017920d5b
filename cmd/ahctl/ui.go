package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ownership"
	"auctionhouse/internal/progression"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader  = bufio.NewReader(os.Stdin)
	stdinFd      = int(os.Stdin.Fd())
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
	accent       = color.New(color.FgCyan, color.Bold)
	success      = color.New(color.FgGreen, color.Bold)
	warn         = color.New(color.FgYellow, color.Bold)
	danger       = color.New(color.FgRed, color.Bold)
	neutral      = color.New(color.FgHiWhite)
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	urgent     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads a value without echoing it when stdin is a terminal.
// Piped input is read as a plain line.
func promptSecret(label string) (string, error) {
	if !isTerminal(stdinFd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := readPassword(stdinFd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderStatusCard(st auction.Status) string {
	title := fmt.Sprintf("%s  %s", st.Item.Key, st.Item.Name)
	owner := "unowned"
	if !st.Item.Owner.IsZero() {
		owner = st.Item.Owner.String()
	}
	leader := "no bids yet"
	if st.CurrentBid != nil {
		leader = fmt.Sprintf("%s at %s", st.CurrentBid.Bidder, comma(st.CurrentBid.Amount))
	}
	lines := []string{
		titleStyle.Render(title),
		row("owner", owner),
		row("value", comma(st.Item.Value)),
		row("price", comma(st.CurrentPrice)),
		row("leader", leader),
		row("min next", comma(st.MinNext)),
		row("countdown", countdown(st)),
	}
	if st.Frozen {
		lines = append(lines, urgent.Render("bidding is frozen"))
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func countdown(st auction.Status) string {
	switch st.State {
	case auction.Running:
		left := st.TimeRemaining().Round(time.Second)
		if left <= 10*time.Second {
			return urgent.Render(left.String())
		}
		return left.String()
	case auction.Fired:
		return "settling"
	case auction.Cancelled:
		return "cancelled"
	default:
		return "waiting for first bid"
	}
}

func renderOutcome(out auction.Outcome) {
	if !out.Sold {
		printWarn(fmt.Sprintf("%s closed with no bids.", out.Item))
		return
	}
	printSuccess(fmt.Sprintf("%s sold to %s for %s.", out.Item, out.Winner, comma(out.Amount)))
	if out.Debit != out.Amount {
		printWarn(fmt.Sprintf("Group fund covered %s of it.", comma(out.Debit)))
	}
	if out.Club != nil {
		printInfo(fmt.Sprintf("Signed to club %d.", *out.Club))
	}
}

func renderGroup(info ownership.GroupInfo) {
	fmt.Println()
	accent.Printf("%s\n", info.Name)
	fmt.Printf("Funds: %s  Allocated: %d%%\n", colorizeAmount(info.Funds), info.TotalShares)
	fmt.Printf("%-20s %6s\n", "MEMBER", "SHARE")
	for _, m := range info.Members {
		fmt.Printf("%-20s %5d%%\n", truncate(m.UserID, 20), m.SharePct)
	}
	if len(info.Clubs) > 0 {
		fmt.Println()
		renderClubs(info.Clubs)
	}
	fmt.Println()
}

func renderClubs(clubs []ledger.Club) {
	if len(clubs) == 0 {
		printInfo("No clubs.")
		return
	}
	fmt.Printf("%-5s %-20s %12s %-12s %-24s\n", "ID", "NAME", "VALUE", "LEVEL", "OWNER")
	for _, c := range clubs {
		owner := c.Owner.String()
		if owner == "" {
			owner = "-"
		}
		fmt.Printf("%-5d %-20s %12s %-12s %-24s\n", c.ID, truncate(c.Name, 20), comma(c.Value), c.LevelName, truncate(owner, 24))
	}
}

func renderStanding(st progression.Standing) {
	accent.Printf("%s", st.Level)
	fmt.Printf("  %d wins\n", st.TotalWins)
	if st.MaxLevel {
		printSuccess("Top level reached.")
		return
	}
	fmt.Printf("Next: %s at %d wins (%d to go)\n", st.NextLevel, st.NextRequirement, st.WinsRemaining)
}

func renderProposal(p ownership.Proposal) {
	what := fmt.Sprintf("club %d", p.ClubID)
	if p.Kind == ownership.ShareSale {
		what = fmt.Sprintf("%d%% of club %d (%s)", p.Pct, p.ClubID, p.Group)
	}
	fmt.Printf("%s  %s -> %s  %s for %s\n", accent.Sprint(p.ID), p.Proposer, p.Counterparty, what, comma(p.Price))
	switch p.State {
	case ownership.Confirmed:
		printSuccess("Confirmed.")
	case ownership.Rejected, ownership.Expired:
		printWarn(strings.ToUpper(string(p.State)[:1]) + string(p.State)[1:] + ".")
	default:
		printInfo("Waiting for " + p.Counterparty + " until " + p.ExpiresAt.Local().Format(time.Kitchen) + ".")
	}
}

func colorizeAmount(v int64) string {
	text := comma(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
