package main

import (
	"context"
	"fmt"
	"time"

	"auctionhouse/internal/auction"
	cl "auctionhouse/internal/cli"
	"auctionhouse/internal/ledger"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type statusMsg struct {
	status auction.Status
	err    error
}

type pollMsg struct{}

type watchModel struct {
	ctx     context.Context
	client  *cl.Client
	key     ledger.ItemKey
	every   time.Duration
	spinner spinner.Model
	status  *auction.Status
	err     error
	done    bool
}

func newWatchModel(ctx context.Context, client *cl.Client, key ledger.ItemKey, every time.Duration) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return watchModel{ctx: ctx, client: client, key: key, every: every, spinner: s}
}

func (m watchModel) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	st, err := m.client.Status(ctx, m.key)
	return statusMsg{status: st, err: err}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			prev := m.status
			m.status = &msg.status
			// the countdown went away after running: the auction closed
			if prev != nil && live(prev.State) && !live(msg.status.State) {
				m.done = true
				return m, tea.Quit
			}
		}
		return m, tea.Tick(m.every, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.fetch
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func live(s auction.TimerState) bool {
	return s == auction.Running || s == auction.Fired
}

func (m watchModel) View() string {
	if m.status == nil {
		if m.err != nil {
			return danger.Sprint(m.err.Error()) + "\n"
		}
		return m.spinner.View() + " loading " + m.key.String() + "\n"
	}
	out := renderStatusCard(*m.status) + "\n"
	if m.err != nil {
		out += warn.Sprint("last refresh failed: "+m.err.Error()) + "\n"
	}
	if m.done {
		return out + success.Sprint("auction closed") + "\n"
	}
	return out + m.spinner.View() + " live, q to quit\n"
}

func runWatch(ctx context.Context, client *cl.Client, key ledger.ItemKey, every time.Duration) error {
	if every <= 0 {
		every = time.Second
	}
	final, err := tea.NewProgram(newWatchModel(ctx, client, key, every), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(watchModel); ok && m.done {
		fmt.Println("Run `ahctl status` for the final owner.")
	}
	return nil
}
