// Package progression turns battle results into club win counts, value
// swings and level-up bonuses.
package progression

import (
	"errors"
	"fmt"
)

type Level struct {
	Name  string `json:"name"`
	Wins  int64  `json:"wins"`
	Bonus int64  `json:"bonus"`
}

// Table is ordered by ascending win requirement. The first level needs zero
// wins and carries no bonus.
type Table []Level

func DefaultTable() Table {
	return Table{
		{Name: "Rookie", Wins: 0},
		{Name: "Contender", Wins: 5, Bonus: 500},
		{Name: "Veteran", Wins: 15, Bonus: 1500},
		{Name: "Champion", Wins: 30, Bonus: 3000},
		{Name: "Legend", Wins: 50, Bonus: 5000},
	}
}

func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("level table is empty")
	}
	if t[0].Wins != 0 {
		return errors.New("first level must require zero wins")
	}
	for i := 1; i < len(t); i++ {
		if t[i].Wins <= t[i-1].Wins {
			return fmt.Errorf("level %q must require more wins than %q", t[i].Name, t[i-1].Name)
		}
		if t[i].Bonus < 0 {
			return fmt.Errorf("level %q has a negative bonus", t[i].Name)
		}
	}
	return nil
}

func (t Table) First() Level { return t[0] }

type Standing struct {
	TotalWins       int64  `json:"total_wins"`
	Level           string `json:"level"`
	NextLevel       string `json:"next_level,omitempty"`
	NextRequirement int64  `json:"next_requirement,omitempty"`
	WinsRemaining   int64  `json:"wins_remaining"`
	MaxLevel        bool   `json:"max_level"`
}

// Standing reports the level reached at wins and what the next one needs.
func (t Table) Standing(wins int64) Standing {
	st := Standing{TotalWins: wins, Level: t[0].Name}
	for _, lvl := range t {
		if wins < lvl.Wins {
			st.NextLevel = lvl.Name
			st.NextRequirement = lvl.Wins
			st.WinsRemaining = lvl.Wins - wins
			return st
		}
		st.Level = lvl.Name
	}
	st.MaxLevel = true
	return st
}

// Crossed lists the levels whose threshold lies in (before, after], in
// ascending order.
func (t Table) Crossed(before, after int64) []Level {
	var out []Level
	for _, lvl := range t {
		if lvl.Wins > before && lvl.Wins <= after {
			out = append(out, lvl)
		}
	}
	return out
}
