package main

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubStdin(t *testing.T, terminal bool, input string, passwords ...string) *int {
	t.Helper()
	oldReader, oldTerm, oldRead := stdinReader, isTerminal, readPassword
	t.Cleanup(func() { stdinReader, isTerminal, readPassword = oldReader, oldTerm, oldRead })

	calls := 0
	stdinReader = bufio.NewReader(strings.NewReader(input))
	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) {
		if calls >= len(passwords) {
			return nil, errors.New("no more input")
		}
		calls++
		return []byte(passwords[calls-1]), nil
	}
	return &calls
}

func TestPromptSecretReadsWithoutEcho(t *testing.T) {
	calls := stubStdin(t, true, "echoed-token\n", "   ", " s3cret ")

	got, err := promptSecret("Token")
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)
	require.Equal(t, 2, *calls)
}

func TestPromptSecretFallsBackForPipedInput(t *testing.T) {
	calls := stubStdin(t, false, "piped-token\n")

	got, err := promptSecret("Token")
	require.NoError(t, err)
	require.Equal(t, "piped-token", got)
	require.Zero(t, *calls)
}

func TestComma(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1103, "-1,103"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, comma(tc.in))
	}
}
