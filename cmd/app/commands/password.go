package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadPassword prompts for a password on io. When io.Reader is a terminal echo is
// disabled; otherwise one line is read.
func ReadPassword(io IOTuple, prompt string) (string, error) {
	_, _ = fmt.Fprint(io.Writer, prompt)

	if f, ok := io.Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(io.Writer)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(io.Reader).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
