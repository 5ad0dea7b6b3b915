package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// TerminalPrompter asks on a terminal whether to trust a server certificate.
// Answers: y accepts for this session, a accepts and remembers, anything else rejects.
type TerminalPrompter struct {
	io    IOTuple
	once  sync.Once
	lines chan string
}

// NewTerminalPrompter creates a prompter reading answers from io.Reader.
func NewTerminalPrompter(io IOTuple) *TerminalPrompter {
	return &TerminalPrompter{io: io, lines: make(chan string)}
}

// Prompt implements trustUsecase.Prompter. It returns ctx.Err() if ctx ends before an
// answer is read, and an error when the input is closed.
func (p *TerminalPrompter) Prompt(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
	p.once.Do(p.startReader)

	w := p.io.Writer
	_, _ = fmt.Fprintln(w)
	_, _ = warningColor.Fprintln(w, "The server presented a certificate that is not trusted yet.")
	_, _ = fmt.Fprintf(w, "  Subject:    %s\n", cert.Subject)
	if cert.Issuer != "" {
		_, _ = fmt.Fprintf(w, "  Issuer:     %s\n", cert.Issuer)
	}
	if !cert.NotAfter.IsZero() {
		_, _ = fmt.Fprintf(w, "  Valid:      %s to %s\n",
			cert.NotBefore.Format(time.DateOnly), cert.NotAfter.Format(time.DateOnly))
	}
	_, _ = fmt.Fprintf(w, "  Thumbprint: %s\n", boldColor.Sprint(cert.Thumbprint))
	_, _ = fmt.Fprint(w, "Trust this certificate? [y]es / [a]lways / [N]o: ")

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(w)
		return trustDomain.Decision{}, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return trustDomain.Decision{}, errors.New("trust prompt: input closed")
		}
		return parseAnswer(line), nil
	}
}

// startReader feeds input lines to Prompt. One goroutine owns the reader for the life
// of the prompter; a line typed after a prompt was abandoned answers the next prompt.
func (p *TerminalPrompter) startReader() {
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(p.io.Reader)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
}

func parseAnswer(line string) trustDomain.Decision {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return trustDomain.Decision{Approved: true}
	case "a", "always":
		return trustDomain.Decision{Approved: true, Remember: true}
	default:
		return trustDomain.Decision{}
	}
}
