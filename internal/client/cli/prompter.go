package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// terminalPrompter answers passphrase requests from the terminal. The
// controller's Provide/Cancel callbacks are wired in after construction; the
// answer is delivered synchronously before RequestPassphrase returns.
type terminalPrompter struct {
	out     io.Writer
	provide func(token string, passphrase []byte)
	cancel  func(token string)
}

func (p *terminalPrompter) RequestPassphrase(ctx context.Context, token string, attempt int) error {
	if attempt > 1 {
		color.New(color.FgYellow).Fprintf(p.out, "Wrong passphrase (attempt %d)\n", attempt)
	}
	fmt.Fprint(p.out, "Enter passphrase: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		p.cancel(token)
		return nil
	}
	p.provide(token, pw)
	return nil
}

func (p *terminalPrompter) ClosePrompt(token string) {}
