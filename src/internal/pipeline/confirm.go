package pipeline

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/fatih/color"
)

// affirmative is the only input that confirms a destructive operation.
const affirmative = "yes"

// Confirmer asks the operator to confirm a destructive operation.  The
// controller treats anything but an explicit yes as a refusal.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// StdinConfirmer reads the confirmation from an input stream, normally the
// terminal.  The read blocks with no timeout; confirmation is the only
// interactive point in a run.
type StdinConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer.  It accepts the affirmative token
// case-insensitively; an empty line, end of input, or anything else refuses.
func (c *StdinConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if _, err := color.New(color.FgYellow).Fprintln(c.Out, prompt); err != nil {
		return false, errors.Wrap(err, "write prompt")
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "read answer")
	}
	return strings.EqualFold(strings.TrimSpace(line), affirmative), nil
}
