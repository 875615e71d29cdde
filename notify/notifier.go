package notify

import (
	"context"
	"fmt"
	"io"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// WriterNotifier prints the summary, used when no chat delivery is set up.
type WriterNotifier struct {
	Out io.Writer
}

var _ Notifier = (*WriterNotifier)(nil)

func (n *WriterNotifier) Notify(ctx context.Context, text string) error {
	_, err := fmt.Fprint(n.Out, text)
	return err
}
