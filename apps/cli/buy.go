package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/trezcool/elimu/core/purchase"
)

// terminalWindow is the payment page shown as a link; it is closed when the user presses Enter.
type terminalWindow struct {
	closed int32
}

func (w *terminalWindow) Closed() bool { return atomic.LoadInt32(&w.closed) == 1 }

type terminalOpener struct {
	cli   *commandLine
	lines <-chan string
}

func (o terminalOpener) Open(url string) (purchase.Window, error) {
	fmt.Fprintf(o.cli.out, "Scan the QR code or open %s to pay.\nPress Enter to close the payment page.\n", url)
	win := new(terminalWindow)
	go func() {
		<-o.lines // a line or the end of the input
		atomic.StoreInt32(&win.closed, 1)
	}()
	return win, nil
}

func (cli *commandLine) buy(ctx context.Context, courseID string) error {
	sess, err := cli.auth.Load(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opener := terminalOpener{cli: cli, lines: cli.readLines(ctx)}

	outcome, err := cli.flow.CheckoutWith(ctx, opener, courseID, sess.User)
	if err != nil {
		return err
	}
	switch outcome {
	case purchase.OutcomePaid:
		fmt.Fprintln(cli.out, "Payment received, enjoy the course!")
	case purchase.OutcomeFailed:
		fmt.Fprintln(cli.out, "The payment failed.")
	case purchase.OutcomeClosed:
		fmt.Fprintln(cli.out, "Payment page closed.")
	}
	return nil
}
