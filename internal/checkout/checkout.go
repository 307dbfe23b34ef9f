// Package checkout confirms licence purchases with an external payment step.
package checkout

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Display metadata for the licence offer.
const (
	Item  = "GAFFER 2.0 LICENSE"
	Price = "£1.99"
)

// ErrDeclined is returned when the buyer backs out or the payment fails.
var ErrDeclined = errors.New("purchase declined")

// Checkout confirms that payment for a squad's licence went through.
type Checkout interface {
	ConfirmPurchase(ctx context.Context, squadID string) error
}

// Func adapts a plain function to Checkout.
type Func func(ctx context.Context, squadID string) error

func (f Func) ConfirmPurchase(ctx context.Context, squadID string) error {
	return f(ctx, squadID)
}

// Always approves (nil) or declines every purchase.
type Always bool

func (a Always) ConfirmPurchase(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a {
		return ErrDeclined
	}
	return nil
}

// Prompt asks the buyer for a yes/no answer on a terminal. Pass a shared
// *bufio.Reader as In when the same input is read elsewhere.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// ConfirmPurchase prints the offer and reads one line. Only "y" or "yes" approves.
func (p Prompt) ConfirmPurchase(ctx context.Context, squadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(p.Out, "%s for squad %s: %s. Pay now? [y/N] ", Item, squadID, Price)

	br, ok := p.In.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(p.In)
	}
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrDeclined
	}
}
