// Package console is a line-oriented terminal front end for a squad session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/preston-bernstein/gaffer-service/internal/balance"
	"github.com/preston-bernstein/gaffer-service/internal/checkout"
	"github.com/preston-bernstein/gaffer-service/internal/domain/players"
	"github.com/preston-bernstein/gaffer-service/internal/domain/squads"
	"github.com/preston-bernstein/gaffer-service/internal/domain/teams"
	"github.com/preston-bernstein/gaffer-service/internal/registry"
	"github.com/preston-bernstein/gaffer-service/internal/session"
)

const prompt = "gaffer> "

// Session is the subset of session.Session the console drives.
type Session interface {
	SquadID() string
	Players() []players.Player
	Player(id string) (players.Player, bool)
	Counts() (total, selected int)
	Search(query string) []players.Player
	Add(name string) (players.Player, error)
	Edit(id string, field registry.Field, value string) error
	Remove(id string) error
	Toggle(id string) (bool, error)
	SelectAll(selected bool)
	Balance() (teams.Team, teams.Team, error)
	Teams() (teams.Team, teams.Team, bool)
	RefreshStatus(ctx context.Context) (squads.Status, error)
	Purchase(ctx context.Context, co checkout.Checkout) (squads.Status, error)
	SavePending() bool
}

// Console reads commands from in and writes results to out.
type Console struct {
	session  Session
	in       *bufio.Reader
	out      io.Writer
	checkout checkout.Checkout
	now      func() time.Time
}

// Option configures a Console.
type Option func(*Console)

// WithCheckout replaces the interactive purchase prompt.
func WithCheckout(co checkout.Checkout) Option {
	return func(c *Console) { c.checkout = co }
}

// WithNow sets the clock used for trial countdowns.
func WithNow(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// New builds a Console. The default checkout prompts on the same input.
func New(s Session, in io.Reader, out io.Writer, opts ...Option) *Console {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	c := &Console{session: s, in: br, out: out, now: time.Now}
	c.checkout = checkout.Prompt{In: br, Out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run loops until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "Squad %s. Type help for commands.\n", c.session.SquadID())
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(c.out, prompt)
		line, err := c.readLine(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(c.out)
			return nil
		}
		if strings.TrimSpace(line) != "" {
			quit, execErr := c.Exec(ctx, line)
			if execErr != nil {
				fmt.Fprintln(c.out, describe(execErr))
			}
			if quit {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
	}
}

// readLine waits for the next line or for ctx to end. Only one read is in
// flight at a time, so the checkout prompt can share the reader.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Exec runs one command line and reports whether the user asked to quit.
func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "", "#":
		return false, nil
	case "help", "?":
		c.help()
	case "quit", "exit", "q":
		return true, nil
	case "list", "ls":
		c.printRoster(c.session.Players())
		total, selected := c.session.Counts()
		fmt.Fprintf(c.out, "%d players, %d selected\n", total, selected)
	case "find", "search":
		found := c.session.Search(rest)
		c.printRoster(found)
		total, _ := c.session.Counts()
		fmt.Fprintf(c.out, "%d of %d players match\n", len(found), total)
	case "add":
		p, err := c.session.Add(rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "added %s (%s, %d)\n", p.Name, p.Position, p.Rating)
	case "rename":
		return false, c.edit(rest, registry.FieldName)
	case "rate":
		return false, c.edit(rest, registry.FieldRating)
	case "pos":
		return false, c.edit(rest, registry.FieldPosition)
	case "rm", "remove":
		p, err := c.resolve(rest)
		if err != nil {
			return false, err
		}
		if err := c.session.Remove(p.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "removed %s\n", p.Name)
	case "pick":
		p, err := c.resolve(rest)
		if err != nil {
			return false, err
		}
		on, err := c.session.Toggle(p.ID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s %s\n", p.Name, map[bool]string{true: "selected", false: "benched"}[on])
	case "all":
		c.session.SelectAll(true)
		fmt.Fprintln(c.out, "everyone selected")
	case "none":
		c.session.SelectAll(false)
		fmt.Fprintln(c.out, "selection cleared")
	case "balance":
		one, two, err := c.session.Balance()
		if err != nil {
			return false, err
		}
		c.printTeams(one, two)
	case "teams":
		one, two, ok := c.session.Teams()
		if !ok {
			fmt.Fprintln(c.out, "no teams yet; run balance")
			return false, nil
		}
		c.printTeams(one, two)
	case "status":
		status, err := c.session.RefreshStatus(ctx)
		if err != nil {
			return false, err
		}
		c.printStatus(status)
	case "buy":
		status, err := c.session.Purchase(ctx, c.checkout)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, "thanks for your purchase")
		c.printStatus(status)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func (c *Console) edit(args string, field registry.Field) error {
	ref, value, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(value) == "" {
		return fmt.Errorf("usage: %s <player> <%s>", commandFor(field), field)
	}
	p, err := c.resolve(ref)
	if err != nil {
		return err
	}
	return c.session.Edit(p.ID, field, strings.TrimSpace(value))
}

// resolve finds a player by list number (1-based) or id.
func (c *Console) resolve(ref string) (players.Player, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return players.Player{}, errors.New("which player? give a list number or id")
	}
	list := c.session.Players()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return players.Player{}, fmt.Errorf("%w: no player #%d", registry.ErrPlayerNotFound, n)
		}
		return list[n-1], nil
	}
	if p, ok := c.session.Player(ref); ok {
		return p, nil
	}
	return players.Player{}, fmt.Errorf("%w: %s", registry.ErrPlayerNotFound, ref)
}

func (c *Console) printRoster(list []players.Player) {
	if len(list) == 0 {
		fmt.Fprintln(c.out, "no players")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for i, p := range list {
		mark := " "
		if p.IsSelected {
			mark = "x"
		}
		fmt.Fprintf(tw, "%d.\t[%s]\t%s\t%s\t%d\n", i+1, mark, p.Name, p.Position, p.Rating)
	}
	_ = tw.Flush()
}

func (c *Console) printTeams(one, two teams.Team) {
	for _, team := range []teams.Team{one, two} {
		fmt.Fprintf(c.out, "%s (total %d, D%d M%d A%d)\n", team.Name, team.TotalRating,
			team.Positions[players.Defence], team.Positions[players.Midfield], team.Positions[players.Attack])
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		for _, p := range team.Players {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", p.Name, p.Position, p.Rating)
		}
		_ = tw.Flush()
	}
}

func (c *Console) printStatus(status squads.Status) {
	switch {
	case status.IsLicensed:
		fmt.Fprintf(c.out, "squad %s: licensed\n", status.SquadID)
	case status.HasAccess:
		left := time.UnixMilli(status.TrialEndsAt).Sub(c.now())
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(c.out, "squad %s: trial, %s left\n", status.SquadID, formatRemaining(left))
	default:
		fmt.Fprintf(c.out, "squad %s: trial expired; type buy for %s (%s)\n", status.SquadID, checkout.Item, checkout.Price)
	}
	if c.session.SavePending() {
		fmt.Fprintln(c.out, "(unsaved edits pending)")
	}
}

func (c *Console) help() {
	fmt.Fprint(c.out, `commands:
  list | find <text>           show the roster, or fuzzy-search names
  add <name>                   add a player (rating 5, MIDFIELD)
  rename <n> <name>            rename player n
  rate <n> <1-10>              set rating
  pos <n> <def|mid|att>        set position
  rm <n>                       remove player n
  pick <n> | all | none        toggle or set selection
  balance | teams              split the selection, or show the last split
  status | buy                 licence status, purchase a licence
  quit
`)
}

func commandFor(field registry.Field) string {
	switch field {
	case registry.FieldRating:
		return "rate"
	case registry.FieldPosition:
		return "pos"
	default:
		return "rename"
	}
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func describe(err error) string {
	var vErr *players.ValidationError
	switch {
	case errors.As(err, &vErr):
		return "invalid: " + strings.Join(vErr.Problems, "; ")
	case errors.Is(err, balance.ErrInsufficientPlayers):
		return "select at least two players first"
	case errors.Is(err, session.ErrNoAccess):
		return err.Error()
	case errors.Is(err, checkout.ErrDeclined):
		return "purchase cancelled"
	default:
		return "error: " + err.Error()
	}
}
