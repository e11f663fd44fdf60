// Command aimarketctl browses the marketplace and submits or moderates
// listings through the /aiapps API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/apiclient"
	"github.com/MrSnakeDoc/aimarket/internal/catalog"
	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/submission"
	"github.com/MrSnakeDoc/aimarket/internal/version"
)

const usage = `usage: aimarketctl [-api URL] <command> [flags]

commands:
  list       [-use-case TAG] [-all]   print the catalog
  use-cases                           print the use-case filter options
  submit     -name -url -description -use-case -region -added-by -email [-image]
  approve    [-by NAME] ID
  delete     ID
  version                             print build information
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "aimarketctl:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("aimarketctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	api := fs.String("api", envOr("AIMARKET_API_URL", "http://localhost:8080"), "API base URL")
	debug := fs.Bool("debug", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	log := logger.New(level, true)
	defer func() { _ = log.Sync() }()

	client := apiclient.New(*api)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "list":
		return list(ctx, client, rest, out)
	case "use-cases":
		return useCases(ctx, client, out)
	case "submit":
		return submit(ctx, client, rest, out, log)
	case "approve":
		return approve(ctx, client, rest, out)
	case "delete":
		return remove(ctx, client, rest, out)
	case "version":
		_, err := fmt.Fprintln(out, "aimarketctl", version.Get())
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func list(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	useCase := fs.String("use-case", "", "only listings tagged with this use case")
	all := fs.Bool("all", false, "include pending listings (admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *all {
		listings, err := c.ListAll(ctx)
		if err != nil {
			return err
		}
		return printModeration(out, catalog.Filter(listings, *useCase))
	}

	listings, err := c.List(ctx)
	if err != nil {
		return err
	}
	return catalog.RenderText(out, catalog.View(listings, *useCase))
}

// printModeration lists every entry with its id and approval state.
func printModeration(out io.Writer, listings []*domain.Listing) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tREGION\tSTATUS\tSUBMITTED BY")
	for _, l := range listings {
		status := "pending"
		if l.Active {
			status = "active"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s <%s>\n", l.ID, l.Name, l.Region, status, l.AddedBy, l.AddedByEmail)
	}
	return tw.Flush()
}

func useCases(ctx context.Context, c *apiclient.Client, out io.Writer) error {
	listings, err := c.List(ctx)
	if err != nil {
		return err
	}
	for _, o := range catalog.UseCaseOptions(catalog.Prepare(listings)) {
		if _, err := fmt.Fprintln(out, o.Label); err != nil {
			return err
		}
	}
	return nil
}

func submit(ctx context.Context, c *apiclient.Client, args []string, out io.Writer, log logger.Logger) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var form domain.Submission
	fs.StringVar(&form.Name, "name", "", "service name")
	fs.StringVar(&form.URL, "url", "", "service URL")
	fs.StringVar(&form.Description, "description", "", "short description")
	fs.StringVar(&form.UseCase, "use-case", "", "comma separated use cases")
	fs.StringVar(&form.Region, "region", "", "Finland or Europe (required)")
	fs.StringVar(&form.ImageKey, "image", "", "logo URL")
	fs.StringVar(&form.AddedBy, "added-by", "", "your name")
	fs.StringVar(&form.AddedByEmail, "email", "", "your email")
	statePath := fs.String("state", "", "rate limit state file (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var storage submission.Storage
	path := *statePath
	if path == "" {
		if p, err := submission.DefaultStoragePath(); err == nil {
			path = p
		}
	}
	if path != "" {
		storage = submission.FileStorage{Path: path}
	}

	limiter := submission.LoadRateLimiter(storage, submission.DefaultMaxSubmissions, submission.DefaultWindow, time.Now(), log)
	ctrl := submission.NewController(c, submission.Options{Limiter: limiter, Logger: log})
	ctrl.Toggle()
	ctrl.SetForm(form)

	created, err := ctrl.Submit(ctx)
	if err != nil {
		if alert := ctrl.Alert(); alert != "" {
			return errors.New(alert)
		}
		return err
	}
	_, err = fmt.Fprintf(out, "submitted %q (id %s), pending approval\n", created.Name, created.ID)
	return err
}

func approve(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	by := fs.String("by", "", "moderator name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("approve: expected exactly one listing id")
	}
	l, err := c.Approve(ctx, fs.Arg(0), *by)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "approved %q by %s\n", l.Name, l.ApprovedBy)
	return err
}

func remove(ctx context.Context, c *apiclient.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("delete: expected exactly one listing id")
	}
	if err := c.Delete(ctx, args[0]); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "deleted %s\n", args[0])
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
