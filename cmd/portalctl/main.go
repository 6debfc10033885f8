package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/cache"
	"github.com/jw6ventures/volunteerportal/internal/client"
	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/logging"
	"github.com/jw6ventures/volunteerportal/internal/portal"
)

const usage = `usage: portalctl [-config path] <command> [flags]

commands:
  configure     write base url and credentials to the config file
  list          list your individual events
  save          create or update an individual event
  delete ID     delete one of your individual events
  events        list office events (admin)
  delete-event  delete an office event (admin)
  ics           print your individual events as iCalendar
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		var verr *portal.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, "portalctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("portalctl", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	configPath := global.String("config", config.DefaultClientConfigPath(), "config file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	if cmd == "configure" {
		return configure(*configPath, rest, out)
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	api, err := client.New(client.Options{
		BaseURL: cfg.BaseURL,
		Email:   cfg.Email,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return err
	}
	store := openCache(cfg)
	defer store.Close()

	switch cmd {
	case "list":
		return listIndividual(ctx, client.NewSession(api, store, client.WithLogger(logger)), out)
	case "save":
		return saveIndividual(ctx, client.NewSession(api, store, client.WithLogger(logger)), rest, out)
	case "delete":
		return deleteIndividual(ctx, client.NewSession(api, store, client.WithLogger(logger)), rest, out)
	case "events":
		return listEvents(ctx, api, store, logger, rest, out)
	case "delete-event":
		return deleteEvent(ctx, api, store, logger, rest, out)
	case "ics":
		data, err := api.ExportICS(ctx)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openCache(cfg *config.ClientConfig) *cache.Store {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemory()
	}
	r := cfg.Cache.Redis
	return cache.NewRedis(cache.RedisOptions{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Prefix:   r.Prefix,
		TTL:      r.TTL,
	})
}

func configure(path string, args []string, out io.Writer) error {
	cfg, err := config.LoadClient(path)
	if err != nil {
		cfg = config.DefaultClientConfig()
	}
	fs := flag.NewFlagSet("configure", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "portal base url")
	fs.StringVar(&cfg.Email, "email", cfg.Email, "account email")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "API token")
	fs.StringVar(&cfg.Cache.Backend, "cache", cfg.Cache.Backend, "cache backend (memory or redis)")
	fs.StringVar(&cfg.Cache.Redis.Addr, "redis-addr", cfg.Cache.Redis.Addr, "redis address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func listIndividual(ctx context.Context, s *client.Session, out io.Writer) error {
	u, err := s.IndividualEvents(ctx)
	if err != nil {
		return err
	}
	printIndividual(out, u.IndividualEvents)
	return nil
}

func printIndividual(out io.Writer, events []portal.IndividualEvent) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDURATION\tTYPE\tORGANIZATION\tSTATUS\tDESCRIPTION")
	for _, e := range events {
		typ, org := "", ""
		if e.EventType != nil {
			typ = e.EventType.Title
		}
		if e.Organization != nil {
			org = e.Organization.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%d:%02d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date.Format("2006-01-02"), e.Duration/60, e.Duration%60, typ, org, e.Status, e.Description)
	}
	tw.Flush()
}

func saveIndividual(ctx context.Context, s *client.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	id := fs.Int64("id", portal.SentinelID, "event id to update; omit to create")
	description := fs.String("description", "", "what you did")
	office := fs.Int64("office", 0, "office id")
	date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	duration := fs.Int("duration", 0, "duration in minutes")
	eventType := fs.Int64("type", 0, "event type id")
	org := fs.Int64("org", 0, "organization id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form := portal.IndividualEventForm{
		ID:          *id,
		Description: *description,
		Duration:    portal.NormalizeDuration(*duration),
	}
	if d, err := time.Parse("2006-01-02", *date); err == nil {
		form.Date = &d
	}
	if *office > 0 {
		form.Office = &portal.Ref{ID: *office}
	}
	if *eventType > 0 {
		form.EventType = &portal.Ref{ID: *eventType}
	}
	if *org > 0 {
		form.Organization = &portal.Ref{ID: *org}
	}

	if _, err := s.IndividualEvents(ctx); err != nil {
		return err
	}
	saved, err := s.SaveIndividualEvent(ctx, form)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			if verr := apiErr.Validation(); verr != nil {
				return verr
			}
		}
		return err
	}
	printIndividual(out, []portal.IndividualEvent{saved})
	return nil
}

func deleteIndividual(ctx context.Context, s *client.Session, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: portalctl delete ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	if err := s.DeleteIndividualEvent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d\n", id)
	return nil
}

type eventArgs struct {
	fs           *flag.FlagSet
	office       string
	title        string
	organization string
	sort         portal.EventSort
}

func parseEventArgs(name string, args []string) (eventArgs, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	office := fs.String("office", portal.CurrentOffice, `office id, "current", or "" for all offices`)
	title := fs.String("title", "", "only events whose title contains this text")
	org := fs.String("org", "", "only events whose organization contains this text")
	sort := fs.String("sort", string(portal.SortStartsAtDesc), "sort order, e.g. STARTS_AT_DESC, TITLE_ASC, PARTICIPANTS_DESC")
	if err := fs.Parse(args); err != nil {
		return eventArgs{}, err
	}
	return eventArgs{fs: fs, office: *office, title: *title, organization: *org, sort: portal.ParseEventSort(*sort)}, nil
}

// listEvents reads through the session cache; a title or organization filter
// is a one-off search and goes straight to the API.
func listEvents(ctx context.Context, api *client.Client, store cache.Cache, logger *slog.Logger, args []string, out io.Writer) error {
	ea, err := parseEventArgs("events", args)
	if err != nil {
		return err
	}
	var events []portal.Event
	if ea.title != "" || ea.organization != "" {
		events, err = api.Events(ctx, client.EventQuery{
			OfficeID:     ea.office,
			Title:        ea.title,
			Organization: ea.organization,
			Sort:         ea.sort,
		})
	} else {
		s := client.NewSession(api, store, client.WithLogger(logger), client.WithEventSort(ea.sort))
		events, err = s.RefreshEvents(ctx, ea.office)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tDURATION\tPARTICIPANTS\tORGANIZATION\tTITLE")
	for _, e := range events {
		org := ""
		if e.Organization != nil {
			org = e.Organization.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
			e.ID, portal.DateLabel(e.StartsAt), portal.DurationLabel(e.StartsAt, e.EndsAt), e.SignupCount, e.Capacity, org, e.Title)
	}
	return tw.Flush()
}

func deleteEvent(ctx context.Context, api *client.Client, store cache.Cache, logger *slog.Logger, args []string, out io.Writer) error {
	ea, err := parseEventArgs("delete-event", args)
	if err != nil {
		return err
	}
	if ea.fs.NArg() != 1 {
		return errors.New("usage: portalctl delete-event [-office ID] ID")
	}
	id, err := strconv.ParseInt(ea.fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", ea.fs.Arg(0))
	}
	s := client.NewSession(api, store, client.WithLogger(logger), client.WithEventSort(ea.sort))
	if err := s.DeleteEvent(ctx, ea.office, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted event %d\n", id)
	return nil
}
