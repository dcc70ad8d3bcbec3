// Package cli implements trackctl, the operator command line for the
// location broker: track export, device listing and user management.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/export"
	"github.com/tbourn/go-location-broker/internal/repo"
	"github.com/tbourn/go-location-broker/internal/services"
	"github.com/tbourn/go-location-broker/internal/sysutil"
	"github.com/tbourn/go-location-broker/internal/timewindow"
)

// ErrUnknownDatalogger is returned by export for an id with no stored points.
var ErrUnknownDatalogger = errors.New("unknown datalogger")

// UsageError reports a missing or unknown subcommand.
type UsageError struct {
	Program string
}

func (u UsageError) Error() string {
	if u.Program == "" {
		u.Program = "trackctl"
	}
	return fmt.Sprintf("Usage: %s <command> [options]", u.Program)
}

// UsageLines lists the available subcommands.
func (UsageError) UsageLines() []string {
	return []string{
		"Commands:",
		"  export    Write a datalogger's track as gpx, geojson or csv",
		"  devices   List dataloggers that have stored trackpoints",
		"  adduser   Create a user for HTTP Basic authentication",
	}
}

// Store is an open database with the configuration it was opened from.
type Store struct {
	DB     *gorm.DB
	Config config.Config
	Close  func() error
}

// CLI runs subcommands against a Store.
type CLI struct {
	Program string
	Stdout  io.Writer
	Stderr  io.Writer
	Open    func() (*Store, error)
	Now     func() time.Time
}

// RunCLI executes args against the database named by the environment.
func RunCLI(prog string, args []string, stdout, stderr io.Writer) error {
	c := &CLI{Program: prog, Stdout: stdout, Stderr: stderr, Now: time.Now}
	c.Open = c.openFromEnv
	return c.Run(args)
}

// Run dispatches args[0] to its subcommand. Failures other than usage
// errors are also written to Stderr.
func (c *CLI) Run(args []string) error {
	if len(args) < 1 {
		return UsageError{Program: c.Program}
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "export":
		err = c.runExport(rest)
	case "devices":
		err = c.runDevices(rest)
	case "adduser":
		err = c.runAddUser(rest)
	default:
		return UsageError{Program: c.Program}
	}
	if errors.Is(err, flag.ErrHelp) {
		return UsageError{Program: c.Program}
	}
	if err != nil {
		fmt.Fprintf(c.Stderr, "error: %v\n", err)
	}
	return err
}

func (c *CLI) openFromEnv() (*Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	sysutil.ConfigureLogger(cfg.LogLevel, true, c.Stderr)
	db, err := repo.Open(cfg.DB, false)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	return &Store{
		DB:     db,
		Config: cfg,
		Close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

func (c *CLI) withStore(fn func(ctx context.Context, s *Store) error) error {
	s, err := c.Open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(context.Background(), s)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *CLI) runExport(args []string) error {
	fs := newFlagSet("export")
	var (
		dlID               uint
		start, end, length string
		outFormat, outFile string
	)
	fs.UintVar(&dlID, "datalogger", 0, "datalogger id (required)")
	fs.UintVar(&dlID, "dl", 0, "alias of --datalogger")
	fs.StringVar(&start, "starttime", "", "window start, RFC 3339 with zone (default endtime minus timelength)")
	fs.StringVar(&end, "endtime", "", "window end, RFC 3339 with zone (default now)")
	fs.StringVar(&length, "timelength", "", "window length, e.g. 500s, 10m, 6h, 5d, 4w (default TRACK_DEFAULT_LENGTH)")
	fs.StringVar(&length, "tl", "", "alias of --timelength")
	fs.StringVar(&outFormat, "outformat", string(export.GPX), "output format: gpx, geojson or csv")
	fs.StringVar(&outFormat, "o", string(export.GPX), "alias of --outformat")
	fs.StringVar(&outFile, "outfile", "", "output file (default stdout)")
	fs.StringVar(&outFile, "O", "", "alias of --outfile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if dlID == 0 {
		return errors.New("--datalogger is required")
	}
	format, err := export.ParseFormat(outFormat)
	if err != nil {
		return err
	}

	return c.withStore(func(ctx context.Context, s *Store) error {
		from, to, err := timewindow.Resolve(start, end, sysutil.FirstNonEmpty(length, s.Config.DefaultLength), c.Now())
		if err != nil {
			return err
		}

		trackSvc := services.NewTrackService(s.DB, repo.Store{})
		if s.Config.TrackGap > 0 {
			trackSvc.GapThreshold = s.Config.TrackGap
		}
		track, err := trackSvc.Reconstruct(ctx, dlID, from, to)
		if errors.Is(err, services.ErrDeviceNotFound) {
			c.suggestDataloggers(ctx, s, dlID)
			return fmt.Errorf("%w: %d", ErrUnknownDatalogger, dlID)
		}
		if err != nil {
			return err
		}

		if outFile == "" {
			return export.Write(c.Stdout, format, track)
		}
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		if err := export.Write(f, format, track); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(c.Stderr, "wrote %d points in %d segments to %s\n", track.PointCount(), len(track.Segments), outFile)
		return nil
	})
}

// suggestDataloggers prints the ids that do have points.
func (c *CLI) suggestDataloggers(ctx context.Context, s *Store, id uint) {
	fmt.Fprintf(c.Stderr, "Datalogger id %d does not exist\n", id)
	known, err := services.NewDeviceService(s.DB, repo.Store{}).Known(ctx)
	if err != nil || len(known) == 0 {
		return
	}
	fmt.Fprintln(c.Stderr, "Try one of these:")
	for _, d := range known {
		fmt.Fprintf(c.Stderr, "%d %s\n", d.ID, d.DevID)
	}
}

func (c *CLI) runDevices(args []string) error {
	if err := newFlagSet("devices").Parse(args); err != nil {
		return err
	}
	return c.withStore(func(ctx context.Context, s *Store) error {
		known, err := services.NewDeviceService(s.DB, repo.Store{}).Known(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDEVID\tDECODER\tPOINTS\tLAST ACTIVITY")
		for _, d := range known {
			last := "-"
			if d.ActivityAt != nil {
				last = d.ActivityAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.DevID, d.Decoder, d.Points, last)
		}
		return tw.Flush()
	})
}

func (c *CLI) runAddUser(args []string) error {
	fs := newFlagSet("adduser")
	username := fs.String("username", "", "username (required)")
	password := fs.String("password", os.Getenv("TRACKCTL_PASSWORD"), "password (default $TRACKCTL_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("--username and --password are required")
	}
	return c.withStore(func(ctx context.Context, s *Store) error {
		u, err := services.NewUserService(s.DB, repo.Store{}).Register(ctx, *username, *password)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout, "created user %s (id %d)\n", u.Username, u.ID)
		return nil
	})
}
