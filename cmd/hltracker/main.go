// hltracker queries Hotline trackers and prints their server listings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/woozymasta/hltracker/internal/client"
	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/vars"
)

// maxParallel bounds concurrent tracker connections.
const maxParallel = 8

type options struct {
	Logger logger.Config `group:"Logger Options" namespace:"log" env-namespace:"HLTRACKER_LOG"`

	List listCommand `command:"list" alias:"ls" description:"List the servers registered with one or more trackers"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

type listCommand struct {
	JSON    bool          `long:"json" description:"Print listings as JSON"`
	Timeout time.Duration `short:"t" long:"timeout" description:"Per-tracker timeout" default:"15s"`
	Args    struct {
		Trackers []string `positional-arg-name:"tracker" required:"1"`
	} `positional-args:"true" required:"true"`
}

// trackerListing is the JSON form of one tracker response.
type trackerListing struct {
	listing *client.Listing

	Tracker string          `json:"tracker"`
	Error   string          `json:"error,omitempty"`
	Servers []listingServer `json:"servers"`
}

type listingServer struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Port        uint16 `json:"port"`
	UsersOnline uint16 `json:"users_online"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.NamespaceDelimiter = "-"
	parser.SubcommandsOptional = true

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		vars.Print()
		return
	}
	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	logger.Setup(opts.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := fetchAll(ctx, opts.List.Args.Trackers, opts.List.Timeout)

	var err error
	if opts.List.JSON {
		err = writeJSON(os.Stdout, results)
	} else {
		writeTable(os.Stdout, results)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}

// fetchAll queries every tracker concurrently; results keep the argument order.
func fetchAll(ctx context.Context, trackers []string, timeout time.Duration) []trackerListing {
	results := make([]trackerListing, len(trackers))

	var g errgroup.Group
	g.SetLimit(maxParallel)

	for i, tracker := range trackers {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			results[i].Tracker = client.Address(tracker)
			listing, err := client.Fetch(fetchCtx, tracker)
			if listing != nil {
				results[i].listing = listing
				results[i].Servers = toServers(listing)
			}
			if err != nil {
				log.Error().Err(err).Str("tracker", tracker).Msg("Failed to fetch listing")
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func toServers(l *client.Listing) []listingServer {
	out := make([]listingServer, 0, len(l.Servers))
	for _, s := range l.Servers {
		out = append(out, listingServer{
			Address:     s.Address.String(),
			Name:        s.Name.String(),
			Description: s.Description.String(),
			Port:        s.Port,
			UsersOnline: s.UsersOnline,
		})
	}
	return out
}

func writeTable(w io.Writer, results []trackerListing) {
	for _, r := range results {
		if r.listing == nil {
			continue
		}

		fmt.Fprintf(w, "%s: %d servers\n", r.Tracker, len(r.Servers))

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Name", "Address", "Users", "Description"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetAutoFormatHeaders(false)
		for _, s := range r.Servers {
			table.Append([]string{
				s.Name,
				s.Address + ":" + strconv.Itoa(int(s.Port)),
				strconv.Itoa(int(s.UsersOnline)),
				s.Description,
			})
		}
		table.Render()
	}
}

func writeJSON(w io.Writer, results []trackerListing) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
