// hlbm prints and creates Hotline bookmark files.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/hltracker/internal/bookmark"
	"github.com/woozymasta/hltracker/internal/logger"
	"github.com/woozymasta/hltracker/internal/vars"
)

type options struct {
	Logger logger.Config `group:"Logger Options" namespace:"log" env-namespace:"HLBM_LOG"`

	Print  printCommand  `command:"print" description:"Print the contents of bookmark files"`
	Create createCommand `command:"create" description:"Write a new bookmark file"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

type printCommand struct {
	JSON bool `long:"json" description:"Print bookmarks as JSON"`
	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"true" required:"true"`
}

type createCommand struct {
	Username string `short:"u" long:"username" description:"Login stored in the bookmark"`
	Password string `short:"p" long:"password" description:"Password stored in the bookmark"`
	Args     struct {
		File    string `positional-arg-name:"file" required:"true"`
		Address string `positional-arg-name:"address" required:"true"`
	} `positional-args:"true" required:"true"`
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

	switch parser.Active.Name {
	case "print":
		if !printBookmarks(opts.Print) {
			os.Exit(1)
		}

	case "create":
		c := opts.Create
		b := bookmark.New(c.Args.Address).WithCredentials(c.Username, c.Password)
		if err := b.WriteFile(c.Args.File); err != nil {
			log.Fatal().Err(err).Str("file", c.Args.File).Msg("Failed to write bookmark")
		}
		log.Info().Str("file", c.Args.File).Str("address", c.Args.Address).Msg("Bookmark created")
	}
}

// printBookmarks prints every readable file and reports whether all of them were.
func printBookmarks(cmd printCommand) bool {
	ok := true
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, file := range cmd.Args.Files {
		b, err := bookmark.ReadFile(file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("Failed to read bookmark")
			ok = false
			continue
		}

		if cmd.JSON {
			_ = enc.Encode(b)
			continue
		}

		fmt.Printf("%s\n  address:  %s\n  username: %s\n  password: %s\n",
			file, b.Address, b.Username, b.Password)
	}

	return ok
}
