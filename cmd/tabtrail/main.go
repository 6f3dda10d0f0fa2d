package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vidyasagar/tabtrail/internal/app"
	"github.com/vidyasagar/tabtrail/internal/logging"
	"github.com/vidyasagar/tabtrail/internal/storage"
	"github.com/vidyasagar/tabtrail/internal/theme"
)

var (
	version = "0.1.0"
)

func main() {
	var (
		themeName   string
		showVersion bool
	)

	flag.StringVar(&themeName, "theme", "", "color theme (default, gruvbox, nord, dracula)")
	flag.BoolVar(&showVersion, "version", false, "show version")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tabtrail - a terminal browser that remembers where you've been\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tabtrail [flags] [url]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tabtrail                        # start with welcome screen\n")
		fmt.Fprintf(os.Stderr, "  tabtrail https://example.com    # open a URL\n")
		fmt.Fprintf(os.Stderr, "  tabtrail golang.org             # auto-adds https://\n")
		fmt.Fprintf(os.Stderr, "  tabtrail --theme nord           # use nord theme\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("tabtrail %s\n", version)
		os.Exit(0)
	}

	var logger *slog.Logger
	if dataDir, err := storage.DataDir(); err == nil {
		logger = logging.Setup(dataDir, slog.LevelInfo)
	}

	var startURL string
	if flag.NArg() > 0 {
		startURL = flag.Arg(0)
	}

	m := app.New(startURL, logger)

	// The flag overrides whatever the config file chose.
	if themeName != "" && !theme.Set(themeName) {
		fmt.Fprintf(os.Stderr, "Unknown theme: %s\nAvailable: default, gruvbox, nord, dracula\n", themeName)
		os.Exit(1)
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
