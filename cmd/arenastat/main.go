// Command arenastat replays synthetic allocation workloads against bump arenas
// and reports how much memory they hold.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func main() {
	app := kingpin.New("arenastat", "Replay allocation workloads against bump arenas.")
	verbose := app.Flag("verbose", "Log arena growth and per-phase progress.").Short('v').Bool()

	addRunCommand(app, verbose)
	addClassesCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
