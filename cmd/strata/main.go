// Command strata inspects, verifies and benchmarks checkpoint directories
// produced by the strata storage engine.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cmdMain = &cobra.Command{
	Use:   "strata",
	Short: "Checkpoint storage engine tools",
	Run:   printUsageAndExit1,
}

var flagMain struct {
	Verbose bool
}

func init() {
	cmdMain.PersistentFlags().BoolVarP(&flagMain.Verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	_ = cmdMain.Execute()
}

// logger builds the console logger all subcommands share.
func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagMain.Verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func printUsageAndExit1(cmd *cobra.Command, _ []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func check(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}
