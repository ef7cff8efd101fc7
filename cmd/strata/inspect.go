package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/dreamware/strata/internal/storage"
)

var cmdInspect = &cobra.Command{
	Use:   "inspect <checkpoint-dir>",
	Short: "Print a checkpoint's metadata and storage index",
	Args:  cobra.ExactArgs(1),
	Run:   runInspect,
}

func init() {
	cmdMain.AddCommand(cmdInspect)
}

func runInspect(_ *cobra.Command, args []string) {
	r := storage.NewFileReader(args[0], logger())
	md, err := r.ReadMetadata()
	check(err)

	fmt.Printf("checkpoint  %s\n", md.CheckpointID)
	fmt.Printf("created     %s (%s)\n", md.CreatedAt.Format("2006-01-02 15:04:05 MST"), humanize.Time(md.CreatedAt))
	fmt.Printf("items       %d\n", len(md.Index))
	if len(md.App) > 0 {
		fmt.Printf("app bytes   %s\n", humanize.Bytes(uint64(len(md.App))))
	}
	fmt.Println()

	keys := make([]string, 0, len(md.Index))
	for key := range md.Index {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tKIND\tSHARD\tOFFSET\tSIZE")
	for _, key := range keys {
		entry := md.Index[key]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			key, entry.Kind, entry.Locator.Path, entry.Locator.Offset,
			humanize.Bytes(uint64(entry.Locator.Length)))
	}
	check(w.Flush())
}
