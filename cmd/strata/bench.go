package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dreamware/strata/internal/encoding"
	"github.com/dreamware/strata/internal/plan"
	"github.com/dreamware/strata/internal/storage"
)

var cmdBench = &cobra.Command{
	Use:   "bench <checkpoint-dir>",
	Short: "Write a synthetic checkpoint and report throughput",
	Args:  cobra.ExactArgs(1),
	Run:   runBench,
}

var flagBench struct {
	Options     string
	Tensors     int
	TensorBytes int64
	Blobs       int
	Threads     int
}

func init() {
	cmdBench.Flags().StringVar(&flagBench.Options, "options", "", "Writer options yaml file")
	cmdBench.Flags().IntVar(&flagBench.Tensors, "tensors", 64, "Number of tensor items")
	cmdBench.Flags().Int64Var(&flagBench.TensorBytes, "tensor-bytes", 4<<20, "Bytes per tensor item")
	cmdBench.Flags().IntVar(&flagBench.Blobs, "blobs", 16, "Number of byte-blob items")
	cmdBench.Flags().IntVar(&flagBench.Threads, "threads", 0, "Override writer thread count")
	cmdMain.AddCommand(cmdBench)
}

// benchSource serves randomly filled payloads generated up front, so the
// benchmark measures the engine rather than the generator.
type benchSource struct {
	payloads map[string][]byte
}

func (s *benchSource) ResolveSource(item plan.WriteItem) (plan.Source, error) {
	data, ok := s.payloads[item.Key]
	if !ok {
		return plan.Source{}, fmt.Errorf("no payload for %q", item.Key)
	}
	return plan.Source{Data: data}, nil
}

func runBench(_ *cobra.Command, args []string) {
	log := logger()

	opts := storage.DefaultOptions(args[0])
	if flagBench.Options != "" {
		loaded, err := storage.LoadOptions(flagBench.Options)
		check(err)
		loaded.Dir = args[0]
		opts = loaded
	}
	if flagBench.Threads > 0 {
		opts.ThreadCount = flagBench.Threads
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	src := &benchSource{payloads: make(map[string][]byte)}
	var items []plan.WriteItem
	var total int64

	for i := 0; i < flagBench.Tensors; i++ {
		key := fmt.Sprintf("tensor.%04d", i)
		data := make([]byte, flagBench.TensorBytes)
		rng.Read(data)
		src.payloads[key] = data
		items = append(items, plan.WriteItem{
			Key:    key,
			Kind:   plan.Tensor,
			Tensor: &plan.TensorMeta{Shape: plan.Shape{flagBench.TensorBytes}, DType: plan.Uint8},
		})
		total += flagBench.TensorBytes
	}
	for i := 0; i < flagBench.Blobs; i++ {
		key := fmt.Sprintf("blob.%04d", i)
		data := make([]byte, 256)
		rng.Read(data)
		src.payloads[key] = data
		items = append(items, plan.WriteItem{Key: key, Kind: plan.ByteIO})
		total += int64(len(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := storage.NewFileWriter(opts, log)
	check(err)

	p, err := w.PrepareLocalPlan(plan.SavePlan{Items: items})
	check(err)
	plans, err := w.PrepareGlobalPlans([]plan.SavePlan{p})
	check(err)

	start := time.Now()
	results, err := w.Write(ctx, plans[0], src).Wait()
	check(err)
	check(w.Finish(&encoding.Metadata{}, [][]plan.WriteResult{results}))
	elapsed := time.Since(start)

	rate := float64(total) / elapsed.Seconds()
	fmt.Printf("wrote %s in %s (%s/s, %d items, %d threads)\n",
		humanize.Bytes(uint64(total)), elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(rate)), len(results), opts.ThreadCount)
}
