// Segsieve finds every prime in [1, limit] and prints a summary.
//
// Usage:
//
//	segsieve -limit 1000000000 -workers 16
//	segsieve -limit 1000000 -out primes.sgsv -json
//
// Without -limit the limit is read from standard input. Settings missing from
// the command line are taken from -config, or from segsieve.yml in the
// current directory.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/tamirms/segsieve"
	"github.com/tamirms/segsieve/internal/config"
)

// tailSize is how many of the largest primes are printed.
const tailSize = 100

// CLI flags parsed from command line.
type cliFlags struct {
	Limit     uint64
	Workers   int
	ChunkSize uint64
	Config    string
	Output    string
	JSON      bool
	Verbose   bool
}

// summary is the -json output.
type summary struct {
	UpperBound     uint64   `json:"upperBound"`
	Count          int      `json:"count"`
	Digest         string   `json:"digest"`
	ElapsedMS      float64  `json:"elapsedMs"`
	Workers        int      `json:"workers"`
	ChunkSize      uint64   `json:"chunkSize"`
	BootstrapBound uint64   `json:"bootstrapBound"`
	Chunks         uint64   `json:"chunks"`
	Backoffs       uint64   `json:"backoffs"`
	Shortcut       bool     `json:"shortcut"`
	Table          string   `json:"table,omitempty"`
	Primes         []uint64 `json:"primes"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("segsieve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Uint64Var(&flags.Limit, "limit", 0, "inclusive upper bound (prompted when unset)")
	fs.IntVar(&flags.Workers, "workers", segsieve.DefaultWorkers, "number of segment workers")
	fs.Uint64Var(&flags.ChunkSize, "chunk", segsieve.DefaultChunkSize, "integers per chunk")
	fs.StringVar(&flags.Config, "config", "", "path to a YAML config file (default: ./segsieve.yml if present)")
	fs.StringVar(&flags.Output, "out", "", "write the primes to this table file")
	fs.BoolVar(&flags.JSON, "json", false, "print a JSON summary")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging on stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyConfig(&flags, set); err != nil {
		return err
	}

	level := slog.LevelWarn
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if !set["limit"] && flags.Limit == 0 {
		limit, err := promptLimit(stdin, stdout)
		if err != nil {
			return err
		}
		flags.Limit = limit
	}

	if !flags.JSON {
		fmt.Fprintf(stdout, "Finding primes in [1, %s]...\n", humanize.Comma(int64(flags.Limit)))
	}
	res, err := segsieve.ComputePrimes(ctx, flags.Limit,
		segsieve.WithWorkers(flags.Workers),
		segsieve.WithChunkSize(flags.ChunkSize),
		segsieve.WithLogger(logger))
	if err != nil {
		return err
	}

	if flags.Output != "" {
		if err := segsieve.WriteTable(flags.Output, res); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
		logger.Info("table written", slog.String("path", flags.Output))
	}

	if flags.JSON {
		return writeJSON(stdout, res, flags.Output)
	}
	writeText(stdout, res, flags.Output)
	return nil
}

// applyConfig fills every flag not given on the command line from the
// config file.
func applyConfig(flags *cliFlags, set map[string]bool) error {
	var (
		cfg *config.FileConfig
		err error
	)
	if flags.Config != "" {
		cfg, err = config.LoadFile(flags.Config)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !set["limit"] && cfg.Limit != 0 {
		flags.Limit = cfg.Limit
	}
	if !set["workers"] && cfg.Workers != 0 {
		flags.Workers = cfg.Workers
	}
	if !set["chunk"] && cfg.ChunkSize != 0 {
		flags.ChunkSize = cfg.ChunkSize
	}
	if !set["out"] && cfg.Output != "" {
		flags.Output = cfg.Output
	}
	if !set["json"] && cfg.JSON {
		flags.JSON = true
	}
	if !set["verbose"] && cfg.Verbose {
		flags.Verbose = true
	}
	return nil
}

// promptLimit asks for the limit until a valid one is entered.
func promptLimit(stdin io.Reader, stdout io.Writer) (uint64, error) {
	sc := bufio.NewScanner(stdin)
	fmt.Fprintln(stdout, "Enter the upper limit of primes to find (i.e. find all primes in [1, limit]):")
	for sc.Scan() {
		limit, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
		if err == nil {
			return limit, nil
		}
		fmt.Fprintln(stdout, "Invalid number!")
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no limit given")
}

// tail returns the primes to print: all of them if there are fewer than
// tailSize, otherwise the largest tailSize, newest first.
func tail(primes []uint64) []uint64 {
	if len(primes) < tailSize {
		return primes
	}
	out := make([]uint64, tailSize)
	for i := range out {
		out[i] = primes[len(primes)-1-i]
	}
	return out
}

func writeText(w io.Writer, res *segsieve.Result, table string) {
	fmt.Fprintf(w, "Took %s to find primes. %s primes found.\n",
		res.Stats.Elapsed.Round(time.Microsecond), humanize.Comma(int64(len(res.Primes))))

	label := "Primes found"
	if len(res.Primes) >= tailSize {
		label = fmt.Sprintf("Last %d primes", tailSize)
	}
	nums := make([]string, 0, tailSize)
	for _, p := range tail(res.Primes) {
		nums = append(nums, strconv.FormatUint(p, 10))
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(nums, " "))

	if table != "" {
		fmt.Fprintf(w, "Table written to %s\n", table)
	}
}

func writeJSON(w io.Writer, res *segsieve.Result, table string) error {
	s := summary{
		UpperBound:     res.UpperBound,
		Count:          len(res.Primes),
		Digest:         fmt.Sprintf("%016x", res.Digest),
		ElapsedMS:      float64(res.Stats.Elapsed.Microseconds()) / 1000,
		Workers:        res.Stats.Workers,
		ChunkSize:      res.Stats.ChunkSize,
		BootstrapBound: res.Stats.BootstrapBound,
		Chunks:         res.Stats.ChunksMerged,
		Backoffs:       res.Stats.Backoffs,
		Shortcut:       res.Stats.Shortcut,
		Table:          table,
		Primes:         tail(res.Primes),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
