// Bench is a benchmarking tool for measuring segsieve throughput, scaling
// across worker counts, and memory usage.
//
// Usage:
//
//	go run ./cmd/bench -limit 1000000000 -workers 1,4,16
//
// Flags:
//
//	-limit     Inclusive upper bound to sieve (default: 100,000,000)
//	-workers   Comma-separated worker counts to run (default: 1,4,16)
//	-chunk     Chunk size (default: 100,000)
//	-table     Also write and query a prime table (default: true)
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spaolacci/murmur3"

	"github.com/tamirms/segsieve"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// murmurDigest hashes the sequence with MurmurHash3 x64 128, independently of
// the xxHash digest computed by the merger.
func murmurDigest(primes []uint64) (uint64, uint64) {
	h := murmur3.New128WithSeed(0x5eed)
	buf := make([]byte, 0, 8*1024)
	for len(primes) > 0 {
		n := min(len(primes), 1024)
		buf = buf[:0]
		for _, p := range primes[:n] {
			buf = binary.LittleEndian.AppendUint64(buf, p)
		}
		_, _ = h.Write(buf) // hash.Hash.Write never fails
		primes = primes[n:]
	}
	return h.Sum128()
}

// memSampler tracks peak heap and RSS at 10ms intervals.
// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses
// that distort CPU profiles.
type memSampler struct {
	peakAlloc atomic.Uint64
	peakRSS   atomic.Uint64
	done      chan struct{}
}

func startSampler(baseAlloc, baseRSS uint64) *memSampler {
	s := &memSampler{done: make(chan struct{})}
	s.peakAlloc.Store(baseAlloc)
	s.peakRSS.Store(baseRSS)
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				raise(&s.peakAlloc, samples[0].Value.Uint64())
				raise(&s.peakRSS, getMaxRSS())
			}
		}
	}()
	return s
}

func raise(v *atomic.Uint64, x uint64) {
	for {
		old := v.Load()
		if x <= old || v.CompareAndSwap(old, x) {
			return
		}
	}
}

func (s *memSampler) stop() {
	close(s.done)
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	raise(&s.peakAlloc, final.Alloc)
	raise(&s.peakRSS, getMaxRSS())
}

// runResult is one row of the summary table.
type runResult struct {
	workers  int
	primes   int
	elapsed  time.Duration
	backoffs uint64
	peakHeap uint64
	peakRSS  uint64
	digest   uint64
	mm1, mm2 uint64
}

func parseWorkers(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || w < 1 {
			return nil, fmt.Errorf("invalid worker count %q", f)
		}
		out = append(out, w)
	}
	return out, nil
}

func main() {
	limitFlag := flag.Uint64("limit", 100_000_000, "inclusive upper bound")
	workersFlag := flag.String("workers", "1,4,16", "comma-separated worker counts")
	chunkFlag := flag.Uint64("chunk", segsieve.DefaultChunkSize, "chunk size")
	tableFlag := flag.Bool("table", true, "write and query a prime table after the last run")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sieve phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (after the last run)")
	flag.Parse()

	workerCounts, err := parseWorkers(*workersFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	var (
		results []runResult
		last    *segsieve.Result
	)
	for _, w := range workerCounts {
		fmt.Printf("Sieving [1, %d] with %d workers...\n", *limitFlag, w)

		runtime.GC()
		time.Sleep(50 * time.Millisecond)
		var baseline runtime.MemStats
		runtime.ReadMemStats(&baseline)
		baselineRSS := getMaxRSS()
		sampler := startSampler(baseline.Alloc, baselineRSS)

		res, err := segsieve.ComputePrimes(context.Background(), *limitFlag,
			segsieve.WithWorkers(w), segsieve.WithChunkSize(*chunkFlag))
		sampler.stop()
		if err != nil {
			fmt.Printf("ComputePrimes failed: %v\n", err)
			return
		}

		r := runResult{
			workers:  w,
			primes:   len(res.Primes),
			elapsed:  res.Stats.Elapsed,
			backoffs: res.Stats.Backoffs,
			peakHeap: sampler.peakAlloc.Load() - min(baseline.Alloc, sampler.peakAlloc.Load()),
			peakRSS:  sampler.peakRSS.Load() - min(baselineRSS, sampler.peakRSS.Load()),
			digest:   res.Digest,
		}
		r.mm1, r.mm2 = murmurDigest(res.Primes)
		results = append(results, r)
		last = res
	}

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	// Every run must produce the same sequence.
	for _, r := range results[1:] {
		if r.digest != results[0].digest || r.mm1 != results[0].mm1 || r.mm2 != results[0].mm2 {
			fmt.Printf("MISMATCH: workers=%d produced a different sequence than workers=%d\n",
				r.workers, results[0].workers)
			os.Exit(1)
		}
	}

	fmt.Printf("\n")
	fmt.Printf("╔═════════╦══════════════╦════════════╦══════════╦════════════╦════════════╗\n")
	fmt.Printf("║ Workers ║ Time         ║ M nums/sec ║ Backoffs ║ Peak heap  ║ Peak RSS   ║\n")
	fmt.Printf("╠═════════╬══════════════╬════════════╬══════════╬════════════╬════════════╣\n")
	for _, r := range results {
		fmt.Printf("║ %7d ║ %9.3f s  ║ %10.2f ║ %8d ║ %7.1f MB ║ %7.1f MB ║\n",
			r.workers, r.elapsed.Seconds(),
			float64(*limitFlag)/r.elapsed.Seconds()/1_000_000,
			r.backoffs,
			float64(r.peakHeap)/1_000_000, float64(r.peakRSS)/1_000_000)
	}
	fmt.Printf("╚═════════╩══════════════╩════════════╩══════════╩════════════╩════════════╝\n")
	fmt.Printf("primes: %s  xxh64: %016x  murmur3: %016x%016x\n",
		humanize.Comma(int64(results[0].primes)), results[0].digest, results[0].mm1, results[0].mm2)

	if *tableFlag && last != nil {
		if err := benchTable(last); err != nil {
			fmt.Printf("table benchmark failed: %v\n", err)
			os.Exit(1)
		}
	}
}

// benchTable writes res as a table, verifies it, and measures PrimePi latency.
func benchTable(res *segsieve.Result) error {
	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "primes.sgsv")

	writeStart := time.Now()
	if err := segsieve.WriteTable(path, res); err != nil {
		return err
	}
	writeDuration := time.Since(writeStart)

	tbl, err := segsieve.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = tbl.Close() }()

	verifyStart := time.Now()
	if err := tbl.Verify(); err != nil {
		return err
	}
	verifyDuration := time.Since(verifyStart)

	const numQueries = 100_000
	xs := make([]uint64, numQueries)
	for i := range xs {
		xs[i] = mrand.Uint64N(res.UpperBound + 1)
	}
	queryStart := time.Now()
	for _, x := range xs {
		_, _ = tbl.PrimePi(x) // Benchmark: measuring throughput, not correctness
	}
	avgLatency := float64(time.Since(queryStart).Nanoseconds()) / numQueries / 1000

	st := tbl.Stats()
	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╗\n")
	fmt.Printf("║ Table size          ║ %9.1f MB   ║\n", float64(st.TableSize)/1_000_000)
	fmt.Printf("║ Bytes per prime     ║ %9.3f      ║\n", st.BytesPerPrime)
	fmt.Printf("║ Write time          ║ %9.3f s    ║\n", writeDuration.Seconds())
	fmt.Printf("║ Verify time         ║ %9.3f s    ║\n", verifyDuration.Seconds())
	fmt.Printf("║ PrimePi latency     ║ %9.3f μs   ║\n", avgLatency)
	fmt.Printf("╚═════════════════════╩════════════════╝\n")
	return nil
}
