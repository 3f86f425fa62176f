// Package segsieve computes every prime in [1, N] with a segmented Sieve of
// Eratosthenes spread across a pool of goroutines.
//
// # Basic Usage
//
// Computing primes:
//
//	res, err := segsieve.ComputePrimes(ctx, 1_000_000_000,
//	    segsieve.WithWorkers(16), segsieve.WithChunkSize(1_000_000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(res.Primes), "primes")
//
// Saving and querying a result:
//
//	if err := segsieve.WriteTable("primes.sgsv", res); err != nil {
//	    log.Fatal(err)
//	}
//	tbl, err := segsieve.Open("primes.sgsv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tbl.Close()
//	n, _ := tbl.PrimePi(1_000_000)
//	fmt.Println(n) // 78498
//
// # How a run works
//
// A single-threaded bootstrap sieve finds the primes up to B = 2*sqrt(chunk),
// raised if needed until B*B > B+chunk. Workers then claim consecutive chunks
// from a shared frontier. A chunk is handed out only once every prime up to
// the square root of its end has been merged. Finished chunks go to a single
// merge goroutine, which appends them to the prime sequence strictly in order
// and wakes the workers whenever progress advances.
//
// # Package Structure
//
//   - Public API: sieve.go (ComputePrimes, Primes), options.go (Option, With* functions)
//   - Engine: engine.go (run, phases), frontier.go (chunk claims), worker.go,
//     merge.go, progress.go (published prime sequence), signal.go (wake-ups, result queue)
//   - Instrumentation: observer.go (Observer), digest.go (SequenceDigest)
//   - Table files: header.go, table_writer.go (WriteTable), table.go (Open, Table)
//   - Platform: platform_*.go (OS-specific file reservation and paging hints)
package segsieve
