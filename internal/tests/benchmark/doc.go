// Package benchmark provides performance benchmarks for the abook cache.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run the cache benchmarks only:
//
//	go test -bench=BenchmarkCache -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
