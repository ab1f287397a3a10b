package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/storage/memory"
)

// UserCounts defines the user counts for benchmarking.
var UserCounts = []int{1000, 10000, 50000}

// SmallUserCounts for quick benchmarks.
var SmallUserCounts = []int{100, 1000, 5000}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userName(i int) string {
	return fmt.Sprintf("user-%d", i)
}

// seedStore creates count active users with plaintext password "pw" and a
// small address book each.
func seedStore(b *testing.B, count int) (*memory.Store, []domain.UserID) {
	b.Helper()
	ctx := context.Background()
	store := memory.New()
	ids := make([]domain.UserID, count)
	records := make([]domain.AddressBookRecord, 0, count)
	for i := 0; i < count; i++ {
		id, err := store.PutUser(ctx, &domain.StoredUser{Username: userName(i), Active: true}, "pw")
		if err != nil {
			b.Fatalf("PutUser failed: %v", err)
		}
		ids[i] = id
		records = append(records, domain.AddressBookRecord{
			UserID:  id,
			Content: domain.AddressBook(fmt.Sprintf(`{"peers":[{"id":"%d"}]}`, i)),
		})
	}
	if _, err := store.UpsertAddressBooks(ctx, records); err != nil {
		b.Fatalf("UpsertAddressBooks failed: %v", err)
	}
	return store, ids
}

// loginAll opens one session per user and returns the tokens.
func loginAll(b *testing.B, cache *service.Cache, count int) []domain.Token {
	b.Helper()
	ctx := context.Background()
	tokens := make([]domain.Token, count)
	for i := 0; i < count; i++ {
		res, err := cache.Login(ctx, userName(i), "pw")
		if err != nil {
			b.Fatalf("Login failed: %v", err)
		}
		tokens[i] = res.Token
	}
	return tokens
}

func newCache(store service.Store) *service.Cache {
	return service.NewCache(store, service.WithLogger(quietLogger()))
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

// runWithUserCounts runs a benchmark function with various user counts.
func runWithUserCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("users_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
