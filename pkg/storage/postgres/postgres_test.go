package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/pkg/storage/postgres"
)

// connStr returns the PostgreSQL connection string from the environment or
// skips the test.
func connStr() string {
	dsn := os.Getenv("RELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("RELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		_, err = driver.DB.ExecContext(ctx, "DELETE FROM journal_entries")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("round-trips every field", func() {
		want := &journal.Entry{
			ID:         "pg-1",
			Timestamp:  time.Date(2026, 5, 4, 10, 0, 0, 123, time.UTC),
			Type:       journal.TypeWarning,
			Message:    "/api/relay stream failed with status 502",
			Route:      "/api/relay",
			Streaming:  true,
			Status:     502,
			DurationMs: 12,
		}
		Expect(driver.Put(ctx, want)).To(Succeed())
		Expect(driver.Put(ctx, want)).To(Succeed())

		got, err := driver.Get(ctx, "pg-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("lists newest first", func() {
		base := time.Now().UTC()
		for i, id := range []string{"a", "b", "c"} {
			e := &journal.Entry{ID: id, Timestamp: base.Add(time.Duration(i) * time.Second), Type: journal.TypeInfo}
			Expect(driver.Put(ctx, e)).To(Succeed())
		}

		entries, err := driver.List(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ID).To(Equal("c"))
		Expect(entries[1].ID).To(Equal("b"))
	})

	It("returns NotFoundError for unknown IDs", func() {
		_, err := driver.Get(ctx, "nope")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "nope"}))
	})
})
