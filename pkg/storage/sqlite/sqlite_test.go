package sqlite_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/pkg/storage/sqlite"
)

func entryAt(id string, at time.Time) *journal.Entry {
	return &journal.Entry{
		ID:         id,
		Timestamp:  at,
		Type:       journal.TypeAI,
		Message:    "/api/relay stream completed",
		Route:      "/api/relay",
		RequestID:  "req-" + id,
		Streaming:  true,
		Status:     200,
		Frames:     12,
		Bytes:      2048,
		DurationMs: 340,
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("creates a file database", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "journal.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(dbPath).To(BeAnExistingFile())
	})

	It("reopens an existing file database without losing entries", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "journal.db")

		first, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Put(ctx, entryAt("kept", base))).To(Succeed())
		Expect(first.Close()).To(Succeed())

		second, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		got, err := second.Get(ctx, "kept")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.RequestID).To(Equal("req-kept"))
	})

	It("keeps separate in-memory databases apart", func() {
		other, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer other.Close()

		Expect(driver.Put(ctx, entryAt("a", base))).To(Succeed())

		entries, err := other.List(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("round-trips every field", func() {
		want := entryAt("a", base)
		Expect(driver.Put(ctx, want)).To(Succeed())

		got, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("keeps the first entry stored under an ID", func() {
		Expect(driver.Put(ctx, entryAt("a", base))).To(Succeed())

		dup := entryAt("a", base.Add(time.Hour))
		dup.Message = "replacement"
		Expect(driver.Put(ctx, dup)).To(Succeed())

		got, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Message).To(Equal("/api/relay stream completed"))
	})

	It("returns NotFoundError for unknown IDs", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
	})

	It("rejects nil entries", func() {
		Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilEntry))
	})

	It("lists newest first within the limit", func() {
		Expect(driver.Put(ctx, entryAt("old", base))).To(Succeed())
		Expect(driver.Put(ctx, entryAt("new", base.Add(2*time.Minute)))).To(Succeed())
		Expect(driver.Put(ctx, entryAt("mid", base.Add(time.Minute)))).To(Succeed())

		entries, err := driver.List(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ID).To(Equal("new"))
		Expect(entries[1].ID).To(Equal("mid"))
	})

	It("lists nothing from an empty store", func() {
		entries, err := driver.List(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})
})
