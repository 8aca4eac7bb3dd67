package relay

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/streamrelay/pkg/utils/test"
)

var _ = Describe("Journal", func() {
	var (
		r         *Relay
		driver    *inmemory.Driver
		transport *fakeTransport
		publisher *testutils.RecordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver(0)
		transport = &fakeTransport{}
		publisher = testutils.NewRecordingPublisher()
		r = newTestRelay(Config{
			UpstreamURL: "http://upstream.test",
			APIKey:      testAPIKey,
			Transport:   transport,
			Journal:     driver,
			Publisher:   publisher,
		})
	})

	AfterEach(func() {
		r.Close()
	})

	entries := func() []*journal.Entry {
		r.Close()
		list, err := driver.List(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		return list
	}

	It("records a completed request", func() {
		transport.respond = jsonResponse(http.StatusOK, `{"ok":true}`)
		resp := do(r, http.MethodPost, DefaultPath, `{}`)
		resp.Body.Close()

		list := entries()
		Expect(list).To(HaveLen(1))
		Expect(list[0].Type).To(Equal(journal.TypeSuccess))
		Expect(list[0].Route).To(Equal(DefaultPath))
		Expect(list[0].Status).To(Equal(http.StatusOK))
		Expect(list[0].RequestID).To(Equal(resp.Header.Get("X-Request-Id")))

		events := publisher.Events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].Entry.ID).To(Equal(list[0].ID))
	})

	It("records a completed stream with its frame count", func() {
		transport.respond = streamResponse(newChunkBody("{\"a\":1}\n", "{\"b\":2}\n"))
		resp := do(r, http.MethodPost, DefaultPath, `{"stream":true}`)
		Expect(readBody(resp)).To(Equal("{\"a\":1}\n{\"b\":2}\n"))

		list := entries()
		Expect(list).To(HaveLen(1))
		Expect(list[0].Type).To(Equal(journal.TypeAI))
		Expect(list[0].Streaming).To(BeTrue())
		Expect(list[0].Frames).To(Equal(int64(2)))
	})

	It("records upstream failures as warnings", func() {
		transport.respond = jsonResponse(http.StatusBadRequest, "bad model")
		resp := do(r, http.MethodPost, DefaultPath, `{}`)
		resp.Body.Close()

		list := entries()
		Expect(list).To(HaveLen(1))
		Expect(list[0].Type).To(Equal(journal.TypeWarning))
		Expect(list[0].Status).To(Equal(http.StatusBadRequest))
	})

	It("records configuration errors as system entries", func() {
		bare := newTestRelay(Config{Journal: driver})
		resp := do(bare, http.MethodPost, DefaultPath, `{}`)
		resp.Body.Close()
		bare.Close()

		list := entries()
		Expect(list).To(HaveLen(1))
		Expect(list[0].Type).To(Equal(journal.TypeSystem))
	})

	It("lists entries up to the requested limit", func() {
		transport.respond = jsonResponse(http.StatusOK, `{}`)
		for range 3 {
			resp := do(r, http.MethodPost, DefaultPath, `{}`)
			resp.Body.Close()
		}

		Eventually(driver.Len).Should(Equal(3))

		resp := do(r, http.MethodGet, DefaultJournalPath+"?limit=2", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var page JournalPage
		Expect(json.Unmarshal([]byte(readBody(resp)), &page)).To(Succeed())
		Expect(page.Entries).To(HaveLen(2))
	})

	It("rejects a non-positive limit", func() {
		resp := do(r, http.MethodGet, DefaultJournalPath+"?limit=0", "")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(readBody(resp)).To(MatchJSON(`{"error":"Invalid limit"}`))
	})

	It("is not served when journaling is disabled", func() {
		bare := newTestRelay(Config{})
		defer bare.Close()

		resp := do(bare, http.MethodGet, DefaultJournalPath, "")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(readBody(resp)).To(MatchJSON(`{"error":"Journal disabled"}`))
	})

	It("returns an empty list before any exchange", func() {
		resp := do(r, http.MethodGet, DefaultJournalPath, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(readBody(resp)).To(MatchJSON(`{"entries":[]}`))
	})
})
