package relay

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/papercomputeco/streamrelay/pkg/logger"
)

var _ = Describe("Upstream timeout", func() {
	var (
		upstream *httptest.Server
		r        *Relay
	)

	newRelay := func(handler http.HandlerFunc) {
		upstream = httptest.NewServer(handler)
		r = newTestRelay(Config{
			UpstreamURL: upstream.URL,
			APIKey:      testAPIKey,
			Timeout:     100 * time.Millisecond,
		})
	}

	AfterEach(func() {
		r.Close()
		upstream.Close()
	})

	It("lets a committed stream outlive the timeout", func() {
		newRelay(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{\"a\":1}\n"))
			w.(http.Flusher).Flush()

			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte("{\"b\":2}\n"))
		})

		resp := do(r, http.MethodPost, DefaultPath, `{"stream":true}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(readBody(resp)).To(Equal("{\"a\":1}\n{\"b\":2}\n"))
	})

	It("fails a stream whose headers arrive too late", func() {
		newRelay(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(400 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})

		resp := do(r, http.MethodPost, DefaultPath, `{"stream":true}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
	})

	It("bounds a buffered exchange end to end", func() {
		newRelay(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()

			time.Sleep(400 * time.Millisecond)
			_, _ = w.Write([]byte(`{"done":true}`))
		})

		resp := do(r, http.MethodPost, DefaultPath, `{"stream":false}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
	})
})

var _ = Describe("RunWithListener", func() {
	It("logs startup once with the relay settings", func() {
		out := gbytes.NewBuffer()
		r, err := New(Config{
			UpstreamURL: "http://upstream.test/api/chat",
			APIKey:      testAPIKey,
		}, logger.New(logger.WithJSON(true), logger.WithWriter(out)))
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() { done <- r.RunWithListener(ln) }()

		Eventually(out).Should(gbytes.Say(`"msg":"starting relay server"`))
		Expect(r.Close()).To(Succeed())
		Eventually(done).Should(Receive())

		Expect(strings.Count(string(out.Contents()), "starting relay")).To(Equal(1))
		Expect(string(out.Contents())).To(ContainSubstring(`"journal":false`))
		Expect(string(out.Contents())).To(ContainSubstring(`"concierge":false`))
	})
})
