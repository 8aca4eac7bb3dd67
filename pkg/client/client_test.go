package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/client"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

// streamServer answers with the given chunks, flushing after each one.
func streamServer(received *map[string]any, chunks ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		if received != nil {
			Expect(json.NewDecoder(r.Body).Decode(received)).To(Succeed())
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
}

// failingBody yields its data, then err.
type failingBody struct {
	data   io.Reader
	err    error
	closed atomic.Bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if errors.Is(err, io.EOF) {
		return n, b.err
	}
	return n, err
}

func (b *failingBody) Close() error {
	b.closed.Store(true)
	return nil
}

type bodyTransport struct {
	body io.ReadCloser
}

func (t bodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": {"application/x-ndjson"}},
		Body:          t.body,
		ContentLength: -1,
		Request:       req,
	}, nil
}

func collect(events *[]string) client.Sink {
	return func(ev ndjson.Event) error {
		if ev.IsRaw() {
			*events = append(*events, "raw:"+ev.Text)
			return nil
		}
		*events = append(*events, string(ev.Data))
		return nil
	}
}

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Stream", func() {
		It("reassembles split lines and then completes", func() {
			var received map[string]any
			srv := streamServer(&received, `{"a":1`, "}\n{\"b", "\":2}\n")
			defer srv.Close()

			var events []string
			var done int
			err := client.New(srv.URL).Stream(ctx, map[string]any{"model": "llama3"}, collect(&events), func() {
				done++
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]string{`{"a":1}`, `{"b":2}`}))
			Expect(done).To(Equal(1))
			Expect(received).To(Equal(map[string]any{"model": "llama3", "stream": true}))
		})

		It("runs onDone after the last event", func() {
			srv := streamServer(nil, "{\"a\":1}\n", `{"done":true}`)
			defer srv.Close()

			var order []string
			err := client.New(srv.URL).Stream(ctx, nil, func(ev ndjson.Event) error {
				order = append(order, string(ev.Data))
				return nil
			}, func() {
				order = append(order, "done")
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{`{"a":1}`, `{"done":true}`, "done"}))
		})

		It("delivers malformed lines as raw chunks", func() {
			srv := streamServer(nil, "data: partial\n{\"ok\":true}\n")
			defer srv.Close()

			var events []string
			Expect(client.New(srv.URL).Stream(ctx, nil, collect(&events), nil)).To(Succeed())
			Expect(events).To(Equal([]string{"raw:data: partial", `{"ok":true}`}))
		})

		It("leaves the caller's payload untouched", func() {
			srv := streamServer(nil, "{}\n")
			defer srv.Close()

			payload := map[string]any{"stream": false, "model": "m"}
			Expect(client.New(srv.URL).Stream(ctx, payload, collect(new([]string)), nil)).To(Succeed())
			Expect(payload).To(Equal(map[string]any{"stream": false, "model": "m"}))
		})

		It("fails with the status before calling the sink", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":"Upstream request failed","details":"slow down"}`)
			}))
			defer srv.Close()

			calls := 0
			err := client.New(srv.URL).Stream(ctx, nil, func(ndjson.Event) error {
				calls++
				return nil
			}, nil)

			var statusErr *client.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(statusErr.Body).To(ContainSubstring("slow down"))
			Expect(calls).To(BeZero())
		})

		It("fails when a successful response has no body", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			var events []string
			err := client.New(srv.URL).Stream(ctx, nil, collect(&events), nil)
			Expect(err).To(MatchError(client.ErrNoStreamBody))
			Expect(events).To(BeEmpty())
		})

		It("reports a mid-stream failure after the events already decoded", func() {
			boom := errors.New("connection reset")
			body := &failingBody{data: strings.NewReader("{\"a\":1}\n{\"partial\":"), err: boom}
			c := client.New("http://relay.test", client.WithHTTPClient(&http.Client{Transport: bodyTransport{body: body}}))

			var events []string
			done := false
			err := c.Stream(ctx, nil, collect(&events), func() { done = true })

			Expect(err).To(MatchError(boom))
			Expect(events).To(Equal([]string{`{"a":1}`}))
			Expect(done).To(BeFalse())
			Expect(body.closed.Load()).To(BeTrue())
		})

		It("stops and releases the body when the sink fails", func() {
			stop := errors.New("enough")
			body := &failingBody{data: strings.NewReader("{\"a\":1}\n{\"b\":2}\n"), err: io.EOF}
			c := client.New("http://relay.test", client.WithHTTPClient(&http.Client{Transport: bodyTransport{body: body}}))

			calls := 0
			err := c.Stream(ctx, nil, func(ndjson.Event) error {
				calls++
				return stop
			}, nil)

			Expect(err).To(MatchError(stop))
			Expect(calls).To(Equal(1))
			Expect(body.closed.Load()).To(BeTrue())
		})

		It("releases the connection when the caller cancels", func() {
			released := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "{\"a\":1}\n")
				w.(http.Flusher).Flush()
				<-r.Context().Done()
				close(released)
			}))
			defer srv.Close()

			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var events []string
			err := client.New(srv.URL).Stream(cctx, nil, func(ev ndjson.Event) error {
				events = append(events, string(ev.Data))
				cancel()
				return nil
			}, nil)

			Expect(err).To(MatchError(context.Canceled))
			Expect(events).To(Equal([]string{`{"a":1}`}))
			Eventually(released).Should(BeClosed())
		})

		It("honours the maximum line size", func() {
			srv := streamServer(nil, strings.Repeat("x", 256))
			defer srv.Close()

			err := client.New(srv.URL, client.WithMaxLineBytes(64)).Stream(ctx, nil, collect(new([]string)), nil)
			Expect(err).To(MatchError(ndjson.ErrLineTooLong))
		})
	})

	Describe("Generate", func() {
		It("forces stream off and decodes the object", func() {
			var received map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/custom"))
				Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"ok":true}`)
			}))
			defer srv.Close()

			out, err := client.New(srv.URL+"/", client.WithPath("/custom")).Generate(ctx, map[string]any{"stream": true, "foo": "bar"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(map[string]any{"ok": true}))
			Expect(received).To(Equal(map[string]any{"stream": false, "foo": "bar"}))
		})

		It("returns a status error for failures", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusBadGateway)
			}))
			defer srv.Close()

			_, err := client.New(srv.URL).Generate(ctx, nil)
			var statusErr *client.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(statusErr.Body).To(Equal("nope"))
		})
	})

	It("builds the endpoint from base URL and path", func() {
		Expect(client.New("http://localhost:8080/").Endpoint()).To(Equal("http://localhost:8080/api/relay"))
		Expect(client.New("http://h", client.WithPath(client.ConciergePath)).Endpoint()).To(Equal("http://h/api/genai"))
	})
})
