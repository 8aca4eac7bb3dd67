package sse

import (
	"bufio"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func readAll(r *Reader) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		It("parses consecutive events", func() {
			r := NewReader(strings.NewReader("data: first\n\ndata: second\n\n"), 0)

			events, err := readAll(r)
			Expect(err).To(Equal(io.EOF))
			Expect(events).To(HaveLen(2))
			Expect(events[0].Data).To(Equal("first"))
			Expect(events[1].Data).To(Equal("second"))
		})

		It("parses event type and ID", func() {
			r := NewReader(strings.NewReader("event: content_block_delta\nid: 42\ndata: {\"type\":\"delta\"}\n\n"), 0)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("content_block_delta"))
			Expect(ev.ID).To(Equal("42"))
			Expect(ev.Data).To(Equal(`{"type":"delta"}`))
		})

		It("joins multiple data lines with a line break", func() {
			r := NewReader(strings.NewReader("data: one\ndata: two\n\n"), 0)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("one\ntwo"))
		})

		It("ignores comments, retry and unknown fields", func() {
			r := NewReader(strings.NewReader(": keep-alive\nretry: 3000\nfoo: bar\ndata:hello\n\n"), 0)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("hello"))
		})

		It("handles CRLF line endings", func() {
			r := NewReader(strings.NewReader("data: crlf\r\n\r\n"), 0)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("crlf"))
		})

		It("yields an event left open at end of stream", func() {
			r := NewReader(strings.NewReader("\n\ndata: unterminated"), 0)

			events, err := readAll(r)
			Expect(err).To(Equal(io.EOF))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(Equal("unterminated"))
		})

		It("returns io.EOF for blank input", func() {
			_, err := NewReader(strings.NewReader("\n\n\n"), 0).Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("fails on lines beyond the maximum", func() {
			r := NewReader(strings.NewReader("data: "+strings.Repeat("z", 64)+"\n\n"), 16)

			_, err := r.Next()
			Expect(err).To(MatchError(bufio.ErrTooLong))
		})
	})
})

var _ = Describe("Event", func() {
	Describe("Line", func() {
		It("compacts JSON data onto one line", func() {
			line, ok := Event{Data: "{\n  \"choices\": [ {\"delta\": {\"content\": \"Hi\"}} ]\n}"}.Line()
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal(`{"choices":[{"delta":{"content":"Hi"}}]}`))
		})

		It("folds line breaks in text data", func() {
			line, ok := Event{Data: "plain\ntext"}.Line()
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal("plain text"))
		})

		It("drops the done sentinel and empty data", func() {
			_, ok := Event{Data: "[DONE]"}.Line()
			Expect(ok).To(BeFalse())
			Expect(Event{Data: "[DONE]"}.Done()).To(BeTrue())

			_, ok = Event{Type: "ping"}.Line()
			Expect(ok).To(BeFalse())
		})
	})
})
