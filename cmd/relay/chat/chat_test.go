package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/dotdir"
	"github.com/papercomputeco/streamrelay/pkg/ndjson"
)

// conciergeServer answers every request with the given NDJSON frames and
// keeps the decoded bodies it received.
type conciergeServer struct {
	*httptest.Server

	mu     sync.Mutex
	bodies []map[string]any
	status int
	frames []string
}

func newConciergeServer(frames ...string) *conciergeServer {
	s := &conciergeServer{status: http.StatusOK, frames: frames}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		s.bodies = append(s.bodies, map[string]any{"path": r.URL.Path, "body": body})
		status := s.status
		s.mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"AI generation failed"}`)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, f := range s.frames {
			fmt.Fprintln(w, f)
			w.(http.Flusher).Flush()
		}
	}))
	return s
}

func (s *conciergeServer) requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies...)
}

var _ = Describe("chat", func() {
	var (
		server    *conciergeServer
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		server.Close()
	})

	newCommander := func(input string) *chatCommander {
		return &chatCommander{
			relayTarget: server.URL,
			clientPath:  "/api/relay",
			configDir:   configDir,
			in:          strings.NewReader(input),
			out:         out,
		}
	}

	It("streams concierge replies and keeps the conversation", func() {
		server = newConciergeServer(`{"text":"Hello"}`, `{"text":" there"}`)

		Expect(newCommander("hi\nagain\n/exit\n").run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Hello there"))

		reqs := server.requests()
		Expect(reqs).To(HaveLen(2))
		Expect(reqs[0]["path"]).To(Equal("/api/genai"))

		second := reqs[1]["body"].(map[string]any)
		Expect(second["stream"]).To(BeTrue())
		Expect(second["history"]).To(Equal([]any{
			map[string]any{"role": "user", "text": "hi"},
			map[string]any{"role": "model", "text": "Hello there"},
			map[string]any{"role": "user", "text": "again"},
		}))

		session, err := dotdir.NewManager().LoadChatSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Messages).To(HaveLen(4))
	})

	It("resumes the saved conversation", func() {
		server = newConciergeServer(`{"text":"ok"}`)
		Expect(dotdir.NewManager().SaveChatSession(&dotdir.ChatSession{
			ID:       "saved",
			Messages: []dotdir.ChatMessage{{Role: "user", Text: "earlier"}, {Role: "model", Text: "reply"}},
		}, configDir)).To(Succeed())

		Expect(newCommander("next\n").run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Resuming conversation"))

		body := server.requests()[0]["body"].(map[string]any)
		Expect(body["history"]).To(HaveLen(3))
	})

	It("starts over with --new", func() {
		server = newConciergeServer(`{"text":"ok"}`)
		Expect(dotdir.NewManager().SaveChatSession(&dotdir.ChatSession{
			ID:       "saved",
			Messages: []dotdir.ChatMessage{{Role: "user", Text: "earlier"}},
		}, configDir)).To(Succeed())

		cmder := newCommander("hello\n")
		cmder.fresh = true
		Expect(cmder.run(context.Background())).To(Succeed())

		body := server.requests()[0]["body"].(map[string]any)
		Expect(body["history"]).To(HaveLen(1))
	})

	It("drops a message the relay rejected", func() {
		server = newConciergeServer()
		server.mu.Lock()
		server.status = http.StatusInternalServerError
		server.mu.Unlock()

		Expect(newCommander("hi\n").run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("relay returned status 500"))

		session, err := dotdir.NewManager().LoadChatSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).To(BeNil())
	})

	It("clears the conversation on /clear", func() {
		server = newConciergeServer(`{"text":"ok"}`)

		Expect(newCommander("one\n/clear\ntwo\n").run(context.Background())).To(Succeed())

		reqs := server.requests()
		Expect(reqs).To(HaveLen(2))
		Expect(reqs[1]["body"].(map[string]any)["history"]).To(HaveLen(1))
	})

	It("sends Ollama-style requests to the relay route when a model is set", func() {
		server = newConciergeServer(`{"message":{"role":"assistant","content":"hey"},"done":false}`, `{"done":true}`)

		cmder := newCommander("hi\n")
		cmder.model = "llama3.2"
		Expect(cmder.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("hey"))

		req := server.requests()[0]
		Expect(req["path"]).To(Equal("/api/relay"))
		body := req["body"].(map[string]any)
		Expect(body["model"]).To(Equal("llama3.2"))
		Expect(body["messages"]).To(Equal([]any{map[string]any{"role": "user", "content": "hi"}}))
	})
})

var _ = Describe("deltaText", func() {
	DescribeTable("extracts reply text",
		func(line, want string) {
			ev, ok := ndjson.ParseLine(line)
			Expect(ok).To(BeTrue())
			Expect(deltaText(ev)).To(Equal(want))
		},
		Entry("concierge frame", `{"text":"a"}`, "a"),
		Entry("ollama chat frame", `{"message":{"content":"b"}}`, "b"),
		Entry("ollama generate frame", `{"response":"c"}`, "c"),
		Entry("openai chunk", `{"choices":[{"delta":{"content":"d"}}]}`, "d"),
		Entry("frame without text", `{"done":true}`, ""),
		Entry("non-object frame", `42`, ""),
		Entry("raw chunk", `plain words`, "plain words"),
	)
})
