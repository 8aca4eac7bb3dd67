package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
		got http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler("relay-secret")
		got = nil

		app.Post("/test", func(c *fiber.Ctx) error {
			req, _ := http.NewRequest(http.MethodPost, "http://upstream/test", nil)
			hh.SetUpstreamRequestHeaders(c, req)
			got = req.Header
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		app.Shutdown()
	})

	send := func(headers map[string]string) {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
	}

	It("forwards end-to-end headers", func() {
		send(map[string]string{"X-Trace": "abc", "Accept": "application/x-ndjson"})

		Expect(got.Get("X-Trace")).To(Equal("abc"))
		Expect(got.Get("Accept")).To(Equal("application/x-ndjson"))
	})

	It("replaces the caller's credential with the relay's", func() {
		send(map[string]string{"Authorization": "Bearer caller-token"})

		Expect(got.Get("Authorization")).To(Equal("Bearer relay-secret"))
	})

	It("always sends a JSON content type", func() {
		send(map[string]string{"Content-Type": "text/plain"})

		Expect(got.Get("Content-Type")).To(Equal("application/json"))
	})

	It("strips hop-by-hop and transport headers", func() {
		send(map[string]string{
			"Connection":      "keep-alive",
			"Accept-Encoding": "br",
			"Cookie":          "session=1",
			"X-Request-Id":    "spoofed",
		})

		Expect(got.Get("Connection")).To(BeEmpty())
		Expect(got.Get("Accept-Encoding")).To(BeEmpty())
		Expect(got.Get("Cookie")).To(BeEmpty())
		Expect(got.Get("X-Request-Id")).To(BeEmpty())
		Expect(got.Get("Host")).To(BeEmpty())
	})

	It("omits Authorization without a credential", func() {
		hh = NewHandler("")
		send(nil)

		Expect(got.Get("Authorization")).To(BeEmpty())
	})
})

var _ = Describe("SetClientResponseHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler("")
	})

	AfterEach(func() {
		app.Shutdown()
	})

	It("copies upstream headers except encoding and framing", func() {
		upstream := &http.Response{Header: http.Header{
			"X-Ratelimit-Remaining": {"42"},
			"Content-Encoding":      {"gzip"},
			"Content-Length":        {"999"},
			"Transfer-Encoding":     {"chunked"},
			"Set-Cookie":            {"a=b"},
		}}

		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetClientResponseHeaders(c, upstream)
			return c.SendString("ok")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.Header.Get("X-Ratelimit-Remaining")).To(Equal("42"))
		Expect(resp.Header.Get("Content-Encoding")).To(BeEmpty())
		Expect(resp.Header.Get("Set-Cookie")).To(BeEmpty())
		Expect(resp.Header.Get("Content-Length")).To(Equal("2"))
	})
})

var _ = Describe("SetStreamHeaders", func() {
	It("marks the response as an uncached NDJSON stream", func() {
		app := fiber.New()
		defer app.Shutdown()

		app.Get("/test", func(c *fiber.Ctx) error {
			NewHandler("").SetStreamHeaders(c)
			return c.SendString("{}\n")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("application/x-ndjson"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Content-Type-Options")).To(Equal("nosniff"))
	})
})
