// Package relay forwards chat requests to an upstream AI provider and streams
// the provider's response back to the client as NDJSON.
package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/papercomputeco/streamrelay/pkg/journal"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/relay/header"
	"github.com/papercomputeco/streamrelay/relay/worker"
)

// Relay is the HTTP server fronting the upstream provider. Each request is
// served independently; the only shared state is the optional journal pool.
type Relay struct {
	config        Config
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
	workerPool    *worker.Pool
	closeOnce     sync.Once
	closeErr      error
}

// New creates a Relay. A missing upstream URL or credential is not an error
// here: it is reported per request so the server can still start and answer.
func New(config Config, log *slog.Logger) (*Relay, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	if log == nil {
		log = logger.Nop()
	}

	r := &Relay{
		config:        config,
		logger:        log,
		headerHandler: header.NewHandler(config.APIKey),
		httpClient: &http.Client{
			Transport: config.Transport,
		},
	}

	if config.Journal != nil {
		wp, err := worker.NewPool(&worker.Config{
			Driver:    config.Journal,
			Publisher: config.Publisher,
			Logger:    log,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		r.workerPool = wp
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
		ErrorHandler:          r.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	// No compress middleware: frames must reach the client as they arrive.
	app.All(config.Path, r.handleRelay)
	app.All(config.ConciergePath, r.handleConcierge)
	app.Get(config.JournalPath, r.handleJournal)

	r.server = app
	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logStart(r.config.ListenAddr)
	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logStart(listener.Addr().String())
	return r.server.Listener(listener)
}

func (r *Relay) logStart(addr string) {
	r.logger.Info("starting relay server",
		"listen", addr,
		"upstream", r.config.UpstreamURL,
		"path", r.config.Path,
		"upstream_format", r.config.UpstreamFormat,
		"frame_mode", r.config.FrameMode,
		"journal", r.workerPool != nil,
		"concierge", r.config.Concierge != nil,
	)
}

// Close stops the server, then drains pending journal writes. The journal
// store and publisher stay open; they belong to the caller.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.server.Shutdown()
		if r.workerPool != nil {
			r.workerPool.Close()
		}
	})
	return r.closeErr
}

// checkUpstream reports missing upstream configuration.
func (r *Relay) checkUpstream() error {
	var missing []string
	if strings.TrimSpace(r.config.UpstreamURL) == "" {
		missing = append(missing, "upstream URL")
	}
	if r.config.APIKey == "" {
		missing = append(missing, "upstream API key")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func (r *Relay) handleError(c *fiber.Ctx, err error) error {
	status, envelope := classify(err)

	if status >= fiber.StatusInternalServerError {
		r.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	} else {
		r.logger.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
	}

	return c.Status(status).JSON(envelope)
}

// exchange tracks one request for the journal.
type exchange struct {
	pool    *worker.Pool
	outcome journal.Outcome
}

func (r *Relay) begin(c *fiber.Ctx, route string) *exchange {
	return &exchange{
		pool: r.workerPool,
		outcome: journal.Outcome{
			Route:     route,
			RequestID: strings.Clone(c.GetRespHeader(fiber.HeaderXRequestID)),
			Started:   time.Now(),
		},
	}
}

// fail journals err and returns it for the error handler to render.
func (ex *exchange) fail(err error) error {
	var cfgErr *ConfigurationError
	ex.outcome.Config = errors.As(err, &cfgErr)

	status, _ := classify(err)
	ex.record(status, err)
	return err
}

// record enqueues the finished exchange when journaling is enabled.
func (ex *exchange) record(status int, err error) {
	if ex.pool == nil {
		return
	}
	ex.outcome.Status = status
	ex.outcome.Err = err
	ex.pool.Enqueue(worker.Job{Entry: journal.NewEntry(ex.outcome)})
}
