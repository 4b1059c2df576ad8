package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/placescout/api/internal/client"
	"github.com/placescout/api/internal/config"
	"github.com/placescout/api/internal/events"
	"github.com/placescout/api/internal/handler"
	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/queue"
	"github.com/placescout/api/internal/search"
	"github.com/placescout/api/internal/service"
	"github.com/placescout/api/internal/store"
	ws "github.com/placescout/api/internal/websocket"
	"github.com/placescout/api/internal/worker"
	"github.com/placescout/api/pkg/response"
)

// testApp holds all components needed for testing
type testApp struct {
	app        *fiber.App
	businesses *store.MemoryBusinessStore
	google     *fakeGoogle
}

// fakeGoogle serves canned geocode and nearby search responses
type fakeGoogle struct {
	nearbyCalls atomic.Int32
	pageCalls   atomic.Int32
}

func (g *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/geocode/json":
		if q.Get("address") != "Austin" {
			io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
			return
		}
		io.WriteString(w, `{"status":"OK","results":[{"formatted_address":"Austin, TX, USA","geometry":{"location":{"lat":30.2672,"lng":-97.7431}}}]}`)

	case "/place/nearbysearch/json":
		if q.Get("pagetoken") == "page-2" {
			g.pageCalls.Add(1)
			io.WriteString(w, `{"status":"OK","results":[
				{"place_id":"c","name":"Houndstooth Coffee","vicinity":"401 Congress Ave, Austin, TX, USA","formatted_phone_number":"(512) 555-0103","geometry":{"location":{"lat":30.2660,"lng":-97.7430}}}
			]}`)
			return
		}
		g.nearbyCalls.Add(1)
		io.WriteString(w, `{"status":"OK","next_page_token":"page-2","results":[
			{"place_id":"a","name":"Epoch Coffee","vicinity":"221 W N Loop Blvd, Austin, TX, USA","formatted_phone_number":"(512) 555-0101","geometry":{"location":{"lat":30.3180,"lng":-97.7240}}},
			{"place_id":"b","name":"Merit Coffee","vicinity":"222 W 2nd St, Austin, TX, USA","formatted_phone_number":"(512) 555-0102","geometry":{"location":{"lat":30.2650,"lng":-97.7460}}},
			{"place_id":"b2","name":"Merit Coffee Co","vicinity":"222 W 2nd St, Austin, TX, USA","formatted_phone_number":"(512) 555-0102","geometry":{"location":{"lat":30.2651,"lng":-97.7460}}}
		]}`)

	default:
		http.NotFound(w, r)
	}
}

// setupApp wires the same components as cmd/server with a fake Google backend,
// the in-process queue and in-memory stores.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	ctx, cancel := context.WithCancel(context.Background())

	google := &fakeGoogle{}
	srv := httptest.NewServer(google)

	googleClient := client.NewGoogleClient(&config.GoogleConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		MaxRadius: 5000,
		Timeout:   5 * time.Second,
	}, logger)

	businesses := store.NewMemoryBusinessStore()
	jobs := store.NewMemoryJobStore()
	machine := jobstate.NewMachine(jobs)

	runner := search.NewRunner(googleClient, client.NewRegistry(logger, googleClient), businesses, search.Options{
		Separator: "in",
		Tiler:     search.NewTiler(0.01, 111000),
		Paginator: search.Paginator{Delay: 10 * time.Millisecond, MaxPages: 10},
		Rules:     search.DedupRules{DistanceMeters: 50, NameThreshold: 0.8},
	}, logger)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	searchWorker := worker.NewSearchWorker(machine, runner, hub, events.NewLogPublisher(logger), logger)
	q := queue.NewLocalQueue(searchWorker.ProcessTask, logger,
		queue.WithWorkers(3),
		queue.WithRetryPolicy(queue.RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Multiplier: 2}),
	)

	searchHandler := handler.NewSearchHandler(service.NewSearchService(machine, jobs, q, logger), handler.NewValidator())

	app := fiber.New(fiber.Config{ErrorHandler: response.FromError})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api := app.Group("/api/search")
	api.Post("/start", searchHandler.Start)
	api.Get("/status/:jobId", searchHandler.Status)

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		q.Shutdown(shutdownCtx)
		cancel()
		srv.Close()
	})

	return &testApp{app: app, businesses: businesses, google: google}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, b)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
