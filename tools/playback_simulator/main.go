package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/settings"
	"github.com/patrickwarner/streamlytics/internal/tracking"
)

var (
	server      string
	users       int
	sessions    int
	conc        int
	duration    time.Duration
	rate        float64
	seekRate    float64
	pauseRate   float64
	nextRate    float64
	loginRate   float64
	stats       bool
	flush       bool
	redisAddr   string
	debug       bool
	label       string
	jitter      float64
	categoryCSV string
)

var logger *zap.Logger

var httpClient *http.Client

var (
	categories = []string{"Gaming", "Music", "News", "Science & Technology"}
	channels   = []string{"Kurzgesagt", "LinusTechTips", "NPR Music", "Veritasium", ""}
	userAgents = []string{
		"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
		"Mozilla/5.0 (Linux; Android 11; SAMSUNG SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/15.0 Chrome/94.0.4606.61 Mobile Safari/537.36",
		"Mozilla/5.0 (Linux; Android 14; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	streamTypes = []tracking.StreamType{tracking.StreamVideo, tracking.StreamVideo, tracking.StreamLive, tracking.StreamAudio}
)

const statsInterval = 5 * time.Second

var (
	countSessions uint64
	countEvents   uint64
	countRejected uint64
	countErrors   uint64
	countLogins   uint64
)

type trackBody struct {
	Event      string              `json:"event"`
	SessionID  string              `json:"sessionId"`
	Properties map[string]any      `json:"properties"`
	Stream     tracking.StreamInfo `json:"stream"`
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "analytics server base URL")
	flag.IntVar(&users, "users", 100, "number of unique users")
	flag.IntVar(&sessions, "sessions", 200, "total playback sessions to simulate")
	flag.IntVar(&conc, "concurrency", 20, "concurrent sessions")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "sessions started per second (0 for unlimited)")
	flag.Float64Var(&seekRate, "seek-rate", 0.3, "probability of a seek during a session")
	flag.Float64Var(&pauseRate, "pause-rate", 0.5, "probability of a pause during a session")
	flag.Float64Var(&nextRate, "next-rate", 0.4, "probability of a play_next at the end of a session")
	flag.Float64Var(&loginRate, "login-rate", 0.05, "probability a session starts with a login email change")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "flush persisted settings from redis before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for session spacing")
	flag.StringVar(&categoryCSV, "categories", "", "comma-separated stream categories (defaults to a built-in list)")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "playback-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		cfg := config.Load()
		addr := redisAddr
		if addr == "" {
			addr = cfg.RedisAddr
		}
		store, err := settings.InitRedis(context.Background(), addr)
		if err != nil {
			logger.Fatal("redis connect", zap.Error(err))
		}
		deleted, err := store.Client.Del(context.Background(), store.Hash).Result()
		store.Close()
		if err != nil {
			logger.Fatal("flush settings", zap.Error(err))
		}
		logger.Info("redis settings flushed", zap.String("addr", addr), zap.Int64("keys_deleted", deleted))
	}

	if categoryCSV != "" {
		categories = strings.Split(categoryCSV, ",")
		for i := range categories {
			categories[i] = strings.TrimSpace(categories[i])
		}
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))
	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && sessions > 0 {
		baseInterval = duration / time.Duration(sessions)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					printStats()
					return
				}
			}
		}()
	}
	for i := 0; ; i++ {
		if sessions > 0 && i >= sessions {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if jitter > 0 {
				jf := 1 + (r.Float64()*2-1)*jitter
				if jf < 0.1 {
					jf = 0.1
				}
				effective = time.Duration(float64(effective) * jf)
			}
			now := time.Now()
			if now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(effective)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			atomic.AddUint64(&countSessions, 1)
			// *rand.Rand is not safe for concurrent use
			runSession(rand.New(rand.NewSource(seed+int64(i)+1)), i)
		}(i)
	}
	wg.Wait()
	close(done)
	if !stats {
		printStats()
	}
}

func randomStream(r *rand.Rand) tracking.StreamInfo {
	return tracking.StreamInfo{
		ID:       fmt.Sprintf("vid%05d", r.Intn(5000)),
		Category: categories[r.Intn(len(categories))],
		Likes:    r.Int63n(50000),
		Channel:  channels[r.Intn(len(channels))],
		Views:    r.Int63n(2_000_000),
		Type:     streamTypes[r.Intn(len(streamTypes))],
		Title:    fmt.Sprintf("Simulated stream %d", r.Intn(1000)),
	}
}

func runSession(r *rand.Rand, i int) {
	ua := userAgents[r.Intn(len(userAgents))]
	sessionID := fmt.Sprintf("sim-%s-%d", label, i)

	if r.Float64() < loginRate {
		email := fmt.Sprintf("user%d@example.com", r.Intn(users))
		if post("/v1/settings/login", ua, map[string]string{"email": email}) {
			atomic.AddUint64(&countLogins, 1)
		}
	}

	stream := randomStream(r)
	position := 0
	send := func(event string) {
		body := trackBody{
			Event:      event,
			SessionID:  sessionID,
			Properties: map[string]any{"position": position},
			Stream:     stream,
		}
		if post("/v1/track", ua, body) {
			atomic.AddUint64(&countEvents, 1)
		}
	}

	send(tracking.Play)
	position += 10 + r.Intn(300)
	if r.Float64() < seekRate {
		position += r.Intn(120)
		send(tracking.Seek)
	}
	if r.Float64() < pauseRate {
		send(tracking.Pause)
	}
	if r.Float64() < nextRate {
		stream = randomStream(r)
		position = 0
		send(tracking.PlayNext)
	}
	logger.Debug("session", zap.String("session_id", sessionID), zap.String("stream", stream.ID))
}

// post sends v as JSON and reports whether the server accepted it.
func post(path, ua string, v any) bool {
	blob, err := json.Marshal(v)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("marshal error", zap.Error(err))
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+path, bytes.NewReader(blob))
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("request build error", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ua)

	resp, err := httpClient.Do(req)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("request error", zap.String("path", path), zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	bodyBytes, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode < 300:
		return true
	case resp.StatusCode == http.StatusBadRequest:
		atomic.AddUint64(&countRejected, 1)
		logger.Debug("rejected", zap.String("path", path), zap.String("body", strings.TrimSpace(string(bodyBytes))))
	default:
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("body", strings.TrimSpace(string(bodyBytes))))
	}
	return false
}

func printStats() {
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sessions", atomic.LoadUint64(&countSessions)),
		zap.Uint64("events", atomic.LoadUint64(&countEvents)),
		zap.Uint64("rejected", atomic.LoadUint64(&countRejected)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)),
		zap.Uint64("logins", atomic.LoadUint64(&countLogins)))
}
