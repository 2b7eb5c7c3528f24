package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mcm-alerts-backend/config"
	"mcm-alerts-backend/internal/model"
	"mcm-alerts-backend/internal/present"
	"mcm-alerts-backend/internal/realtime"
)

// mcmwatch follows a running server's change feed and presents each event on
// the terminal. It exercises the full transport ladder: websocket, then SSE,
// then polling.
func main() {
	logger := log.New(os.Stdout, "mcmwatch ", log.LstdFlags)

	serverURL := flag.String("server", "http://localhost:8080", "base URL of the mcmd server")
	flag.Parse()

	cfg := config.Default()
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
		}
		cfg = loaded
	}

	base := strings.TrimRight(*serverURL, "/")
	wsURL, err := websocketURL(base + "/api/events/ws")
	if err != nil {
		logger.Fatalf("invalid server URL %q: %v", *serverURL, err)
	}

	presenter := present.NewPresenter(present.Options{
		Banner:  &consoleBanner{logger: logger},
		Sounder: &consoleSounder{logger: logger},
	})
	defer presenter.Stop()

	client := realtime.NewClient(realtime.Options{
		Transports: []realtime.Transport{
			realtime.NewWebSocketTransport(wsURL),
			realtime.NewSSETransport(base + "/api/events/stream"),
		},
		Poller:      realtime.NewPoller(base+"/api/events/poll", cfg.Realtime.PollInterval),
		BaseDelay:   cfg.Realtime.BaseDelay,
		MaxDelay:    cfg.Realtime.MaxDelay,
		MaxAttempts: cfg.Realtime.MaxAttempts,
		OnStateChange: func(state realtime.ConnState, connType string) {
			logger.Printf("connection: %s (%s)", state, connType)
		},
	})

	removeListener := client.AddListener(func(event model.Event) {
		presenter.Present(event)
	})
	defer removeListener()

	if err := client.Start(); err != nil {
		logger.Fatalf("failed to start realtime client: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("stopping...")
	client.Stop()
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// consoleBanner renders events as log lines.
type consoleBanner struct {
	logger *log.Logger
}

func (b *consoleBanner) Show(n present.Notification) {
	b.logger.Printf("[%s] %s: %s", strings.ToUpper(string(n.Priority)), n.Title, n.Body)
	if n.RequireInteraction {
		b.logger.Printf("  event %s requires acknowledgment", n.ID)
	}
}

func (b *consoleBanner) Dismiss(id string) {
	b.logger.Printf("  dismissed %s", id)
}

// consoleSounder rings the terminal bell.
type consoleSounder struct {
	logger *log.Logger
}

func (s *consoleSounder) Play(t present.Tone) {
	fmt.Print("\a")
	s.logger.Printf("  tone %dHz for %s", t.FrequencyHz, t.Duration)
}
