package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's WS message envelope.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type stateData struct {
	State       string   `json:"state"`
	Unit        string   `json:"unit"`
	Suffix      string   `json:"suffix"`
	Text        string   `json:"text"`
	Value       *float64 `json:"value,omitempty"`
	FrequencyHz *float64 `json:"frequency_hz,omitempty"`
	RateText    string   `json:"rate_text,omitempty"`
}

type unitData struct {
	Unit  string `json:"unit"`
	Index int    `json:"index"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8080/ws/state", "Tachometer state websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON messages")
		all   = flag.Bool("all", false, "Print every rate_changed message, not only changes")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Reply to daemon pings and keep the read deadline fresh.
	var writeMu sync.Mutex
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last string
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if *raw {
				fmt.Println(string(message))
				continue
			}
			line := formatMessage(message)
			if line == "" {
				continue
			}
			if !*all && line == last {
				continue
			}
			last = line
			fmt.Println(line)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatMessage renders one WS message as a single status line.
func formatMessage(message []byte) string {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "[TEXT] " + string(message)
	}

	switch env.Type {
	case "state_init", "rate_changed":
		var s stateData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return "[" + env.Type + "] " + string(env.Data)
		}
		tag := "[RATE]"
		if env.Type == "state_init" {
			tag = "[INIT]"
		}
		switch s.State {
		case "screensaver":
			return tag + " idle (" + s.Unit + ")"
		case "unknown":
			return fmt.Sprintf("%s %s%s (below measurable range)", tag, s.Text, s.Suffix)
		default:
			hz := ""
			if s.FrequencyHz != nil {
				hz = fmt.Sprintf(" (%.3f Hz)", *s.FrequencyHz)
			}
			return fmt.Sprintf("%s %s%s%s", tag, s.Text, s.Suffix, hz)
		}

	case "unit_changed":
		var ud unitData
		if err := json.Unmarshal(env.Data, &ud); err != nil {
			return "[UNIT] " + string(env.Data)
		}
		return fmt.Sprintf("[UNIT] %s (u%d)", ud.Unit, ud.Index)

	default:
		return "[" + env.Type + "] " + string(env.Data)
	}
}
