// Command probe connects to a running hub as a given user, joins a room and
// prints every event it receives. Handy to watch a room while developing.
package main

import (
	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/infrastructure/ws"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
)

type Config struct {
	Addr      string `envconfig:"PROBE_ADDR" default:"localhost:8080"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	Colours   bool   `envconfig:"PROBE_COLOURS" default:"true"`
}

type frame struct {
	Event event.Name      `json:"event"`
	Group string          `json:"group"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return err
	}

	addr := pflag.StringP("addr", "a", config.Addr, "host:port of the hub")
	userID := pflag.StringP("user", "u", "probe", "user id the token is minted for")
	handle := pflag.String("handle", "", "mention handle of the user (defaults to the id)")
	token := pflag.StringP("token", "t", "", "use this token instead of minting one")
	roomID := pflag.StringP("room", "r", "", "room to join")
	message := pflag.StringP("message", "m", "", "message to send once joined")
	duration := pflag.DurationP("duration", "d", 0, "stop after this long (0 waits for Ctrl+C)")
	pflag.Parse()

	if *token == "" {
		if config.JWTSecret == "" {
			return fmt.Errorf("either --token or JWT_SECRET is required")
		}
		user := domain.User{ID: *userID, Name: *userID, Handle: *handle}
		if user.Handle == "" {
			user.Handle = user.ID
		}
		minted, err := auth.NewTokenManager(config.JWTSecret, time.Hour).Issue(user)
		if err != nil {
			return err
		}
		*token = minted
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	endpoint := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(*token)}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer func() { _ = conn.Close() }()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if *roomID != "" {
		if err = conn.WriteJSON(ws.Frame{Op: ws.OpJoin, RequestID: "join", RoomID: *roomID}); err != nil {
			return err
		}
		if *message != "" {
			if err = conn.WriteJSON(ws.Frame{Op: ws.OpSend, RequestID: "send", RoomID: *roomID, Content: *message}); err != nil {
				return err
			}
		}
	}

	for {
		var f frame
		if err = conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		printEvent(f, config.Colours)
	}
}

func printEvent(f frame, colours bool) {
	line := fmt.Sprintf("%s %-18s %-14s %s", f.At.Local().Format("15:04:05"), f.Event, f.Group, string(f.Data))
	if !colours {
		fmt.Println(line)
		return
	}
	style := color.New(color.FgWhite)
	switch f.Event {
	case event.MessageReceived, event.MessageUpdated:
		style = color.New(color.FgGreen)
	case event.MentionReceived:
		style = color.New(color.FgMagenta, color.OpBold)
	case event.MessageDeleted, event.UserDisconnected, event.UserLeftRoom:
		style = color.New(color.FgYellow)
	case event.Ack:
		style = color.New(color.FgCyan)
	}
	fmt.Println(style.Render(line))
}
