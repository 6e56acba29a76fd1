package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edulink/chat/internal/auth"
	"github.com/edulink/chat/internal/chat"
	"github.com/edulink/chat/internal/config"
)

func main() {
	_ = godotenv.Load()
	config.AppConfig = config.LoadFromEnv()
	cfg := config.AppConfig

	if cfg.LogLevel == "silent" || cfg.LogLevel == "off" {
		log.SetOutput(io.Discard)
	}

	var (
		userID = flag.String("user", "", "your user id")
		name   = flag.String("name", "", "your display name")
		peerID = flag.String("peer", "", "peer user id to chat with")
		token  = flag.String("token", "", "access token; signed locally from JWT_SECRET when empty")
	)
	flag.Parse()

	if !chat.ValidUserID(*userID) || !chat.ValidUserID(*peerID) {
		fmt.Fprintln(os.Stderr, "usage: chatcli -user <id> -peer <id> [-name <display name>] [-token <jwt>]")
		os.Exit(2)
	}
	if *name == "" {
		*name = *userID
	}
	if *token == "" {
		signed, err := auth.Sign(cfg.JWTSecret, *userID, *name, 24*time.Hour)
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		*token = signed
	}

	manager := chat.NewManager(chat.Options{
		URL:               cfg.ServerURL,
		FallbackURL:       cfg.FallbackURL,
		TokenValidator:    auth.CheckExpiry,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		ReconnectDelayMax: cfg.ReconnectDelayMax,
		DialTimeout:       cfg.DialTimeout,
	})
	conn := manager.Connect(*token, *userID)
	defer manager.Disconnect()

	stateL := conn.OnState(func(ev chat.StateEvent) {
		switch ev.Kind {
		case chat.StateConnect:
			log.Println("connected")
		case chat.StateDisconnect:
			log.Println("connection lost")
		case chat.StateReconnectAttempt:
			log.Printf("reconnecting (attempt %d)...", ev.Attempt)
		case chat.StateReconnect:
			log.Println("reconnected")
		case chat.StateReconnectFailed:
			log.Println("could not reach the chat server, giving up")
		}
	})
	defer stateL.Close()

	channel, err := chat.OpenIndividual(conn, *peerID)
	if err != nil {
		log.Fatalf("open chat: %v", err)
	}
	channel.SetSendLimit(cfg.SendRate, cfg.SendBurst)
	defer channel.Close()

	tracker := chat.Track(conn, *peerID, cfg.PresenceInterval)
	defer tracker.Close()

	go func() {
		// The transcript is authoritative; each change renders everything
		// not yet printed, so a shed notification cannot skip a message.
		rendered := 0
		for u := range channel.Updates() {
			switch u.Kind {
			case chat.UpdateSnapshot:
				rendered = 0
				fallthrough
			case chat.UpdateAppend:
				msgs := channel.Messages()
				if rendered > len(msgs) {
					// A snapshot shrank the transcript underneath us.
					rendered = len(msgs)
				}
				for _, m := range msgs[rendered:] {
					fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.Content)
				}
				rendered = len(msgs)
			case chat.UpdateSendFailed:
				fmt.Printf("!! message not sent: %s\n", u.Err)
			}
		}
	}()

	go func() {
		for online := range tracker.Updates() {
			if online {
				fmt.Printf("-- %s is online\n", *peerID)
			} else {
				fmt.Printf("-- %s is offline\n", *peerID)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := channel.Send(line); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		case <-quit:
			fmt.Println("bye")
			return
		}
	}
}
