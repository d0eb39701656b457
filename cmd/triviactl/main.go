// Sends one chat line to a running trivia server over gRPC and prints the
// bot's reply.
//
//	triviactl -channel 1 -user 42 '!trivia start'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ashureev/trivia-bot/internal/rpc"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "trivia gRPC address")
	channelID := flag.Int64("channel", 1, "channel ID")
	userID := flag.Int64("user", 1, "user ID")
	thread := flag.Bool("thread", false, "treat the channel as a thread")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: triviactl [flags] '<chat line>'")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, err := rpc.NewClient(rpc.ClientConfig{Address: *addr, RequestTimeout: *timeout}, logger)
	if err != nil {
		logger.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("Failed to close client", "error", closeErr)
		}
	}()

	res, err := client.Dispatch(context.Background(), *channelID, *userID, text, *thread)
	if err != nil {
		logger.Error("Dispatch failed", "error", err)
		os.Exit(1)
	}
	if !res.Handled {
		fmt.Fprintln(os.Stderr, "not a trivia command")
		os.Exit(1)
	}
	fmt.Println(res.Reply)
}
