package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:          "localhost:9090",
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Client calls the Trivia gRPC service.
type Client struct {
	conn   *grpc.ClientConn
	cfg    ClientConfig
	logger *slog.Logger
}

// DispatchResult is the decoded Dispatch response.
type DispatchResult struct {
	Handled bool
	Command string
	Reply   string
}

// NewClient connects to the Trivia service at cfg.Address and waits until
// the connection is ready.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClientConfig()
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = defaults.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = defaults.KeepaliveTimeout
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create trivia client for %s: %w", cfg.Address, err)
	}

	// Connect now so bad addresses fail fast.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("trivia service at %s not ready: %w", cfg.Address, err)
	}

	logger.Debug("Connected to trivia service", "address", cfg.Address)
	return &Client{conn: conn, cfg: cfg, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Dispatch sends one chat line. IDs are sent as strings to keep full
// precision.
func (c *Client) Dispatch(ctx context.Context, channelID, userID int64, text string, thread bool) (DispatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"channel_id": structpb.NewStringValue(strconv.FormatInt(channelID, 10)),
		"user_id":    structpb.NewStringValue(strconv.FormatInt(userID, 10)),
		"text":       structpb.NewStringValue(text),
		"thread":     structpb.NewBoolValue(thread),
	}}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, DispatchMethod, req, resp); err != nil {
		return DispatchResult{}, fmt.Errorf("dispatch: %w", err)
	}

	fields := resp.GetFields()
	return DispatchResult{
		Handled: fields["handled"].GetBoolValue(),
		Command: fields["command"].GetStringValue(),
		Reply:   fields["reply"].GetStringValue(),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
