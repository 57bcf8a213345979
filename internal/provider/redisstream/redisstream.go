// Package redisstream provides a video source consuming frames from a
// Redis stream. Readiness means the server answered a ping.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "redissrc"

const (
	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyStream      = "stream"
	KeyDialTimeout = "dial_timeout"
)

// dataField is the stream entry field holding the frame payload.
const dataField = "data"

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassNetwork},
		Rank:        provider.RankMarginal,
		Description: "Consumes frames from a Redis stream",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyStream:      "autovideo:frames",
		KeyDialTimeout: "5s",
	}
}

// NewFactory creates a Redis stream source. The client connects lazily;
// the server is only contacted when the instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	addr := provider.GetString(config, KeyAddr, "")
	if addr == "" {
		return nil, provider.NewConfigError(Name, KeyAddr, "cannot be empty")
	}
	db, err := provider.GetInt(config, KeyDB, 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, provider.NewConfigErrorWithValue(Name, KeyDB, config[KeyDB], "must be non-negative")
	}
	stream := provider.GetString(config, KeyStream, "autovideo:frames")
	dialTimeout, err := provider.GetDuration(config, KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &Source{
		Base: source.NewBase(name, caps.New("video/x-raw-rgb", "video/x-raw-yuv")),
		opts: &redis.Options{
			Addr:        addr,
			Password:    provider.GetString(config, KeyPassword, ""),
			DB:          db,
			DialTimeout: dialTimeout,
		},
		stream: stream,
	}, nil
}

// Source tails a Redis stream of frame payloads.
type Source struct {
	*source.Base
	opts   *redis.Options
	stream string

	client *redis.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SetState implements source.Source.
func (s *Source) SetState(ctx context.Context, target source.State) error {
	return s.Transition(ctx, target, s.step)
}

func (s *Source) step(ctx context.Context, from, to source.State) error {
	switch {
	case from == source.StateNull && to == source.StateReady:
		return s.open(ctx)
	case from == source.StateReady && to == source.StateNull:
		s.close()
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

func (s *Source) open(ctx context.Context) error {
	client := redis.NewClient(s.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Could not reach Redis at %q", s.opts.Addr), err.Error())
		return fmt.Errorf("redissrc: ping %s: %w", s.opts.Addr, err)
	}
	s.client = client
	return nil
}

func (s *Source) close() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.client == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	client := s.client

	go func(done chan struct{}) {
		defer close(done)
		var seq uint64
		lastID := "$"
		for {
			if ctx.Err() != nil {
				return
			}
			res, err := client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.stream, lastID},
				Count:   16,
				Block:   250 * time.Millisecond,
			}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.PostError(source.DomainStream, source.CodeFailed, "Stream read failed", err.Error())
				return
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					payload, _ := msg.Values[dataField].(string)
					seq++
					s.Pad().Push(media.Frame{
						Seq:       seq,
						Timestamp: time.Now(),
						Data:      []byte(payload),
						Source:    s.Name(),
						TraceID:   media.NewTraceID(),
					})
				}
			}
		}
	}(s.done)
}

func (s *Source) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Release implements source.Source.
func (s *Source) Release() {
	s.stop()
	s.close()
}
