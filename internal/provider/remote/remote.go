// Package remote provides a video source fed by a remote frame supplier
// reached over gRPC. Readiness means the supplier's health endpoint
// reports serving.
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "remotesrc"

const (
	KeyAddr    = "addr"
	KeyService = "service"
	KeyTimeout = "timeout"
	KeyFPS     = "fps"
)

// defaultService is the health-check service name frame suppliers
// register under.
const defaultService = "framesupplier"

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassNetwork},
		Rank:        provider.RankSecondary,
		Description: "Pulls frames from a gRPC frame supplier",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:    "localhost:9090",
		KeyService: defaultService,
		KeyTimeout: "5s",
		KeyFPS:     "15",
	}
}

// NewFactory creates a remote source. The connection is lazy; nothing is
// dialed until the instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	addr := provider.GetString(config, KeyAddr, "")
	if addr == "" {
		return nil, provider.NewConfigError(Name, KeyAddr, "cannot be empty")
	}
	service := provider.GetString(config, KeyService, defaultService)
	timeout, err := provider.GetDuration(config, KeyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	fps, err := provider.GetFloat(config, KeyFPS, 15)
	if err != nil {
		return nil, err
	}

	return &Source{
		Base:    source.NewBase(name, caps.New("video/x-raw-rgb", "video/x-raw-yuv")),
		addr:    addr,
		service: service,
		timeout: timeout,
		fps:     fps,
	}, nil
}

// Source proxies a remote frame supplier.
type Source struct {
	*source.Base
	addr    string
	service string
	timeout time.Duration
	fps     float64

	conn *grpc.ClientConn

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

// open dials the supplier and requires a serving health check.
func (s *Source) open(ctx context.Context) error {
	conn, err := grpc.NewClient(s.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Could not reach frame supplier at %q", s.addr), err.Error())
		return fmt.Errorf("remotesrc: dial %s: %w", s.addr, err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: s.service})
	if err != nil {
		_ = conn.Close()
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Frame supplier at %q did not answer health check", s.addr), err.Error())
		return fmt.Errorf("remotesrc: health check %s: %w", s.addr, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		_ = conn.Close()
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Frame supplier at %q is not serving", s.addr), resp.GetStatus().String())
		return fmt.Errorf("remotesrc: supplier %s not serving: %s", s.addr, resp.GetStatus())
	}

	s.conn = conn
	return nil
}

func (s *Source) close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.conn == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	conn := s.conn

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
		defer ticker.Stop()

		client := healthpb.NewHealthClient(conn)
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: s.service})
				if err != nil {
					s.PostError(source.DomainStream, source.CodeFailed, "Lost contact with frame supplier", err.Error())
					return
				}
				if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
					continue
				}
				seq++
				s.Pad().Push(media.Frame{
					Seq:       seq,
					Timestamp: t,
					Source:    s.Name(),
					TraceID:   media.NewTraceID(),
				})
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
