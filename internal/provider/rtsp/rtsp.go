// Package rtsp provides a video source pulling interleaved RTP from an
// RTSP server over TCP. Readiness means the server answered an OPTIONS
// request. The source advertises packetized caps, so it only qualifies
// when the capability filter admits application/x-rtp.
package rtsp

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "rtspsrc"

const (
	KeyLocation = "location"
	KeyTimeout  = "timeout"
)

const defaultPort = "554"

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassNetwork},
		Rank:        provider.RankSecondary,
		Description: "Receives interleaved RTP from an RTSP server",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyLocation: "rtsp://localhost:554/stream",
		KeyTimeout:  "5s",
	}
}

// NewFactory creates an RTSP source. No connection is made until the
// instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	location := provider.GetString(config, KeyLocation, "")
	if location == "" {
		return nil, provider.NewConfigError(Name, KeyLocation, "cannot be empty")
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "rtsp" || u.Host == "" {
		return nil, provider.NewConfigErrorWithValue(Name, KeyLocation, location, "must be an rtsp:// URL")
	}
	timeout, err := provider.GetDuration(config, KeyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &Source{
		Base:     source.NewBase(name, caps.New("application/x-rtp")),
		location: u,
		timeout:  timeout,
	}, nil
}

// Source pulls interleaved RTP over a TCP control connection.
type Source struct {
	*source.Base
	location *url.URL
	timeout  time.Duration

	conn net.Conn

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

func (s *Source) hostport() string {
	host := s.location.Host
	if s.location.Port() == "" {
		host = net.JoinHostPort(host, defaultPort)
	}
	return host
}

// open dials the server and performs an OPTIONS handshake.
func (s *Source) open(ctx context.Context) error {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", s.hostport())
	if err != nil {
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Could not connect to RTSP server %q", s.location.String()), err.Error())
		return fmt.Errorf("rtspsrc: dial %s: %w", s.hostport(), err)
	}

	_ = conn.SetDeadline(time.Now().Add(s.timeout))
	fmt.Fprintf(conn, "OPTIONS %s RTSP/1.0\r\nCSeq: 1\r\n\r\n", s.location.String())

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "RTSP/1.0 200") {
		_ = conn.Close()
		detail := strings.TrimSpace(line)
		if err != nil {
			detail = err.Error()
		}
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("RTSP server %q rejected OPTIONS", s.location.String()), detail)
		return fmt.Errorf("rtspsrc: options handshake with %s failed", s.hostport())
	}

	_ = conn.SetDeadline(time.Time{})
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
		r := bufio.NewReader(conn)
		var seq uint64
		for {
			if ctx.Err() != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
			pkt, err := readInterleaved(r)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				s.PostError(source.DomainStream, source.CodeFailed, "RTP read failed", err.Error())
				return
			}
			seq++
			s.Pad().Push(media.Frame{
				Seq:       seq,
				Timestamp: time.Now(),
				Data:      pkt,
				Source:    s.Name(),
				TraceID:   media.NewTraceID(),
			})
		}
	}(s.done)
}

// readInterleaved reads one $-framed packet: magic byte, channel, and a
// big-endian 16-bit length.
func readInterleaved(r *bufio.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != '$' {
		return nil, fmt.Errorf("bad interleave marker 0x%02x", hdr[0])
	}
	n := binary.BigEndian.Uint16(hdr[2:])
	pkt := make([]byte, n)
	if _, err := io.ReadFull(r, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
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
