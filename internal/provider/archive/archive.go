// Package archive provides a video source replaying frames recorded into
// a Badger key-value store under the frame/ prefix, in key order.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "archivesrc"

const (
	KeyPath     = "path"
	KeyInMemory = "in_memory"
	KeyWidth    = "width"
	KeyHeight   = "height"
	KeyFPS      = "fps"
	KeyLoop     = "loop"
)

const framePrefix = "frame/"

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassArchive},
		Rank:        provider.RankMarginal,
		Description: "Replays recorded frames from a Badger archive",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:     "~/.autovideo/archive",
		KeyInMemory: "false",
		KeyWidth:    "640",
		KeyHeight:   "480",
		KeyFPS:      "15",
		KeyLoop:     "true",
	}
}

// NewFactory creates an archive source. The store is not opened until the
// instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	path := provider.GetString(config, KeyPath, "")
	inMemory, err := provider.GetBool(config, KeyInMemory, false)
	if err != nil {
		return nil, err
	}
	if path == "" && !inMemory {
		return nil, provider.NewConfigError(Name, KeyPath, "required (unless in_memory=true)")
	}
	if path != "" {
		path = provider.ExpandPath(path)
	}
	width, err := provider.GetInt(config, KeyWidth, 640)
	if err != nil {
		return nil, err
	}
	height, err := provider.GetInt(config, KeyHeight, 480)
	if err != nil {
		return nil, err
	}
	fps, err := provider.GetFloat(config, KeyFPS, 15)
	if err != nil {
		return nil, err
	}
	loop, err := provider.GetBool(config, KeyLoop, true)
	if err != nil {
		return nil, err
	}

	return &Source{
		Base:     source.NewBase(name, caps.New("video/x-raw-rgb", "video/x-raw-yuv")),
		path:     path,
		inMemory: inMemory,
		width:    width,
		height:   height,
		fps:      fps,
		loop:     loop,
	}, nil
}

// Source replays archived frames.
type Source struct {
	*source.Base
	path     string
	inMemory bool
	width    int
	height   int
	fps      float64
	loop     bool

	db   *badgerdb.DB
	keys [][]byte

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SetState implements source.Source.
func (s *Source) SetState(ctx context.Context, target source.State) error {
	return s.Transition(ctx, target, s.step)
}

func (s *Source) step(_ context.Context, from, to source.State) error {
	switch {
	case from == source.StateNull && to == source.StateReady:
		return s.open()
	case from == source.StateReady && to == source.StateNull:
		s.close()
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

// open opens the store and indexes the frame keys. Ready requires at
// least one recorded frame.
func (s *Source) open() error {
	opts := badgerdb.DefaultOptions(s.path)
	opts.Logger = nil
	if s.inMemory {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Could not open frame archive %q", s.path), err.Error())
		return fmt.Errorf("archivesrc: open %s: %w", s.path, err)
	}

	var keys [][]byte
	err = db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(framePrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		s.PostError(source.DomainLibrary, source.CodeFailed,
			"Could not index frame archive", err.Error())
		return fmt.Errorf("archivesrc: index: %w", err)
	}
	if len(keys) == 0 && !s.inMemory {
		_ = db.Close()
		s.PostError(source.DomainResource, source.CodeNotFound,
			fmt.Sprintf("No recorded frames in archive %q", s.path), "")
		return fmt.Errorf("archivesrc: empty archive %s", s.path)
	}

	s.db = db
	s.keys = keys
	return nil
}

func (s *Source) close() {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
		s.keys = nil
	}
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.db == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	db, keys := s.db, s.keys

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
		defer ticker.Stop()

		var seq uint64
		i := 0
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if i >= len(keys) {
					if !s.loop {
						return
					}
					i = 0
				}
				if len(keys) == 0 {
					continue
				}
				var data []byte
				err := db.View(func(txn *badgerdb.Txn) error {
					item, err := txn.Get(keys[i])
					if err != nil {
						return err
					}
					data, err = item.ValueCopy(nil)
					return err
				})
				i++
				if err != nil {
					continue
				}
				seq++
				s.Pad().Push(media.Frame{
					Seq:       seq,
					Timestamp: t,
					Width:     s.width,
					Height:    s.height,
					Data:      data,
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
