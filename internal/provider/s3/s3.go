// Package s3 provides a video source replaying frame objects from an
// S3 bucket under a key prefix, in key order. Readiness means the bucket
// answered a HeadBucket call.
package s3

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "s3src"

const (
	KeyBucket          = "bucket"
	KeyRegion          = "region"
	KeyEndpoint        = "endpoint"
	KeyPrefix          = "prefix"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyForcePathStyle  = "force_path_style"
	KeyFPS             = "fps"
	KeyLoop            = "loop"
)

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassArchive, provider.ClassNetwork},
		Rank:        provider.RankMarginal,
		Description: "Replays frame objects from an S3 bucket",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyRegion:         "us-east-1",
		KeyPrefix:         "frames/",
		KeyForcePathStyle: "false",
		KeyFPS:            "15",
		KeyLoop:           "true",
	}
}

// NewFactory creates an S3 source. The bucket is only contacted when the
// instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	bucket := provider.GetString(config, KeyBucket, "")
	if bucket == "" {
		return nil, provider.NewConfigError(Name, KeyBucket, "required")
	}
	forcePathStyle, err := provider.GetBool(config, KeyForcePathStyle, false)
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
		Base:           source.NewBase(name, caps.New("video/x-raw-rgb", "video/x-raw-yuv")),
		bucket:         bucket,
		region:         provider.GetString(config, KeyRegion, "us-east-1"),
		endpoint:       provider.GetString(config, KeyEndpoint, ""),
		prefix:         provider.GetString(config, KeyPrefix, "frames/"),
		accessKey:      provider.GetString(config, KeyAccessKeyID, ""),
		secretKey:      provider.GetString(config, KeySecretAccessKey, ""),
		forcePathStyle: forcePathStyle,
		fps:            fps,
		loop:           loop,
	}, nil
}

// Source replays frame objects from a bucket.
type Source struct {
	*source.Base
	bucket         string
	region         string
	endpoint       string
	prefix         string
	accessKey      string
	secretKey      string
	forcePathStyle bool
	fps            float64
	loop           bool

	client *awss3.Client
	keys   []string

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
		s.client = nil
		s.keys = nil
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

// open validates bucket access and indexes the frame objects.
func (s *Source) open(ctx context.Context) error {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(s.region))
	if s.accessKey != "" && s.secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		s.PostError(source.DomainLibrary, source.CodeInit,
			"Could not initialize S3 credentials", err.Error())
		return fmt.Errorf("s3src: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if s.endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(s.endpoint)
		})
	}
	if s.forcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}
	client := awss3.NewFromConfig(cfg, s3Opts...)

	if _, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Bucket %q is not accessible", s.bucket), err.Error())
		return fmt.Errorf("s3src: bucket %q not accessible: %w", s.bucket, err)
	}

	var keys []string
	p := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			s.PostError(source.DomainResource, source.CodeOpenRead,
				fmt.Sprintf("Could not list bucket %q", s.bucket), err.Error())
			return fmt.Errorf("s3src: list %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	if len(keys) == 0 {
		s.PostError(source.DomainResource, source.CodeNotFound,
			fmt.Sprintf("No frame objects under %q in bucket %q", s.prefix, s.bucket), "")
		return fmt.Errorf("s3src: no objects under %s in %s", s.prefix, s.bucket)
	}

	s.client = client
	s.keys = keys
	return nil
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
	client, keys := s.client, s.keys

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
				out, err := client.GetObject(ctx, &awss3.GetObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    aws.String(keys[i]),
				})
				i++
				if err != nil {
					continue
				}
				data, err := io.ReadAll(out.Body)
				_ = out.Body.Close()
				if err != nil {
					continue
				}
				seq++
				s.Pad().Push(media.Frame{
					Seq:       seq,
					Timestamp: t,
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
}
