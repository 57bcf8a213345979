package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visiona/autovideo/internal/autovideosrc"
	"github.com/visiona/autovideo/internal/observability"
	"github.com/visiona/autovideo/internal/source"
)

func newCaptureCmd(v *viper.Viper) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Detect a source and play it for a while, reporting frame stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			filter, err := detectFilter(cfg)
			if err != nil {
				return err
			}
			constraint, err := detectConstraint(cfg)
			if err != nil {
				return err
			}

			obs, err := observability.New(ctx, observability.ObsConfig{
				LogLevel:       cfg.Observability.LogLevel,
				LogFormat:      cfg.Observability.LogFormat,
				OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
				OTLPProtocol:   cfg.Observability.OTLPProtocol,
				ServiceName:    cfg.Observability.ServiceName,
				ServiceVersion: cfg.Observability.ServiceVersion,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = obs.Close(ctx) }()

			if cfg.Observability.MetricsAddr != "" {
				obs.ServeMetrics(ctx, cfg.Observability.MetricsAddr)
			}

			src := autovideosrc.New("autovideosrc0",
				autovideosrc.WithProviderConfigs(cfg.Providers),
				autovideosrc.WithConstraint(constraint),
				autovideosrc.WithMetrics(obs.Metrics),
			)
			if filter != nil || cfg.Detect.FilterCaps == "ANY" {
				if err := src.SetFilterCaps(filter); err != nil {
					return err
				}
			}

			bus := source.NewBus()
			src.SetBus(bus)

			if err := src.SetState(ctx, source.StatePlaying); err != nil {
				return err
			}
			defer func() { _ = src.SetState(ctx, source.StateNull) }()

			outcome := src.Outcome()
			slog.Info("capturing", "source", outcome.Source.Name(), "fallback", outcome.UsedFallback, "duration", duration)
			for _, m := range bus.Drain() {
				slog.Warn("detection diagnostic", "message", m.String())
			}

			deadline := time.After(duration)
			var frames uint64
			started := time.Now()
		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case <-deadline:
					break loop
				case f, ok := <-src.Pad().Frames():
					if !ok {
						break loop
					}
					frames++
					obs.Metrics.FramesTotal.WithLabelValues(f.Source).Inc()
					slog.Debug("frame", "seq", f.Seq, "bytes", len(f.Data), "trace_id", f.TraceID)
				}
			}

			elapsed := time.Since(started)
			fmt.Printf("captured %d frames in %s (%.1f fps), %d dropped\n",
				frames, elapsed.Round(time.Millisecond),
				float64(frames)/elapsed.Seconds(), src.Pad().Dropped())
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to capture")
	return cmd
}
