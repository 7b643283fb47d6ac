package marketfeed

import (
	"context"

	logger "github.com/sirupsen/logrus"
)

// Build constructs the feed selected by config.Mode. Background work (stream
// consumption, sim jitter) is bound to ctx. The sim feed only runs its jitter
// loop when SimTicks is set; nothing mutates quotes behind the caller's back
// otherwise.
func Build(ctx context.Context, config Config) Feed {
	switch config.Mode {
	case "remote":
		logger.WithField("base_url", config.BaseURL).Info("Using remote market feed")
		return NewRemoteFeed(config.BaseURL, config.Timeout)

	case "stream":
		logger.WithField("url", config.StreamURL).Info("Using streaming market feed")
		stream := NewStreamFeed(config.StreamURL, NewSimFeed())
		go stream.Run(ctx)
		return stream

	default:
		sim := NewSimFeed()
		if config.SimTicks {
			logger.WithField("interval", config.TickInterval).Info("Starting simulated price ticks")
			sim.Start(ctx, config.TickInterval)
		}
		return sim
	}
}
