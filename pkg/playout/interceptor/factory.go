package interceptor

import (
	"errors"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"

	"github.com/thesyncim/playout/pkg/playout"
)

// FactoryOption configures the PlayoutDelayInterceptorFactory.
type FactoryOption func(*PlayoutDelayInterceptorFactory) error

// PlayoutDelayInterceptorFactory creates PlayoutDelayInterceptor instances
// for each PeerConnection. Register this factory with the interceptor
// registry to enable receiver-side playout delay estimation.
type PlayoutDelayInterceptorFactory struct {
	config        playout.DelayManagerConfig
	packetLenMs   int
	streamTimeout time.Duration
	onTargetDelay func(ssrc uint32, targetDelayMs int)
	loggerFactory logging.LoggerFactory
}

// WithDelayManagerConfig replaces the whole per-stream DelayManager config.
func WithDelayManagerConfig(config playout.DelayManagerConfig) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		f.config = config
		return nil
	}
}

// WithBaseMinimumDelay sets the lower bound the application guarantees for
// every stream, in milliseconds. Must be in [0, 10000].
// Default: 0
func WithBaseMinimumDelay(delayMs int) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		if delayMs < 0 || delayMs > 10000 {
			return errors.New("base minimum delay must be in [0, 10000] ms")
		}
		f.config.BaseMinimumDelayMs = delayMs
		return nil
	}
}

// WithMaxPacketsInBuffer sets the downstream buffer capacity in packets.
// Default: 200
func WithMaxPacketsInBuffer(packets int) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		if packets <= 0 {
			return errors.New("buffer capacity must be positive")
		}
		f.config.MaxPacketsInBuffer = packets
		return nil
	}
}

// WithQuantile sets the delay distribution quantile the target tracks,
// in Q30 fixed point (1<<30 is 1.0).
// Default: 1041529569 (0.97)
func WithQuantile(quantileQ30 int) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		if quantileQ30 <= 0 || quantileQ30 > 1<<30 {
			return errors.New("quantile must be in (0, 1<<30]")
		}
		f.config.Quantile = quantileQ30
		return nil
	}
}

// WithFactoryPacketAudioLength fixes the packet duration in milliseconds
// for every stream. When unset, each stream learns its duration from
// in-order timestamp deltas.
func WithFactoryPacketAudioLength(lengthMs int) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		if lengthMs <= 0 {
			return errors.New("packet audio length must be positive")
		}
		f.packetLenMs = lengthMs
		return nil
	}
}

// WithFactoryStreamTimeout sets how long idle streams are kept.
// Default: 10 seconds
func WithFactoryStreamTimeout(d time.Duration) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		if d <= 0 {
			return errors.New("stream timeout must be positive")
		}
		f.streamTimeout = d
		return nil
	}
}

// WithFactoryOnTargetDelay sets a callback invoked when a stream's target
// delay is worth delivering downstream. The callback receives the stream
// SSRC and the target delay in milliseconds.
func WithFactoryOnTargetDelay(fn func(ssrc uint32, targetDelayMs int)) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		f.onTargetDelay = fn
		return nil
	}
}

// WithFactoryLoggerFactory sets the logger factory for created interceptors.
func WithFactoryLoggerFactory(loggerFactory logging.LoggerFactory) FactoryOption {
	return func(f *PlayoutDelayInterceptorFactory) error {
		f.loggerFactory = loggerFactory
		return nil
	}
}

// NewPlayoutDelayInterceptorFactory creates a new factory for
// PlayoutDelayInterceptor instances. Configure it using FactoryOption
// functions.
//
// Example:
//
//	factory, err := NewPlayoutDelayInterceptorFactory(
//	    WithBaseMinimumDelay(40),
//	    WithFactoryPacketAudioLength(20),
//	)
//	if err != nil {
//	    return err
//	}
//	registry.Add(factory)
func NewPlayoutDelayInterceptorFactory(opts ...FactoryOption) (*PlayoutDelayInterceptorFactory, error) {
	f := &PlayoutDelayInterceptorFactory{
		config:        playout.DefaultDelayManagerConfig(),
		streamTimeout: defaultStreamTimeout,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewInterceptor creates a new PlayoutDelayInterceptor for a PeerConnection.
// This method is called by the interceptor registry when setting up a connection.
func (f *PlayoutDelayInterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	// Reject a config the per-stream constructor would refuse later,
	// where there is no error path left.
	if _, err := playout.NewDelayManager(f.config, nil, nil); err != nil {
		return nil, err
	}

	opts := []InterceptorOption{
		WithStreamTimeout(f.streamTimeout),
	}
	if f.packetLenMs > 0 {
		opts = append(opts, WithPacketAudioLength(f.packetLenMs))
	}
	if f.onTargetDelay != nil {
		opts = append(opts, WithOnTargetDelay(f.onTargetDelay))
	}
	if f.loggerFactory != nil {
		opts = append(opts, WithLoggerFactory(f.loggerFactory))
	}

	return NewPlayoutDelayInterceptor(f.config, opts...), nil
}
