package registry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xrplwatch/valtrack/logging"
	"github.com/xrplwatch/valtrack/logging/fields"
	"github.com/xrplwatch/valtrack/monitoring/metrics"
	"github.com/xrplwatch/valtrack/stream"
	"github.com/xrplwatch/valtrack/unl"
)

// Identity is the stable record for one trusted validator: the master key it
// is known by, the signing key its current manifest delegates to, and the
// manifest sequence. Sequence never decreases for a given master key.
type Identity struct {
	MasterKey  string
	SigningKey string
	Sequence   uint32
}

// UnlData describes one applied identity update, delivered to the consumer on
// both the list refresh path and the live manifest path.
type UnlData struct {
	PublicKey             string
	SigningKey            string
	Sequence              uint32
	Name                  string
	IsNewValidator        bool
	IsNewManifest         bool
	IsDuringStartup       bool
	IsFromManifestsStream bool
}

// Vote is an enriched validation vote. MasterKey and Name are resolved from
// the current identity table; IsOnUNL reflects list membership at receipt time.
type Vote struct {
	MasterKey           string
	ValidationPublicKey string
	LedgerHash          string
	LedgerIndex         string
	SigningTime         uint64
	Flags               uint32
	Full                bool
	Amendments          []string
	BaseFee             *uint64
	LoadFee             *uint64
	ReserveBase         *uint64
	ReserveInc          *uint64
	Name                string
	IsOnUNL             bool
	ReceivedAt          time.Time
}

// Callbacks deliver registry output to the external consumer.
type Callbacks struct {
	OnUnlData     func(UnlData)
	OnValidation  func(Vote)
	OnStreamClose func(address string, err error)
}

// ListFetcher retrieves the current validator list.
type ListFetcher interface {
	Fetch(ctx context.Context) (*unl.Blob, error)
}

// NameResolver maps identities to display names.
type NameResolver interface {
	Resolve(ctx context.Context, identity string) string
}

const (
	defaultPruneInterval   = 30 * time.Second
	defaultDedupWindow     = 30 // ripple seconds behind the watermark
	defaultRefreshInterval = 24 * time.Hour
)

// Options configures the registry.
type Options struct {
	Upstreams          []string
	RequireMasterKey   bool
	HeartbeatEnabled   bool
	PingInterval       time.Duration
	LatencyMargin      time.Duration
	SubscribeManifests bool
	PruneInterval      time.Duration
	DedupWindow        uint64
	RefreshInterval    time.Duration
}

func (o *Options) applyDefaults() {
	if o.PruneInterval == 0 {
		o.PruneInterval = defaultPruneInterval
	}
	if o.DedupWindow == 0 {
		o.DedupWindow = defaultDedupWindow
	}
	if o.RefreshInterval == 0 {
		o.RefreshInterval = defaultRefreshInterval
	}
}

// Registry is the orchestrating aggregate: the identity table, the signing
// key inverse index, the dedup window and the set of live streams, all behind
// one mutex so no caller observes a partially applied update.
type Registry struct {
	logger   *zap.Logger
	fetcher  ListFetcher
	resolver NameResolver
	cb       Callbacks
	opts     Options

	mu           sync.Mutex
	identities   map[string]*Identity
	bySigningKey map[string]string
	listSequence uint32
	bootstrapped bool
	dedup        *dedupWindow
	streams      map[string]*stream.Stream

	done      chan struct{}
	closeOnce sync.Once
}

func New(logger *zap.Logger, fetcher ListFetcher, resolver NameResolver, cb Callbacks, opts Options) *Registry {
	opts.applyDefaults()
	return &Registry{
		logger:       logger,
		fetcher:      fetcher,
		resolver:     resolver,
		cb:           cb,
		opts:         opts,
		identities:   make(map[string]*Identity),
		bySigningKey: make(map[string]string),
		dedup:        newDedupWindow(opts.DedupWindow),
		streams:      make(map[string]*stream.Stream),
		done:         make(chan struct{}),
	}
}

// Start refreshes the UNL, opens one stream per configured upstream and kicks
// off the background timers. A failed initial refresh is logged, not fatal:
// the periodic refresh retries it.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.RefreshUNL(ctx); err != nil {
		r.logger.Error("initial UNL refresh failed", zap.Error(err))
	}

	var eg errgroup.Group
	for _, address := range r.opts.Upstreams {
		address := address
		eg.Go(func() error {
			return r.openStream(address)
		})
	}
	if err := eg.Wait(); err != nil {
		r.logger.Warn("some streams failed to open", zap.Error(err))
	}

	go r.run(ctx)
	return nil
}

func (r *Registry) openStream(address string) error {
	s := stream.New(r.logger.Named(logging.NameValidationStream), stream.Options{
		Address:            address,
		HeartbeatEnabled:   r.opts.HeartbeatEnabled,
		PingInterval:       r.opts.PingInterval,
		LatencyMargin:      r.opts.LatencyMargin,
		SubscribeManifests: r.opts.SubscribeManifests,
	}, stream.Callbacks{
		OnValidation: func(msg *stream.ValidationMessage) {
			r.handleValidation(msg)
		},
		OnManifest: func(msg *stream.ManifestMessage) {
			r.handleManifest(msg)
		},
		OnClose: func(err error) {
			r.handleStreamClose(address, err)
		},
	})

	if err := s.Connect(); err != nil {
		return errors.Wrapf(err, "could not open stream to %s", address)
	}

	r.mu.Lock()
	r.streams[address] = s
	r.mu.Unlock()
	return nil
}

// handleStreamClose deregisters a dead stream. A duplicate notification for
// an already deregistered stream is inert. No reconnection is attempted.
func (r *Registry) handleStreamClose(address string, err error) {
	r.mu.Lock()
	_, registered := r.streams[address]
	if registered {
		delete(r.streams, address)
	}
	r.mu.Unlock()

	if !registered {
		return
	}
	if err != nil {
		r.logger.Warn("stream lost", fields.Address(address), zap.Error(err))
	}
	if r.cb.OnStreamClose != nil {
		r.cb.OnStreamClose(address, err)
	}
}

// run owns the registry timers: dedup pruning and periodic UNL refresh.
func (r *Registry) run(ctx context.Context) {
	pruneTicker := time.NewTicker(r.opts.PruneInterval)
	defer pruneTicker.Stop()
	refreshTicker := time.NewTicker(r.opts.RefreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-pruneTicker.C:
			r.mu.Lock()
			removed, watermark := r.dedup.prune()
			r.mu.Unlock()
			if removed > 0 {
				r.logger.Debug("pruned dedup window",
					fields.Count(removed), fields.Watermark(watermark))
			}
		case <-refreshTicker.C:
			if err := r.RefreshUNL(ctx); err != nil {
				r.logger.Error("UNL refresh failed", zap.Error(err))
			}
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the timers and closes every remaining stream.
func (r *Registry) Stop() error {
	var errs error
	r.closeOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		open := make([]*stream.Stream, 0, len(r.streams))
		for _, s := range r.streams {
			open = append(open, s)
		}
		r.streams = make(map[string]*stream.Stream)
		r.mu.Unlock()

		for _, s := range open {
			errs = multierr.Append(errs, s.Close())
		}
	})
	return errs
}

// Validators returns a snapshot of the identity table.
func (r *Registry) Validators() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Identity, 0, len(r.identities))
	for _, identity := range r.identities {
		out = append(out, *identity)
	}
	return out
}

// StreamCount returns the number of registered streams.
func (r *Registry) StreamCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// HealthCheck reports failure conditions for the health endpoint.
func (r *Registry) HealthCheck() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []string
	if len(r.streams) == 0 {
		errs = append(errs, "no open validation streams")
	}
	if len(r.identities) == 0 {
		errs = append(errs, "validator list not loaded")
	}
	return errs
}

func (r *Registry) reportTrackedLocked() {
	metrics.ReportValidatorsTracked(len(r.identities))
}
