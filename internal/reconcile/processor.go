package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleet-monitor/reconciler/internal/domain"
	"fleet-monitor/reconciler/internal/metrics"
)

type GroupStatus string

const (
	GroupNoActiveTrip   GroupStatus = "no_active_trip"
	GroupStale          GroupStatus = "stale"
	GroupUnchanged      GroupStatus = "unchanged"
	GroupUpdated        GroupStatus = "updated"
	GroupAlreadyApplied GroupStatus = "already_applied"
	GroupFailed         GroupStatus = "failed"
)

// GroupResult describes how one vehicle group of a batch was handled.
type GroupResult struct {
	VehicleID    string
	OdometerHigh float64
	Status       GroupStatus
	TripID       string
	TripStatus   domain.TripStatus
	Alerts       []domain.Alert
	Err          error
}

type BatchResult struct {
	Groups  []GroupResult
	Dropped int
}

func (r BatchResult) Failed() int {
	n := 0
	for _, g := range r.Groups {
		if g.Status == GroupFailed {
			n++
		}
	}
	return n
}

// Processor turns telemetry batches into trip and consignment updates.
type Processor struct {
	locator *Locator
	loader  *Loader
	writer  *Writer

	marks        HighWaterMarks
	alerts       AlertSink
	clock        func() time.Time
	groupTimeout time.Duration
	logger       *slog.Logger
}

type Option func(*Processor)

// WithClock sets the source of "now" used by the transition rules.
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) { p.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithHighWaterMarks enables the cross-batch odometer regression check.
func WithHighWaterMarks(marks HighWaterMarks) Option {
	return func(p *Processor) { p.marks = marks }
}

func WithAlertSink(sink AlertSink) Option {
	return func(p *Processor) { p.alerts = sink }
}

// WithGroupTimeout bounds the store calls made for one vehicle group.
func WithGroupTimeout(d time.Duration) Option {
	return func(p *Processor) { p.groupTimeout = d }
}

func NewProcessor(trips TripStore, consignments ConsignmentStore, intents IntentStore, opts ...Option) *Processor {
	p := &Processor{
		clock:  func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.locator = NewLocator(trips, p.logger)
	p.loader = NewLoader(consignments)
	p.writer = NewWriter(trips, consignments, intents, p.logger)
	return p
}

// Process handles every vehicle group of the batch in turn. A failing group
// does not stop the others; the returned error joins the errors of all
// failed groups and is nil when every group succeeded.
func (p *Processor) Process(ctx context.Context, batch []domain.TelemetryEvent) (BatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	metrics.BatchesReceived.Inc()
	metrics.EventsReceived.Add(float64(len(batch)))

	groups, dropped := GroupByVehicle(batch)
	if dropped > 0 {
		metrics.EventsDropped.Add(float64(dropped))
		p.logger.Warn("dropped malformed telemetry events", "dropped", dropped, "batch_size", len(batch))
	}

	result := BatchResult{Groups: make([]GroupResult, 0, len(groups)), Dropped: dropped}
	var errs []error
	for _, g := range groups {
		gr := p.processGroup(ctx, g)
		metrics.GroupsProcessed.WithLabelValues(string(gr.Status)).Inc()
		if gr.Err != nil {
			errs = append(errs, gr.Err)
			p.logger.Error("vehicle group failed",
				"vehicle_id", gr.VehicleID,
				"trip_id", gr.TripID,
				"odometer_high", gr.OdometerHigh,
				"error", gr.Err,
			)
		}
		result.Groups = append(result.Groups, gr)
	}

	p.logger.Debug("batch processed",
		"events", len(batch),
		"groups", len(groups),
		"failed", len(errs),
	)
	return result, errors.Join(errs...)
}

func (p *Processor) processGroup(ctx context.Context, g VehicleHigh) GroupResult {
	gr := GroupResult{VehicleID: g.VehicleID, OdometerHigh: g.OdometerHigh}
	fail := func(err error) GroupResult {
		gr.Status = GroupFailed
		gr.Err = fmt.Errorf("vehicle %s: %w", g.VehicleID, err)
		return gr
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if p.groupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.groupTimeout)
		defer cancel()
	}

	if p.marks != nil {
		mark, err := p.marks.Advance(ctx, g.VehicleID, g.OdometerHigh)
		if err != nil {
			return fail(fmt.Errorf("advance high-water mark: %w", err))
		}
		if g.OdometerHigh < mark {
			p.logger.Warn("ignoring stale odometer reading",
				"vehicle_id", g.VehicleID,
				"odometer_high", g.OdometerHigh,
				"high_water_mark", mark,
			)
			gr.Status = GroupStale
			return gr
		}
	}

	trip, err := p.locator.Locate(ctx, g.VehicleID)
	if err != nil {
		return fail(err)
	}
	if trip == nil {
		gr.Status = GroupNoActiveTrip
		return gr
	}
	gr.TripID = trip.ID
	gr.TripStatus = trip.Status

	consignment, err := p.loader.Load(ctx, trip)
	if err != nil {
		return fail(err)
	}

	now := p.clock()
	out, err := Transition(*trip, *consignment, g.OdometerHigh, now)
	if err != nil {
		return fail(err)
	}
	if !out.Dirty() {
		gr.Status = GroupUnchanged
		return gr
	}

	res, err := p.writer.Apply(ctx, out, g.OdometerHigh, now)
	if res.Written {
		gr.Alerts = p.sendAlerts(ctx, res.Intent, now)
	}
	if err != nil {
		return fail(err)
	}
	if !res.Written {
		gr.Status = GroupAlreadyApplied
		gr.TripStatus = res.Intent.Status
		return gr
	}

	gr.Status = GroupUpdated
	gr.TripStatus = res.Intent.Status
	p.logger.Info("trip reconciled",
		"vehicle_id", g.VehicleID,
		"trip_id", trip.ID,
		"from", trip.Status,
		"to", res.Intent.Status,
		"odometer_high", g.OdometerHigh,
		"alerts", len(gr.Alerts),
	)
	return gr
}

func (p *Processor) sendAlerts(ctx context.Context, intent *domain.Intent, now time.Time) []domain.Alert {
	alerts := buildAlerts(intent, now)
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(string(a.Kind)).Inc()
		if p.alerts == nil {
			continue
		}
		if err := p.alerts.Send(ctx, a); err != nil {
			p.logger.Error("alert hand-off failed",
				"vehicle_id", a.VehicleID,
				"trip_id", a.TripID,
				"kind", a.Kind,
				"error", err,
			)
		}
	}
	return alerts
}
