package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/service"
	"github.com/hove-io/navitia-sub004/internal/server/broker"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
	"github.com/hove-io/navitia-sub004/internal/telemetry/metric"
	"github.com/hove-io/navitia-sub004/internal/telemetry/tracer"
)

// streetCache labels the fallback cache in kraken_cache_lookups_total.
const streetCache = "street_fallback"

// apiUnknown labels requests whose api could not be read.
const apiUnknown = "unknown"

// Snapshots is the read side of the snapshot manager.
type Snapshots interface {
	Get() *snapshot.Snapshot
	Loading() bool
}

// Deps are the collaborators shared by every worker of a process.
type Deps struct {
	Snapshots Snapshots
	Logger    logger.Logger
	Metrics   *metric.Registry
	Tracer    *tracer.Provider
	Now       func() time.Time
}

// Worker serves one request at a time. It is not safe for concurrent use;
// the broker hands it a new request only after the previous reply.
type Worker struct {
	id       int
	snaps    Snapshots
	search   service.Config
	log      logger.Logger
	metrics  *metric.Registry
	tracer   *tracer.Provider
	now      func() time.Time
	validate *validator.Validate

	ws *workspace
}

// New returns worker number id.
func New(id int, deps Deps, search service.Config) *Worker {
	w := &Worker{
		id:       id,
		snaps:    deps.Snapshots,
		search:   search,
		log:      deps.Logger,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		now:      deps.Now,
		validate: validator.New(),
	}
	if w.log == nil {
		w.log = logger.Discard()
	}
	w.log = w.log.With("component", "worker", "worker", id)
	if w.tracer == nil {
		w.tracer = tracer.Noop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Pool returns n broker workers sharing deps.
func Pool(n int, deps Deps, search service.Config) []broker.WorkerFunc {
	fns := make([]broker.WorkerFunc, n)
	for i := range fns {
		fns[i] = New(i, deps, search).Run
	}
	return fns
}

// Run announces the worker to the broker and serves requests until ctx is
// done.
func (w *Worker) Run(ctx context.Context, ep *broker.Endpoint) {
	if err := ep.Ready(ctx); err != nil {
		return
	}
	w.log.Debug("worker ready")
	for {
		frames, err := ep.Recv(ctx)
		if err != nil {
			return
		}
		if err := ep.Send(ctx, w.Handle(ctx, frames)); err != nil {
			return
		}
	}
}

// Handle answers one message. The reply carries the routing frames of the
// message, an empty delimiter and the encoded response; it is produced for
// every message, whatever the outcome.
func (w *Worker) Handle(ctx context.Context, frames [][]byte) [][]byte {
	start := w.now()
	if len(frames) < 3 || len(frames[len(frames)-2]) != 0 {
		var routing [][]byte
		switch {
		case len(frames) == 1:
			// The client sent nothing; the lone frame is its identity.
			routing = frames
		case len(frames) > 1:
			routing = frames[:len(frames)-1]
		}
		err := domain.ErrFraming.WithDetailsf("expected routing frames, an empty delimiter and a payload, got %d frames", len(frames))
		resp := &domain.Response{PublicationDate: domain.PublicationDateUnknown}
		resp.SetError(err)
		w.finish(ctx, start, apiUnknown, "", resp)
		return w.reply(routing, resp)
	}
	routing, payload := frames[:len(frames)-2], frames[len(frames)-1]

	var req domain.Request
	if err := w.decode(payload, &req); err != nil {
		resp := &domain.Response{PublicationDate: domain.PublicationDateUnknown}
		resp.SetError(err)
		w.finish(ctx, start, apiUnknown, "", resp)
		return w.reply(routing, resp)
	}

	id := req.RequestID
	if id == "" {
		id = ulid.Make().String()
	}
	ctx = logger.WithCorrelationID(logger.WithLogger(ctx, w.log), id)
	log := logger.L(ctx)

	deadline, err := domain.ParseDeadline(req.Deadline)
	if err != nil {
		log.Warn("ignoring deadline", "deadline", req.Deadline, "error", err)
		deadline = domain.Deadline{}
	}

	snap := w.snaps.Get()
	resp := &domain.Response{
		RequestID:       id,
		API:             req.API,
		PublicationDate: publicationDate(snap),
	}

	ctx, span := w.tracer.StartSpan(ctx, "worker.handle",
		attribute.String("api", string(req.API)),
		attribute.String("request_id", id),
		attribute.Int("worker", w.id),
		attribute.Int64("snapshot_id", int64(snap.ID)))
	err = w.dispatch(ctx, snap, &req, deadline, resp)
	if err == nil && deadline.Expired(w.now()) {
		err = domain.ErrDeadlineExpired.WithDetailsf("deadline %s passed while serving %s", deadline, req.API)
	}
	if err != nil {
		err = w.classify(ctx, err)
		resp.SetError(err)
		tracer.RecordError(span, err)
	}
	span.End()

	w.finish(ctx, start, string(req.API), id, resp)
	return w.reply(routing, resp)
}

// decode reads and validates the payload.
func (w *Worker) decode(payload []byte, req *domain.Request) error {
	if err := json.Unmarshal(payload, req); err != nil {
		return domain.ErrInvalidRequest.WithDetails("payload is not a valid request").WithCause(err)
	}
	if err := w.validate.Struct(req); err != nil {
		return domain.ErrInvalidRequest.WithCause(err)
	}
	return nil
}

// dispatch runs the handler of req.API, tracked by the in-flight gauge.
func (w *Worker) dispatch(ctx context.Context, snap *snapshot.Snapshot, req *domain.Request, deadline domain.Deadline, resp *domain.Response) (err error) {
	if w.metrics != nil {
		w.metrics.RequestsInFlight.Inc()
		defer w.metrics.RequestsInFlight.Dec()
	}
	defer recoverHandler(ctx, &err)

	switch req.API {
	case domain.APIStatus:
		return w.status(snap, resp)
	case domain.APIJourneys:
		return w.journeys(ctx, snap, req.Journeys, deadline, resp)
	case domain.APIIsochrone:
		return w.isochrone(ctx, snap, req.Isochrone, deadline, resp)
	case domain.APIPlacesNearby:
		return w.placesNearby(ctx, snap, req.PlacesNearby, resp)
	case domain.APIMetadata:
		return w.metadata(ctx, snap, resp)
	default:
		return domain.ErrUnknownAPI.WithDetails(string(req.API))
	}
}

// recoverHandler turns a handler panic into an internal error. The stack is
// taken inside the deferred call, so it still holds the panicking frames.
func recoverHandler(ctx context.Context, err *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.L(ctx).Error("handler panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	*err = domain.ErrInternal.WithDetailsf("panic: %v", r)
}

// classify maps a handler error onto the kinds a reply may carry. Domain
// errors other than a rejected request or an expired deadline become
// internal errors.
func (w *Worker) classify(ctx context.Context, err error) error {
	log := logger.L(ctx)
	switch domain.KindOf(err) {
	case domain.KindDeadlineExpired:
		log.Warn("deadline expired", "error", err)
		return err
	case domain.KindInvalidRequest:
		log.Info("request rejected", "error", err)
		return err
	}
	log.Error("request failed", "error", err)
	if de, ok := domain.AsError(err); ok && de.Kind == domain.KindInternal {
		return de
	}
	return domain.ErrInternal.WithCause(err)
}

// finish emits the log record and the metrics of one request.
func (w *Worker) finish(ctx context.Context, start time.Time, api, id string, resp *domain.Response) {
	end := w.now()
	status := "ok"
	if resp.Error != nil {
		status = string(resp.Error.Kind)
	}

	if w.metrics != nil {
		w.metrics.RecordRequest(api, status, end.Sub(start).Seconds())
		if w.ws != nil {
			hits, misses := w.ws.street.TakeStats()
			w.metrics.RecordCacheLookups(streetCache, hits, misses)
		}
	}

	w.log.WithContext(ctx).Info("request served",
		"api", api,
		"request_id", id,
		"start", start,
		"end", end,
		"duration", end.Sub(start).String(),
		"status", status)
}

func (w *Worker) reply(routing [][]byte, resp *domain.Response) [][]byte {
	body, err := json.Marshal(resp)
	if err != nil {
		w.log.Error("encode response", "error", err)
		body = []byte(fmt.Sprintf(`{"request_id":%q,"publication_date":%q,"error":{"kind":%q,"message":"response encoding failed"}}`,
			resp.RequestID, resp.PublicationDate, domain.KindInternal))
	}
	out := make([][]byte, 0, len(routing)+2)
	out = append(out, routing...)
	out = append(out, []byte{}, body)
	return out
}

func publicationDate(s *snapshot.Snapshot) string {
	if !s.Loaded {
		return domain.PublicationDateUnknown
	}
	return s.PublicationDate.Format(time.RFC3339)
}
