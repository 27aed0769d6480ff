package worker

import (
	"context"
	"fmt"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/internal/core/service"
	"github.com/hove-io/navitia-sub004/internal/infra/buildinfo"
	"github.com/hove-io/navitia-sub004/internal/routing/raptor"
	"github.com/hove-io/navitia-sub004/internal/routing/street"
	"github.com/hove-io/navitia-sub004/internal/storage/snapshot"
	"github.com/hove-io/navitia-sub004/internal/telemetry/logger"
)

// workspace holds the planning structures derived from one snapshot.
type workspace struct {
	snapshotID uint64
	planner    *raptor.Planner
	street     *street.Router
	search     *service.Orchestrator
}

// workspaceFor returns the workspace of snap, rebuilding it when the
// cached one belongs to another snapshot.
func (w *Worker) workspaceFor(ctx context.Context, snap *snapshot.Snapshot) (*workspace, error) {
	if w.ws != nil && w.ws.snapshotID == snap.ID {
		return w.ws, nil
	}

	router, err := street.NewRouter(snap.Data, snap.Proximity, street.Config{
		WalkingSpeed: w.search.WalkingSpeed,
		CacheSize:    snap.CacheSize,
	})
	if err != nil {
		return nil, domain.ErrInternal.WithDetails("build street router").WithCause(err)
	}
	planner := raptor.NewPlanner(snap.Index)
	ws := &workspace{
		snapshotID: snap.ID,
		planner:    planner,
		street:     router,
		search: service.New(service.Deps{
			Data:      snap.Data,
			Proximity: snap.Proximity,
			Planner:   planner,
			Street:    router,
			Logger:    w.log,
			Metrics:   w.metrics,
			Tracer:    w.tracer,
			Now:       w.now,
		}, w.search),
	}

	prev := uint64(0)
	if w.ws != nil {
		prev = w.ws.snapshotID
		if w.metrics != nil {
			hits, misses := w.ws.street.TakeStats()
			w.metrics.RecordCacheLookups(streetCache, hits, misses)
		}
	}
	logger.L(ctx).Debug("workspace rebuilt", "snapshot_id", snap.ID, "previous_id", prev)
	w.ws = ws
	return ws, nil
}

func (w *Worker) loadedWorkspace(ctx context.Context, snap *snapshot.Snapshot) (*workspace, error) {
	if !snap.Loaded {
		return nil, domain.ErrDataNotLoaded
	}
	return w.workspaceFor(ctx, snap)
}

func (w *Worker) journeys(ctx context.Context, snap *snapshot.Snapshot, req *domain.JourneysRequest, deadline domain.Deadline, resp *domain.Response) error {
	ws, err := w.loadedWorkspace(ctx, snap)
	if err != nil {
		return err
	}
	res, err := ws.search.Search(ctx, service.SearchRequest{Journeys: req, Deadline: deadline})
	resp.Journeys = res.Journeys
	if err != nil {
		return fmt.Errorf("journeys: %w", err)
	}
	return nil
}

func (w *Worker) isochrone(ctx context.Context, snap *snapshot.Snapshot, req *domain.IsochroneRequest, deadline domain.Deadline, resp *domain.Response) error {
	ws, err := w.loadedWorkspace(ctx, snap)
	if err != nil {
		return err
	}
	labels, err := ws.search.Isochrone(ctx, req, deadline)
	if err != nil {
		return fmt.Errorf("isochrone: %w", err)
	}
	resp.Labels = labels
	return nil
}

func (w *Worker) placesNearby(ctx context.Context, snap *snapshot.Snapshot, req *domain.PlacesNearbyRequest, resp *domain.Response) error {
	ws, err := w.loadedWorkspace(ctx, snap)
	if err != nil {
		return err
	}
	places, err := ws.search.PlacesNearby(req)
	if err != nil {
		return fmt.Errorf("places nearby: %w", err)
	}
	resp.Places = places
	return nil
}

func (w *Worker) metadata(ctx context.Context, snap *snapshot.Snapshot, resp *domain.Response) error {
	ws, err := w.loadedWorkspace(ctx, snap)
	if err != nil {
		return err
	}
	resp.Metadata = ws.search.Metadata()
	return nil
}

// status answers even before the first load.
func (w *Worker) status(snap *snapshot.Snapshot, resp *domain.Response) error {
	resp.Status = &domain.Status{
		SnapshotID:        snap.ID,
		Loaded:            snap.Loaded,
		Loading:           w.snaps.Loading(),
		RealtimeConnected: snap.RealtimeConnected(),
		PublicationDate:   resp.PublicationDate,
		Version:           buildinfo.Version,
		Worker:            w.id,
	}
	return nil
}
