package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hove-io/navitia-sub004/internal/core/domain"
	"github.com/hove-io/navitia-sub004/pkg/client"
)

// basicLayout is the compact datetime form "20240304T080000".
const basicLayout = "20060102T150405"

// JourneysCommand returns the journeys command.
func JourneysCommand() *cli.Command {
	return &cli.Command{
		Name:    "journeys",
		Aliases: []string{"j"},
		Usage:   "search journeys between places",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "from", Usage: "origin: stop point id or \"lon;lat\" (repeatable)", Required: true},
			&cli.StringSliceFlag{Name: "to", Usage: "destination: stop point id or \"lon;lat\" (repeatable)", Required: true},
			&cli.StringSliceFlag{Name: "at", Usage: "requested datetime: RFC3339, 20060102T150405, 15:04 or now (repeatable)"},
			&cli.BoolFlag{Name: "arrival", Usage: "datetimes are arrival times"},
			&cli.IntFlag{Name: "max-transfers", Usage: "maximum number of transfers", Value: -1},
			&cli.IntFlag{Name: "min-journeys", Usage: "minimum number of journeys", Value: -1},
			&cli.DurationFlag{Name: "max-duration", Usage: "maximum journey duration"},
			&cli.DurationFlag{Name: "timeframe", Usage: "search window after the requested datetime"},
			&cli.DurationFlag{Name: "max-walking", Usage: "maximum walking duration at each end"},
			&cli.Float64Flag{Name: "walking-speed", Usage: "walking speed in m/s"},
			&cli.StringFlag{Name: "direct-path", Usage: "indifferent, only or none"},
		},
		Action: journeysAction,
	}
}

func journeysAction(c *cli.Context) error {
	now := time.Now()
	dts, err := parseDateTimes(c.StringSlice("at"), now)
	if err != nil {
		return err
	}
	req := &domain.JourneysRequest{
		Origin:             entryPoints(c.StringSlice("from")),
		Destination:        entryPoints(c.StringSlice("to")),
		DateTimes:          dts,
		MaxDuration:        int(c.Duration("max-duration").Seconds()),
		MaxWalkingDuration: int(c.Duration("max-walking").Seconds()),
		WalkingSpeed:       c.Float64("walking-speed"),
		DirectPath:         domain.DirectPathMode(c.String("direct-path")),
	}
	if c.Bool("arrival") {
		req.DateTimeRepresents = "arrival"
	}
	if n := c.Int("max-transfers"); n >= 0 {
		req.MaxTransfers = &n
	}
	if n := c.Int("min-journeys"); n >= 0 {
		req.MinNbJourneys = &n
	}
	if c.IsSet("timeframe") {
		s := int(c.Duration("timeframe").Seconds())
		req.TimeframeDuration = &s
	}
	return query(c, func(ctx context.Context, cl *client.Client) (*domain.Response, error) {
		return cl.Journeys(ctx, req)
	})
}

// IsochroneCommand returns the isochrone command.
func IsochroneCommand() *cli.Command {
	return &cli.Command{
		Name:  "isochrone",
		Usage: "best arrival time at every reachable stop point",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "from", Usage: "origin (repeatable)", Required: true},
			&cli.StringFlag{Name: "at", Usage: "departure datetime", Value: "now"},
			&cli.DurationFlag{Name: "max-duration", Usage: "maximum travel duration"},
			&cli.IntFlag{Name: "max-transfers", Usage: "maximum number of transfers", Value: -1},
		},
		Action: func(c *cli.Context) error {
			dt, err := parseDateTime(c.String("at"), time.Now())
			if err != nil {
				return err
			}
			req := &domain.IsochroneRequest{
				Origin:      entryPoints(c.StringSlice("from")),
				DateTime:    dt,
				MaxDuration: int(c.Duration("max-duration").Seconds()),
			}
			if n := c.Int("max-transfers"); n >= 0 {
				req.MaxTransfers = &n
			}
			return query(c, func(ctx context.Context, cl *client.Client) (*domain.Response, error) {
				return cl.Isochrone(ctx, req)
			})
		},
	}
}

// NearbyCommand returns the nearby command.
func NearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "stop points around a coordinate",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lon", Required: true},
			&cli.Float64Flag{Name: "lat", Required: true},
			&cli.Float64Flag{Name: "distance", Usage: "search radius in meters", Value: 500},
			&cli.IntFlag{Name: "count", Usage: "maximum number of results"},
		},
		Action: func(c *cli.Context) error {
			req := &domain.PlacesNearbyRequest{
				Coord:    domain.Coord{Lon: c.Float64("lon"), Lat: c.Float64("lat")},
				Distance: c.Float64("distance"),
				Count:    c.Int("count"),
			}
			return query(c, func(ctx context.Context, cl *client.Client) (*domain.Response, error) {
				return cl.PlacesNearby(ctx, req)
			})
		},
	}
}

// MetadataCommand returns the metadata command.
func MetadataCommand() *cli.Command {
	return &cli.Command{
		Name:  "metadata",
		Usage: "describe the served data",
		Action: func(c *cli.Context) error {
			return query(c, func(ctx context.Context, cl *client.Client) (*domain.Response, error) {
				return cl.Metadata(ctx)
			})
		},
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "serving state as seen by a worker",
		Action: func(c *cli.Context) error {
			return query(c, func(ctx context.Context, cl *client.Client) (*domain.Response, error) {
				return cl.Status(ctx)
			})
		},
	}
}

// query runs one broker call and renders the reply. A reply carrying an
// error is rendered before the error is returned.
func query(c *cli.Context, call func(context.Context, *client.Client) (*domain.Response, error)) error {
	flags := ParseGlobalFlags(c)
	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()

	cl, err := GetConnectionManager(c).Broker(ctx)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	resp, err := call(ctx, cl)
	var rerr *client.ResponseError
	if err != nil && !errors.As(err, &rerr) {
		return fmt.Errorf("request failed: %w", err)
	}
	if rendErr := render(c, resp); rendErr != nil {
		return rendErr
	}
	return err
}

func entryPoints(places []string) []domain.EntryPoint {
	eps := make([]domain.EntryPoint, 0, len(places))
	for _, p := range places {
		eps = append(eps, domain.EntryPoint{Place: strings.TrimSpace(p)})
	}
	return eps
}

func parseDateTimes(values []string, now time.Time) ([]time.Time, error) {
	if len(values) == 0 {
		return []time.Time{now.Truncate(time.Second)}, nil
	}
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, err := parseDateTime(v, now)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseDateTime accepts RFC3339, the compact basic form and a time of day
// relative to now. Forms without offset use now's location.
func parseDateTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "now" {
		return now.Truncate(time.Second), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(basicLayout, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}
