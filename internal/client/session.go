package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jw6ventures/volunteerportal/internal/cache"
	"github.com/jw6ventures/volunteerportal/internal/optimistic"
	"github.com/jw6ventures/volunteerportal/internal/portal"
)

// IndividualEventsKey is the cached query holding the current user and their
// individual events.
var IndividualEventsKey = cache.NewKey("individualEvents")

// EventsKey is the cached admin events query for one office filter and sort.
func EventsKey(officeID string, sort portal.EventSort) cache.Key {
	return cache.NewKey("events", "officeId", officeID, "sortBy", string(sort))
}

type individualCoordinator = optimistic.Coordinator[portal.CurrentUser, portal.IndividualEvent]
type eventsCoordinator = optimistic.Coordinator[[]portal.Event, portal.Event]

// Session keeps cached queries in step with the mutations sent through it.
type Session struct {
	api      *Client
	cache    cache.Cache
	reporter optimistic.ErrorReporter
	logger   *slog.Logger
	sort     portal.EventSort

	individual *individualCoordinator

	mu      sync.Mutex
	lookups *portal.Lookups
	events  map[string]*eventsCoordinator
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithReporter replaces the default logging error reporter.
func WithReporter(r optimistic.ErrorReporter) SessionOption {
	return func(s *Session) { s.reporter = r }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithEventSort sets the order of admin event queries.
func WithEventSort(sort portal.EventSort) SessionOption {
	return func(s *Session) { s.sort = sort }
}

func NewSession(api *Client, c cache.Cache, opts ...SessionOption) *Session {
	s := &Session{
		api:    api,
		cache:  c,
		logger: slog.Default(),
		sort:   portal.SortStartsAtDesc,
		events: map[string]*eventsCoordinator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = optimistic.ErrorReporterFunc(func(ctx context.Context, err error) {
			s.logger.ErrorContext(ctx, "request failed", "err", err)
		})
	}

	s.individual = optimistic.New(optimistic.Config[portal.CurrentUser, portal.IndividualEvent]{
		Cache: c,
		Key:   IndividualEventsKey,
		View: optimistic.View[portal.CurrentUser, portal.IndividualEvent]{
			Items: func(u portal.CurrentUser) []portal.IndividualEvent { return u.IndividualEvents },
			WithItems: func(u portal.CurrentUser, items []portal.IndividualEvent) portal.CurrentUser {
				u.IndividualEvents = items
				return u
			},
		},
		Transport: optimistic.TransportFunc[portal.IndividualEvent](s.sendIndividualEvent),
		Reporter:  s.reporter,
		Logger:    s.logger,
	})
	return s
}

func (s *Session) sendIndividualEvent(ctx context.Context, m optimistic.Mutation[portal.IndividualEvent]) (portal.IndividualEvent, error) {
	switch m.Kind {
	case optimistic.KindDelete:
		id, err := s.api.DeleteIndividualEvent(ctx, m.TargetID())
		return portal.IndividualEvent{ID: id}, err
	default:
		return s.api.SaveIndividualEvent(ctx, inputFromEntity(m.Entity))
	}
}

func inputFromEntity(e portal.IndividualEvent) portal.IndividualEventInput {
	in := portal.IndividualEventInput{
		ID:          e.ID,
		Description: e.Description,
		Date:        e.Date,
		Duration:    e.Duration,
	}
	if e.Office != nil {
		in.OfficeID = e.Office.ID
	}
	if e.EventType != nil {
		in.EventTypeID = e.EventType.ID
	}
	if e.Organization != nil {
		in.OrganizationID = e.Organization.ID
	}
	return in
}

// Lookups returns the reference lists, fetching them once per session.
func (s *Session) Lookups(ctx context.Context) (portal.Lookups, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookups != nil {
		return *s.lookups, nil
	}
	l, err := s.api.Lookups(ctx)
	if err != nil {
		return portal.Lookups{}, fmt.Errorf("load lookups: %w", err)
	}
	s.lookups = &l
	return l, nil
}

// RefreshIndividualEvents fetches the current user and stores the result.
func (s *Session) RefreshIndividualEvents(ctx context.Context) (portal.CurrentUser, error) {
	u, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.reporter.Report(ctx, err)
		return portal.CurrentUser{}, err
	}
	if err := s.cache.WriteQuery(ctx, IndividualEventsKey, u); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "query", IndividualEventsKey.Identity(), "err", err)
	}
	return u, nil
}

// IndividualEvents reads the cached query, fetching it on a miss.
func (s *Session) IndividualEvents(ctx context.Context) (portal.CurrentUser, error) {
	var u portal.CurrentUser
	err := s.cache.ReadQuery(ctx, IndividualEventsKey, &u)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache read failed", "query", IndividualEventsKey.Identity(), "err", err)
	}
	return s.RefreshIndividualEvents(ctx)
}

// SaveIndividualEvent validates form and submits it as a create (sentinel or
// missing id) or an update. The cached list shows the provisional record
// until the server answers.
func (s *Session) SaveIndividualEvent(ctx context.Context, form portal.IndividualEventForm) (portal.IndividualEvent, error) {
	in, err := form.Validate()
	if err != nil {
		return portal.IndividualEvent{}, err
	}
	lookups, err := s.Lookups(ctx)
	if err != nil {
		return portal.IndividualEvent{}, err
	}
	return s.individual.Submit(ctx, optimistic.Upsert(portal.OptimisticIndividualEvent(in, lookups)))
}

func (s *Session) DeleteIndividualEvent(ctx context.Context, id int64) error {
	_, err := s.individual.Submit(ctx, optimistic.Delete[portal.IndividualEvent](id))
	return err
}

func (s *Session) eventsCoordinator(officeID string) (*eventsCoordinator, cache.Key) {
	key := EventsKey(officeID, s.sort)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.events[key.Identity()]; ok {
		return c, key
	}
	c := optimistic.New(optimistic.Config[[]portal.Event, portal.Event]{
		Cache: s.cache,
		Key:   key,
		View:  optimistic.ListView[portal.Event](),
		Transport: optimistic.TransportFunc[portal.Event](func(ctx context.Context, m optimistic.Mutation[portal.Event]) (portal.Event, error) {
			if m.Kind != optimistic.KindDelete {
				return portal.Event{}, errors.New("events can only be deleted from the client")
			}
			return s.api.DeleteEvent(ctx, m.TargetID())
		}),
		Reporter: s.reporter,
		Logger:   s.logger,
	})
	s.events[key.Identity()] = c
	return c, key
}

// RefreshEvents fetches the admin events for officeID and stores the result.
func (s *Session) RefreshEvents(ctx context.Context, officeID string) ([]portal.Event, error) {
	_, key := s.eventsCoordinator(officeID)
	events, err := s.api.Events(ctx, EventQuery{OfficeID: officeID, Sort: s.sort})
	if err != nil {
		s.reporter.Report(ctx, err)
		return nil, err
	}
	if err := s.cache.WriteQuery(ctx, key, events); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "query", key.Identity(), "err", err)
	}
	return events, nil
}

// Events reads the cached admin events for officeID, fetching them on a miss.
func (s *Session) Events(ctx context.Context, officeID string) ([]portal.Event, error) {
	_, key := s.eventsCoordinator(officeID)
	var events []portal.Event
	err := s.cache.ReadQuery(ctx, key, &events)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache read failed", "query", key.Identity(), "err", err)
	}
	return s.RefreshEvents(ctx, officeID)
}

// DeleteEvent removes an event from the officeID listing and the server.
func (s *Session) DeleteEvent(ctx context.Context, officeID string, id int64) error {
	c, _ := s.eventsCoordinator(officeID)
	_, err := c.Submit(ctx, optimistic.Delete[portal.Event](id))
	return err
}
