package docstore

import (
	"context"
	"sync"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/internal/logger"
)

// Service persists records of one collection. The connection is established
// on first use and reused by every later operation.
type Service struct {
	cfg        *Config
	definition CollectionDefinition
	driver     api.Driver

	mu   sync.Mutex
	conn api.Conn

	log *logrus.Entry
}

// Option customizes a Service
type Option func(*Service)

// WithDriver makes the service connect through d instead of the driver
// selected by Store.Backend.
func WithDriver(d api.Driver) Option {
	return func(s *Service) {
		s.driver = d
	}
}

// NewService binds a service to the collection described by definition. The
// store settings are read from cfg when the service connects, not here.
func NewService(cfg *Config, definition CollectionDefinition, opts ...Option) (*Service, error) {

	if cfg == nil {
		return nil, badRequest("nil configuration")
	}
	if err := validator.New().Struct(definition); err != nil {
		return nil, badRequest(errors.Wrap(err, "invalid collection definition").Error())
	}

	s := &Service{
		cfg:        cfg,
		definition: definition,
		log:        logger.GetLogger().WithField("collection", definition.Name),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the bound collection name
func (s *Service) Name() string {
	return s.definition.Name
}

// Connect returns the session handle, establishing it first if needed.
func (s *Service) Connect(ctx context.Context) (api.Conn, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	store := s.cfg.Store

	driver := s.driver
	if driver == nil {
		d, err := NewDriver(store.Backend)
		if err != nil {
			return nil, err
		}
		driver = d
	}

	target := api.Target{URI: store.URI, Database: store.Database}

	log := s.log.WithField("backend", driver.Name())

	conn, err := dial(ctx, driver, store, target)
	if err != nil {
		log.WithError(err).Error("connection failed")
		return nil, errors.WithStack(connectionError{Backend: driver.Name(), cause: err})
	}

	log.Info("connected")
	s.conn = conn

	return conn, nil
}

func dial(ctx context.Context, driver api.Driver, store StoreConfig, target api.Target) (api.Conn, error) {

	if store.ConnectRetries <= 0 {
		return driver.Connect(ctx, target)
	}

	delay, maxDelay, err := store.retryDelays()
	if err != nil {
		return nil, err
	}

	policy := retrypolicy.Builder[api.Conn]().
		WithMaxRetries(store.ConnectRetries).
		WithBackoff(delay, maxDelay).
		Build()

	return failsafe.NewExecutor[api.Conn](policy).
		WithContext(ctx).
		Get(func() (api.Conn, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return driver.Connect(ctx, target)
		})
}

// Close releases the session, if any. A later operation reconnects.
func (s *Service) Close(ctx context.Context) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close(ctx)
	s.conn = nil

	return errors.Wrap(err, "unable to close connection")
}

// Then waits for the connection to be established, then calls fn with the
// service.
func (s *Service) Then(ctx context.Context, fn func(*Service) error) error {

	if _, err := s.Connect(ctx); err != nil {
		return err
	}

	return fn(s)
}

func (s *Service) collection(ctx context.Context) (api.Collection, error) {

	conn, err := s.Connect(ctx)
	if err != nil {
		return nil, err
	}

	return conn.Collection(s.definition.Name), nil
}

// FindOne returns the first record matching query, which is either an
// identifier, a mapping holding an `id`, a raw filter or an api.Query. The
// boolean is false when nothing matches.
func (s *Service) FindOne(ctx context.Context, query interface{}) (api.Record, bool, error) {

	q, err := api.ParseQuery(query)
	if err != nil {
		return nil, false, err
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, false, err
	}

	r, found, err := col.FindOne(ctx, q)
	if err != nil {
		return nil, false, errors.Wrapf(err, "unable to find %s in %s", q, s.definition.Name)
	}

	return r, found, nil
}

// Fetch returns the record with the given identifier
func (s *Service) Fetch(ctx context.Context, id string) (api.Record, bool, error) {
	if len(id) == 0 {
		return nil, false, badRequest("empty identifier")
	}
	return s.FindOne(ctx, api.ByID(id))
}

// Find returns every record matching query. The slice is empty, never nil,
// when nothing matches.
func (s *Service) Find(ctx context.Context, query interface{}) ([]api.Record, error) {

	q, err := api.ParseQuery(query)
	if err != nil {
		return nil, err
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	records, err := col.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to find %s in %s", q, s.definition.Name)
	}

	if records == nil {
		records = []api.Record{}
	}

	return records, nil
}

// Insert stores a record and returns the identifier the store assigned to it.
// An `id` field in r is ignored.
func (s *Service) Insert(ctx context.Context, r api.Record) (string, error) {

	col, err := s.collection(ctx)
	if err != nil {
		return "", err
	}

	id, err := col.InsertOne(ctx, r.WithoutID())
	if err != nil {
		return "", errors.Wrapf(err, "unable to insert into %s", s.definition.Name)
	}

	s.log.WithField("id", id).Debug("inserted")

	return id, nil
}

// InsertMany stores records in one batch and returns their identifiers in
// input order.
func (s *Service) InsertMany(ctx context.Context, records []api.Record) ([]string, error) {

	if len(records) == 0 {
		return []string{}, nil
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	payload := make([]api.Record, len(records))
	for i, r := range records {
		payload[i] = r.WithoutID()
	}

	ids, err := col.InsertMany(ctx, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to insert %d records into %s", len(records), s.definition.Name)
	}
	if len(ids) != len(records) {
		return nil, errors.Errorf("store returned %d identifiers for %d inserted records", len(ids), len(records))
	}

	s.log.WithField("count", len(ids)).Debug("inserted batch")

	return ids, nil
}

// Update merges the fields of r into the record id. An empty id is taken from
// r. The result is a no-op when no record matched or no field changed.
func (s *Service) Update(ctx context.Context, id string, r api.Record) (api.WriteResult, error) {

	if len(id) == 0 {
		id, _ = r.ID()
	}
	if len(id) == 0 {
		return api.WriteResult{}, badRequest("update requires an identifier")
	}

	col, err := s.collection(ctx)
	if err != nil {
		return api.WriteResult{}, err
	}

	return s.update(ctx, col, id, r.WithoutID())
}

func (s *Service) update(ctx context.Context, col api.Collection, id string, fields api.Record) (api.WriteResult, error) {

	if len(fields) == 0 {
		return api.NoOpOn(id), nil
	}

	_, modified, err := col.UpdateOne(ctx, id, fields)
	if err != nil {
		return api.WriteResult{}, errors.Wrapf(err, "unable to update %s in %s", id, s.definition.Name)
	}

	if modified == 0 {
		return api.NoOpOn(id), nil
	}

	s.log.WithField("id", id).Debug("updated")

	return api.AppliedTo(id), nil
}

// Remove deletes the record id
func (s *Service) Remove(ctx context.Context, id string) (api.WriteResult, error) {

	if len(id) == 0 {
		return api.WriteResult{}, badRequest("remove requires an identifier")
	}

	col, err := s.collection(ctx)
	if err != nil {
		return api.WriteResult{}, err
	}

	n, err := col.DeleteOne(ctx, id)
	if err != nil {
		return api.WriteResult{}, errors.Wrapf(err, "unable to remove %s from %s", id, s.definition.Name)
	}

	if n == 0 {
		return api.NoOpOn(id), nil
	}

	s.log.WithField("id", id).Debug("removed")

	return api.AppliedTo(id), nil
}

// RemoveWhere deletes every record matching query and returns how many were
// deleted. A nil query removes the whole collection.
func (s *Service) RemoveWhere(ctx context.Context, query interface{}) (int64, error) {

	q, err := api.ParseQuery(query)
	if err != nil {
		return 0, err
	}

	col, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}

	n, err := col.DeleteMany(ctx, q)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to remove %s from %s", q, s.definition.Name)
	}

	s.log.WithFields(logrus.Fields{"query": q.String(), "count": n}).Debug("removed batch")

	return n, nil
}
