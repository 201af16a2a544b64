package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/internal/logger"
	"github.com/xdbsoft/docstore/oidc"
	"github.com/xdbsoft/docstore/rules"
)

// RequestIDHeader carries the identifier of a request in logs and responses
const RequestIDHeader = "X-Request-Id"

// Server instantiate a new docstore HTTP handler serving every configured
// collection
func Server(ctx context.Context, cfg *Config, opts ...Option) (http.Handler, error) {

	var a api.Authenticator
	if len(cfg.Server.OpenIDConnectIssuer) > 0 {
		var err error
		a, err = oidc.New(ctx, cfg.Server.OpenIDConnectIssuer, cfg.Server.UserInfo)
		if err != nil {
			return nil, err
		}
	}

	s := &server{
		Authenticator: a,
		Collections:   make(map[string]collectionHandler),
	}

	for _, c := range cfg.Collections {
		svc, err := NewService(cfg, c, opts...)
		if err != nil {
			return nil, err
		}
		s.Collections[c.Name] = collectionHandler{
			Service: svc,
			Checker: rules.NewChecker(c.Rules),
		}
	}

	return s, nil
}

type collectionHandler struct {
	Service *Service
	Checker rules.Checker
}

type server struct {
	Collections   map[string]collectionHandler
	Authenticator api.Authenticator
}

// reserved query parameters, never used as filter fields
var reservedParameters = map[string]bool{
	"auth":  true,
	"print": true,
}

type recordList struct {
	ID      string       `json:"id"`
	Records []api.Record `json:"records"`
}

type insertedID struct {
	ID string `json:"id"`
}

type insertedIDs struct {
	IDs []string `json:"ids"`
}

type removedCount struct {
	Removed int64 `json:"removed"`
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	requestID := r.Header.Get(RequestIDHeader)
	if len(requestID) == 0 {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	log := logger.GetLogger().WithField("request_id", requestID)

	user, err := s.authenticate(r)
	if err != nil {
		handleError(w, r, log, err)
		return
	}

	target, ok := api.ParseObjectRef(r.URL.Path)
	if !ok {
		handleError(w, r, log, badRequest("invalid path"))
		return
	}

	log = log.WithFields(logrus.Fields{"method": r.Method, "target": target.String(), "user": user.String()})
	log.Info("request")

	c, ok := s.Collections[target.Collection()]
	if !ok {
		handleError(w, r, log, notFoundError{target})
		return
	}

	ctx := r.Context()

	var data interface{}
	status := http.StatusOK

	if target.IsRecord() {

		switch r.Method {
		case "GET":
			data, err = s.getRecord(ctx, c, target, user)
		case "PUT", "POST", "PATCH":
			payload := make(api.Record)
			if err := getPayload(r, &payload); err != nil {
				handleError(w, r, log, err)
				return
			}
			data, err = s.updateRecord(ctx, c, target, payload, user)
		case "DELETE":
			data, err = s.removeRecord(ctx, c, target, user)
		default:
			handleError(w, r, log, badRequest("unsupported method"))
			return
		}
	} else {

		switch r.Method {
		case "GET":
			data, err = s.findRecords(ctx, c, target, getFilter(r), user)
		case "POST":
			var payload interface{}
			if err := getPayload(r, &payload); err != nil {
				handleError(w, r, log, err)
				return
			}
			data, err = s.insertRecords(ctx, c, target, payload, user)
			status = http.StatusAccepted
		case "PATCH":
			var payload []api.Record
			if err := getPayload(r, &payload); err != nil {
				handleError(w, r, log, err)
				return
			}
			var results []api.WriteResult
			results, err = s.updateRecords(ctx, c, target, payload, user)
			if err != nil && results != nil {
				log.WithError(err).Warn("batch update partially failed")
				data, err, status = results, nil, http.StatusMultiStatus
			} else {
				data = results
			}
		case "DELETE":
			data, err = s.removeRecords(ctx, c, target, getFilter(r), user)
		default:
			handleError(w, r, log, badRequest("unsupported method"))
			return
		}
	}

	if err != nil {
		handleError(w, r, log, err)
		return
	}

	s.handleResponse(w, r, log, status, data)
}

func (s *server) authenticate(r *http.Request) (api.User, error) {
	if s.Authenticator == nil {
		return api.User{}, nil
	}

	return s.Authenticator.Authenticate(r)
}

func getPayload(r *http.Request, payload interface{}) error {
	if r.Body != nil {
		defer r.Body.Close()
		d := json.NewDecoder(r.Body)
		err := d.Decode(payload)
		if err != nil && err != io.EOF {
			return badRequest(errors.Wrap(err, "Unable to decode JSON body").Error())
		}
	}
	return nil
}

// getFilter builds a filter from the query string, every value being a string
func getFilter(r *http.Request) api.Record {

	filter := make(api.Record)
	for k, v := range r.URL.Query() {
		if reservedParameters[k] || len(v) == 0 {
			continue
		}
		filter[k] = v[0]
	}

	if len(filter) == 0 {
		return nil
	}
	return filter
}

func computeEtag(data interface{}) (string, error) {

	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	h := sha1.Sum(b)

	return `"` + hex.EncodeToString(h[:]) + `"`, nil
}

func (s *server) handleResponse(w http.ResponseWriter, r *http.Request, log *logrus.Entry, status int, data interface{}) {

	if r.Method == "GET" {
		// Handle ETag / If-None-Match
		etag, err := computeEtag(data)
		if err == nil && len(etag) > 0 {
			w.Header().Set("ETag", etag)

			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)

	print := r.FormValue("print")
	if print == "pretty" {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(data); err != nil {
		log.WithError(err).Error("unable to encode response")
	}
}

func handleError(w http.ResponseWriter, r *http.Request, log *logrus.Entry, err error) {

	cause := errors.Cause(err)

	if IsBadRequest(cause) {
		log.WithError(err).Info("bad request")
		http.Error(w, cause.Error(), http.StatusBadRequest)
		return
	}

	if IsNotAuthorized(cause) {
		log.WithError(err).Info("not authorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if IsNotFound(cause) {
		http.Error(w, "Data not found", http.StatusNotFound)
		return
	}

	log.WithError(err).Error("request failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *server) checkIsAuthorized(c collectionHandler, target api.ObjectRef, user api.User, method rules.Method) error {

	ok, err := c.Checker.Check(target, user, method)
	if err != nil {
		return err
	}

	if !ok {
		return notAuthorizedError{target}
	}

	return nil
}

func (s *server) getRecord(ctx context.Context, c collectionHandler, target api.ObjectRef, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.READ); err != nil {
		return nil, err
	}

	r, found, err := c.Service.Fetch(ctx, target.ID())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFoundError{target}
	}

	return r, nil
}

func (s *server) findRecords(ctx context.Context, c collectionHandler, target api.ObjectRef, filter api.Record, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.READ); err != nil {
		return nil, err
	}

	var query interface{}
	if filter != nil {
		query = filter
	}

	records, err := c.Service.Find(ctx, query)
	if err != nil {
		return nil, err
	}

	return recordList{ID: target.Collection(), Records: records}, nil
}

func (s *server) insertRecords(ctx context.Context, c collectionHandler, target api.ObjectRef, payload interface{}, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.WRITE); err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case map[string]interface{}:
		id, err := c.Service.Insert(ctx, api.Record(p))
		if err != nil {
			return nil, err
		}
		return insertedID{ID: id}, nil
	case []interface{}:
		records := make([]api.Record, len(p))
		for i, item := range p {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, badRequest("batch items must be objects")
			}
			records[i] = api.Record(m)
		}
		ids, err := c.Service.InsertMany(ctx, records)
		if err != nil {
			return nil, err
		}
		return insertedIDs{IDs: ids}, nil
	}

	return nil, badRequest("payload must be an object or an array of objects")
}

func (s *server) updateRecord(ctx context.Context, c collectionHandler, target api.ObjectRef, payload api.Record, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.WRITE); err != nil {
		return nil, err
	}

	if id, ok := payload.ID(); ok && id != target.ID() {
		return nil, badRequest("Invalid ID")
	}

	return c.Service.Update(ctx, target.ID(), payload)
}

func (s *server) updateRecords(ctx context.Context, c collectionHandler, target api.ObjectRef, payload []api.Record, user api.User) ([]api.WriteResult, error) {

	for _, p := range payload {
		id, ok := p.ID()
		if !ok {
			return nil, badRequest("batch items must carry an id")
		}
		if err := s.checkIsAuthorized(c, api.ObjectRef{target.Collection(), id}, user, rules.WRITE); err != nil {
			return nil, err
		}
	}

	return c.Service.UpdateMany(ctx, payload)
}

func (s *server) removeRecord(ctx context.Context, c collectionHandler, target api.ObjectRef, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.DELETE); err != nil {
		return nil, err
	}

	return c.Service.Remove(ctx, target.ID())
}

func (s *server) removeRecords(ctx context.Context, c collectionHandler, target api.ObjectRef, filter api.Record, user api.User) (interface{}, error) {

	if err := s.checkIsAuthorized(c, target, user, rules.DELETE); err != nil {
		return nil, err
	}

	var query interface{}
	if filter != nil {
		query = filter
	}

	n, err := c.Service.RemoveWhere(ctx, query)
	if err != nil {
		return nil, err
	}

	return removedCount{Removed: n}, nil
}
