package netboxapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/netboxapi/go-netboxapi/observability"
)

// mapperMode tags a mapper as active or passive. An active mapper is
// backed by a collection endpoint that was independently confirmed and
// supports full CRUD. A passive mapper comes out of a Post whose
// verification GET failed; it keeps the creation echo readable but every
// networked operation returns ErrPassiveMapper.
type mapperMode uint8

const (
	modeActive mapperMode = iota
	modePassive
)

// volatileFields are server-managed timestamps that drift between
// independent fetches of the same object. They are excluded from equality
// and stripped from outgoing Put bodies.
var volatileFields = map[string]bool{
	"created":      true,
	"last_updated": true,
}

// Mapper is a dynamic proxy over one remote Netbox object or one remote
// collection. It is addressed by the two-level namespace Netbox uses
// (application, model), e.g. ("ipam", "prefixes"), and carries an
// open-ended field table populated from the last payload seen. Fields
// whose wire shape is a foreign-key descriptor resolve lazily into child
// mappers on first access.
//
// Mappers are not safe for concurrent use; the design assumes a single
// owner, like the API objects they stand in for.
type Mapper struct {
	client *Client
	app    string
	model  string

	// parentID and sub are set when the mapper was obtained through
	// GetSub and is scoped under a parent object's sub-collection.
	parentID json.Number
	sub      string

	mode   mapperMode
	fields map[string]*field
}

// App returns the application namespace, e.g. "ipam".
func (m *Mapper) App() string { return m.app }

// Model returns the model name, e.g. "prefixes".
func (m *Mapper) Model() string { return m.model }

// IsPassive reports whether the mapper is restricted to field reads.
func (m *Mapper) IsPassive() bool { return m.mode == modePassive }

// ID returns the bound object id, if the mapper represents a known remote
// object.
func (m *Mapper) ID() (int64, bool) {
	raw, ok := m.rawID()
	if !ok {
		return 0, false
	}
	id, err := raw.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}

func (m *Mapper) rawID() (json.Number, bool) {
	f, ok := m.fields["id"]
	if !ok {
		return "", false
	}
	return asNumber(f.raw)
}

// collectionURL is the endpoint the mapper lists and creates against.
func (m *Mapper) collectionURL() string {
	base := m.client.BuildModelURL(m.app, m.model)
	if m.sub != "" {
		return base + m.parentID.String() + "/" + m.sub + "/"
	}
	return base
}

func (m *Mapper) itemURL(id json.Number) string {
	return m.collectionURL() + id.String() + "/"
}

// ensureActive is the single guard in front of every networked operation.
func (m *Mapper) ensureActive(op string) error {
	if m.mode == modePassive {
		return errors.Wrapf(ErrPassiveMapper, "%s on %s/%s", op, m.app, m.model)
	}
	return nil
}

// populate replaces the field table from a decoded row. Memoized
// foreign-key resolutions of the previous row are discarded with it.
func (m *Mapper) populate(row map[string]any) {
	m.fields = make(map[string]*field, len(row))
	for name, value := range row {
		m.fields[name] = newField(value)
	}
}

// wrapRow builds a sibling mapper around one result row, inheriting the
// collection scope of the receiver.
func (m *Mapper) wrapRow(row map[string]any) *Mapper {
	child := &Mapper{
		client:   m.client,
		app:      m.app,
		model:    m.model,
		parentID: m.parentID,
		sub:      m.sub,
	}
	child.populate(row)
	return child
}

// Get lists the collection, lazily paginated, wrapping every result row
// in a mapper. Query parameters are passed through to the API; a "limit"
// parameter additionally caps the total number of objects the stream will
// yield across all pages.
//
// On a mapper already bound to an id, Get re-fetches that same object and
// returns a stream of exactly one refreshed mapper: a bound mapper never
// switches to a different id.
func (m *Mapper) Get(ctx context.Context, query url.Values) (*Stream, error) {
	if err := m.ensureActive("get"); err != nil {
		return nil, err
	}

	target := m.collectionURL()
	if id, ok := m.rawID(); ok {
		target = m.itemURL(id)
	}
	return m.fetchStream(ctx, target, query)
}

// GetByID fetches a single object and returns a mapper bound to it.
func (m *Mapper) GetByID(ctx context.Context, id int64) (*Mapper, error) {
	if err := m.ensureActive("get"); err != nil {
		return nil, err
	}
	n, _ := asNumber(id)
	return m.fetchItem(ctx, n)
}

// GetSub lists a sub-collection of the object this mapper is bound to,
// e.g. parent.GetSub(ctx, "available-ips", nil). The resulting mappers
// stay scoped under the parent's id.
func (m *Mapper) GetSub(ctx context.Context, submodel string, query url.Values) (*Stream, error) {
	if err := m.ensureActive("get"); err != nil {
		return nil, err
	}
	id, ok := m.rawID()
	if !ok {
		return nil, errors.Wrapf(ErrMissingID, "submodel %q requires a bound parent", submodel)
	}

	proto := &Mapper{
		client:   m.client,
		app:      m.app,
		model:    m.model,
		parentID: id,
		sub:      submodel,
	}
	return proto.fetchStream(ctx, proto.collectionURL(), query)
}

func (m *Mapper) fetchStream(ctx context.Context, target string, query url.Values) (*Stream, error) {
	resp, err := m.client.transport.Get(ctx, target, query)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(http.MethodGet, target, resp.StatusCode)
	}

	rows, next, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	return newStream(m.client, query, rows, next, m.wrapRow), nil
}

// fetchItem GETs one object by id. Some endpoints answer an item GET with
// a one-element envelope instead of a bare object; both are accepted.
func (m *Mapper) fetchItem(ctx context.Context, id json.Number) (*Mapper, error) {
	target := m.itemURL(id)
	resp, err := m.client.transport.Get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(http.MethodGet, target, resp.StatusCode)
	}

	rows, _, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Newf("empty response for %s", target)
	}

	child := m.wrapRow(rows[0])
	if _, ok := child.rawID(); !ok {
		child.fields["id"] = newField(id)
	}
	return child, nil
}

// Post creates a remote object from the given fields. Mapper-valued
// fields are serialized as their bare id and must be bound; serialization
// errors are reported before any request is sent.
//
// After a successful POST, exactly one verification GET is issued against
// the new object's id so that shallow foreign keys in the POST echo are
// replaced by the canonical expanded representation. If that GET fails
// (e.g. 404 for sub-resources that are not independently addressable),
// Post returns a passive mapper built from the POST echo instead: its
// fields stay readable, but all CRUD calls on it return ErrPassiveMapper.
func (m *Mapper) Post(ctx context.Context, fields map[string]any) (*Mapper, error) {
	if err := m.ensureActive("post"); err != nil {
		return nil, err
	}

	body := make(map[string]any, len(fields))
	for name, value := range fields {
		wire, err := serializePostValue(name, value)
		if err != nil {
			return nil, err
		}
		body[name] = wire
	}

	target := m.collectionURL()
	resp, err := m.client.transport.Post(ctx, target, body)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(http.MethodPost, target, resp.StatusCode)
	}

	var echo map[string]any
	if err := resp.DecodeJSON(&echo); err != nil {
		return nil, err
	}
	id, ok := asNumber(echo["id"])
	if !ok {
		return nil, errors.Newf("post response from %s has no id", target)
	}

	created, err := m.fetchItem(ctx, id)
	if err != nil {
		// The object exists but cannot be fetched back; hand out the
		// creation echo in read-only form.
		m.client.logger.Warn("post verification failed, returning passive mapper",
			observability.Field{Key: "app", Value: m.app},
			observability.Field{Key: "model", Value: m.model},
			observability.Field{Key: "id", Value: id.String()},
			observability.Field{Key: "error", Value: err.Error()},
		)
		passive := m.wrapRow(echo)
		passive.mode = modePassive
		return passive, nil
	}
	return created, nil
}

// Put updates the remote object this mapper is bound to. The overrides,
// if any, are merged into the in-memory fields first (caller values win)
// and are kept even if the request then fails. Every known field is
// serialized: mappers and foreign-key descriptors to their bare id,
// choices to their bare value, null foreign keys as null; the
// server-managed created/last_updated timestamps are stripped. The
// mapper's fields are refreshed from the response body, which is also
// returned decoded.
func (m *Mapper) Put(ctx context.Context, overrides map[string]any) (map[string]any, error) {
	if err := m.ensureActive("put"); err != nil {
		return nil, err
	}
	id, ok := m.rawID()
	if !ok {
		return nil, errors.Wrap(ErrMissingID, "put requires a bound id")
	}

	for name, value := range overrides {
		m.SetField(name, value)
	}

	body := make(map[string]any, len(m.fields))
	for name, f := range m.fields {
		if volatileFields[name] {
			continue
		}
		wire, err := f.wireValue()
		if err != nil {
			return nil, errors.Wrapf(err, "serializing field %q", name)
		}
		body[name] = wire
	}

	target := m.itemURL(id)
	resp, err := m.client.transport.Put(ctx, target, body)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(http.MethodPut, target, resp.StatusCode)
	}

	var updated map[string]any
	if err := resp.DecodeJSON(&updated); err != nil {
		return nil, err
	}
	m.populate(updated)
	if _, ok := m.rawID(); !ok {
		m.fields["id"] = newField(id)
	}
	return updated, nil
}

// Delete removes a remote object and returns the raw transport response,
// status code included, without interpreting it.
//
// On a mapper bound to an id, Delete() with no argument deletes that
// object; passing a different id returns ErrForbiddenAsChild, since a
// bound mapper cannot be redirected to a sibling. On an unbound mapper an
// explicit id is required.
func (m *Mapper) Delete(ctx context.Context, id ...int64) (*Response, error) {
	if err := m.ensureActive("delete"); err != nil {
		return nil, err
	}
	if len(id) > 1 {
		return nil, errors.New("delete takes at most one id")
	}

	var target json.Number
	if bound, ok := m.rawID(); ok {
		if len(id) == 1 {
			if requested, _ := asNumber(id[0]); requested != bound {
				return nil, errors.Wrapf(ErrForbiddenAsChild,
					"bound to id %s, cannot delete id %d", bound, id[0])
			}
		}
		target = bound
	} else {
		if len(id) == 0 {
			return nil, errors.Wrap(ErrMissingID, "nothing to delete")
		}
		target, _ = asNumber(id[0])
	}

	return m.client.transport.Delete(ctx, m.itemURL(target))
}

// Field returns the value of a field. A foreign-key descriptor is
// resolved on first access with a GET against its url and memoized; the
// resolution is discarded when the row is refreshed. Choice descriptors
// are returned as Choice values. Field reads are permitted on passive
// mappers.
func (m *Mapper) Field(ctx context.Context, name string) (any, error) {
	f, ok := m.fields[name]
	if !ok {
		return nil, errors.Newf("%s/%s has no field %q", m.app, m.model, name)
	}

	switch f.state {
	case fieldChoice:
		return f.choice(), nil
	case fieldResolved:
		return f.ref, nil
	case fieldForeignKey:
		ref, err := m.resolveForeignKey(ctx, f)
		if err != nil {
			return nil, err
		}
		return ref, nil
	default:
		return f.raw, nil
	}
}

// ForeignKey is Field restricted to foreign-key fields.
func (m *Mapper) ForeignKey(ctx context.Context, name string) (*Mapper, error) {
	v, err := m.Field(ctx, name)
	if err != nil {
		return nil, err
	}
	ref, ok := v.(*Mapper)
	if !ok {
		return nil, errors.Newf("field %q is not a foreign key", name)
	}
	return ref, nil
}

// Peek returns the stored value of a field without any network activity:
// an unresolved foreign key is returned as its raw descriptor.
func (m *Mapper) Peek(name string) (any, bool) {
	f, ok := m.fields[name]
	if !ok {
		return nil, false
	}
	if f.state == fieldResolved && f.raw == nil {
		return f.ref, true
	}
	return f.raw, true
}

// ChoiceField returns a choice-shaped field, if the field holds one.
func (m *Mapper) ChoiceField(name string) (Choice, bool) {
	f, ok := m.fields[name]
	if !ok || f.state != fieldChoice {
		return Choice{}, false
	}
	return f.choice(), true
}

// String returns a string-valued field.
func (m *Mapper) String(name string) (string, bool) {
	f, ok := m.fields[name]
	if !ok {
		return "", false
	}
	s, ok := f.raw.(string)
	return s, ok
}

// Int returns an integer-valued field.
func (m *Mapper) Int(name string) (int64, bool) {
	f, ok := m.fields[name]
	if !ok {
		return 0, false
	}
	n, ok := asNumber(f.raw)
	if !ok {
		return 0, false
	}
	v, err := n.Int64()
	return v, err == nil
}

// SetField sets or replaces a field. The value is classified by shape
// exactly like a wire value; assigning a *Mapper records it as an
// already-resolved foreign key.
func (m *Mapper) SetField(name string, value any) {
	if m.fields == nil {
		m.fields = map[string]*field{}
	}
	m.fields[name] = newField(value)
}

// FieldNames returns the known field names, sorted.
func (m *Mapper) FieldNames() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveForeignKey fetches the referenced object and memoizes it on the
// field. The target's namespace is parsed from the descriptor URL, so
// references across applications come back as properly-addressed mappers.
func (m *Mapper) resolveForeignKey(ctx context.Context, f *field) (*Mapper, error) {
	desc := f.raw.(map[string]any)
	target := desc["url"].(string)

	app, model, err := parseObjectURL(target)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.transport.Get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusError(http.MethodGet, target, resp.StatusCode)
	}

	rows, _, err := decodeRows(resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Newf("empty response for %s", target)
	}

	ref := &Mapper{client: m.client, app: app, model: model}
	ref.populate(rows[0])
	f.state = fieldResolved
	f.ref = ref
	return ref, nil
}

// Equal reports whether two mappers represent the same logical object:
// same application and model, and identical field sets once the volatile
// created/last_updated timestamps are dropped. Foreign-key resolution
// state does not affect the outcome.
func (m *Mapper) Equal(other *Mapper) bool {
	if other == nil {
		return false
	}
	if m.app != other.app || m.model != other.model {
		return false
	}
	return reflect.DeepEqual(m.comparableFields(), other.comparableFields())
}

func (m *Mapper) comparableFields() map[string]any {
	out := make(map[string]any, len(m.fields))
	for name, f := range m.fields {
		if volatileFields[name] {
			continue
		}
		out[name] = f.comparisonValue()
	}
	return out
}

// parseObjectURL extracts the application and model from an object URL of
// the form <base>/<app>/<model>/<id>/.
func parseObjectURL(raw string) (app, model string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.Wrapf(err, "parsing object URL %q", raw)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return "", "", errors.Newf("object URL %q is not of the form .../<app>/<model>/<id>/", raw)
	}
	if _, err := strconv.ParseInt(segments[len(segments)-1], 10, 64); err != nil {
		return "", "", errors.Newf("object URL %q does not end in an id", raw)
	}
	return segments[len(segments)-3], segments[len(segments)-2], nil
}
