package schema

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Observer is notified after every Extract and Bundle call.
type Observer interface {
	ObserveExtract(schema string, leftovers int, err error)
	ObserveBundle(schema string, keys int, err error)
}

// Schema describes the parameters of one API action. It converts flat
// wire parameters into typed Arguments and back. A Schema is immutable and
// safe for concurrent use.
type Schema struct {
	name      string
	params    []*Parameter
	root      *StructureType
	templates map[string]*Parameter

	logger   zerolog.Logger
	observer Observer
	limits   Limits
	collect  bool
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithName names the schema, usually after the action it describes.
func WithName(name string) SchemaOption {
	return func(s *Schema) { s.name = name }
}

// WithLogger sets the logger used for debug events.
func WithLogger(logger zerolog.Logger) SchemaOption {
	return func(s *Schema) { s.logger = logger }
}

// WithObserver sets the observer notified after Extract and Bundle.
func WithObserver(o Observer) SchemaOption {
	return func(s *Schema) { s.observer = o }
}

// WithLimits bounds the list indices and path depth accepted by Extract.
func WithLimits(l Limits) SchemaOption {
	return func(s *Schema) { s.limits = l.withDefaults() }
}

// WithCollectErrors makes Extract report every invalid parameter, joined
// with errors.Join, instead of stopping at the first.
func WithCollectErrors() SchemaOption {
	return func(s *Schema) { s.collect = true }
}

// New builds a Schema from parameter declarations. Names may be plain
// ("Count"), or legacy dotted templates ("Group.n.Name") which are
// converted to nested lists and structures.
func New(params ...*Parameter) (*Schema, error) {
	params = dedupe(params)
	fields, err := ConvertLegacy(params)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		params:    params,
		root:      NewStructureType(fields),
		templates: make(map[string]*Parameter),
		logger:    zerolog.Nop(),
		limits:    DefaultLimits(),
	}
	for _, name := range s.root.names {
		if err := s.index(fields[name], name, false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is like New but panics on a schema fault.
func MustNew(params ...*Parameter) *Schema {
	s, err := New(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// index records the leaf template of every parameter reachable from p and
// checks that names and indices alternate along every path.
func (s *Schema) index(p *Parameter, template string, indexPosition bool) error {
	switch t := p.typ.(type) {
	case *ListType:
		if indexPosition {
			return schemaFault("list %q cannot be the item of another list", template)
		}
		if t.Item == nil {
			return schemaFault("list %q has no item", template)
		}
		return s.index(t.Item, template+Separator+Wildcard, true)
	case *StructureType:
		if !indexPosition {
			return schemaFault("structure %q must be a list item", template)
		}
		for _, name := range t.names {
			if strings.Contains(name, Separator) || name == "" {
				return schemaFault("structure %q has invalid field name %q", template, name)
			}
			if err := s.index(t.Fields[name], template+Separator+name, false); err != nil {
				return err
			}
		}
		return nil
	}
	s.templates[template] = p
	return nil
}

// WithOptions returns a copy of the schema with opts applied.
func (s *Schema) WithOptions(opts ...SchemaOption) *Schema {
	c := *s
	c.params = slices.Clone(s.params)
	c.templates = maps.Clone(s.templates)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Extend returns a new schema with params added. A parameter with the
// same name as an existing one replaces it. s is left unchanged.
func (s *Schema) Extend(params ...*Parameter) (*Schema, error) {
	all := make([]*Parameter, 0, len(s.params)+len(params))
	all = append(all, s.params...)
	all = append(all, params...)

	ext, err := New(all...)
	if err != nil {
		return nil, err
	}
	ext.name = s.name
	ext.logger = s.logger
	ext.observer = s.observer
	ext.limits = s.limits
	ext.collect = s.collect
	return ext, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Templates returns the canonical template of every leaf parameter, sorted.
func (s *Schema) Templates() []string {
	return sortedKeys(s.templates)
}

// Parameter returns the leaf parameter declared for template.
func (s *Schema) Parameter(template string) (*Parameter, bool) {
	p, ok := s.templates[template]
	return p, ok
}

// Fields returns the top-level parameters after legacy conversion.
func (s *Schema) Fields() map[string]*Parameter {
	return maps.Clone(s.root.Fields)
}

// Extract parses flat wire parameters. Keys that match no declared
// template are returned untouched as leftovers. Every declared parameter
// appears in the result, filled from its default when absent; a missing
// required parameter is an error.
func (s *Schema) Extract(params map[string]string) (*Arguments, map[string]string, error) {
	args, rest, err := s.extract(params)
	if err != nil {
		s.logger.Debug().Str("schema", s.name).Err(err).Msg("extract failed")
	}
	if s.observer != nil {
		s.observer.ObserveExtract(s.name, len(rest), err)
	}
	return args, rest, err
}

// ExtractValues is Extract for multi-valued input such as url.Values.
// A declared key given more than once is an InvalidParameterCombination;
// undeclared keys keep their first value in the leftovers.
func (s *Schema) ExtractValues(values map[string][]string) (*Arguments, map[string]string, error) {
	flat := make(map[string]string, len(values))
	for _, key := range sortedKeys(values) {
		vs := values[key]
		if len(vs) == 0 {
			continue
		}
		if len(vs) > 1 {
			if path, ok := s.route(key); ok {
				err := invalidParameterCombination(path)
				if s.observer != nil {
					s.observer.ObserveExtract(s.name, 0, err)
				}
				return nil, nil, err
			}
		}
		flat[key] = vs[0]
	}
	return s.Extract(flat)
}

func (s *Schema) extract(params map[string]string) (*Arguments, map[string]string, error) {
	routed := make(map[string]string, len(params))
	rest := make(map[string]string)
	var errs []error

	for _, key := range sortedKeys(params) {
		path, ok := s.route(key)
		if !ok {
			s.logger.Debug().Str("schema", s.name).Str("key", key).Msg("leftover parameter")
			rest[key] = params[key]
			continue
		}
		if _, dup := routed[path]; dup {
			err := invalidParameterCombination(path)
			if !s.collect {
				return nil, nil, err
			}
			errs = append(errs, err)
			continue
		}
		routed[path] = params[key]
	}
	for _, path := range sortedKeys(routed) {
		if !s.isBareList(path) {
			continue
		}
		for other := range routed {
			if strings.HasPrefix(other, path+Separator) {
				err := invalidParameterCombination(path)
				if !s.collect {
					return nil, nil, err
				}
				errs = append(errs, err)
				break
			}
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	tree, err := Nest(routed, s.limits)
	if err != nil {
		return nil, nil, err
	}

	w := &walker{
		collect: s.collect,
		onFill: func(path string) {
			s.logger.Debug().Str("schema", s.name).Str("parameter", path).Msg("default applied")
		},
	}
	coerced, err := s.root.coerceNode(tree, "", w)
	if err != nil {
		return nil, nil, err
	}
	return NewArguments(coerced.(map[string]any)), rest, nil
}

// route resolves a wire key to the concrete path it is stored under.
// A key one index deeper than a single-valued template, such as
// "PublicIp.1" for "PublicIp", is stored under the shorter path. A bare
// key for a list of scalars, such as "InstanceId" for "InstanceId.#", is
// read as a list of one.
func (s *Schema) route(key string) (string, bool) {
	template := Canonicalize(key)
	if _, ok := s.templates[template]; ok {
		return key, true
	}
	suffix := Separator + Wildcard
	if _, ok := s.templates[template+suffix]; ok {
		return key, true
	}
	if !strings.HasSuffix(template, suffix) {
		return "", false
	}
	if _, ok := s.templates[strings.TrimSuffix(template, suffix)]; !ok {
		return "", false
	}
	cut := strings.LastIndex(key, Separator)
	if n, err := strconv.Atoi(key[cut+1:]); err != nil || n < 0 || n > s.limits.MaxIndex {
		// Kept whole so that Nest rejects the index.
		return key, true
	}
	return key[:cut], true
}

// isBareList reports whether key names a list of scalars without an index.
func (s *Schema) isBareList(key string) bool {
	template := Canonicalize(key)
	if _, ok := s.templates[template]; ok {
		return false
	}
	_, ok := s.templates[template+Separator+Wildcard]
	return ok
}

// Bundle flattens args and extra into wire parameters. Later arguments
// override earlier ones and extra overrides all of them; keys of extra may
// be dotted paths. Every key must match a declared template, otherwise the
// call is a schema fault. Nil values are dropped and Empty is sent as the
// empty string.
func (s *Schema) Bundle(extra map[string]any, args ...*Arguments) (map[string]string, error) {
	out, err := s.bundle(extra, args)
	if s.observer != nil {
		s.observer.ObserveBundle(s.name, len(out), err)
	}
	return out, err
}

func (s *Schema) bundle(extra map[string]any, args []*Arguments) (map[string]string, error) {
	flat := make(map[string]any)
	for _, a := range args {
		Flatten(flat, a, "")
	}
	Flatten(flat, extra, "")

	out := make(map[string]string, len(flat))
	for _, key := range sortedKeys(flat) {
		p, ok := s.templates[Canonicalize(key)]
		if !ok {
			return nil, schemaFault("parameter %q not in schema", key)
		}
		v := flat[key]
		if _, empty := v.(emptyMarker); empty {
			out[key] = ""
			continue
		}
		formatted, err := p.Format(v)
		if err != nil {
			return nil, schemaFault("format %q: %v", key, err)
		}
		out[key] = formatted
	}
	return out, nil
}
