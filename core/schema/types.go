package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"
)

// Kind names used in "Invalid <kind> value" messages.
const (
	KindUnicode   = "unicode"
	KindRawString = "raw string"
	KindInteger   = "integer"
	KindBoolean   = "boolean"
	KindEnum      = "enum"
	KindDate      = "date"
	KindList      = "list"
	KindStructure = "structure"
)

// DateFormat is the wire layout produced when formatting dates.
const DateFormat = "2006-01-02T15:04:05Z"

// Type parses wire values into typed values and formats them back.
// Implementations are stateless after construction and safe for concurrent use.
type Type interface {
	// Kind returns the short type name used in error messages.
	Kind() string

	// Parse converts a raw wire value into a typed value.
	Parse(raw any) (any, error)

	// Format converts a typed value into its wire form.
	Format(v any) (string, error)
}

// Measurer is implemented by types that support min/max range checks.
type Measurer interface {
	// Measure returns the number compared against the range bounds.
	Measure(v any) int

	// RangeMessages returns the fmt templates used when the value is below
	// the minimum or above the maximum. Each template takes the bound.
	RangeMessages() (below, above string)
}

var errBadValue = errors.New("bad value")

func rawString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected text, got %T", errBadValue, raw)
	}
	return s, nil
}

// UnicodeType is UTF-8 text. Its measure is the length in characters.
type UnicodeType struct{}

func (UnicodeType) Kind() string { return KindUnicode }

func (UnicodeType) Parse(raw any) (any, error) {
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: not valid UTF-8", errBadValue)
	}
	return s, nil
}

func (UnicodeType) Format(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("cannot format %T as %s", v, KindUnicode)
}

func (UnicodeType) Measure(v any) int {
	s, _ := v.(string)
	return utf8.RuneCountInString(s)
}

func (UnicodeType) RangeMessages() (string, string) {
	return "Length must be at least %d.", "Length exceeds maximum of %d."
}

// RawStringType passes wire text through untouched.
type RawStringType struct{}

func (RawStringType) Kind() string { return KindRawString }

func (RawStringType) Parse(raw any) (any, error) {
	return rawString(raw)
}

func (RawStringType) Format(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("cannot format %T as %s", v, KindRawString)
}

// IntegerType is a decimal integer. Its measure is the value itself.
type IntegerType struct{}

func (IntegerType) Kind() string { return KindInteger }

func (IntegerType) Parse(raw any) (any, error) {
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadValue, err)
	}
	return n, nil
}

func (IntegerType) Format(v any) (string, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return "", fmt.Errorf("cannot format %T as %s", v, KindInteger)
}

func (IntegerType) Measure(v any) int {
	n, _ := v.(int)
	return n
}

func (IntegerType) RangeMessages() (string, string) {
	return "Value must be at least %d.", "Value exceeds maximum of %d."
}

// BoolType accepts exactly "true" and "false".
type BoolType struct{}

func (BoolType) Kind() string { return KindBoolean }

func (BoolType) Parse(raw any) (any, error) {
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, fmt.Errorf("%w: %q is not a boolean", errBadValue, s)
}

func (BoolType) Format(v any) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", fmt.Errorf("cannot format %T as %s", v, KindBoolean)
	}
	if b {
		return "true", nil
	}
	return "false", nil
}

// EnumType maps wire tokens to typed values.
type EnumType struct {
	mapping map[string]any
	reverse map[any]string
}

// NewEnumType builds an enum from a token to value mapping.
// Values must be comparable and distinct so that Format is unambiguous.
func NewEnumType(mapping map[string]any) (*EnumType, error) {
	if len(mapping) == 0 {
		return nil, schemaFault("enum requires a mapping")
	}

	tokens := make([]string, 0, len(mapping))
	for token := range mapping {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	e := &EnumType{
		mapping: make(map[string]any, len(mapping)),
		reverse: make(map[any]string, len(mapping)),
	}
	for _, token := range tokens {
		value := mapping[token]
		if value == nil || !reflect.TypeOf(value).Comparable() {
			return nil, schemaFault("enum value for %q is not comparable", token)
		}
		if other, dup := e.reverse[value]; dup {
			return nil, schemaFault("enum tokens %q and %q map to the same value %v", other, token, value)
		}
		e.mapping[token] = value
		e.reverse[value] = token
	}
	return e, nil
}

func (e *EnumType) Kind() string { return KindEnum }

func (e *EnumType) Parse(raw any) (any, error) {
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	v, ok := e.mapping[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token %q", errBadValue, s)
	}
	return v, nil
}

func (e *EnumType) Format(v any) (string, error) {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return "", fmt.Errorf("cannot format %T as %s", v, KindEnum)
	}
	token, ok := e.reverse[v]
	if !ok {
		return "", fmt.Errorf("value %v is not part of the enum", v)
	}
	return token, nil
}

// Tokens returns the accepted wire tokens in sorted order.
func (e *EnumType) Tokens() []string {
	tokens := make([]string, 0, len(e.mapping))
	for token := range e.mapping {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// dateLayouts are tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"20060102T150405Z0700",
	"20060102T150405",
	"2006-01-02",
	"20060102",
}

// DateType is an ISO 8601 timestamp normalized to UTC.
type DateType struct{}

func (DateType) Kind() string { return KindDate }

func (DateType) Parse(raw any) (any, error) {
	s, err := rawString(raw)
	if err != nil {
		return nil, err
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not an ISO 8601 date", errBadValue, s)
}

// Format renders the value in UTC with sub-second precision truncated.
func (DateType) Format(v any) (string, error) {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return "", fmt.Errorf("cannot format nil time as %s", KindDate)
		}
		t = *d
	default:
		return "", fmt.Errorf("cannot format %T as %s", v, KindDate)
	}
	return t.UTC().Truncate(time.Second).Format(DateFormat), nil
}

// ListType is a repeated value. On the wire each item is addressed by a
// 1-based index segment; parsed lists are dense and 0-based.
type ListType struct {
	Item *Parameter
}

func (l *ListType) Kind() string { return KindList }

// Parse accepts a mapping from index (int, or decimal string) to raw item,
// or a single raw item.
func (l *ListType) Parse(raw any) (any, error) {
	return l.coerceNode(raw, "", newWalker())
}

func (l *ListType) Format(v any) (string, error) {
	return "", fmt.Errorf("%w: lists are formatted item by item", ErrSchema)
}

func (l *ListType) coerceNode(raw any, path string, w *walker) (any, error) {
	items, err := indexedItems(raw, path)
	if err != nil {
		return nil, err
	}

	result := make([]any, 0, len(items))
	var errs []error
	for _, it := range items {
		v, err := l.Item.coerce(it.raw, joinPath(path, strconv.Itoa(it.index)), w)
		if err != nil {
			if !w.collect {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		result = append(result, v)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

type indexedItem struct {
	index int
	raw   any
}

// indexedItems orders list children by index. Gaps collapse, so the
// result is dense in index order.
func indexedItems(raw any, path string) ([]indexedItem, error) {
	var items []indexedItem
	switch node := raw.(type) {
	case map[int]any:
		items = make([]indexedItem, 0, len(node))
		for i, v := range node {
			items = append(items, indexedItem{index: i, raw: v})
		}
	case map[string]any:
		items = make([]indexedItem, 0, len(node))
		for k, v := range node {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return nil, schemaFault("list %q has non-numeric index %q", path, k)
			}
			items = append(items, indexedItem{index: i, raw: v})
		}
	case string:
		// A bare value is a list of one, as some EC2 actions accept it.
		items = []indexedItem{{index: 1, raw: node}}
	default:
		return nil, fmt.Errorf("%w: expected indexed items, got %T", errBadValue, raw)
	}
	sort.Slice(items, func(a, b int) bool { return items[a].index < items[b].index })
	return items, nil
}

// StructureType is a fixed set of named fields.
type StructureType struct {
	Fields map[string]*Parameter
	names  []string
}

// NewStructureType builds a structure from a field name to Parameter map.
func NewStructureType(fields map[string]*Parameter) *StructureType {
	st := &StructureType{Fields: make(map[string]*Parameter, len(fields))}
	for name, p := range fields {
		st.Fields[name] = p
		st.names = append(st.names, name)
	}
	sort.Strings(st.names)
	return st
}

func (s *StructureType) Kind() string { return KindStructure }

// Parse accepts a mapping from field name to raw value. Every declared
// field is coerced, so defaults are filled and missing required fields
// are reported.
func (s *StructureType) Parse(raw any) (any, error) {
	return s.coerceNode(raw, "", newWalker())
}

func (s *StructureType) Format(v any) (string, error) {
	return "", fmt.Errorf("%w: structures are formatted field by field", ErrSchema)
}

// Names returns the field names in sorted order.
func (s *StructureType) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *StructureType) coerceNode(raw any, path string, w *walker) (any, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected named fields, got %T", errBadValue, raw)
	}

	for name := range node {
		if _, declared := s.Fields[name]; !declared {
			return nil, UnknownParameter(joinPath(path, name))
		}
	}

	result := make(map[string]any, len(s.names))
	var errs []error
	for _, name := range s.names {
		v, err := s.Fields[name].coerce(node[name], joinPath(path, name), w)
		if err != nil {
			if !w.collect {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		result[name] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// composite is implemented by types whose raw input is a sub-tree.
type composite interface {
	coerceNode(raw any, path string, w *walker) (any, error)
}
