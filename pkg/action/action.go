// Package action applies engine operations described as data.
//
// The HTTP API, the WebSocket protocol and the CLI all describe an
// operation the same way, as a Request:
//
//	{"op": "add", "key": "tags", "values": ["go", "react"]}
//	{"op": "get", "key": "filters", "options": {"parse": true}}
//	{"op": "update", "key": "page", "old": 1, "new": 2}
package action

import (
	"sort"
	"strings"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/codec"
	"github.com/vango-dev/searchparams/pkg/parsers"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// Op names an engine operation.
type Op string

// Operations.
const (
	OpGet            Op = "get"
	OpGetWithDefault Op = "getWithDefault"
	OpGetAll         Op = "getAll"
	OpSet            Op = "set"
	OpAdd            Op = "add"
	OpRemove         Op = "remove"
	OpMatches        Op = "matches"
	OpToggle         Op = "toggle"
	OpUpdate         Op = "update"
	OpClear          Op = "clear"
	OpReset          Op = "reset"
	OpSetMany        Op = "setMany"
)

// Ops lists every operation Apply accepts.
var Ops = []Op{
	OpGet, OpGetWithDefault, OpGetAll,
	OpSet, OpAdd, OpRemove, OpMatches, OpToggle, OpUpdate, OpClear,
	OpReset, OpSetMany,
}

// IsWrite reports whether op navigates.
func (o Op) IsWrite() bool {
	switch o {
	case OpGet, OpGetWithDefault, OpGetAll, OpMatches:
		return false
	}
	return true
}

// Request describes one operation. Only the fields the operation uses are
// read.
type Request struct {
	Op      Op                   `json:"op" yaml:"op"`
	Key     string               `json:"key,omitempty" yaml:"key,omitempty"`
	Values  any                  `json:"values,omitempty" yaml:"values,omitempty"`
	Value   any                  `json:"value,omitempty" yaml:"value,omitempty"`
	Default any                  `json:"default,omitempty" yaml:"default,omitempty"`
	Old     any                  `json:"old,omitempty" yaml:"old,omitempty"`
	New     any                  `json:"new,omitempty" yaml:"new,omitempty"`
	Params  map[string]any       `json:"params,omitempty" yaml:"params,omitempty"`
	Options searchparams.Options `json:"options,omitempty" yaml:"options,omitempty"`

	// Parser names a registered parser used for Serialize and Parse.
	Parser string `json:"parser,omitempty" yaml:"parser,omitempty"`
}

// Result is the outcome of a successful Apply. Value holds what read
// operations return; it is nil for writes.
type Result struct {
	Op    Op  `json:"op"`
	Value any `json:"value"`
}

var named = map[string]codec.Parser{
	"json":        codec.JSON,
	"base64json":  codec.Base64JSON,
	"number":      parsers.Number(),
	"boolean":     parsers.Boolean(),
	"timestamp":   parsers.Timestamp(),
	"isodatetime": parsers.ISODateTime(),
}

// RegisterParser makes p available to requests under name.
// It is not safe to call concurrently with Apply.
func RegisterParser(name string, p codec.Parser) {
	named[strings.ToLower(name)] = p
}

// ParserNames returns the registered parser names, sorted.
func ParserNames() []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Request) options() ([]searchparams.Option, error) {
	opts := []searchparams.Option{r.Options}
	if r.Parser == "" {
		return opts, nil
	}
	p, ok := named[strings.ToLower(r.Parser)]
	if !ok {
		return nil, errors.New("E003").WithDetail("unknown parser " + r.Parser)
	}
	return append(opts, searchparams.WithParser(p)), nil
}

// Apply runs req against p. Validation errors are returned before p
// navigates.
func Apply(p *searchparams.Params, req Request) (Result, error) {
	opts, err := req.options()
	if err != nil {
		return Result{}, err
	}
	res := Result{Op: req.Op}

	switch req.Op {
	case OpGet:
		res.Value = p.Get(req.Key, opts...)
	case OpGetWithDefault:
		res.Value = p.GetWithDefault(req.Key, req.Default, opts...)
	case OpGetAll:
		res.Value = p.GetAll(opts...)
	case OpMatches:
		res.Value = p.Matches(req.Key, req.Value, opts...)
	case OpSet:
		err = p.Set(req.Key, req.Values, opts...)
	case OpAdd:
		err = p.Add(req.Key, req.Values, opts...)
	case OpRemove:
		err = p.Remove(req.Key, req.Values, opts...)
	case OpToggle:
		err = p.Toggle(req.Key, req.Value, opts...)
	case OpUpdate:
		err = p.Update(req.Key, req.Old, req.New, opts...)
	case OpClear:
		err = p.Clear(req.Key)
	case OpReset:
		p.ResetAllParams()
	case OpSetMany:
		err = p.SetMany(req.Params, opts...)
	default:
		return Result{}, errors.New("E003").WithDetail(string(req.Op))
	}

	if err != nil {
		return Result{}, err
	}
	return res, nil
}
