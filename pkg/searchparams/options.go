package searchparams

import (
	"log/slog"

	"github.com/vango-dev/searchparams/pkg/codec"
)

// Option configures a single operation.
type Option interface {
	applyParam(*paramConfig)
}

// paramConfig holds the per-operation flags. All default off.
type paramConfig struct {
	serialize  bool
	parse      bool
	forceArray bool
	parser     codec.Parser
}

func (c paramConfig) codec() codec.Parser {
	if c.parser != nil {
		return c.parser
	}
	return codec.JSON
}

func newParamConfig(opts []Option) paramConfig {
	var c paramConfig
	for _, opt := range opts {
		if opt != nil {
			opt.applyParam(&c)
		}
	}
	return c
}

// Flag options as values (not functions), like Push and Replace in urlparam.
var (
	// Serialize encodes written values with the parser instead of
	// stringifying them.
	Serialize Option = flagOption{serialize: true}

	// Parse decodes read values with the parser.
	Parse Option = flagOption{parse: true}

	// ForceArray makes Get return a list even for a single value.
	ForceArray Option = flagOption{forceArray: true}
)

type flagOption struct {
	serialize  bool
	parse      bool
	forceArray bool
}

func (o flagOption) applyParam(c *paramConfig) {
	c.serialize = c.serialize || o.serialize
	c.parse = c.parse || o.parse
	c.forceArray = c.forceArray || o.forceArray
}

type parserOption struct {
	p codec.Parser
}

func (o parserOption) applyParam(c *paramConfig) {
	c.parser = o.p
}

// WithParser overrides the default JSON codec for Serialize and Parse.
//
// Example:
//
//	p.Get("view", searchparams.Parse, searchparams.WithParser(parsers.StringEnum(views)))
func WithParser(p codec.Parser) Option {
	return parserOption{p: p}
}

// Options bundles flags into one Option, for callers that build options
// from data (JSON requests, CLI flags).
type Options struct {
	Serialize  bool         `json:"serialize,omitempty" yaml:"serialize,omitempty"`
	Parse      bool         `json:"parse,omitempty" yaml:"parse,omitempty"`
	ForceArray bool         `json:"forceArray,omitempty" yaml:"forceArray,omitempty"`
	Parser     codec.Parser `json:"-" yaml:"-"`
}

func (o Options) applyParam(c *paramConfig) {
	flagOption{serialize: o.Serialize, parse: o.Parse, forceArray: o.ForceArray}.applyParam(c)
	if o.Parser != nil {
		c.parser = o.Parser
	}
}

// EngineOption configures a Params engine.
type EngineOption func(*Params)

// WithLogger sets the logger used for decode warnings.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(p *Params) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDiagnostics registers fn to receive recovered failures: decode errors
// on reads. Metrics hook in here.
func WithDiagnostics(fn func(error)) EngineOption {
	return func(p *Params) {
		p.diagnostics = fn
	}
}
