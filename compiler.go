package xsdgen

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
	"golang.org/x/sync/errgroup"
)

// State is the stage a compilation has reached.
type State uint8

const (
	Unbuilt State = iota
	Ingesting
	Building
	Resolving
	Normalizing
	Ordering
	Generating
	Emitted
	Failed
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Ingesting:
		return "ingesting"
	case Building:
		return "building"
	case Resolving:
		return "resolving"
	case Normalizing:
		return "normalizing"
	case Ordering:
		return "ordering"
	case Generating:
		return "generating"
	case Emitted:
		return "emitted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Compiler turns schema documents into a parser package. A Compiler
// runs one compilation; its state is not shared between runs.
type Compiler struct {
	Config *Config
	Logger *slog.Logger
	// FS is where schema locations are read from; nil means the host
	// file system.
	FS fs.FS

	state State
	since time.Time
}

// Result holds every product of a successful compilation.
type Result struct {
	Documents []Document
	Graph     *SchemaGraph
	Model     *Model
	Order     []Component
	Lowered   *Lowered
	// Program is the in-memory grammar. Its types have no generated
	// builders, so it decodes into *xsdrt.Value.
	Program *xsdrt.Program
	Decls   []Decl
}

// State returns the stage the compiler is in.
func (c *Compiler) State() State {
	return c.state
}

func (c *Compiler) config() *Config {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	return c.Config
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c.Logger
}

func (c *Compiler) enter(next State) {
	now := time.Now()
	if c.state != Unbuilt {
		c.logger().Debug("compiler stage done", "state", c.state.String(), "duration", now.Sub(c.since))
	}
	c.logger().Debug("compiler stage", "state", next.String())
	c.state = next
	c.since = now
}

func (c *Compiler) fail(err error) error {
	c.logger().Debug("compilation failed", "state", c.state.String(), "error", err)
	c.state = Failed
	return err
}

// Compile reads the schema documents at locations, with everything they
// include and import, and generates the parser.
func (c *Compiler) Compile(ctx context.Context, locations ...string) (*Result, error) {
	if c.state != Unbuilt {
		return nil, fmt.Errorf("compiler already used (state %s)", c.state)
	}
	c.enter(Ingesting)
	loader := &Loader{FS: c.FS, Parallelism: c.config().Parallelism, Logger: c.logger()}
	docs, err := loader.Load(ctx, locations...)
	if err != nil {
		return nil, c.fail(err)
	}
	return c.compile(ctx, docs)
}

// CompileDocuments generates the parser for already parsed documents.
func (c *Compiler) CompileDocuments(ctx context.Context, docs ...Document) (*Result, error) {
	if c.state != Unbuilt {
		return nil, fmt.Errorf("compiler already used (state %s)", c.state)
	}
	return c.compile(ctx, docs)
}

func (c *Compiler) compile(ctx context.Context, docs []Document) (*Result, error) {
	cfg := c.config()
	if err := cfg.Validate(); err != nil {
		return nil, c.fail(err)
	}
	res := &Result{Documents: docs}

	c.enter(Building)
	graph, err := c.build(ctx, docs)
	if err != nil {
		return nil, c.fail(err)
	}
	res.Graph = graph

	c.enter(Resolving)
	if res.Model, err = Resolve(graph, c.logger()); err != nil {
		return nil, c.fail(err)
	}
	if err := Derive(res.Model, cfg, c.logger()); err != nil {
		return nil, c.fail(err)
	}

	c.enter(Normalizing)
	if err := Normalize(res.Model); err != nil {
		return nil, c.fail(err)
	}

	c.enter(Ordering)
	res.Order = Order(res.Model)

	c.enter(Generating)
	res.Lowered = Lower(res.Model, res.Order, NewNamer(cfg))
	res.Program = res.Lowered.Program
	if err := res.Program.Link(); err != nil {
		return nil, c.fail(fmt.Errorf("generated grammar is inconsistent: %w", err))
	}
	res.Decls = Generate(res.Lowered)

	c.enter(Emitted)
	return res, nil
}

// build runs the model builder over every document in parallel and
// merges the partial graphs in input order. The merge is the only point
// where documents meet; the graph is frozen afterwards.
func (c *Compiler) build(ctx context.Context, docs []Document) (*SchemaGraph, error) {
	parts := make([]*SchemaGraph, len(docs))
	errs := make([]error, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config().Parallelism)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			parts[i], errs[i] = BuildDocument(doc, c.config(), c.logger())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := NewSchemaGraph()
	for i, part := range parts {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if err := graph.Merge(part); err != nil {
			return nil, err
		}
	}
	graph.Freeze()
	return graph, nil
}

// Source formats the generated declarations as a Go file.
func (r *Result) Source(cfg *Config) ([]byte, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return Format(cfg.Package, cfg.Runtime, r.Decls)
}
