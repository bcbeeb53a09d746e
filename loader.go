package xsdgen

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
	"golang.org/x/sync/errgroup"
)

// Loader reads schema documents and every document they include or
// import. Locations are slash-separated paths within FS.
type Loader struct {
	// FS defaults to the host file system.
	FS          fs.FS
	Parallelism int
	Logger      *slog.Logger
}

// osFS opens host paths as given, so relative includes may climb out of
// the starting directory.
type osFS struct{}

func (osFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// loadRequest is one document to read in a wave.
type loadRequest struct {
	Location string
	// Namespace is the includer's target namespace, adopted by a
	// document that declares none.
	Namespace string
	// Optional requests come from imports; failing to read them is not
	// an error.
	Optional bool
	From     Position
}

func (r loadRequest) key() string {
	return r.Location + "\x00" + r.Namespace
}

type loadResult struct {
	doc Document
	err error
}

// Load reads the documents at locations and the documents they reference,
// breadth-first. Each wave is read in parallel; the first failure in
// wave order is returned once the whole wave has been attempted.
func (l *Loader) Load(ctx context.Context, locations ...string) ([]Document, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := l.Parallelism
	if limit < 1 {
		limit = 1
	}

	requested := make(map[string]bool)
	loaded := make(map[string]bool)
	var wave []loadRequest
	for _, loc := range locations {
		req := loadRequest{Location: path.Clean(loc)}
		if !requested[req.key()] {
			requested[req.key()] = true
			wave = append(wave, req)
		}
	}

	var docs []Document
	for len(wave) > 0 {
		results := make([]loadResult, len(wave))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, req := range wave {
			g.Go(func() error {
				results[i].doc, results[i].err = l.read(gctx, req)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []loadRequest
		for i, res := range results {
			req := wave[i]
			if res.err != nil {
				if req.Optional {
					logger.Warn("failed to import schema",
						"location", req.Location,
						"from", req.From.String(),
						"error", res.err)
					continue
				}
				return nil, res.err
			}
			doc := res.doc
			tns := targetNamespace(doc)
			if req.Namespace != "" && tns != req.Namespace {
				return nil, &IngestError{
					Location:  req.From.File,
					Position:  req.From,
					Construct: "include " + req.Location,
					Err:       fmt.Errorf("included target namespace %q differs from %q", tns, req.Namespace),
				}
			}
			docKey := doc.Location + "\x00" + tns
			if loaded[docKey] {
				continue
			}
			loaded[docKey] = true
			docs = append(docs, doc)

			for _, ref := range references(doc) {
				loc := ref.Location
				if !path.IsAbs(loc) {
					loc = path.Join(path.Dir(doc.Location), loc)
				}
				child := loadRequest{Location: loc, Optional: !ref.Include, From: ref.Pos}
				if ref.Include {
					child.Namespace = tns
				}
				if !requested[child.key()] {
					requested[child.key()] = true
					next = append(next, child)
				}
			}
		}
		wave = next
	}
	return docs, nil
}

// read loads and decodes one document.
func (l *Loader) read(ctx context.Context, req loadRequest) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	fsys := l.FS
	if fsys == nil {
		fsys = osFS{}
	}
	data, err := fs.ReadFile(fsys, req.Location)
	if err != nil {
		return Document{}, &IngestError{Location: req.Location, Construct: "failed to read schema", Err: err}
	}
	root, err := xsdrt.DecodeBytes(data)
	if err != nil {
		return Document{}, &IngestError{Location: req.Location, Construct: "failed to parse schema", Err: err}
	}
	return Document{Location: req.Location, Root: root, Namespace: req.Namespace}, nil
}

// targetNamespace is the namespace declarations of doc belong to.
func targetNamespace(doc Document) string {
	if doc.Root != nil {
		if tns, ok := doc.Root.AttrLocal("targetNamespace"); ok {
			return strings.TrimSpace(tns)
		}
	}
	return doc.Namespace
}
