package toc

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/a3tai/toctree/internal/config"
	"github.com/a3tai/toctree/internal/toc/codegen"
	"github.com/a3tai/toctree/internal/toc/gapfill"
	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/mapping"
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/payload"
	"github.com/a3tai/toctree/internal/toc/source"
	"github.com/a3tai/toctree/internal/toc/structure"
	"github.com/a3tai/toctree/internal/toc/tree"
	"github.com/a3tai/toctree/internal/toc/verify"
	"github.com/a3tai/toctree/internal/tlog"
	"github.com/a3tai/toctree/internal/tocerr"
)

const phase = "toc"

// Builder runs the whole pipeline -- PDF Parser, TOC Source Selection,
// Structure Extraction, Page Mapping, Verification, Tree Building
// (with optional recursion), Gap Filling, and Payload Decoration --
// behind the single BuildTree entry point spec.md §6 describes.
type Builder struct {
	env config.Env

	// testBackend, when set, is used in place of dialing env's
	// provider. Only ever set directly by tests in this package (the
	// same in-package test seam llm.Backend's scripted fakes and
	// parsing.NewFromPages already provide for their own packages),
	// so BuildTree can run end to end against literal text without a
	// real PDF file or a real LLM call.
	testBackend llm.Backend
}

// NewBuilder builds a Builder dialing the LLM provider named by env.
func NewBuilder(env config.Env) *Builder {
	return &Builder{env: env}
}

// BuildTree runs the full pipeline over pdfSource, which must be
// either a string filesystem path or an in-memory []byte (§6: "either
// a filesystem path or an in-memory byte stream"). progress, if
// non-nil, receives one best-effort ProgressEvent per phase boundary;
// a full channel never blocks the pipeline, so a caller that isn't
// actively draining it simply misses events rather than stalling.
func (b *Builder) BuildTree(ctx context.Context, pdfSource interface{}, opts config.Options, progress chan<- ProgressEvent) (*Result, error) {
	path, label, cleanup, err := resolveSource(pdfSource)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	log := tlog.ForPhase(phase, label)

	parser := parsing.New(path)
	defer func() {
		if err := parser.Close(); err != nil {
			log.Warn("closing parser", zap.Error(err))
		}
	}()

	return b.runPipeline(ctx, parser, label, opts, progress)
}

// runPipeline runs every phase after parser construction: TOC Source
// Selection through Payload Decoration. Split out of BuildTree so
// integration tests can drive the whole pipeline against an
// already-constructed parsing.Parser (e.g. parsing.NewFromPages)
// without a real PDF file on disk.
func (b *Builder) runPipeline(ctx context.Context, parser *parsing.Parser, label string, opts config.Options, progress chan<- ProgressEvent) (*Result, error) {
	emit := func(msg string, frac float64) {
		if progress == nil {
			return
		}
		select {
		case progress <- ProgressEvent{Phase: phase, Message: msg, Fraction: frac}:
		default:
		}
	}

	log := tlog.ForPhase(phase, label)

	emit("parsing document", 0.05)
	totalPages, err := parser.TotalPages()
	if err != nil {
		return nil, err
	}

	backend := b.testBackend
	if backend == nil {
		var err error
		backend, err = llm.NewBackend(ctx, b.env, opts.Model)
		if err != nil {
			return nil, err
		}
	}
	client := llm.New(backend, llm.Config{})

	emit("selecting toc source", 0.1)
	sel, err := source.Select(ctx, parser, opts.TOCCheckPages)
	if err != nil {
		return nil, err
	}

	var items []structure.TOCItem
	switch sel.Kind {
	case source.KindEmbeddedOutline:
		items = structure.FromOutline(sel.Outline)
	case source.KindPrintedContents:
		items, err = structure.FromPrintedContents(ctx, client, sel.ContentsPages, sel.ContentsPageTexts)
	default:
		items, err = structure.FromBodyContent(ctx, client, parser, opts.MaxTokensPerNode)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, tocerr.New(phase, tocerr.KindEmptyExtraction, "no structural entries extracted from any source", fmt.Errorf("source=%s", sel.Kind))
	}

	emit("mapping pages", 0.3)
	pages, err := parser.ParseAll(ctx)
	if err != nil {
		return nil, err
	}
	if sel.Kind == source.KindEmbeddedOutline {
		items = mapping.TrustGiven(items)
	} else {
		items = mapping.Map(items, pages)
	}

	verifyAccuracy := 1.0
	if totalPages <= opts.LargePDFThreshold || opts.ForceVerification {
		emit("verifying structure", 0.45)
		verified, err := verify.New(verify.Config{
			Concurrency: opts.VerificationConcurrency,
			MaxVerify:   opts.MaxVerifyCount,
		}).Verify(ctx, label, items, pages)
		if err != nil {
			return nil, err
		}
		items = verified
		verifyAccuracy = accuracy(items)
	} else {
		log.Info("skipping verification for large document",
			zap.Int("total_pages", totalPages), zap.Int("threshold", opts.LargePDFThreshold))
	}

	emit("building tree", 0.6)
	root := tree.Build(items, totalPages)

	if !opts.NoRecursive {
		if err := b.recurse(ctx, client, parser, root, "", 0, opts); err != nil {
			return nil, err
		}
	}

	emit("filling gaps", 0.75)
	gapInfo, err := gapfill.Fill(ctx, client, label, pages, root, totalPages, gapfill.Config{})
	if err != nil {
		return nil, err
	}

	emit("decorating payload", 0.9)
	if err := payload.Decorate(ctx, client, label, pages, root, opts, payload.Config{}); err != nil {
		return nil, err
	}

	emit("done", 1.0)

	return &Result{
		SourceFile:           label,
		TotalPages:           totalPages,
		Structure:            toTreeNodes(root),
		Statistics:           statistics(root),
		VerificationAccuracy: verifyAccuracy,
		GapFillInfo:          toGapFillInfo(gapInfo),
	}, nil
}

// recurse implements §4.7's optional recursion: a childless node whose
// page span exceeds MaxPagesPerNode is handed back to Structure
// Extraction scoped to its own pages, with the synthesized codes
// continuing the node's own structure prefix (codegen.Continuing),
// per §9's Bug #2 resolution -- continuation is always on, regardless
// of whether recursion itself is enabled. prefixCode tracks the
// dotted code this node would carry, derived positionally since Node
// itself doesn't store one. depth is node's own nesting depth (the
// synthetic root is 0, its direct children 1, ...); splicing children
// under a node already at tree.MaxDepth would nest one level past
// §3 invariant 4's cap, so recursion is skipped once depth reaches it,
// the node left childless rather than overflowing the depth bound.
func (b *Builder) recurse(ctx context.Context, client *llm.Client, parser *parsing.Parser, node *tree.Node, prefixCode string, depth int, opts config.Options) error {
	if len(node.Nodes) == 0 && depth < tree.MaxDepth {
		span := node.EndIndex - node.StartIndex + 1
		if span > opts.MaxPagesPerNode && prefixCode != "" {
			children, err := structure.FromBodyContentRange(ctx, client, parser, node.StartIndex, node.EndIndex, opts.MaxTokensPerNode, prefixCode)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				sub := tree.BuildSubtree(children, node.StartIndex, node.EndIndex)
				node.Nodes = sub.Nodes
			}
		}
	}

	syn := codegen.New()
	for _, child := range node.Nodes {
		childCode := syn.Next(1)
		code := childCode
		if prefixCode != "" {
			code = prefixCode + "." + childCode
		}
		if err := b.recurse(ctx, client, parser, child, code, depth+1, opts); err != nil {
			return err
		}
	}
	return nil
}

// accuracy is the fraction of items the Verifier marked as passed,
// spec §6's verification_accuracy figure. Items outside the checked
// budget keep whatever validation state they already carried, so this
// reflects the combined confidence of checked and carried-through
// items rather than only the checked subset.
func accuracy(items []structure.TOCItem) float64 {
	if len(items) == 0 {
		return 1.0
	}
	passed := 0
	for _, it := range items {
		if it.ValidationPassed {
			passed++
		}
	}
	return float64(passed) / float64(len(items))
}

// resolveSource normalises pdfSource into a filesystem path Parser can
// open, returning a display label for logging/the result's
// source_file field and a cleanup func for any temp file created.
func resolveSource(pdfSource interface{}) (path, label string, cleanup func(), err error) {
	switch v := pdfSource.(type) {
	case string:
		return v, v, nil, nil
	case []byte:
		f, err := os.CreateTemp("", "toctree-*.pdf")
		if err != nil {
			return "", "", nil, tocerr.New(phase, tocerr.KindUnrecoverable, "creating temp file for in-memory pdf", err)
		}
		if _, err := f.Write(v); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", "", nil, tocerr.New(phase, tocerr.KindUnrecoverable, "writing in-memory pdf to temp file", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", "", nil, tocerr.New(phase, tocerr.KindUnrecoverable, "closing temp file for in-memory pdf", err)
		}
		name := f.Name()
		return name, "in-memory", func() { os.Remove(name) }, nil
	default:
		return "", "", nil, tocerr.New(phase, tocerr.KindUnrecoverable, "unsupported pdf source type", fmt.Errorf("got %T, want string or []byte", pdfSource))
	}
}
