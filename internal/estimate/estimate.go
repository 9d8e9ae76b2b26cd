// Package estimate orchestrates the estimation pipeline: collect
// script and host metadata, converse with the model, parse the final
// figure out of the reply.
//
// With a tool server attached the conversation runs in two phases:
// the model first enumerates the files the script touches, then the
// script and each discovered file are sized through the server, and
// the size reports feed the final estimation round. Without one, the
// script is read locally and the model is asked in a single round.
package estimate

import (
	"context"
	"errors"
	"fmt"

	"github.com/JianYang-Lab/SlurmSlim/internal/jobscript"
	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
	"github.com/JianYang-Lab/SlurmSlim/internal/memsize"
	"github.com/JianYang-Lab/SlurmSlim/internal/prompt"
	"github.com/JianYang-Lab/SlurmSlim/internal/toolserver"
)

// ErrToolServer reports that the tool server could not be reached or
// broke mid-conversation.
var ErrToolServer = errors.New("tool server failure")

// defaultMaxFiles caps the sizing round when the caller sets no limit.
const defaultMaxFiles = 16

// maxScriptTokens bounds how much script content one prompt embeds.
const maxScriptTokens = 12000

// Tools is the slice of the tool server the estimator drives.
type Tools interface {
	// ScriptContents returns the script at path as a fenced code block.
	ScriptContents(ctx context.Context, path string) (string, error)
	// FileSize reports the size of the file at path as text for the
	// model, "File not found" included.
	FileSize(ctx context.Context, path string) (string, error)
}

// Completer asks the model to continue a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, onDelta llm.StreamFunc) (string, error)
}

// Result is one finished estimation.
type Result struct {
	Descriptor jobscript.Descriptor
	Estimate   memsize.Quantity
	RawReply   string            // final model answer the estimate was parsed from
	Files      []prompt.FileSize // files sized during the discovery round
}

// Estimator runs the pipeline with injectable collaborators.
type Estimator struct {
	Collector jobscript.Collector
	LLM       Completer

	// Tools connects the two-phase flow to a tool server; nil selects
	// the single-shot local flow.
	Tools Tools

	// MaxFiles caps how many discovered files are sized. Zero means
	// the default.
	MaxFiles int

	// OnDelta receives streamed model output.
	OnDelta llm.StreamFunc

	// OnProgress reports phase transitions.
	OnProgress func(step string)
}

// Run estimates peak memory for the script at path. The caller's
// context carries the overall deadline.
func (e *Estimator) Run(ctx context.Context, path string) (*Result, error) {
	progress := e.OnProgress
	if progress == nil {
		progress = func(string) {}
	}

	desc, err := e.Collector.Collect(path)
	if err != nil {
		return nil, err
	}

	if e.Tools == nil {
		return e.runSingleShot(ctx, desc, progress)
	}
	return e.runTwoPhase(ctx, desc, progress)
}

func (e *Estimator) runTwoPhase(ctx context.Context, desc jobscript.Descriptor, progress func(string)) (*Result, error) {
	progress("Reading script through the tool server...")
	fence, err := e.Tools.ScriptContents(ctx, desc.Path)
	if err != nil {
		return nil, toolErr(err)
	}
	fence = prompt.TruncateToTokens(fence, maxScriptTokens)

	conv := prompt.NewConversation(desc)

	progress("Asking the model which files the script uses...")
	reply, err := e.LLM.Complete(ctx, conv.AskDiscovery(fence), e.OnDelta)
	if err != nil {
		return nil, err
	}
	conv.RecordReply(reply)

	// The script itself is always sized; the model's file list adds to it.
	progress("Sizing " + desc.Path + "...")
	report, err := e.Tools.FileSize(ctx, desc.Path)
	if err != nil {
		return nil, toolErr(err)
	}
	sizes := []prompt.FileSize{{Path: desc.Path, Report: report}}

	files, err := prompt.ParseFileList(reply)
	if err != nil {
		// The model went off-script; continue with the script alone.
		progress("No usable file list in the reply; continuing with the script only")
	} else {
		limit := e.MaxFiles
		if limit <= 0 {
			limit = defaultMaxFiles
		}
		if len(files) > limit {
			files = files[:limit]
		}
		for _, f := range files {
			if f == desc.Path {
				continue
			}
			progress("Sizing " + f + "...")
			report, err := e.Tools.FileSize(ctx, f)
			if err != nil {
				return nil, toolErr(err)
			}
			sizes = append(sizes, prompt.FileSize{Path: f, Report: report})
		}
	}

	progress("Asking the model for the estimate...")
	reply, err = e.LLM.Complete(ctx, conv.AskEstimate(sizes), e.OnDelta)
	if err != nil {
		return nil, err
	}

	return finish(desc, reply, sizes)
}

func (e *Estimator) runSingleShot(ctx context.Context, desc jobscript.Descriptor, progress func(string)) (*Result, error) {
	fence, err := toolserver.RenderScript(desc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobscript.ErrFileAccess, err)
	}
	fence = prompt.TruncateToTokens(fence, maxScriptTokens)

	progress("Asking the model for the estimate...")
	reply, err := e.LLM.Complete(ctx, prompt.SingleShot(desc, fence), e.OnDelta)
	if err != nil {
		return nil, err
	}

	return finish(desc, reply, nil)
}

func finish(desc jobscript.Descriptor, reply string, sizes []prompt.FileSize) (*Result, error) {
	q, err := memsize.Parse(reply)
	if err != nil {
		return nil, fmt.Errorf("%w (model said: %s)", err, snippet(reply))
	}
	return &Result{
		Descriptor: desc,
		Estimate:   q,
		RawReply:   reply,
		Files:      sizes,
	}, nil
}

// toolErr classifies a tool-server failure, letting context errors
// through so deadline handling stays uniform.
func toolErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrToolServer, err)
}

func snippet(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
