package migration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/hangouts-import/migration/logging"
)

// ErrUnreadableInput is returned when the source document cannot be opened.
var ErrUnreadableInput = errors.New("could not read file at path")

// IngestOptions controls an Ingester.
type IngestOptions struct {
	// UnitKey is the field name conversation units are nested under (defaults to DefaultUnitKey).
	UnitKey string

	// Concurrency caps how many conversations are processed at once. Zero means no cap: every unit is
	// dispatched as soon as it is discovered.
	Concurrency int

	// Locale is recorded on the result for date-formatting collaborators; the transformation ignores it.
	Locale string
}

// Result is the aggregate of one ingestion run.
type Result struct {
	RunID  string
	Locale string

	// Conversations holds every discovered conversation exactly once, in discovery order.
	Conversations []ConversationResult

	// Participants is every name learned during the run.
	Participants ParticipantMap
}

// Messages returns the messages of all successful conversations, in discovery order.
func (r *Result) Messages() []NormalizedMessage {
	var out []NormalizedMessage
	for _, c := range r.Conversations {
		if c.Failed() {
			continue
		}
		out = append(out, c.Messages...)
	}
	return out
}

// ByConversation maps conversation ids to their messages. Failed conversations are left out; conversations
// sharing an id are concatenated in discovery order.
func (r *Result) ByConversation() map[string][]NormalizedMessage {
	out := make(map[string][]NormalizedMessage, len(r.Conversations))
	for _, c := range r.Conversations {
		if c.Failed() {
			continue
		}
		out[c.ConversationID] = append(out[c.ConversationID], c.Messages...)
	}
	return out
}

// Failed returns the conversations that were skipped.
func (r *Result) Failed() []ConversationResult {
	var out []ConversationResult
	for _, c := range r.Conversations {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

type ingestState int

const (
	stateIdle ingestState = iota
	stateStreaming
	stateDraining
	stateDone
)

func (s ingestState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStreaming:
		return "streaming"
	case stateDraining:
		return "draining"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("ingestState(%d)", int(s))
	}
}

// Ingester turns a Hangouts export into normalized messages.
type Ingester struct {
	opts     IngestOptions
	logger   *logging.Logger
	metrics  *Metrics
	pipeline *Pipeline
}

// NewIngester creates an Ingester. logger and metrics may be nil.
func NewIngester(opts IngestOptions, logger *logging.Logger, metrics *Metrics) *Ingester {
	if opts.UnitKey == "" {
		opts.UnitKey = DefaultUnitKey
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Ingester{
		opts:     opts,
		logger:   logger.Named("ingest"),
		metrics:  metrics,
		pipeline: NewPipeline(logger.Named("conversation"), metrics),
	}
}

// IngestFile streams the document at path through Ingest. It fails with ErrUnreadableInput, before any
// conversation is processed, when path cannot be opened.
func (in *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("IngestFile: ctx is nil")
	}
	if path == "" {
		return nil, fmt.Errorf("IngestFile: %w: path is empty", ErrUnreadableInput)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("IngestFile: %w: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("IngestFile: %w: %v", ErrUnreadableInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("IngestFile: %w: %s is a directory", ErrUnreadableInput, path)
	}

	return in.Ingest(ctx, ScanUnits(f, in.opts.UnitKey))
}

// Ingest dispatches every unit of units for processing as it is discovered and returns once all of them have
// settled. A failed conversation is recorded on its result and never affects its siblings. An error from units
// (a parse error) or a cancelled ctx ends discovery; Ingest then waits for dispatched work and returns the error
// without a result.
func (in *Ingester) Ingest(ctx context.Context, units iter.Seq2[RawConversationUnit, error]) (*Result, error) {
	run := &ingestRun{
		id:        uuid.NewString(),
		directory: NewParticipantDirectory(),
		logger:    in.logger,
	}
	ctx = logging.ContextWithRunID(ctx, run.id)
	in.logger.Info(ctx, "ingest started", zap.String("locale", in.opts.Locale))

	var g errgroup.Group
	if in.opts.Concurrency > 0 {
		g.SetLimit(in.opts.Concurrency)
	}

	var (
		slots   []*ConversationResult
		scanErr error
	)
	run.transition(ctx, stateStreaming)
	for unit, err := range units {
		if err != nil {
			scanErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			scanErr = err
			break
		}

		slot := &ConversationResult{ConversationID: unit.ID}
		slots = append(slots, slot)
		in.metrics.ConversationsDiscovered.Inc()
		in.metrics.InFlight.Inc()

		g.Go(func() error {
			defer in.metrics.InFlight.Dec()
			*slot = in.pipeline.Process(ctx, unit, run.directory)
			return nil
		})
	}

	run.transition(ctx, stateDraining)
	_ = g.Wait()
	run.transition(ctx, stateDone)

	if scanErr != nil {
		in.logger.Error(ctx, "ingest aborted", zap.Error(scanErr), zap.Int("dispatched", len(slots)))
		return nil, fmt.Errorf("Ingest: %w", scanErr)
	}

	res := &Result{
		RunID:         run.id,
		Locale:        in.opts.Locale,
		Conversations: make([]ConversationResult, 0, len(slots)),
		Participants:  run.directory.Snapshot(),
	}
	for _, s := range slots {
		res.Conversations = append(res.Conversations, *s)
	}

	failed := len(res.Failed())
	if failed > 0 {
		in.logger.Warn(ctx, "conversations skipped", zap.Int("failed", failed))
	}
	in.logger.Info(ctx, "ingest finished",
		zap.Int("conversations", len(res.Conversations)),
		zap.Int("failed", failed),
		zap.Int("participants", run.directory.Len()),
	)
	return res, nil
}

// ingestRun owns the state of one Ingest call.
type ingestRun struct {
	id        string
	state     ingestState
	directory *ParticipantDirectory
	logger    *logging.Logger
}

func (r *ingestRun) transition(ctx context.Context, to ingestState) {
	r.logger.Debug(ctx, "ingest state", zap.Stringer("from", r.state), zap.Stringer("to", to))
	r.state = to
}
