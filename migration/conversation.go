package migration

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/hangouts-import/migration/logging"
)

// ConversationResult is the outcome for one discovered conversation. A failed conversation keeps its slot with
// Err set and no messages.
type ConversationResult struct {
	ConversationID string              `json:"conversation_id"`
	Participants   []string            `json:"participants,omitempty"`
	Messages       []NormalizedMessage `json:"messages"`
	Err            error               `json:"-"`
}

// Failed reports whether the conversation was skipped.
func (r ConversationResult) Failed() bool {
	return r.Err != nil
}

// ProcessConversation resolves the unit's participants and builds its messages. Names the unit declares are
// merged into directory first, so later conversations can resolve participants this one names.
func ProcessConversation(ctx context.Context, unit RawConversationUnit, directory *ParticipantDirectory) (ConversationResult, error) {
	res := ConversationResult{ConversationID: unit.ID}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if directory == nil {
		directory = NewParticipantDirectory()
	}

	conv, err := decodeConversation(unit.Conversation)
	if err != nil {
		return res, fmt.Errorf("ProcessConversation (id=%q): %w", unit.ID, err)
	}

	directory.Merge(fallbackNames(conv))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	resolved := resolveParticipants(conv, directory)

	msgs, err := BuildMessages(unit, resolved)
	if err != nil {
		return res, fmt.Errorf("ProcessConversation: %w", err)
	}
	res.Participants = participantNames(conv, resolved)
	res.Messages = msgs
	return res, nil
}

// Pipeline runs ProcessConversation with logging, metrics and failure isolation.
type Pipeline struct {
	logger  *logging.Logger
	metrics *Metrics
}

func NewPipeline(logger *logging.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{logger: logger, metrics: metrics}
}

// Process never fails: any error, including a panic, is logged and recorded on the returned result.
func (p *Pipeline) Process(ctx context.Context, unit RawConversationUnit, directory *ParticipantDirectory) (res ConversationResult) {
	ctx = logging.ContextWithConversationID(ctx, unit.ID)
	start := time.Now()
	p.logger.Info(ctx, "conversation started")

	defer func() {
		if r := recover(); r != nil {
			res = ConversationResult{
				ConversationID: unit.ID,
				Err:            fmt.Errorf("ProcessConversation (id=%q): panic: %v", unit.ID, r),
			}
			p.logger.Debug(ctx, "conversation panic stack", zap.ByteString("stack", debug.Stack()))
		}

		p.metrics.ConversationDuration.Observe(time.Since(start).Seconds())
		if res.Err != nil {
			p.metrics.ConversationsProcessed.WithLabelValues("failed").Inc()
			p.logger.Error(ctx, "conversation failed", zap.Error(res.Err))
			return
		}
		p.metrics.ConversationsProcessed.WithLabelValues("ok").Inc()
		p.metrics.MessagesBuilt.Add(float64(len(res.Messages)))
		p.logger.Info(ctx, "conversation finished", zap.Int("messages", len(res.Messages)))
	}()

	out, err := ProcessConversation(ctx, unit, directory)
	if err != nil {
		return ConversationResult{ConversationID: unit.ID, Err: err}
	}
	return out
}
