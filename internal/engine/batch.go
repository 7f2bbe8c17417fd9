package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/chat-ledger/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchOptions configures ProcessBatch.
type BatchOptions struct {
	// OnResult is called after each message, from worker goroutines.
	OnResult func(msg model.InboundMessage, r model.Reply)
	// Workers bounds how many senders are processed at once.
	Workers int
}

// DefaultBatchOptions returns sensible defaults for replaying exports.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Workers: 4}
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Replies            []model.Reply
	Total              int
	Accepted           int
	Duplicates         int
	NeedsClarification int
	Rejected           int
	CommitErrors       int
	Cancelled          int
}

// ProcessBatch runs msgs through the pipeline. Messages from one sender are
// processed in input order so corrections follow the entries they amend;
// different senders run concurrently. Replies are returned in input order.
func (p *Pipeline) ProcessBatch(ctx context.Context, msgs []model.InboundMessage, opts BatchOptions) (*BatchSummary, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultBatchOptions().Workers
	}

	bySender := make(map[string][]int)
	var order []string
	for i, m := range msgs {
		if _, seen := bySender[m.SenderID]; !seen {
			order = append(order, m.SenderID)
		}
		bySender[m.SenderID] = append(bySender[m.SenderID], i)
	}

	replies := make([]model.Reply, len(msgs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, sender := range order {
		indexes := bySender[sender]
		g.Go(func() error {
			for _, i := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				r := p.Process(gctx, msgs[i])
				mu.Lock()
				replies[i] = r
				mu.Unlock()
				if opts.OnResult != nil {
					opts.OnResult(msgs[i], r)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}

	summary := &BatchSummary{Replies: replies, Total: len(msgs)}
	for _, r := range replies {
		switch r.Status {
		case model.StatusAccepted:
			summary.Accepted++
			if r.Duplicate {
				summary.Duplicates++
			}
		case model.StatusNeedsClarification:
			summary.NeedsClarification++
		case model.StatusRejected:
			summary.Rejected++
		case model.StatusCommitError:
			summary.CommitErrors++
		case model.StatusCancelled:
			summary.Cancelled++
		}
	}
	return summary, nil
}

// GetDisplay formats the summary for terminal output.
func (s *BatchSummary) GetDisplay() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d messages\n", s.Total)
	fmt.Fprintf(&b, "  Committed:            %d (%d duplicates)\n", s.Accepted, s.Duplicates)
	fmt.Fprintf(&b, "  Needs clarification:  %d\n", s.NeedsClarification)
	fmt.Fprintf(&b, "  Cancelled:            %d\n", s.Cancelled)
	fmt.Fprintf(&b, "  Rejected:             %d\n", s.Rejected)
	fmt.Fprintf(&b, "  Commit errors:        %d\n", s.CommitErrors)
	return b.String()
}
