package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
	executorx "github.com/deuterium1925/smart-ass-back/agent/executor"
)

// SubmitOperatorResponse records the operator's response exactly once and
// fires the deferred pipeline as a direct side effect. The returned turn
// carries the populated, possibly partial-failure, automated results.
func (o *Orchestrator) SubmitOperatorResponse(ctx context.Context, phoneNumber string, timestamp int64, text string) (*contractx.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	turn, err := o.store.SetOperatorResponse(ctx, phoneNumber, timestamp, text)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("phone_number", turn.PhoneNumber).
		Int64("timestamp", timestamp).
		Msg("operator response recorded")

	return o.triggerDeferred(ctx, turn)
}

// TriggerDeferred runs the deferred QA/Summary pipeline for one turn. It is
// idempotent: once the turn's automated results left pending, the stored
// results are returned without invoking any agent.
func (o *Orchestrator) TriggerDeferred(ctx context.Context, phoneNumber string, timestamp int64) (*contractx.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	turn, err := o.store.GetTurn(ctx, phoneNumber, timestamp)
	if err != nil {
		return nil, err
	}
	return o.triggerDeferred(ctx, turn)
}

func (o *Orchestrator) triggerDeferred(ctx context.Context, turn *contractx.Turn) (*contractx.Turn, error) {
	if !turn.Automated.Pending() {
		log.Debug().
			Str("phone_number", turn.PhoneNumber).
			Int64("timestamp", turn.Timestamp).
			Msg("automated results already materialized, skipping trigger")
		return turn, nil
	}

	customer, err := o.store.GetCustomer(ctx, turn.PhoneNumber)
	if err != nil {
		return nil, err
	}
	history, err := o.store.History(ctx, turn.PhoneNumber, 0)
	if err != nil {
		return nil, err
	}

	in := contractx.ExecContext{
		PhoneNumber:      turn.PhoneNumber,
		UserText:         turn.UserText,
		OperatorResponse: turn.OperatorResponse,
		Customer:         customer,
		History:          history,
		Now:              o.now().UTC(),
	}

	// QA and Summary have no edge between them and always run as one batch.
	// Without an operator response (manual trigger) QA still runs, over a
	// degraded context.
	deferred := o.registry.DeferredAgents()
	results, err := o.runBatch(ctx, deferred, in)
	if err != nil {
		return nil, err
	}

	written := contractx.NewPendingResults()
	for _, res := range results {
		switch res.Agent {
		case contractx.AgentQA:
			written.QAFeedback = slotFromResult(res)
		case contractx.AgentSummary:
			written.Summary = slotFromResult(res)
		}
	}

	updated, err := o.store.WriteAutomatedResults(ctx, turn.PhoneNumber, turn.Timestamp, written)
	if err != nil {
		return nil, err
	}

	if err := o.queue.Dequeue(ctx, turn.PhoneNumber, turn.Timestamp); err != nil {
		log.Warn().
			Err(err).
			Str("phone_number", turn.PhoneNumber).
			Int64("timestamp", turn.Timestamp).
			Msg("failed to dequeue answered turn")
	}

	log.Info().
		Str("phone_number", turn.PhoneNumber).
		Int64("timestamp", turn.Timestamp).
		Str("qa_state", string(updated.Automated.QAFeedback.State)).
		Str("summary_state", string(updated.Automated.Summary.State)).
		Msg("deferred pipeline completed")
	return updated, nil
}

func slotFromResult(res executorx.Result) contractx.AutomatedSlot {
	if res.Failure != nil {
		return contractx.AutomatedSlot{
			State: contractx.StateFailed,
			Error: res.Failure.Message,
		}
	}
	return contractx.AutomatedSlot{
		State:  contractx.StateCompleted,
		Output: res.Output,
	}
}
