package engine

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/metrics"
	"github.com/JakeFAU/upload-runner/internal/protocol"
)

// ChainResult carries the merged extracted values and, when any step asked
// for cookies, the session client holding them.
type ChainResult struct {
	Values  map[string]string
	Session *resty.Client
}

// RunChain executes head and its follow-ups in order. Each step sees the
// merged values of every step before it; later keys override earlier ones.
// Any step failure aborts the chain.
func (e *Engine) RunChain(ctx context.Context, jobID string, head *protocol.PreRequestSpec) (ChainResult, error) {
	result := ChainResult{Values: map[string]string{}}
	if head == nil {
		return result, nil
	}

	client := e.clients.Shared()
	if head.UsesCookies() {
		session, err := e.clients.Session()
		if err != nil {
			return ChainResult{}, fmt.Errorf("%w: %w", ErrChain, err)
		}
		client, result.Session = session, session
	}

	values, err := e.runStep(ctx, client, jobID, head, result.Values, 1)
	if err != nil {
		return ChainResult{}, fmt.Errorf("%w: %w", ErrChain, err)
	}
	result.Values = values
	return result, nil
}

func (e *Engine) runStep(
	ctx context.Context,
	client *resty.Client,
	jobID string,
	step *protocol.PreRequestSpec,
	parent map[string]string,
	n int,
) (map[string]string, error) {
	extracted, err := e.doStep(ctx, client, jobID, step, parent, n)
	if err != nil {
		metrics.ObserveChainStep("error")
		return nil, fmt.Errorf("step %d (%s): %w", n, stepLabel(step, n), err)
	}
	metrics.ObserveChainStep("ok")

	merged := make(map[string]string, len(parent)+len(extracted))
	maps.Copy(merged, parent)
	maps.Copy(merged, extracted)
	if step.FollowUp == nil {
		return merged, nil
	}
	return e.runStep(ctx, client, jobID, step.FollowUp, merged, n+1)
}

func (e *Engine) doStep(
	ctx context.Context,
	client *resty.Client,
	jobID string,
	step *protocol.PreRequestSpec,
	parent map[string]string,
	n int,
) (map[string]string, error) {
	if e.cfg.PreRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.PreRequestTimeout)
		defer cancel()
	}

	method := step.MethodOrDefault()
	req := client.R().
		SetContext(withExchange(ctx, jobID, stepLabel(step, n))).
		SetHeaders(SubstituteAll(step.Headers, parent))
	if form := SubstituteAll(step.FormFields, parent); len(form) > 0 {
		req.SetFormData(form)
	}

	res, err := req.Execute(method, step.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, step.URL, err)
	}
	values, err := extractValues(step.ResponseType, res.Body(), step.ExtractFields)
	if err != nil {
		return nil, fmt.Errorf("read %s response (HTTP %d): %w", step.ResponseType, res.StatusCode(), err)
	}

	e.logger.Debug("pre-request step complete",
		zap.String("job_id", jobID),
		zap.Int("step", n),
		zap.String("action", step.Action),
		zap.Int("http_status", res.StatusCode()),
		zap.Strings("extracted", sortedKeys(values)),
		zap.Bool("cookies", step.UseCookies),
	)
	return values, nil
}

func stepLabel(step *protocol.PreRequestSpec, n int) string {
	if step.Action != "" {
		return step.Action
	}
	return fmt.Sprintf("pre-request-%d", n)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
