package inngest

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/sproutfin/matchback/internal/processor"
)

// New creates a new InngestClient and registers the scheduled functions.
func New(inngestClient inngestgo.Client, p processor.MatchProcessor) InngestClient {
	c := &client{
		inngestClient: inngestClient,
		processor:     p,
	}
	c.createRetryPendingFunction()
	return c
}

// createRetryPendingFunction registers the hourly sweep that re-attempts
// charges for match events still pending, typically because the sponsor
// had no payment method on file when the match was recorded.
func (i *client) createRetryPendingFunction() inngestgo.ServableFunction {
	config := inngestgo.FunctionOpts{
		ID:   "retry-pending-charges",
		Name: "Retry pending sponsor charges",
	}
	f, err := inngestgo.CreateFunction(
		i.inngestClient,
		config,
		inngestgo.CronTrigger("0 * * * *"),
		func(ctx context.Context, input inngestgo.Input[map[string]any]) (any, error) {
			// By wrapping code in steps, it will be retried automatically on failure
			result, err := step.Run(ctx, "retry-pending", func(ctx context.Context) (*processor.RetryResult, error) {
				return i.processor.RetryPending(ctx, false)
			})
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	)
	if err != nil {
		log.Fatal("Failed to create function", "error", err)
	}
	return f
}

func (i *client) Serve() http.Handler {
	return i.inngestClient.Serve()
}

func (i *client) SendEvent(name string, data map[string]any) {
	i.inngestClient.Send(context.Background(), inngestgo.Event{Name: name, Data: data})
}
