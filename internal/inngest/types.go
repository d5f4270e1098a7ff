package inngest

import (
	"github.com/inngest/inngestgo"
	"github.com/sproutfin/matchback/internal/processor"
)

type client struct {
	inngestClient inngestgo.Client
	processor     processor.MatchProcessor
}
