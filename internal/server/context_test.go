package server

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twieland/mailpilot/internal/config"
	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/pipeline"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	cfg := config.FromEnv()
	cfg.AnthropicAPIKey = "sk-test"
	sc := NewContext(context.Background(), cfg, nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestStoreForAccountIsCached(t *testing.T) {
	sc := testContext(t)

	s1 := sc.StoreForAccount("default")
	s2 := sc.StoreForAccount("default")
	assert.Same(t, s1, s2)

	s3 := sc.StoreForAccount("work")
	assert.NotSame(t, s1, s3)
}

func TestGatewayForAccountWithoutCredential(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	sc := testContext(t)

	_, err := sc.GatewayForAccount("default")
	require.Error(t, err, "no stored credential, gateway creation must fail")
}

// emptyGateway serves no threads, so runs complete immediately.
type emptyGateway struct{}

func (emptyGateway) ForeachThread(context.Context, string, int, func(gmail.Thread) error) error {
	return nil
}

func (emptyGateway) SendReply(context.Context, gmail.Thread, []string, string) error {
	return nil
}

type noopClassifier struct{}

func (noopClassifier) ClassifyAndDraft(context.Context, gmail.Thread) (llm.Classification, error) {
	return llm.Classification{}, nil
}

func TestRunRegistryEvictsOldest(t *testing.T) {
	sc := testContext(t)
	orch := pipeline.New(emptyGateway{}, noopClassifier{})

	var first *pipeline.Run
	for i := 0; i < maxRetainedRuns+5; i++ {
		run := orch.RunOnce(context.Background(), fmt.Sprintf("query %d", i))
		sc.RegisterRun(run)
		if i == 0 {
			first = run
		}
	}

	_, ok := sc.Run(first.ID())
	assert.False(t, ok, "oldest run evicted once the cap is reached")

	latest, ok := sc.LatestRun()
	require.True(t, ok)
	_, ok = sc.Run(latest.ID())
	assert.True(t, ok)
}

func TestLatestRunEmpty(t *testing.T) {
	sc := testContext(t)
	_, ok := sc.LatestRun()
	assert.False(t, ok)
}

func TestShutdownIsIdempotent(t *testing.T) {
	sc := testContext(t)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())

	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)
}

func TestHealthChecker(t *testing.T) {
	sc := testContext(t)
	h := NewHealthChecker(sc)

	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}
