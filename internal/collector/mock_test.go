package collector

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/nishimvki/coverdiscover/internal/config"
	"github.com/nishimvki/coverdiscover/internal/domain"
	"github.com/nishimvki/coverdiscover/internal/query"
	"github.com/nishimvki/coverdiscover/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Deterministic(t *testing.T) {
	mc := NewMockClient(0)
	ctx := context.Background()
	req := domain.SearchRequest{Query: "k%", Type: domain.TypeTrack, Limit: 20, Offset: 40}

	a, err := mc.Search(ctx, req)
	require.NoError(t, err)
	b, err := mc.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMockClient_PageWithinTotal(t *testing.T) {
	mc := NewMockClient(0)
	ctx := context.Background()

	for _, q := range []string{"a%", "zz%", "m% year:2003", "あ%", "q%"} {
		probe, err := mc.Search(ctx, domain.SearchRequest{Query: q, Limit: 1})
		require.NoError(t, err)

		page, err := mc.Search(ctx, domain.SearchRequest{Query: q, Limit: 50, Offset: 950})
		require.NoError(t, err)
		assert.Equal(t, probe.Total, page.Total)
		assert.Equal(t, max(0, min(50, probe.Total-950)), len(page.Items), q)

		ids := domain.NewIDSet()
		for _, tr := range page.Items {
			assert.False(t, ids.Has(tr.ID))
			ids.Add(tr.ID)
			assert.Len(t, tr.ID, 22)
		}
	}
}

func TestMockClient_SomeQueriesHaveNoHits(t *testing.T) {
	mc := NewMockClient(0)
	gen := query.NewGenerator(query.WithRand(rand.New(rand.NewPCG(5, 6))))

	empty := 0
	for i := 0; i < 400; i++ {
		page, err := mc.Search(context.Background(), domain.SearchRequest{Query: gen.NextQuery(), Limit: 1})
		require.NoError(t, err)
		if page.Total == 0 {
			empty++
		}
	}
	assert.Greater(t, empty, 0)
	assert.Less(t, empty, 200)
}

func TestMockClient_EnforcesCap(t *testing.T) {
	mc := NewMockClient(0)

	_, err := mc.Search(context.Background(), domain.SearchRequest{Query: "a%", Limit: 50, Offset: 960})
	assert.ErrorIs(t, err, ErrOffsetCap)

	_, err = mc.Search(context.Background(), domain.SearchRequest{Query: "a%", Limit: 60})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestMockClient_HonoursContextDuringLatency(t *testing.T) {
	mc := NewMockClient(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mc.Search(ctx, domain.SearchRequest{Query: "a%", Limit: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockClient_WithSampler(t *testing.T) {
	gen := query.NewGenerator(query.WithRand(rand.New(rand.NewPCG(9, 9))))
	cfg := sampler.DefaultConfig()
	cfg.Filter = sampler.Filter{RequireSquareImage: true, RequirePreview: true, LimitPopularity: true, MaxPopularity: 40}
	s, err := sampler.New(NewMockClient(0), gen, cfg, sampler.WithRand(rand.New(rand.NewPCG(1, 1))))
	require.NoError(t, err)

	got := s.Collect(context.Background(), 25, nil, 25)
	require.Len(t, got, 25)
	for _, tr := range got {
		assert.True(t, cfg.Filter.Accept(tr))
	}
}

func TestNewCollector(t *testing.T) {
	ctx := context.Background()

	p, err := NewCollector(ctx, config.Provider{Mode: config.ModeMock})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, p)

	p, err = NewCollector(ctx, config.Provider{Mode: config.ModeAPI, ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.IsType(t, &APIClient{}, p)

	_, err = NewCollector(ctx, config.Provider{Mode: config.ModeAPI})
	assert.ErrorIs(t, err, config.ErrMissingCredentials)

	_, err = NewCollector(ctx, config.Provider{Mode: "public"})
	assert.ErrorIs(t, err, config.ErrUnknownMode)
}
