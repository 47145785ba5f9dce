package market

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"market-cache-api/internal/cache"
	"market-cache-api/internal/config"
	"market-cache-api/internal/upstream"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	err     error
	calls   map[string]int
	headers []http.Header
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *fakeFetcher) GetJSON(_ context.Context, url string, header http.Header) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix, body := range f.bodies {
		if strings.HasPrefix(url, prefix) {
			f.calls[prefix]++
			f.headers = append(f.headers, header)
			if f.err != nil {
				return nil, f.err
			}
			return []byte(body), nil
		}
	}
	return nil, &upstream.StatusError{URL: url, StatusCode: http.StatusNotFound}
}

type serviceFixture struct {
	svc      *Service
	fetch    *fakeFetcher
	clock    *clock.Mock
	registry *cache.Registry
}

func newFixture(t *testing.T, bodies map[string]string) serviceFixture {
	t.Helper()
	clk := clock.NewMock()
	registry, err := cache.NewPolicyRegistry(zerolog.Nop(), cache.DefaultPolicies(), cache.WithClock(clk))
	require.NoError(t, err)

	fetch := newFakeFetcher(bodies)
	cfg := config.Upstream{
		CoinGeckoURL:   "http://cg",
		CoinGeckoKey:   "demo-key",
		DexScreenerURL: "http://dex",
		HolderscanURL:  "http://hs",
		LunarCrushURL:  "http://lc",
		LunarCrushKey:  "lc-key",
	}
	return serviceFixture{
		svc:      NewService(fetch, CachesFrom(registry), cfg),
		fetch:    fetch,
		clock:    clk,
		registry: registry,
	}
}

func TestPrice_CachedWithinShortTTL(t *testing.T) {
	f := newFixture(t, map[string]string{
		"http://cg/simple/price": `{"bonk":{"usd":0.0000231,"usd_market_cap":1.7e9,"usd_24h_vol":2.1e8,"usd_24h_change":-3.2,"last_updated_at":1760000000}}`,
	})
	ctx := context.Background()

	q, err := f.svc.Price(ctx, "BONK")
	require.NoError(t, err)
	require.Equal(t, "bonk", q.CoinID)
	require.InDelta(t, 0.0000231, q.USD, 1e-12)
	require.Equal(t, int64(1760000000), q.UpdatedAt)

	f.clock.Add(29 * time.Second)
	_, err = f.svc.Price(ctx, "bonk")
	require.NoError(t, err)
	require.Equal(t, 1, f.fetch.calls["http://cg/simple/price"])
	require.Equal(t, "demo-key", f.fetch.headers[0].Get("x-cg-demo-api-key"))

	f.clock.Add(time.Second)
	_, err = f.svc.Price(ctx, "bonk")
	require.NoError(t, err)
	require.Equal(t, 2, f.fetch.calls["http://cg/simple/price"])

	require.Equal(t, []string{"price:bonk"}, f.registry.MustGet(cache.ShortName).Keys(""))
}

func TestPrice_UnknownCoin(t *testing.T) {
	f := newFixture(t, map[string]string{"http://cg/simple/price": `{}`})
	_, err := f.svc.Price(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, f.registry.MustGet(cache.ShortName).Keys(""))

	_, err = f.svc.Price(context.Background(), "../etc")
	require.ErrorIs(t, err, ErrInvalidCoinID)
}

func TestPrice_UpstreamErrorPropagates(t *testing.T) {
	f := newFixture(t, map[string]string{"http://cg/simple/price": `{}`})
	f.fetch.err = &upstream.StatusError{URL: "http://cg", StatusCode: http.StatusTooManyRequests}

	_, err := f.svc.Price(context.Background(), "bonk")
	var statusErr *upstream.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.True(t, statusErr.RateLimited())
}

func TestTimeseries_KeyAndTrim(t *testing.T) {
	hour := time.Hour.Milliseconds()
	f := newFixture(t, map[string]string{
		"http://cg/coins/bonk/market_chart": `{"prices":[[0,1.0],[` + itoa(hour) + `,2.0],[` + itoa(2*hour) + `,3.0],[` + itoa(3*hour) + `,4.0]]}`,
	})

	ts, err := f.svc.Timeseries(context.Background(), "bonk", "hour", "1h")
	require.NoError(t, err)
	require.Len(t, ts.Points, 2)
	require.Equal(t, 3.0, ts.Points[0].Price)

	full, err := f.svc.Timeseries(context.Background(), "bonk", "hour", "24h")
	require.NoError(t, err)
	require.Len(t, full.Points, 4)

	require.Equal(t,
		[]string{"timeseries:bonk:hour:1h", "timeseries:bonk:hour:24h"},
		f.registry.MustGet(cache.APIName).Keys("timeseries"))

	removed, err := f.registry.InvalidateTimeRange("24h")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Total(removed))
}

func TestTimeseries_RejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Timeseries(context.Background(), "bonk", "minute", "24h")
	require.ErrorIs(t, err, ErrInvalidInterval)
	_, err = f.svc.Timeseries(context.Background(), "bonk", "hour", "2w")
	require.ErrorIs(t, err, cache.ErrUnknownTimeRange)
}

func TestPairs_SortedByLiquidity(t *testing.T) {
	f := newFixture(t, map[string]string{
		"http://dex/latest/dex/tokens/" + bonkMint: `{"pairs":[
			{"dexId":"orca","pairAddress":"p1","priceUsd":"0.000023","liquidity":{"usd":1000},"volume":{"h24":10},"baseToken":{"symbol":"Bonk"},"quoteToken":{"symbol":"SOL"}},
			{"dexId":"raydium","pairAddress":"p2","priceUsd":"0.000024","liquidity":{"usd":5000},"volume":{"h24":20},"baseToken":{"symbol":"Bonk"},"quoteToken":{"symbol":"USDC"}}
		]}`,
	})

	pairs, err := f.svc.Pairs(context.Background(), bonkMint)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	require.Equal(t, "raydium", pairs[0].DexID)
	require.InDelta(t, 0.000024, pairs[0].PriceUSD, 1e-12)

	_, err = f.svc.Pairs(context.Background(), "not-a-mint")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestHoldersAndSentiment(t *testing.T) {
	f := newFixture(t, map[string]string{
		"http://hs/sol/tokens/" + bonkMint: `{"total_holders":950000,"holder_change":{"24h":{"change_count":1200}},"top10_share":0.31,"hhi":0.02}`,
		"http://lc/coins/bonk/v1":          `{"data":{"galaxy_score":61,"alt_rank":42,"sentiment":78.5,"social_dominance":1.9,"interactions_24h":1234567}}`,
	})
	ctx := context.Background()

	h, err := f.svc.Holders(ctx, bonkMint)
	require.NoError(t, err)
	require.Equal(t, int64(950000), h.TotalHolders)
	require.Equal(t, int64(1200), h.Change24h)
	require.InDelta(t, 31.0, h.Top10SharePct, 1e-9)

	s, err := f.svc.Sentiment(ctx, "bonk")
	require.NoError(t, err)
	require.Equal(t, int64(42), s.AltRank)
	require.Equal(t, int64(1234567), s.Interactions24h)

	require.Equal(t, []string{"holders:" + bonkMint}, f.registry.MustGet(cache.LongName).Keys(""))
	require.Equal(t, []string{"sentiment:bonk"}, f.registry.MustGet(cache.APIName).Keys(""))

	removed, err := f.registry.InvalidateCoin("bonk")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Total(removed))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
