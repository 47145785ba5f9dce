package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"market-cache-api/internal/cache"
	"market-cache-api/internal/config"
	"market-cache-api/internal/models"

	"github.com/tidwall/gjson"
)

// pairsTTL is shorter than any instance default: DEX prices move fastest.
const pairsTTL = 15 * time.Second

const maxPairs = 20

// Defaults used by the dashboard when a request names no asset.
const (
	DefaultCoinID = "bonk"
	DefaultToken  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

var (
	ErrInvalidCoinID   = errors.New("invalid coin id")
	ErrInvalidToken    = errors.New("invalid token address")
	ErrInvalidInterval = errors.New("invalid interval, want hour or day")
	ErrNotFound        = errors.New("no data for the requested asset")
)

var (
	coinIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
	// base58 Solana mint address
	tokenPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// Fetcher performs upstream GETs returning raw JSON.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Caches are the instances each endpoint stores into.
type Caches struct {
	Short cache.Cache
	Long  cache.Cache
	API   cache.Cache
}

// CachesFrom picks the default policy instances out of a registry.
func CachesFrom(r *cache.Registry) Caches {
	return Caches{
		Short: r.MustGet(cache.ShortName),
		Long:  r.MustGet(cache.LongName),
		API:   r.MustGet(cache.APIName),
	}
}

// Service serves reshaped market data, calling upstream only on cache misses.
type Service struct {
	fetch  Fetcher
	caches Caches
	cfg    config.Upstream
}

func NewService(fetch Fetcher, caches Caches, cfg config.Upstream) *Service {
	return &Service{fetch: fetch, caches: caches, cfg: cfg}
}

// Price returns the current quote of a CoinGecko coin id.
func (s *Service) Price(ctx context.Context, coinID string) (models.PriceQuote, error) {
	coinID, err := normalizeCoinID(coinID)
	if err != nil {
		return models.PriceQuote{}, err
	}

	c := s.caches.Short
	return cache.Cached(ctx, c, "price:"+coinID, c.DefaultTTL(), func(ctx context.Context) (models.PriceQuote, error) {
		q := url.Values{
			"ids":                     {coinID},
			"vs_currencies":           {"usd"},
			"include_market_cap":      {"true"},
			"include_24hr_vol":        {"true"},
			"include_24hr_change":     {"true"},
			"include_last_updated_at": {"true"},
		}
		body, err := s.fetch.GetJSON(ctx, s.cfg.CoinGeckoURL+"/simple/price?"+q.Encode(), s.coinGeckoHeader())
		if err != nil {
			return models.PriceQuote{}, err
		}

		res := gjson.GetBytes(body, coinID)
		if !res.Exists() {
			return models.PriceQuote{}, fmt.Errorf("%w: %s", ErrNotFound, coinID)
		}
		return models.PriceQuote{
			CoinID:    coinID,
			USD:       res.Get("usd").Float(),
			MarketCap: res.Get("usd_market_cap").Float(),
			Volume24h: res.Get("usd_24h_vol").Float(),
			Change24h: res.Get("usd_24h_change").Float(),
			UpdatedAt: res.Get("last_updated_at").Int(),
		}, nil
	})
}

// Timeseries returns the USD price chart of a coin. interval is "hour" or "day".
func (s *Service) Timeseries(ctx context.Context, coinID, interval, timeRange string) (models.Timeseries, error) {
	coinID, err := normalizeCoinID(coinID)
	if err != nil {
		return models.Timeseries{}, err
	}
	if interval != "hour" && interval != "day" {
		return models.Timeseries{}, ErrInvalidInterval
	}
	tr, err := cache.ParseTimeRange(timeRange)
	if err != nil {
		return models.Timeseries{}, err
	}

	c := s.caches.API
	key := strings.Join([]string{"timeseries", coinID, interval, string(tr)}, ":")
	return cache.Cached(ctx, c, key, c.DefaultTTL(), func(ctx context.Context) (models.Timeseries, error) {
		q := url.Values{
			"vs_currency": {"usd"},
			"days":        {tr.Days()},
		}
		if interval == "day" {
			q.Set("interval", "daily")
		}
		u := fmt.Sprintf("%s/coins/%s/market_chart?%s", s.cfg.CoinGeckoURL, url.PathEscape(coinID), q.Encode())
		body, err := s.fetch.GetJSON(ctx, u, s.coinGeckoHeader())
		if err != nil {
			return models.Timeseries{}, err
		}

		raw := gjson.GetBytes(body, "prices").Array()
		points := make([]models.PricePoint, 0, len(raw))
		for _, p := range raw {
			pair := p.Array()
			if len(pair) < 2 {
				continue
			}
			points = append(points, models.PricePoint{T: pair[0].Int(), Price: pair[1].Float()})
		}
		return models.Timeseries{
			CoinID:   coinID,
			Interval: interval,
			Range:    string(tr),
			Points:   trimToRange(points, tr),
		}, nil
	})
}

// Pairs returns the most liquid DEX pairs of a token.
func (s *Service) Pairs(ctx context.Context, token string) ([]models.Pair, error) {
	if !tokenPattern.MatchString(token) {
		return nil, ErrInvalidToken
	}

	return cache.Cached(ctx, s.caches.Short, "pairs:"+token, pairsTTL, func(ctx context.Context) ([]models.Pair, error) {
		body, err := s.fetch.GetJSON(ctx, s.cfg.DexScreenerURL+"/latest/dex/tokens/"+token, nil)
		if err != nil {
			return nil, err
		}

		var pairs []models.Pair
		gjson.GetBytes(body, "pairs").ForEach(func(_, p gjson.Result) bool {
			pairs = append(pairs, models.Pair{
				DexID:        p.Get("dexId").String(),
				PairAddress:  p.Get("pairAddress").String(),
				BaseSymbol:   p.Get("baseToken.symbol").String(),
				QuoteSymbol:  p.Get("quoteToken.symbol").String(),
				PriceUSD:     p.Get("priceUsd").Float(),
				LiquidityUSD: p.Get("liquidity.usd").Float(),
				Volume24h:    p.Get("volume.h24").Float(),
			})
			return true
		})
		if len(pairs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, token)
		}

		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].LiquidityUSD > pairs[j].LiquidityUSD })
		if len(pairs) > maxPairs {
			pairs = pairs[:maxPairs]
		}
		return pairs, nil
	})
}

// Holders returns holder statistics of a Solana token.
func (s *Service) Holders(ctx context.Context, token string) (models.HolderStats, error) {
	if !tokenPattern.MatchString(token) {
		return models.HolderStats{}, ErrInvalidToken
	}

	c := s.caches.Long
	return cache.Cached(ctx, c, "holders:"+token, c.DefaultTTL(), func(ctx context.Context) (models.HolderStats, error) {
		header := http.Header{}
		if s.cfg.HolderscanKey != "" {
			header.Set("x-api-key", s.cfg.HolderscanKey)
		}
		body, err := s.fetch.GetJSON(ctx, s.cfg.HolderscanURL+"/sol/tokens/"+token+"/stats", header)
		if err != nil {
			return models.HolderStats{}, err
		}

		res := gjson.ParseBytes(body)
		if !res.Get("total_holders").Exists() {
			return models.HolderStats{}, fmt.Errorf("%w: %s", ErrNotFound, token)
		}
		return models.HolderStats{
			Token:         token,
			TotalHolders:  res.Get("total_holders").Int(),
			Change24h:     res.Get("holder_change.24h.change_count").Int(),
			Top10SharePct: res.Get("top10_share").Float() * 100,
			Concentration: res.Get("hhi").Float(),
		}, nil
	})
}

// Sentiment returns LunarCrush social metrics of a coin.
func (s *Service) Sentiment(ctx context.Context, coin string) (models.Sentiment, error) {
	coin, err := normalizeCoinID(coin)
	if err != nil {
		return models.Sentiment{}, err
	}

	c := s.caches.API
	return cache.Cached(ctx, c, "sentiment:"+coin, c.DefaultTTL(), func(ctx context.Context) (models.Sentiment, error) {
		header := http.Header{}
		if s.cfg.LunarCrushKey != "" {
			header.Set("Authorization", "Bearer "+s.cfg.LunarCrushKey)
		}
		body, err := s.fetch.GetJSON(ctx, s.cfg.LunarCrushURL+"/coins/"+url.PathEscape(coin)+"/v1", header)
		if err != nil {
			return models.Sentiment{}, err
		}

		data := gjson.GetBytes(body, "data")
		if !data.Exists() {
			return models.Sentiment{}, fmt.Errorf("%w: %s", ErrNotFound, coin)
		}
		return models.Sentiment{
			CoinID:          coin,
			GalaxyScore:     data.Get("galaxy_score").Float(),
			AltRank:         data.Get("alt_rank").Int(),
			Sentiment:       data.Get("sentiment").Float(),
			SocialDominance: data.Get("social_dominance").Float(),
			Interactions24h: data.Get("interactions_24h").Int(),
		}, nil
	})
}

func (s *Service) coinGeckoHeader() http.Header {
	if s.cfg.CoinGeckoKey == "" {
		return nil
	}
	return http.Header{"x-cg-demo-api-key": {s.cfg.CoinGeckoKey}}
}

func normalizeCoinID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !coinIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCoinID, id)
	}
	return id, nil
}

// trimToRange drops points older than the sub-day ranges ask for. CoinGecko's smallest
// window is one day.
func trimToRange(points []models.PricePoint, tr cache.TimeRange) []models.PricePoint {
	var window time.Duration
	switch tr {
	case cache.Range1h:
		window = time.Hour
	case cache.Range4h:
		window = 4 * time.Hour
	case cache.Range12h:
		window = 12 * time.Hour
	default:
		return points
	}
	if len(points) == 0 {
		return points
	}
	cutoff := points[len(points)-1].T - window.Milliseconds()
	i := sort.Search(len(points), func(i int) bool { return points[i].T >= cutoff })
	return points[i:]
}
