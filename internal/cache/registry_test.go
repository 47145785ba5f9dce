package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type RegistrySuite struct {
	suite.Suite
	clock    *clock.Mock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = clock.NewMock()
	r, err := NewPolicyRegistry(zerolog.Nop(), DefaultPolicies(), WithClock(s.clock))
	s.Require().NoError(err)
	s.registry = r

	s.Require().NoError(r.MustGet(ShortName).Set("price:bonk", 1, 30*time.Second))
	s.Require().NoError(r.MustGet(APIName).Set("timeseries:bonk:hour:24h", 2, 5*time.Minute))
	s.Require().NoError(r.MustGet(APIName).Set("timeseries:sol:hour:24h", 3, 5*time.Minute))
	s.Require().NoError(r.MustGet(LongName).Set("holders:bonk", 4, 10*time.Minute))
}

func (s *RegistrySuite) TestNamesAndPolicies() {
	s.Require().Equal([]string{ShortName, LongName, APIName}, s.registry.Names())
	s.Require().Equal(10*time.Minute, s.registry.MustGet(LongName).DefaultTTL())

	_, err := s.registry.Get("nope")
	s.Require().ErrorIs(err, ErrUnknownInstance)
}

func (s *RegistrySuite) TestDuplicateNames() {
	_, err := NewRegistry(zerolog.Nop(), New("a"), New("a"))
	s.Require().ErrorIs(err, ErrDuplicateName)
}

func (s *RegistrySuite) TestInstancesAreIsolated() {
	removed, err := s.registry.InvalidatePattern("price")
	s.Require().NoError(err)
	s.Require().Equal(map[string]int{ShortName: 1, LongName: 0, APIName: 0}, removed)
	s.Require().Len(s.registry.MustGet(APIName).Keys(""), 2)
}

func (s *RegistrySuite) TestInvalidateCoinAcrossInstances() {
	removed, err := s.registry.InvalidateCoin("BONK")
	s.Require().NoError(err)
	s.Require().Equal(3, Total(removed))
	s.Require().Equal([]string{"timeseries:sol:hour:24h"}, s.registry.MustGet(APIName).Keys(""))
}

func (s *RegistrySuite) TestInvalidInputTouchesNothing() {
	_, err := s.registry.InvalidatePattern("")
	s.Require().ErrorIs(err, ErrEmptyPattern)
	_, err = s.registry.InvalidateCoin("")
	s.Require().ErrorIs(err, ErrEmptyCoinID)
	_, err = s.registry.InvalidateTimeRange("forever")
	s.Require().ErrorIs(err, ErrUnknownTimeRange)

	s.Require().Equal(4, s.totalEntries())
}

func (s *RegistrySuite) TestInvalidateTimeRange() {
	removed, err := s.registry.InvalidateTimeRange("24h")
	s.Require().NoError(err)
	s.Require().Equal(2, removed[APIName])
	s.Require().Equal(2, s.totalEntries())
}

func (s *RegistrySuite) TestClearAll() {
	s.registry.ClearAll()
	s.Require().Zero(s.totalEntries())
}

func (s *RegistrySuite) TestCleanupAndStats() {
	s.clock.Add(time.Minute)
	removed := s.registry.Cleanup()
	s.Require().Equal(map[string]int{ShortName: 1, LongName: 0, APIName: 0}, removed)

	_, _ = s.registry.MustGet(LongName).Get("holders:bonk")
	_, _ = s.registry.MustGet(LongName).Get("holders:wif")

	total := Sum("all", s.registry.Stats())
	s.Require().Equal(3, total.TotalEntries)
	s.Require().Equal(uint64(1), total.TotalHits)
	s.Require().Equal(uint64(1), total.TotalMisses)
	s.Require().InDelta(0.5, total.HitRate, 1e-9)
}

func (s *RegistrySuite) TestKeys() {
	keys := s.registry.Keys("bonk")
	s.Require().Equal([]string{"price:bonk"}, keys[ShortName])
	s.Require().Equal([]string{"timeseries:bonk:hour:24h"}, keys[APIName])
	s.Require().Equal([]string{"holders:bonk"}, keys[LongName])
}

func (s *RegistrySuite) TestJanitorSweeps() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan map[string]int, 16)
	go s.registry.RunJanitor(ctx, s.clock, 15*time.Second, func(removed map[string]int) {
		swept <- removed
	})

	s.Require().Eventually(func() bool {
		s.clock.Add(15 * time.Second)
		select {
		case removed := <-swept:
			return removed[ShortName] == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func (s *RegistrySuite) TestCollector() {
	reg := prometheus.NewPedanticRegistry()
	s.Require().NoError(reg.Register(NewCollector("mca", s.registry)))

	_, _ = s.registry.MustGet(ShortName).Get("price:bonk")

	expected := `
# HELP mca_cache_hits_total Lookups answered from a fresh entry
# TYPE mca_cache_hits_total counter
mca_cache_hits_total{cache="api"} 0
mca_cache_hits_total{cache="long"} 0
mca_cache_hits_total{cache="short"} 1
`
	s.Require().NoError(testutil.GatherAndCompare(reg, strings.NewReader(expected), "mca_cache_hits_total"))
}

func (s *RegistrySuite) totalEntries() int {
	return Sum("all", s.registry.Stats()).TotalEntries
}
