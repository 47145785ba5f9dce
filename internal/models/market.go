package models

// PriceQuote is the current USD price of a coin
type PriceQuote struct {
	CoinID    string  `json:"coinId"`
	USD       float64 `json:"usd"`
	MarketCap float64 `json:"marketCap"`
	Volume24h float64 `json:"volume24h"`
	Change24h float64 `json:"change24h"`
	UpdatedAt int64   `json:"updatedAt"`
}

// PricePoint is one sample of a price chart, T in unix milliseconds
type PricePoint struct {
	T     int64   `json:"t"`
	Price float64 `json:"price"`
}

// Timeseries is a price chart for one coin, interval and range
type Timeseries struct {
	CoinID   string       `json:"coinId"`
	Interval string       `json:"interval"`
	Range    string       `json:"range"`
	Points   []PricePoint `json:"points"`
}

// Pair is a DEX trading pair of a token
type Pair struct {
	DexID        string  `json:"dexId"`
	PairAddress  string  `json:"pairAddress"`
	BaseSymbol   string  `json:"baseSymbol"`
	QuoteSymbol  string  `json:"quoteSymbol"`
	PriceUSD     float64 `json:"priceUsd"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	Volume24h    float64 `json:"volume24h"`
}

// HolderStats summarises the holders of a token
type HolderStats struct {
	Token         string  `json:"token"`
	TotalHolders  int64   `json:"totalHolders"`
	Change24h     int64   `json:"change24h"`
	Top10SharePct float64 `json:"top10SharePct"`
	Concentration float64 `json:"concentration"`
}

// Sentiment holds social metrics of a coin
type Sentiment struct {
	CoinID          string  `json:"coinId"`
	GalaxyScore     float64 `json:"galaxyScore"`
	AltRank         int64   `json:"altRank"`
	Sentiment       float64 `json:"sentiment"`
	SocialDominance float64 `json:"socialDominance"`
	Interactions24h int64   `json:"interactions24h"`
}
