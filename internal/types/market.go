package types

import "time"

// Bar is one trading day's OHLCV row for a symbol, read from the `daily`
// table (spec.md §6). Field names mirror the teacher's MarketData struct.
type Bar struct {
	Symbol   string    `csv:"symbol"`
	Time     time.Time `csv:"time"`
	Open     float64   `csv:"open"`
	High     float64   `csv:"high"`
	Low      float64   `csv:"low"`
	Close    float64   `csv:"close"`
	PreClose float64   `csv:"pre_close"`
	Volume   float64   `csv:"vol"`
	Amount   float64   `csv:"amount"`
}
