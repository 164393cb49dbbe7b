package persistence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"mt5-connect/internal/messages"

	bolt "go.etcd.io/bbolt"
)

const (
	MarketDataBucket = "market_data"
	TradesBucket     = "trades"
)

type MarketDb struct {
	Db *bolt.DB
}

// Create opens the bbolt database at path and registers the buckets required
// by mt5-connect.
func (mdb *MarketDb) Create(path string) error {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("Failed to open bbolt db %v", err)
	}
	mdb.Db = db

	for _, bucket := range []string{MarketDataBucket, TradesBucket} {
		if err := mdb.RegisterBucket(bucket); err != nil {
			return err
		}
	}
	return nil
}

func (mdb *MarketDb) Close() error {
	return mdb.Db.Close()
}

func (mdb *MarketDb) RegisterBucket(bucketname string) error {
	return mdb.Db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketname))
		return err
	})
}

func marketDataKey(symbol string, timeframe int) []byte {
	return []byte(fmt.Sprintf("%s_%d", symbol, timeframe))
}

// SaveMarketData merges bars into the series stored for symbol and timeframe.
// Bars carrying a timestamp already present replace the stored bar.
func (mdb *MarketDb) SaveMarketData(symbol string, timeframe int, bars []messages.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return mdb.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(MarketDataBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", MarketDataBucket)
		}

		key := marketDataKey(symbol, timeframe)
		series := make(map[int64]messages.Bar)

		if stored := b.Get(key); stored != nil {
			var existing []messages.Bar
			if err := json.Unmarshal(stored, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal stored bars for %s: %w", key, err)
			}
			for _, bar := range existing {
				series[bar.Time.Unix()] = bar
			}
		}
		for _, bar := range bars {
			series[bar.Time.Unix()] = bar
		}

		merged := make([]messages.Bar, 0, len(series))
		for _, bar := range series {
			merged = append(merged, bar)
		}
		sort.Slice(merged, func(i, j int) bool {
			return merged[i].Time.Before(merged[j].Time)
		})

		value, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal bars for %s: %w", key, err)
		}
		return b.Put(key, value)
	})
}

// GetMarketData returns up to count of the most recent bars stored for symbol
// and timeframe, ordered by time ascending.
func (mdb *MarketDb) GetMarketData(symbol string, timeframe int, count int) ([]messages.Bar, error) {
	var bars []messages.Bar
	err := mdb.Db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(MarketDataBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", MarketDataBucket)
		}
		stored := b.Get(marketDataKey(symbol, timeframe))
		if stored == nil {
			return nil
		}
		return json.Unmarshal(stored, &bars)
	})
	if err != nil {
		return nil, err
	}
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

// SaveTrade appends a completed trade to the trades bucket.
func (mdb *MarketDb) SaveTrade(trade messages.TradeRecord) error {
	return mdb.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(TradesBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", TradesBucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		value, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade for %s: %w", trade.Symbol, err)
		}
		return b.Put(key, value)
	})
}

// GetTrades returns up to limit of the most recently saved trades, newest
// first.
func (mdb *MarketDb) GetTrades(limit int) ([]messages.TradeRecord, error) {
	var trades []messages.TradeRecord
	err := mdb.Db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(TradesBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", TradesBucket)
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(trades) >= limit {
				break
			}
			var trade messages.TradeRecord
			if err := json.Unmarshal(v, &trade); err != nil {
				return fmt.Errorf("failed to unmarshal stored trade: %w", err)
			}
			trades = append(trades, trade)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}
