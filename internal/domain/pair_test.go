package domain

import (
	"testing"
	"time"
)

func validSettings() PairSettings {
	return PairSettings{
		TradeAmountMin:              0.5,
		TradeAmountMax:              2,
		FrequencyFrom:               2,
		FrequencyTo:                 10,
		PriceFactor:                 1,
		MarketGap:                   0.5,
		MinOrders:                   2,
		MarketMakerOrderProbability: 15,
	}
}

func TestPairSettingsValidate(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PairSettings)
	}{
		{"negative amount", func(s *PairSettings) { s.TradeAmountMin = -1 }},
		{"amount min > max", func(s *PairSettings) { s.TradeAmountMin = 3 }},
		{"negative frequency", func(s *PairSettings) { s.FrequencyFrom = -1 }},
		{"frequency from > to", func(s *PairSettings) { s.FrequencyFrom = 20 }},
		{"negative min orders", func(s *PairSettings) { s.MinOrders = -1 }},
		{"negative price factor", func(s *PairSettings) { s.PriceFactor = -0.1 }},
		{"probability over 100", func(s *PairSettings) { s.MarketMakerOrderProbability = 101 }},
	}
	for _, tc := range cases {
		s := validSettings()
		tc.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestMaxOrders(t *testing.T) {
	s := PairSettings{MinOrders: 2}
	if got := s.MaxOrders(); got != 3 {
		t.Fatalf("MaxOrders got=%d want=3", got)
	}
}

func TestPairConfigValidate(t *testing.T) {
	cfg := PairConfig{Pair: "LTC_USDT", Exchange: "binance", Settings: validSettings()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := cfg
	bad.Pair = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("empty pair should be rejected")
	}
	bad = cfg
	bad.Exchange = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("empty exchange should be rejected")
	}
}

func TestPairConfigHash(t *testing.T) {
	a := PairConfig{Pair: "LTC_USDT", Exchange: "binance", Active: true, Settings: validSettings()}
	b := a

	// 相同内容哈希必然相等
	if a.Hash() != b.Hash() {
		t.Fatal("identical configs must hash equal")
	}

	// 时间戳不参与哈希：纯时间戳变化不触发重新初始化
	b.UpdatedAt = time.Now()
	b.CreatedAt = time.Now().Add(-time.Hour)
	if a.Hash() != b.Hash() {
		t.Fatal("timestamp-only change must not change hash")
	}

	// 任一实质字段变化哈希必然不同
	c := a
	c.Settings.PriceFactor = 2
	if a.Hash() == c.Hash() {
		t.Fatal("settings change must change hash")
	}
	d := a
	d.Active = false
	if a.Hash() == d.Hash() {
		t.Fatal("active change must change hash")
	}
	e := a
	e.Exchange = "hitbtc"
	if a.Hash() == e.Hash() {
		t.Fatal("exchange change must change hash")
	}
}
