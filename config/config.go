// Package config aggregates per-package configuration the way the
// teacher's core/execution/config.go does: one Config struct per engine
// package, composed here into a single root Config with go-flags
// struct tags for CLI/file binding.
package config

import (
	"github.com/abitmore/revpop-core/config/encoding"
	"github.com/abitmore/revpop-core/fee"
	"github.com/abitmore/revpop-core/logging"
)

// RootPathFlag is embedded by CLI subcommands needing a data directory,
// matching the teacher's config.RootPathFlag convention.
type RootPathFlag struct {
	RootPath string `short:"r" long:"root-path" description:"path to the node's state directory" default:"~/.revpopd"`
}

// Config is the root configuration of the engine, aggregating the
// per-package Config types the way core/execution/config.go composes
// matching/risk/position/settlement/fee configs.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	Fee FeeConfig `group:"Fee" namespace:"fee"`
}

// FeeConfig exposes fee.Schedule's MarketFeeNetworkPercent and
// MakerFeeDiscountPercent as bindable CLI/file options; CancelFeeCore has
// no option here. fee.Schedule itself stays free of struct tags so the engine package
// does not depend on the flags/encoding ecosystem.
type FeeConfig struct {
	MarketFeeNetworkPercent uint16 `long:"market-fee-network-percent" default:"0"`
	MakerFeeDiscountPercent uint16 `long:"maker-fee-discount-percent" default:"0"`
}

func (c FeeConfig) ToSchedule() fee.Schedule {
	return fee.Schedule{
		MarketFeeNetworkPercent: c.MarketFeeNetworkPercent,
		MakerFeeDiscountPercent: c.MakerFeeDiscountPercent,
	}
}

// NewDefaultConfig returns the engine's default configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
		Fee:   FeeConfig{},
	}
}
