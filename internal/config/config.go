package config

import (
	"btc-alerts/internal/models"
	"encoding/json"
	"fmt"
	"os"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中，
// 未设置的字段回落到默认值。
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	config := &models.Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	config.ApplyDefaults()

	if mode := config.EntryPriceMode; mode != "ZONE" && mode != "LOHI" {
		return nil, fmt.Errorf("invalid entry_price_mode %q (want ZONE or LOHI)", mode)
	}
	if mode := config.StopFillMode; mode != "CAP" && mode != "MARKET" {
		return nil, fmt.Errorf("invalid stop_fill_mode %q (want CAP or MARKET)", mode)
	}
	if config.TP1CloseFrac > 1 {
		return nil, fmt.Errorf("tp1_close_frac %v out of range (0,1]", config.TP1CloseFrac)
	}

	return config, nil
}
