package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Verify validates field ranges, then the rules spanning several fields
// and the filesystem.
func Verify(cfg *ServerConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := verifyRealtime(&cfg.Realtime); err != nil {
		return err
	}
	if err := verifyData(&cfg.Data); err != nil {
		return err
	}
	if cfg.Admin.Address != "" && cfg.Admin.Address == cfg.Broker.Address {
		return fmt.Errorf("%w: admin.address and broker.address are both %s", ErrInvalidConfig, cfg.Broker.Address)
	}
	return nil
}

func verifyRealtime(cfg *RealtimeSection) error {
	if cfg.URL != "" && cfg.File != "" {
		return fmt.Errorf("%w: realtime.url and realtime.file are mutually exclusive", ErrInvalidConfig)
	}
	if cfg.URL == "" && (cfg.CAFile != "" || cfg.CertFile != "") {
		return fmt.Errorf("%w: realtime tls files need realtime.url", ErrInvalidConfig)
	}
	return nil
}

func verifyData(cfg *DataSection) error {
	if _, err := os.Stat(cfg.BasePath); err != nil {
		return fmt.Errorf("%w: data.base_path: %v", ErrInvalidConfig, err)
	}
	return nil
}
