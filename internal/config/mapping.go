package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// MappingConfig maps internal product numbers to PowerOffice product codes
// and carries the provider-specific billing rules. An empty external code
// means "explicitly unmapped": the line is skipped, not an error.
type MappingConfig struct {
	Products                  map[int64]string
	OmitPriceCodes            map[string]struct{}
	TrafficCode               string
	TrafficDescription        string
	DialerProductNr           int64
	FallbackDialerCode        string
	FallbackDialerDescription string
}

// CodeFor resolves the external product code for an internal product number.
// The second return is false when the number is absent from the table.
func (m MappingConfig) CodeFor(nr int64) (string, bool) {
	code, ok := m.Products[nr]
	return code, ok
}

// OmitPrice reports whether the provider derives the unit price for this
// code server-side, so the line must not carry one.
func (m MappingConfig) OmitPrice(code string) bool {
	_, ok := m.OmitPriceCodes[code]
	return ok
}

func DefaultMappingConfig() MappingConfig {
	return MappingConfig{
		Products:                  map[int64]string{},
		OmitPriceCodes:            map[string]struct{}{},
		TrafficCode:               "7",
		TrafficDescription:        "SIP Trunk Traffic",
		DialerProductNr:           2,
		FallbackDialerCode:        "220",
		FallbackDialerDescription: "Predictive Dialer",
	}
}

type rawMappingConfig struct {
	Products                  map[string]string `mapstructure:"products"`
	OmitPriceCodes            []string          `mapstructure:"omitPriceCodes"`
	TrafficCode               string            `mapstructure:"trafficCode"`
	TrafficDescription        string            `mapstructure:"trafficDescription"`
	DialerProductNr           int64             `mapstructure:"dialerProductNr"`
	FallbackDialerCode        string            `mapstructure:"fallbackDialerCode"`
	FallbackDialerDescription string            `mapstructure:"fallbackDialerDescription"`
}

// NewMappingConfig loads mapping.yml through viper. File lookup follows the
// usual volume-mount/system/dev-dir order; defaults apply when no file is
// present, but an empty product table is rejected outright.
func NewMappingConfig() (MappingConfig, error) {
	v := viper.New()

	v.SetConfigName("mapping")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/invoicerun/config")
	v.AddConfigPath("/etc/invoicerun")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICERUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMappingConfig()
	v.SetDefault("mapping.trafficCode", defaults.TrafficCode)
	v.SetDefault("mapping.trafficDescription", defaults.TrafficDescription)
	v.SetDefault("mapping.dialerProductNr", defaults.DialerProductNr)
	v.SetDefault("mapping.fallbackDialerCode", defaults.FallbackDialerCode)
	v.SetDefault("mapping.fallbackDialerDescription", defaults.FallbackDialerDescription)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return MappingConfig{}, err
		}
	}

	var raw rawMappingConfig
	if err := v.UnmarshalKey("mapping", &raw); err != nil {
		return MappingConfig{}, err
	}

	cfg, err := buildMappingConfig(raw)
	if err != nil {
		return MappingConfig{}, err
	}
	return cfg, nil
}

func buildMappingConfig(raw rawMappingConfig) (MappingConfig, error) {
	cfg := MappingConfig{
		Products:                  make(map[int64]string, len(raw.Products)),
		OmitPriceCodes:            make(map[string]struct{}, len(raw.OmitPriceCodes)),
		TrafficCode:               strings.TrimSpace(raw.TrafficCode),
		TrafficDescription:        strings.TrimSpace(raw.TrafficDescription),
		DialerProductNr:           raw.DialerProductNr,
		FallbackDialerCode:        strings.TrimSpace(raw.FallbackDialerCode),
		FallbackDialerDescription: strings.TrimSpace(raw.FallbackDialerDescription),
	}

	for key, code := range raw.Products {
		nr, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return MappingConfig{}, errors.New("mapping.products keys must be numeric product numbers")
		}
		cfg.Products[nr] = strings.TrimSpace(code)
	}
	for _, code := range raw.OmitPriceCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		cfg.OmitPriceCodes[code] = struct{}{}
	}

	if err := validateMappingConfig(cfg); err != nil {
		return MappingConfig{}, err
	}
	return cfg, nil
}

func validateMappingConfig(cfg MappingConfig) error {
	if len(cfg.Products) == 0 {
		return errors.New("mapping.products cannot be empty")
	}
	if cfg.TrafficCode == "" {
		return errors.New("mapping.trafficCode cannot be empty")
	}
	if cfg.FallbackDialerCode == "" {
		return errors.New("mapping.fallbackDialerCode cannot be empty")
	}
	if cfg.DialerProductNr <= 0 {
		return errors.New("mapping.dialerProductNr must be positive")
	}
	return nil
}
