package processor

import (
	"fmt"

	"pondwatch/internal/config"
	"pondwatch/internal/logger"
	"pondwatch/internal/notify"
	"pondwatch/internal/thresholds"
)

// BuildRegistry registers the default calibration merged with the optional
// calibration file. Any malformed band set is a fatal ConfigError.
func BuildRegistry(file string) (*thresholds.Registry, error) {
	cal := thresholds.DefaultCalibration()
	if file != "" {
		overrides, err := thresholds.LoadCalibration(file)
		if err != nil {
			return nil, err
		}
		cal = thresholds.Merge(cal, overrides)
	}

	registry, err := thresholds.NewRegistry(cal)
	if err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	return registry, nil
}

// BuildDispatcher returns the Twilio SMS dispatcher, wrapped with retries when
// more than one attempt is configured, or a log-only dispatcher when no
// credentials are configured.
func BuildDispatcher(cfg config.SMSConfig) (notify.Dispatcher, error) {
	log := logger.WithComponent("processor")

	if !cfg.Enabled() {
		log.Warn().Msg("twilio credentials not configured, alerts will only be logged")
		return notify.NewLogDispatcher(), nil
	}

	gateway, err := notify.NewTwilioGateway(cfg.AccountSID, cfg.AuthToken)
	if err != nil {
		return nil, err
	}
	sms, err := notify.NewSMSDispatcher(gateway, cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("to", cfg.To).
		Int("max_attempts", cfg.Retry.MaxAttempts).
		Msg("sms dispatcher initialized")
	if cfg.Retry.MaxAttempts <= 1 {
		return sms, nil
	}
	return notify.WithRetry(sms, cfg.Retry), nil
}
