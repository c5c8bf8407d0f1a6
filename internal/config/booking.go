package config

import "time"

// BookingConfig tunes the admission transaction and the availability reads.
type BookingConfig struct {
	TxTimeout     time.Duration // upper bound of one storage transaction
	RetryAttempts int           // attempts per operation on transient failures
	RetryInitial  time.Duration
	RetryMax      time.Duration
	MaxRangeDays  int // longest calendar range served in one request
}

func LoadBookingConfig() BookingConfig {
	cfg := BookingConfig{
		TxTimeout:     envDur("BOOKING_TX_TIMEOUT", 5*time.Second),
		RetryAttempts: envInt("BOOKING_RETRY_ATTEMPTS", 3),
		RetryInitial:  envDur("BOOKING_RETRY_INITIAL", 50*time.Millisecond),
		RetryMax:      envDur("BOOKING_RETRY_MAX", time.Second),
		MaxRangeDays:  envInt("BOOKING_MAX_RANGE_DAYS", 62),
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.MaxRangeDays < 1 {
		cfg.MaxRangeDays = 62
	}
	return cfg
}
