package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/dohr-michael/nudge/internal/clock"
)

var storeDrivers = []string{"file", "sqlite", "memory"}

// Validate checks the structural soundness of the config. Errors are
// returned as criterio.FieldErrors.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("timezone", c.Timezone, validTimezone),
		criterio.Run("store.driver", c.Store.Driver, validDriver),
		criterio.Run("gateway.port", c.Gateway.Port, validPort),
		criterio.Run("events.buffer_size", c.Events.BufferSize, positive),
		c.validateReminders(),
	)
}

func (c *Config) validateReminders() error {
	var errs criterio.FieldErrorsBuilder
	if _, _, err := clock.ParseHHMM(c.Reminders.MorningOf); err != nil {
		errs = errs.Append("reminders.morning_of", err)
	}
	if _, _, err := clock.ParseHHMM(c.Reminders.NightlyAt); err != nil {
		errs = errs.Append("reminders.nightly_at", err)
	}
	if c.Reminders.WeeklyFirstDelay.Duration() < 0 {
		errs = errs.Append("reminders.weekly_first_delay", errors.New("must not be negative"))
	}
	if c.Reminders.WeeklyInterval.Duration() < time.Minute {
		errs = errs.Append("reminders.weekly_interval", errors.New("must be at least 1m"))
	}
	return errs.ToError()
}

func validTimezone(zone string) error {
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("unknown timezone %q", zone)
	}
	return nil
}

func validDriver(driver string) error {
	if !slices.Contains(storeDrivers, driver) {
		return fmt.Errorf("must be one of %v", storeDrivers)
	}
	return nil
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("out of range: %d", port)
	}
	return nil
}

func positive(n int) error {
	if n <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

// Morning returns the due-day reminder time.
func (r RemindersConfig) Morning() (hour, minute int, err error) {
	return clock.ParseHHMM(r.MorningOf)
}

// Nightly returns the roll-call time.
func (r RemindersConfig) Nightly() (hour, minute int, err error) {
	return clock.ParseHHMM(r.NightlyAt)
}
