/*
Package config loads server configuration from the environment.

PURPOSE:
  A .env file (when present) is loaded first via godotenv, then every
  setting is read from the environment with a sensible default. Nothing
  here is global; Load returns a value the composition root passes down.

VARIABLES:
  ATTEND_PORT                 HTTP port                     (8080)
  ATTEND_DB_PATH              SQLite file                   (./data/attendance.db)
  ATTEND_WORKBOOK_PATH        mirror .xlsx, empty disables  (./data/attendance.xlsx)
  ATTEND_DEADLINE             HH:MM submission cutoff       (11:00)
  ATTEND_TIMEZONE             IANA zone                     (Asia/Kolkata)
  ATTEND_OWNERS               comma-separated identities
  ATTEND_HR                   comma-separated identities
  ATTEND_FREE_LEAVES          free leaves per month         (3)
  ATTEND_LEAVE_DEDUCTION      amount per extra leave        (500)
  ATTEND_OWNER_SELF_APPROVAL  "true" enables                (false)
  ATTEND_REQUEST_MAX_AGE      pending request expiry        (72h)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

type Config struct {
	Port         int
	DBPath       string
	WorkbookPath string

	Deadline workday.Deadline
	Timezone *time.Location

	Owners []registry.Identity
	HR     []registry.Identity

	FreeLeavesPerMonth int
	DeductionPerLeave  decimal.Decimal
	OwnerSelfApproval  bool
	RequestMaxAge      time.Duration
}

// Load reads the .env file at path (ignored when missing) and then the
// environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := &Config{
		DBPath:       envStr("ATTEND_DB_PATH", "./data/attendance.db"),
		WorkbookPath: envStr("ATTEND_WORKBOOK_PATH", "./data/attendance.xlsx"),

		Owners: envIdentities("ATTEND_OWNERS"),
		HR:     envIdentities("ATTEND_HR"),

		OwnerSelfApproval: envStr("ATTEND_OWNER_SELF_APPROVAL", "false") == "true",
	}

	var err error
	cfg.Port, err = envInt("ATTEND_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.FreeLeavesPerMonth, err = envInt("ATTEND_FREE_LEAVES", 3)
	if err != nil {
		return nil, err
	}

	deadline, err := workday.ParseDeadline(envStr("ATTEND_DEADLINE", "11:00"))
	if err != nil {
		return nil, err
	}
	cfg.Deadline = deadline

	zone := envStr("ATTEND_TIMEZONE", "Asia/Kolkata")
	cfg.Timezone, err = time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTEND_TIMEZONE %q: %w", zone, err)
	}

	deduction := envStr("ATTEND_LEAVE_DEDUCTION", "500")
	cfg.DeductionPerLeave, err = decimal.NewFromString(deduction)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTEND_LEAVE_DEDUCTION %q: %w", deduction, err)
	}

	maxAge := envStr("ATTEND_REQUEST_MAX_AGE", "72h")
	cfg.RequestMaxAge, err = time.ParseDuration(maxAge)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTEND_REQUEST_MAX_AGE %q: %w", maxAge, err)
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envIdentities(key string) []registry.Identity {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []registry.Identity
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, registry.Identity(part))
		}
	}
	return out
}
