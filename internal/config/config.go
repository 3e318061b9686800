package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	WebSocketOrigin string
	BinanceBaseURL  string
	PricePollEvery  time.Duration
	LogLevel        string
	ResetEnabled    bool
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.BinanceBaseURL = strings.TrimRight(os.Getenv("BINANCE_BASE_URL"), "/")
	if c.BinanceBaseURL == "" {
		c.BinanceBaseURL = "https://api.binance.com"
	}
	pollRaw := strings.TrimSpace(os.Getenv("PRICE_POLL_EVERY"))
	if pollRaw == "" {
		c.PricePollEvery = 5 * time.Second
	} else {
		d, err := time.ParseDuration(pollRaw)
		if err != nil || d <= 0 {
			return c, errors.New("invalid PRICE_POLL_EVERY")
		}
		c.PricePollEvery = d
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	resetRaw := os.Getenv("RESET_ENABLED")
	if resetRaw == "" {
		c.ResetEnabled = true
	} else {
		b, err := strconv.ParseBool(resetRaw)
		if err != nil {
			return c, err
		}
		c.ResetEnabled = b
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
