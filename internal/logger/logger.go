package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Production gets JSON output at info level,
// everything else a colored console encoder at debug level.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service": "auth"}

	return cfg.Build()
}

// MaskEmail keeps the first character of the local part and the domain.
// jane.doe@example.com -> j***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	return email[:1] + "***" + email[at:]
}

// MaskIP hides the host part of an address: the last two IPv4 octets or
// everything after the first four IPv6 groups.
func MaskIP(ip string) string {
	switch {
	case ip == "":
		return ""
	case strings.Count(ip, ".") == 3:
		parts := strings.Split(ip, ".")
		return parts[0] + "." + parts[1] + ".*.*"
	case strings.Contains(ip, ":"):
		parts := strings.Split(ip, ":")
		if len(parts) > 4 {
			parts = parts[:4]
		}
		return strings.Join(parts, ":") + ":*"
	default:
		return ip
	}
}
