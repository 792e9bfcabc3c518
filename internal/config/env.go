package config

import (
	"os"
	"strconv"
	"strings"
)

func GetEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func GetEnvOrDefaultInt(key string, def int) int {
	v, err := strconv.Atoi(GetEnvOrDefault(key, ""))
	if err != nil {
		return def
	}
	return v
}

func GetEnvOrDefaultBool(key string, def bool) bool {
	v, err := strconv.ParseBool(GetEnvOrDefault(key, ""))
	if err != nil {
		return def
	}
	return v
}
