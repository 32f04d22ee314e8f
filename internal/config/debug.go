package config

import "os"

func IsDebug() bool {
	return os.Getenv("SPYGLASS_DEBUG") == "1"
}
