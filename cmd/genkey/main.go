package main

import (
	"fmt"
	"os"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

// genkey prints a new API key and the hash to put in API_KEY_HASH.
// Usage: genkey [test|live]
func main() {
	env := domain.EnvLive
	if len(os.Args) > 1 {
		env = os.Args[1]
	}

	key, hash, err := domain.GenerateAPIKey(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	fmt.Printf("API_KEY=%s\nAPI_KEY_HASH=%s\n", key, hash)
}
