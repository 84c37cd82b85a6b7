package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"studio/internal/infra"
	"studio/internal/infra/credentials"
)

// keycheck reports which backends have a process level API key, so a
// deployment can fail fast before sessions start asking users for keys.
func main() {
	var (
		envFile     string
		requireFlag string
	)
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flag.StringVar(&requireFlag, "require", "", "comma separated backends that must be configured (bria, fal, google)")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", envFile, err)
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	sources := credentials.NewStore(cfg.CredentialEnv()).Sources()
	backends := make([]string, 0, len(sources))
	for backend := range sources {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	for _, backend := range backends {
		state := "missing"
		if sources[backend] != credentials.SourceNone {
			state = "configured"
		}
		fmt.Printf("%-8s %s\n", backend, state)
	}

	var missing []string
	for _, backend := range strings.Split(requireFlag, ",") {
		backend = strings.TrimSpace(strings.ToLower(backend))
		if backend == "" {
			continue
		}
		src, ok := sources[backend]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown backend %q\n", backend)
			os.Exit(2)
		}
		if src == credentials.SourceNone {
			missing = append(missing, backend)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "missing API keys: %s\n", strings.Join(missing, ", "))
		os.Exit(1)
	}
}
