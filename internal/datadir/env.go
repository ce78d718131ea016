package datadir

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
)

// EnvFileEnvVar names a single .env file to load instead of the defaults.
const EnvFileEnvVar = "CHUNKCHAIN_ENV_FILE"

// LoadEnv loads KEY=VALUE pairs from the files FindEnvFiles returns.
// Variables already set in the environment are kept, and when two files set
// the same key the earlier file wins.
func LoadEnv(dataRoot string) error {
	paths := FindEnvFiles(dataRoot)
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// FindEnvFiles lists the existing .env files in load order: only
// $CHUNKCHAIN_ENV_FILE when set, otherwise {dataRoot}/.env then ./.env.
func FindEnvFiles(dataRoot string) []string {
	var candidates []string
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		candidates = []string{override}
	} else {
		if dataRoot != "" {
			candidates = append(candidates, filepath.Join(dataRoot, ".env"))
		}
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, ".env"))
		}
	}

	var found, seen []string
	for _, p := range candidates {
		clean := filepath.Clean(p)
		if slices.Contains(seen, clean) {
			continue
		}
		seen = append(seen, clean)
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	return found
}
