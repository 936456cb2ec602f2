package tests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	startingPath := ""
	iterations := 0
	for {
		if iterations > 10 {
			panic("Could not find project root path")
		}
		iterations++
		p, err := filepath.Abs(fmt.Sprintf("%s/%s", wd, startingPath))
		if err != nil {
			panic(err)
		}

		match := regexp.MustCompile(`\/evm-account-mapping-go([A-Za-z0-9_-]+)?\/?$`)
		if match.MatchString(p) {
			return p
		}
		if _, err := os.Stat(filepath.Join(p, "internal", "testData", "chain-config.json")); err == nil {
			return p
		}
		startingPath = startingPath + "/.."
	}
}

// ChainConfig describes the local development node used by integration tests
type ChainConfig struct {
	NodeUrl           string `json:"nodeUrl"`
	SS58Prefix        uint16 `json:"ss58Prefix"`
	SponsorPrivateKey string `json:"sponsorPk"`
	UserPrivateKey    string `json:"userPk"`
}

func ReadChainConfig(projectRoot string) (*ChainConfig, error) {
	filePath := fmt.Sprintf("%s/internal/testData/chain-config.json", projectRoot)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cf *ChainConfig
	if err := json.Unmarshal(file, &cf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return cf, nil
}
