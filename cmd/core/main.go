/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/rackradar/pkg/config"
	"github.com/carverauto/rackradar/pkg/core"
	"github.com/carverauto/rackradar/pkg/lifecycle"
	"github.com/carverauto/rackradar/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/rackradar/core.json", "Path to core config file")
	envFile := flag.String("env-file", ".env", "Optional env file loaded before the config")
	flag.Parse()

	ctx := context.Background()

	if err := config.LoadDotEnv(nil, *envFile); err != nil {
		return err
	}

	var cfg core.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger("core", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	server, err := core.NewServer(ctx, &cfg, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to create core server: %w", err)
	}

	return lifecycle.Run(ctx, mainLogger, lifecycle.NamedService{Name: "core", Service: server})
}
