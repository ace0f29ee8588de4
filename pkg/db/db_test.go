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

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rackradar/pkg/models"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- header; with a semicolon
CREATE TABLE a (x TEXT DEFAULT 'semi;colon');

INSERT INTO a VALUES ('it''s');
SELECT 1`

	stmts := splitStatements(script)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (x TEXT DEFAULT 'semi;colon')", stmts[0])
	assert.Equal(t, "INSERT INTO a VALUES ('it''s')", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "00001_discovery.up.sql", names[0])
	assert.Equal(t, "00001", migrationVersion(names[0]))

	content, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)

	stmts := splitStatements(string(content))
	assert.Len(t, stmts, 9)
}

func TestBuildPoolConfig(t *testing.T) {
	cfg := &models.PostgresDatabase{
		Host:            "db.example",
		Database:        "rackradar",
		Username:        "radar",
		Password:        "s3cret",
		ApplicationName: "rackradar-core",
		MaxConnections:  12,
		MinConnections:  2,
		MaxConnLifetime: models.Duration(time.Hour),
		RuntimeParams:   map[string]string{"search_path": "public", "": "ignored"},
	}

	pc, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.example", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5432), pc.ConnConfig.Port)
	assert.Equal(t, "rackradar", pc.ConnConfig.Database)
	assert.Equal(t, "radar", pc.ConnConfig.User)
	assert.Equal(t, "s3cret", pc.ConnConfig.Password)
	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, "public", pc.ConnConfig.RuntimeParams["search_path"])
	assert.Equal(t, "rackradar-core", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Nil(t, pc.ConnConfig.TLSConfig, "sslmode defaults to disable")
}

func TestNewPoolNilConfig(t *testing.T) {
	pool, err := NewPool(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, pool)
}
