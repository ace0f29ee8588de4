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
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/rackradar/pkg/discovery"
	"github.com/carverauto/rackradar/pkg/models"
)

// Querier is the subset of *pgxpool.Pool the stores use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const upsertNeighbourSQL = `
INSERT INTO neighbours (
    discovery_id, system_id, interface_name, interface_id, ip, mac_address, first_seen, last_seen
) VALUES ($1, $2, $3, $4, $5::inet, $6, $7, $7)
ON CONFLICT (system_id, interface_name, ip, mac_address) DO UPDATE SET
    last_seen = GREATEST(neighbours.last_seen, EXCLUDED.last_seen),
    interface_id = CASE WHEN EXCLUDED.interface_id <> 0
        THEN EXCLUDED.interface_id ELSE neighbours.interface_id END
RETURNING discovery_id::text, interface_id, first_seen, last_seen,
    COALESCE((SELECT m.hostname FROM mdns m
        WHERE m.system_id = neighbours.system_id
          AND m.interface_name = neighbours.interface_name
          AND m.ip = neighbours.ip), '')`

const upsertMDNSSQL = `
INSERT INTO mdns (system_id, interface_name, ip, hostname, first_seen, last_seen)
VALUES ($1, $2, $3::inet, $4, $5, $5)
ON CONFLICT (system_id, interface_name, ip) DO UPDATE SET
    hostname = CASE WHEN EXCLUDED.last_seen >= mdns.last_seen
        THEN EXCLUDED.hostname ELSE mdns.hostname END,
    last_seen = GREATEST(mdns.last_seen, EXCLUDED.last_seen)`

const selectDiscoverySQL = `
SELECT n.discovery_id::text, n.system_id, n.interface_name, n.interface_id,
    host(n.ip), n.mac_address, COALESCE(m.hostname, ''), n.first_seen, n.last_seen
FROM neighbours n
LEFT JOIN mdns m
    ON m.system_id = n.system_id AND m.interface_name = n.interface_name AND m.ip = n.ip`

const orderDiscoverySQL = `
ORDER BY n.last_seen DESC, n.system_id COLLATE "C", n.interface_name COLLATE "C",
    host(n.ip) COLLATE "C", n.mac_address COLLATE "C"`

const (
	unknownMACClause = `NOT EXISTS (SELECT 1 FROM interfaces i WHERE i.mac_address = n.mac_address)`
	unknownIPClause  = `NOT EXISTS (SELECT 1 FROM ip_addresses a WHERE a.ip = n.ip)`
)

// DiscoveryStore is a discovery.Store on Postgres. Unknown-* filters are
// anti-joins against the interfaces and ip_addresses tables.
type DiscoveryStore struct {
	db Querier
}

var _ discovery.Store = (*DiscoveryStore)(nil)

func NewDiscoveryStore(db Querier) *DiscoveryStore {
	return &DiscoveryStore{db: db}
}

func (s *DiscoveryStore) UpsertNeighbour(ctx context.Context, obs *models.NeighbourObservation) (*models.Discovery, error) {
	o := *obs
	if err := discovery.NormalizeNeighbour(&o); err != nil {
		return nil, err
	}

	d := &models.Discovery{
		Interface:  o.Interface,
		IP:         o.IP,
		MACAddress: o.MACAddress,
	}

	err := s.db.QueryRow(ctx, upsertNeighbourSQL,
		discovery.DiscoveryID(o.Interface, o.IP, o.MACAddress),
		o.Interface.SystemID,
		o.Interface.Name,
		o.Interface.ID,
		o.IP,
		o.MACAddress,
		o.ObservedAt,
	).Scan(&d.DiscoveryID, &d.Interface.ID, &d.FirstSeen, &d.LastSeen, &d.Hostname)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert neighbour: %w", ErrFailedToWrite, err)
	}

	d.FirstSeen = d.FirstSeen.UTC()
	d.LastSeen = d.LastSeen.UTC()

	return d, nil
}

func (s *DiscoveryStore) UpsertMDNS(ctx context.Context, obs *models.MDNSObservation) error {
	o := *obs
	if err := discovery.NormalizeMDNS(&o); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, upsertMDNSSQL,
		o.Interface.SystemID, o.Interface.Name, o.IP, o.Hostname, o.ObservedAt); err != nil {
		return fmt.Errorf("%w: upsert mdns: %w", ErrFailedToWrite, err)
	}

	return nil
}

func (s *DiscoveryStore) Query(ctx context.Context, filter discovery.Filter) ([]*models.Discovery, error) {
	var where string

	switch filter {
	case discovery.FilterAll:
	case discovery.FilterUnknownMAC:
		where = " WHERE " + unknownMACClause
	case discovery.FilterUnknownIP:
		where = " WHERE " + unknownIPClause
	case discovery.FilterUnknownIPAndMAC:
		where = " WHERE " + unknownMACClause + " AND " + unknownIPClause
	default:
		return nil, fmt.Errorf("%w: %q", discovery.ErrInvalidFilter, string(filter))
	}

	return s.list(ctx, selectDiscoverySQL+where+orderDiscoverySQL)
}

func (s *DiscoveryStore) Get(ctx context.Context, discoveryID string) (*models.Discovery, error) {
	return s.one(ctx, selectDiscoverySQL+` WHERE n.discovery_id::text = $1`, strings.ToLower(discoveryID))
}

// GetBySpecifier returns the most recently seen record matching spec.
func (s *DiscoveryStore) GetBySpecifier(ctx context.Context, spec discovery.Specifier) (*models.Discovery, error) {
	var where string

	switch spec.Kind {
	case discovery.SpecifierID:
		return s.Get(ctx, spec.Value)
	case discovery.SpecifierIP:
		where = ` WHERE n.ip = $1::inet`
	case discovery.SpecifierMAC:
		where = ` WHERE n.mac_address = $1`
	case discovery.SpecifierHostname:
		where = ` WHERE lower(m.hostname) = lower($1)`
	default:
		return nil, fmt.Errorf("%w: %s", discovery.ErrInvalidSpecifier, spec)
	}

	return s.one(ctx, selectDiscoverySQL+where+orderDiscoverySQL+` LIMIT 1`, spec.Value)
}

// Clear deletes every row in scope inside one transaction. The SHARE ROW
// EXCLUSIVE lock waits out in-flight upserts and blocks new ones until commit.
func (s *DiscoveryStore) Clear(ctx context.Context, scope discovery.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	var tables []string

	switch scope {
	case discovery.ScopeAll:
		tables = []string{"neighbours", "mdns"}
	case discovery.ScopeNeighbours:
		tables = []string{"neighbours"}
	case discovery.ScopeMDNS:
		tables = []string{"mdns"}
	}

	removed := 0

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE `+strings.Join(tables, ", ")+` IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}

		for _, table := range tables {
			tag, err := tx.Exec(ctx, `DELETE FROM `+table)
			if err != nil {
				return err
			}

			removed += int(tag.RowsAffected())
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: clear %s: %w", ErrFailedToWrite, scope, err)
	}

	return removed, nil
}

func (s *DiscoveryStore) DeleteForInterface(ctx context.Context, ref models.InterfaceRef) (int, error) {
	removed := 0

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"neighbours", "mdns"} {
			tag, err := tx.Exec(ctx,
				`DELETE FROM `+table+` WHERE system_id = $1 AND interface_name = $2`,
				ref.SystemID, ref.Name)
			if err != nil {
				return err
			}

			removed += int(tag.RowsAffected())
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete interface %s/%s: %w", ErrFailedToWrite, ref.SystemID, ref.Name, err)
	}

	return removed, nil
}

func (s *DiscoveryStore) list(ctx context.Context, sql string, args ...any) ([]*models.Discovery, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	out := make([]*models.Discovery, 0)

	for rows.Next() {
		d, err := scanDiscovery(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

func (s *DiscoveryStore) one(ctx context.Context, sql string, args ...any) (*models.Discovery, error) {
	d, err := scanDiscovery(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, discovery.ErrNotFound
	}

	return d, err
}

func (s *DiscoveryStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)

		return err
	}

	return tx.Commit(ctx)
}

func scanDiscovery(row pgx.Row) (*models.Discovery, error) {
	var d models.Discovery

	err := row.Scan(
		&d.DiscoveryID,
		&d.Interface.SystemID,
		&d.Interface.Name,
		&d.Interface.ID,
		&d.IP,
		&d.MACAddress,
		&d.Hostname,
		&d.FirstSeen,
		&d.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("%w: discovery: %w", ErrFailedToScan, err)
	}

	d.FirstSeen = d.FirstSeen.UTC()
	d.LastSeen = d.LastSeen.UTC()

	return &d, nil
}
