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
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/rackradar/pkg/inventory"
	"github.com/carverauto/rackradar/pkg/models"
)

// Directory is an inventory.Directory backed by the interfaces and
// ip_addresses tables.
type Directory struct {
	db Querier
}

var _ inventory.Directory = (*Directory)(nil)

func NewDirectory(db Querier) *Directory {
	return &Directory{db: db}
}

func (d *Directory) MACIsConfigured(ctx context.Context, mac string) (bool, error) {
	normalized, err := inventory.NormalizeMAC(mac)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := d.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM interfaces WHERE mac_address = $1)`, normalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: mac lookup: %w", ErrFailedToQuery, err)
	}

	return exists, nil
}

func (d *Directory) IPIsConfigured(ctx context.Context, ip netip.Addr, within *netip.Prefix) (bool, error) {
	ip = ip.Unmap()

	if within != nil && !within.Contains(ip) {
		return false, nil
	}

	var exists bool
	if err := d.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ip_addresses WHERE ip = $1::inet)`, ip.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: ip lookup: %w", ErrFailedToQuery, err)
	}

	return exists, nil
}

// SyncController replaces a controller's interfaces and addresses with the
// reported set in one transaction.
func (d *Directory) SyncController(ctx context.Context, systemID string, ifaces []models.ConfiguredInterface) error {
	type address struct {
		iface  string
		prefix netip.Prefix
	}

	macs := make(map[string]string, len(ifaces))
	addrs := make([]address, 0)

	for _, iface := range ifaces {
		if iface.MACAddress != "" {
			mac, err := inventory.NormalizeMAC(iface.MACAddress)
			if err != nil {
				return err
			}

			macs[iface.Name] = mac
		}

		for _, raw := range iface.Addresses {
			p, err := inventory.ParseAssigned(raw)
			if err != nil {
				return err
			}

			addrs = append(addrs, address{iface: iface.Name, prefix: p})
		}
	}

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin sync: %w", ErrFailedToWrite, err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM interfaces WHERE system_id = $1`, systemID); err != nil {
		return fmt.Errorf("%w: clear interfaces for %s: %w", ErrFailedToWrite, systemID, err)
	}

	batch := &pgx.Batch{}

	for _, iface := range ifaces {
		var mac *string
		if m, ok := macs[iface.Name]; ok {
			mac = &m
		}

		batch.Queue(`INSERT INTO interfaces (system_id, name, mac_address) VALUES ($1, $2, $3)
			ON CONFLICT (system_id, name) DO UPDATE SET mac_address = EXCLUDED.mac_address`,
			systemID, iface.Name, mac)
	}

	for _, a := range addrs {
		batch.Queue(`INSERT INTO ip_addresses (system_id, interface_name, ip, prefix_len)
			VALUES ($1, $2, $3::inet, $4) ON CONFLICT DO NOTHING`,
			systemID, a.iface, a.prefix.Addr().String(), a.prefix.Bits())
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: sync interfaces for %s: %w", ErrFailedToWrite, systemID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit sync for %s: %w", ErrFailedToWrite, systemID, err)
	}

	return nil
}
