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

package agent

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/carverauto/rackradar/pkg/inventory"
)

// arpFlagComplete is ATF_COM: the entry has a resolved hardware address.
const arpFlagComplete = 0x2

// Neighbour is one resolved entry of the kernel neighbour table.
type Neighbour struct {
	IP         string
	MACAddress string
	Device     string
}

// NeighbourTable lists the currently resolved neighbours.
type NeighbourTable interface {
	Neighbours() ([]Neighbour, error)
}

// ProcARPTable reads a Linux /proc/net/arp style file.
type ProcARPTable struct {
	Path string
}

func (t ProcARPTable) Neighbours() ([]Neighbour, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("open neighbour table: %w", err)
	}
	defer f.Close()

	return ParseARPTable(f)
}

// ParseARPTable parses /proc/net/arp content. Incomplete entries and
// entries with a zero or unparseable hardware address are skipped.
func ParseARPTable(r io.Reader) ([]Neighbour, error) {
	sc := bufio.NewScanner(r)

	var out []Neighbour

	header := true

	for sc.Scan() {
		if header {
			header = false

			continue
		}

		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}

		flags, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if err != nil || flags&arpFlagComplete == 0 {
			continue
		}

		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}

		mac, err := inventory.NormalizeMAC(fields[3])
		if err != nil || mac == "00:00:00:00:00:00" {
			continue
		}

		out = append(out, Neighbour{IP: addr.String(), MACAddress: mac, Device: fields[5]})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read neighbour table: %w", err)
	}

	return out, nil
}
