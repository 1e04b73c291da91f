// SPDX-License-Identifier: MIT

package channels

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile fills a StaticDirectory from the channel list the ingestion
// pipeline writes. A missing file yields an empty directory.
func LoadFile(path string) (*StaticDirectory, error) {
	d := NewStaticDirectory()
	data, err := os.ReadFile(path) // #nosec G304 -- operator-owned data path
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("channels: read %s: %w", path, err)
	}
	var chans []Channel
	if err := json.Unmarshal(data, &chans); err != nil {
		return nil, fmt.Errorf("channels: parse %s: %w", path, err)
	}
	d.Replace(chans)
	return d, nil
}
