// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/crypto/sha3"
)

// NotaryHash fingerprints a raffle result so replays can be told apart
// from conflicting results. Winner and prize order do not matter.
func NotaryHash(sprintID string, winners []string, prizes []Prize, drawnAt time.Time) string {
	w := append([]string(nil), winners...)
	sort.Strings(w)
	p := append([]Prize(nil), prizes...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].UserID != p[j].UserID {
			return p[i].UserID < p[j].UserID
		}
		return p[i].Name < p[j].Name
	})

	canonical, _ := json.Marshal(struct {
		SprintID string   `json:"sprintId"`
		Winners  []string `json:"winners"`
		Prizes   []Prize  `json:"prizes"`
		DrawnAt  string   `json:"drawnAt"`
	}{sprintID, w, p, drawnAt.UTC().Format(time.RFC3339Nano)})

	sum := sha3.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
