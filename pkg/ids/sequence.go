// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Sequencer hands out time ordered identifiers for append-only records
// such as bids and ad views. IDs from one node sort in creation order.
type Sequencer struct {
	node *snowflake.Node
}

// NewSequencer creates a sequencer for the given node number (0-1023).
func NewSequencer(node int64) (*Sequencer, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &Sequencer{node: n}, nil
}

// MustSequencer is NewSequencer for static node numbers.
func MustSequencer(node int64) *Sequencer {
	s, err := NewSequencer(node)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next identifier as a decimal string.
func (s *Sequencer) Next() string {
	return s.node.Generate().String()
}

// NextInt returns the next identifier as an integer.
func (s *Sequencer) NextInt() int64 {
	return s.node.Generate().Int64()
}
