// Package runid issues time-ordered run record ids.
package runid

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator is safe for concurrent use.
type Generator struct {
	node *snowflake.Node
}

// New returns a generator for nodeID (0..1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next returns a new id in base-10 form.
func (g *Generator) Next() string {
	return g.node.Generate().String()
}
