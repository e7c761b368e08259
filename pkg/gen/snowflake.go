package gen

import (
	"ledgersync/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(ProvideSnowflakeNode))

type SnowflakeNode struct {
	node *snowflake.Node
}

func NewSnowflakeNode(nodeID int64) (*SnowflakeNode, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &SnowflakeNode{node: node}, nil
}

func ProvideSnowflakeNode(cfg *config.Config) (*SnowflakeNode, error) {
	return NewSnowflakeNode(cfg.NodeID)
}

func (s *SnowflakeNode) GenerateID() snowflake.ID {
	return s.node.Generate()
}
