package idgen

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"

	"github.com/example/food-order-service/internal/domain"
)

// Snowflake — генератор id заказов: время, номер узла и счётчик внутри
// миллисекунды. Строки монотонны в пределах узла.
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, errors.Wrapf(err, "snowflake node %d", node)
	}
	return &Snowflake{node: n}, nil
}

func (g *Snowflake) NewOrderID() string {
	return g.node.Generate().String()
}

var _ domain.OrderIDGenerator = (*Snowflake)(nil)
