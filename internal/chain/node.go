package chain

import (
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/repository/memory"
)

// NewMemoryContract builds a contract over in-memory storage with its own
// event bus.
func NewMemoryContract(blockTime time.Duration, log logrus.FieldLogger) *Contract {
	return NewContract(memory.NewStore(), NewEventBus(log), blockTime, log)
}
