package feed

import (
	"time"

	"vaultsim/internal/models"
)

type Topic string

const (
	TopicVaults       Topic = "vaults"
	TopicOracle       Topic = "oracle"
	TopicProtocol     Topic = "protocol"
	TopicLiquidations Topic = "liquidations"
	TopicKeepers      Topic = "keepers"
	TopicWallet       Topic = "wallet"
	TopicTransactions Topic = "transactions"
)

var Topics = []Topic{
	TopicVaults,
	TopicOracle,
	TopicProtocol,
	TopicLiquidations,
	TopicKeepers,
	TopicWallet,
	TopicTransactions,
}

func ParseTopic(s string) (Topic, bool) {
	for _, t := range Topics {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Event struct {
	Topic        Topic
	Time         time.Time
	Vaults       []models.Vault
	Oracle       *models.OraclePrice
	Protocol     *models.ProtocolStats
	Liquidations []models.LiquidationEvent
	Keepers      *models.KeeperStats
	Wallet       *models.WalletState
	Transactions []models.Transaction
}

func (e Event) Payload() any {
	switch e.Topic {
	case TopicVaults:
		return e.Vaults
	case TopicOracle:
		return e.Oracle
	case TopicProtocol:
		return e.Protocol
	case TopicLiquidations:
		return e.Liquidations
	case TopicKeepers:
		return e.Keepers
	case TopicWallet:
		return e.Wallet
	case TopicTransactions:
		return e.Transactions
	}
	return nil
}

type Publisher interface {
	Publish(Event)
}

type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) {
	f(e)
}

var Nop Publisher = PublisherFunc(func(Event) {})

type multi []Publisher

func (m multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

func Multi(publishers ...Publisher) Publisher {
	out := make(multi, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
