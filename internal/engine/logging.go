package engine

import (
	"github.com/sirupsen/logrus"
)

func (e *Engine) logEntry() *logrus.Entry {
	entry := e.log.WithComponent("engine")
	if e.cfg != nil && e.cfg.Market.Pair != "" {
		entry = entry.WithField("pair", e.cfg.Market.Pair)
	}
	return entry
}
