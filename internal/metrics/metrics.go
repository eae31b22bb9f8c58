package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vaultsim/internal/feed"
	"vaultsim/internal/models"
)

type Metrics struct {
	registry *prometheus.Registry

	published     *prometheus.CounterVec
	dropped       prometheus.Counter
	requests      *prometheus.CounterVec
	oraclePrice   prometheus.Gauge
	oracleConf    prometheus.Gauge
	vaults        prometheus.Gauge
	liquidatable  prometheus.Gauge
	collateral    prometheus.Gauge
	debt          prometheus.Gauge
	collatRatio   prometheus.Gauge
	liquidations  *prometheus.GaugeVec
	keeperTotal   prometheus.Gauge
	keeperRate    prometheus.Gauge
	keeperActive  prometheus.Gauge
	walletOn      prometheus.Gauge
	walletBalance *prometheus.GaugeVec
	transactions  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultsim_events_published_total",
			Help: "Snapshots published per topic.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultsim_events_dropped_total",
			Help: "Snapshots dropped because the event queue was full.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultsim_api_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		oraclePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_oracle_price",
			Help: "Current simulated oracle price.",
		}),
		oracleConf: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_oracle_confidence",
			Help: "Confidence of the current oracle price.",
		}),
		vaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_vaults",
			Help: "Number of open vaults.",
		}),
		liquidatable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_vaults_liquidatable",
			Help: "Number of vaults below the liquidation threshold.",
		}),
		collateral: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_protocol_collateral",
			Help: "Total collateral locked in vaults.",
		}),
		debt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_protocol_debt",
			Help: "Total debt issued by vaults.",
		}),
		collatRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_protocol_collateralization_ratio",
			Help: "Protocol-wide collateral value over debt.",
		}),
		liquidations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaultsim_liquidations",
			Help: "Liquidation feed entries by status.",
		}, []string{"status"}),
		keeperTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_keeper_liquidations",
			Help: "Liquidations executed by keepers.",
		}),
		keeperRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_keeper_success_rate",
			Help: "Keeper success rate in percent.",
		}),
		keeperActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_keepers_active",
			Help: "Active keepers.",
		}),
		walletOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultsim_wallet_connected",
			Help: "1 while a wallet is connected.",
		}),
		walletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaultsim_wallet_balance",
			Help: "Wallet balance per asset.",
		}, []string{"asset"}),
		transactions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaultsim_transactions",
			Help: "Ledger transactions by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.published,
		m.dropped,
		m.requests,
		m.oraclePrice,
		m.oracleConf,
		m.vaults,
		m.liquidatable,
		m.collateral,
		m.debt,
		m.collatRatio,
		m.liquidations,
		m.keeperTotal,
		m.keeperRate,
		m.keeperActive,
		m.walletOn,
		m.walletBalance,
		m.transactions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Publish(e feed.Event) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(e.Topic)).Inc()

	switch e.Topic {
	case feed.TopicVaults:
		n := 0
		for _, v := range e.Vaults {
			if v.IsLiquidatable {
				n++
			}
		}
		m.vaults.Set(float64(len(e.Vaults)))
		m.liquidatable.Set(float64(n))
	case feed.TopicOracle:
		if e.Oracle != nil {
			m.oraclePrice.Set(e.Oracle.Price)
			m.oracleConf.Set(e.Oracle.Confidence)
		}
	case feed.TopicProtocol:
		if e.Protocol != nil {
			m.collateral.Set(e.Protocol.TotalCollateral)
			m.debt.Set(e.Protocol.TotalDebt)
			m.collatRatio.Set(e.Protocol.CollateralizationRatio)
		}
	case feed.TopicLiquidations:
		counts := map[models.LiquidationStatus]int{
			models.LiquidationPending:   0,
			models.LiquidationCompleted: 0,
			models.LiquidationFailed:    0,
		}
		for _, ev := range e.Liquidations {
			counts[ev.Status]++
		}
		for status, n := range counts {
			m.liquidations.WithLabelValues(string(status)).Set(float64(n))
		}
	case feed.TopicKeepers:
		if e.Keepers != nil {
			m.keeperTotal.Set(float64(e.Keepers.TotalLiquidations))
			m.keeperRate.Set(e.Keepers.SuccessRate)
			m.keeperActive.Set(float64(e.Keepers.ActiveKeepers))
		}
	case feed.TopicWallet:
		if e.Wallet != nil {
			connected := 0.0
			if e.Wallet.IsConnected {
				connected = 1
			}
			m.walletOn.Set(connected)
			m.walletBalance.WithLabelValues(string(models.AssetMAS)).Set(e.Wallet.Balance)
			m.walletBalance.WithLabelValues(string(models.AssetZMASD)).Set(e.Wallet.StableBalance)
		}
	case feed.TopicTransactions:
		counts := map[models.TxStatus]int{
			models.TxStatusPending:   0,
			models.TxStatusConfirmed: 0,
			models.TxStatusFailed:    0,
		}
		for _, tx := range e.Transactions {
			counts[tx.Status]++
		}
		for status, n := range counts {
			m.transactions.WithLabelValues(string(status)).Set(float64(n))
		}
	}
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
