package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Simulation  SimulationConfig
	Market      MarketConfig
	Liquidation LiquidationConfig
	Wallet      WalletConfig
	Store       StoreConfig
	Server      ServerConfig
	Runtime     RuntimeConfig
}

type SimulationConfig struct {
	Seed uint64
}

type MarketConfig struct {
	Pair              string
	InitialPrice      float64
	InitialConfidence float64
	MinPrice          float64
	MaxPrice          float64
	MaxStep           float64
	PriceInterval     time.Duration
	VaultCount        int
	CollateralMin     float64
	CollateralMax     float64
	DebtMin           float64
	DebtMax           float64
}

type LiquidationConfig struct {
	EmitInterval       time.Duration
	EmitProbability    float64
	SettleDelay        time.Duration
	SuccessProbability float64
	FeedCapacity       int
	HistorySize        int
	KeeperInterval     time.Duration
	CoupleToVault      bool
	CloseFactorMin     float64
	CloseFactorMax     float64
	LiquidationBonus   float64
}

type WalletConfig struct {
	Network            string
	SnapshotKey        string
	ConnectDelay       time.Duration
	BalanceMin         float64
	BalanceMax         float64
	ConnectHistory     int
	RestoreHistory     int
	SettleMin          time.Duration
	SettleMax          time.Duration
	SuccessProbability float64
	RewardInterval     time.Duration
	RewardProbability  float64
	RewardMax          float64
}

type StoreConfig struct {
	Path string
}

type ServerConfig struct {
	Listen    string
	RateLimit float64
	Burst     int
}

type RuntimeConfig struct {
	Log LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Load читает config.yaml по path. Отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Не удалось прочитать конфигурацию: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VAULTSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("simulation.seed", 0)

	v.SetDefault("market.pair", "MAS/USD")
	v.SetDefault("market.initial_price", 45.23)
	v.SetDefault("market.initial_confidence", 0.995)
	v.SetDefault("market.min_price", 40.0)
	v.SetDefault("market.max_price", 50.0)
	v.SetDefault("market.max_step", 0.4)
	v.SetDefault("market.price_interval", "8s")
	v.SetDefault("market.vault_count", 15)
	v.SetDefault("market.collateral_min", 500.0)
	v.SetDefault("market.collateral_max", 2500.0)
	v.SetDefault("market.debt_min", 200.0)
	v.SetDefault("market.debt_max", 1000.0)

	v.SetDefault("liquidation.emit_interval", "15s")
	v.SetDefault("liquidation.emit_probability", 0.3)
	v.SetDefault("liquidation.settle_delay", "3s")
	v.SetDefault("liquidation.success_probability", 0.9)
	v.SetDefault("liquidation.feed_capacity", 8)
	v.SetDefault("liquidation.history_size", 8)
	v.SetDefault("liquidation.keeper_interval", "20s")
	v.SetDefault("liquidation.couple_to_vault", true)
	v.SetDefault("liquidation.close_factor_min", 0.1)
	v.SetDefault("liquidation.close_factor_max", 0.5)
	v.SetDefault("liquidation.liquidation_bonus", 0.1)

	v.SetDefault("wallet.network", "Massa Mainnet")
	v.SetDefault("wallet.snapshot_key", "massa-wallet-connected")
	v.SetDefault("wallet.connect_delay", "2500ms")
	v.SetDefault("wallet.balance_min", 2000.0)
	v.SetDefault("wallet.balance_max", 7000.0)
	v.SetDefault("wallet.connect_history", 12)
	v.SetDefault("wallet.restore_history", 8)
	v.SetDefault("wallet.settle_min", "2s")
	v.SetDefault("wallet.settle_max", "6s")
	v.SetDefault("wallet.success_probability", 0.95)
	v.SetDefault("wallet.reward_interval", "30s")
	v.SetDefault("wallet.reward_probability", 0.1)
	v.SetDefault("wallet.reward_max", 5.0)

	v.SetDefault("store.path", "data/wallet")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 10)

	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.file", "stdout")
	v.SetDefault("runtime.log.max_size", 50)
	v.SetDefault("runtime.log.max_backups", 3)
	v.SetDefault("runtime.log.max_age", 14)
	v.SetDefault("runtime.log.compress", false)
	return v
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Simulation = SimulationConfig{
		Seed: v.GetUint64("simulation.seed"),
	}

	cfg.Market = MarketConfig{
		Pair:              envSub(v, "market.pair"),
		InitialPrice:      v.GetFloat64("market.initial_price"),
		InitialConfidence: v.GetFloat64("market.initial_confidence"),
		MinPrice:          v.GetFloat64("market.min_price"),
		MaxPrice:          v.GetFloat64("market.max_price"),
		MaxStep:           v.GetFloat64("market.max_step"),
		PriceInterval:     v.GetDuration("market.price_interval"),
		VaultCount:        v.GetInt("market.vault_count"),
		CollateralMin:     v.GetFloat64("market.collateral_min"),
		CollateralMax:     v.GetFloat64("market.collateral_max"),
		DebtMin:           v.GetFloat64("market.debt_min"),
		DebtMax:           v.GetFloat64("market.debt_max"),
	}

	cfg.Liquidation = LiquidationConfig{
		EmitInterval:       v.GetDuration("liquidation.emit_interval"),
		EmitProbability:    v.GetFloat64("liquidation.emit_probability"),
		SettleDelay:        v.GetDuration("liquidation.settle_delay"),
		SuccessProbability: v.GetFloat64("liquidation.success_probability"),
		FeedCapacity:       v.GetInt("liquidation.feed_capacity"),
		HistorySize:        v.GetInt("liquidation.history_size"),
		KeeperInterval:     v.GetDuration("liquidation.keeper_interval"),
		CoupleToVault:      v.GetBool("liquidation.couple_to_vault"),
		CloseFactorMin:     v.GetFloat64("liquidation.close_factor_min"),
		CloseFactorMax:     v.GetFloat64("liquidation.close_factor_max"),
		LiquidationBonus:   v.GetFloat64("liquidation.liquidation_bonus"),
	}

	cfg.Wallet = WalletConfig{
		Network:            envSub(v, "wallet.network"),
		SnapshotKey:        envSub(v, "wallet.snapshot_key"),
		ConnectDelay:       v.GetDuration("wallet.connect_delay"),
		BalanceMin:         v.GetFloat64("wallet.balance_min"),
		BalanceMax:         v.GetFloat64("wallet.balance_max"),
		ConnectHistory:     v.GetInt("wallet.connect_history"),
		RestoreHistory:     v.GetInt("wallet.restore_history"),
		SettleMin:          v.GetDuration("wallet.settle_min"),
		SettleMax:          v.GetDuration("wallet.settle_max"),
		SuccessProbability: v.GetFloat64("wallet.success_probability"),
		RewardInterval:     v.GetDuration("wallet.reward_interval"),
		RewardProbability:  v.GetFloat64("wallet.reward_probability"),
		RewardMax:          v.GetFloat64("wallet.reward_max"),
	}

	cfg.Store = StoreConfig{
		Path: envSub(v, "store.path"),
	}

	cfg.Server = ServerConfig{
		Listen:    envSub(v, "server.listen"),
		RateLimit: v.GetFloat64("server.rate_limit"),
		Burst:     v.GetInt("server.burst"),
	}

	cfg.Runtime = RuntimeConfig{
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       envSub(v, "runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
	}

	return cfg
}

func (c *Config) validate() error {
	if c.Market.MinPrice >= c.Market.MaxPrice {
		return fmt.Errorf("Некорректный диапазон цены: %v >= %v", c.Market.MinPrice, c.Market.MaxPrice)
	}
	if c.Market.PriceInterval <= 0 || c.Liquidation.EmitInterval <= 0 || c.Liquidation.KeeperInterval <= 0 || c.Wallet.RewardInterval <= 0 {
		return fmt.Errorf("Интервалы таймеров должны быть положительными.")
	}
	if c.Market.VaultCount < 0 {
		return fmt.Errorf("Некорректное количество хранилищ: %d", c.Market.VaultCount)
	}
	if c.Liquidation.FeedCapacity <= 0 {
		return fmt.Errorf("Некорректная ёмкость ленты ликвидаций: %d", c.Liquidation.FeedCapacity)
	}
	if c.Wallet.SettleMax < c.Wallet.SettleMin {
		return fmt.Errorf("Некорректный диапазон подтверждения транзакций: %v < %v", c.Wallet.SettleMax, c.Wallet.SettleMin)
	}
	if strings.TrimSpace(c.Wallet.SnapshotKey) == "" {
		return fmt.Errorf("Пустой ключ снимка кошелька.")
	}
	return nil
}

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
