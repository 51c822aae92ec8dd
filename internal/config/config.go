package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	CryptoPay   CryptoPayConfig   `mapstructure:"crypto_pay"`
	SmsActivate SmsActivateConfig `mapstructure:"sms_activate"`
	Stars       StarsConfig       `mapstructure:"stars"`
	Business    BusinessConfig    `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// CryptoPayConfig Crypto Pay 支付渠道配置
type CryptoPayConfig struct {
	BaseURL             string  `mapstructure:"base_url"`
	Token               string  `mapstructure:"token"`
	Asset               string  `mapstructure:"asset"`
	UsdtRubRate         float64 `mapstructure:"usdt_rub_rate"` // 固定汇率，启动时读入，运行期只读
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"`
}

// SmsActivateConfig 短信接码平台配置
type SmsActivateConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

// StarsConfig Telegram Stars 支付渠道配置
type StarsConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxStars int  `mapstructure:"max_stars"`
	Stars    int  `mapstructure:"stars"` // 汇率：stars 颗星 = rub 卢布
	Rub      int  `mapstructure:"rub"`
}

type BusinessConfig struct {
	ServiceFee            float64 `mapstructure:"service_fee"`  // 卖价加成比例
	ReferralFee           float64 `mapstructure:"referral_fee"` // 充值返佣比例
	PaymentTimeoutMinutes int     `mapstructure:"payment_timeout_minutes"`
	OrderHorizonMinutes   int     `mapstructure:"order_horizon_minutes"` // SMS 订单轮询时间窗
	CancelMinAgeSeconds   int     `mapstructure:"cancel_min_age_seconds"`
	MaxRetryCount         int     `mapstructure:"max_retry_count"`
	AdminIDs              []int64 `mapstructure:"admin_ids"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	return config
}
