package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Ledger LedgerConfig `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// CallbackToken 受信外部调用方（支付网关回调/运营操作）的校验令牌
	CallbackToken string `mapstructure:"callback_token"`
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

type LedgerConfig struct {
	// TransactionTimeoutMinutes 处理中交易的存活时限，超时任务自动取消
	TransactionTimeoutMinutes int `mapstructure:"transaction_timeout_minutes"`
	// MaxRetryCount outbox 消息投递的最大重试次数
	MaxRetryCount int `mapstructure:"max_retry_count"`
	// ThresholdCacheSeconds 阈值策略的缓存时长
	ThresholdCacheSeconds int `mapstructure:"threshold_cache_seconds"`
	// DefaultMaxServiceChargeDebt criteria 表缺失时的提现阈值兜底值
	DefaultMaxServiceChargeDebt int64 `mapstructure:"default_max_service_charge_debt"`
}

var GlobalConfig *Config

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

	GlobalConfig = config
	return config
}
