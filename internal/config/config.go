package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
// 注意：时间字段统一使用毫秒时间戳，金额字段使用字符串保存以避免精度丢失
type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
		Timezone string `yaml:"timezone" json:"timezone"` // 开奖日期与截止时间使用的时区，默认 America/Sao_Paulo
		NodeID   int64  `yaml:"node_id" json:"node_id"`   // snowflake 节点号（0~1023），多实例部署需唯一
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
		TxTimeoutMS        int    `yaml:"tx_timeout_ms" json:"tx_timeout_ms"`
		AutoMigrate        bool   `yaml:"auto_migrate" json:"auto_migrate"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint      string `yaml:"endpoint" json:"endpoint"`
		ConsumerGroup string `yaml:"consumer_group" json:"consumer_group"`
		TopicEvents   string `yaml:"topic_events" json:"topic_events"`   // outbox 事件主题
		TopicResults  string `yaml:"topic_results" json:"topic_results"` // 开奖结果发布主题（inbox）
		AccessKey     string `yaml:"access_key" json:"access_key"`
		SecretKey     string `yaml:"secret_key" json:"secret_key"`
	} `yaml:"rocketmq" json:"rocketmq"`

	Kafka struct {
		Brokers      []string `yaml:"brokers" json:"brokers"`
		Topic        string   `yaml:"topic" json:"topic"`                 // outbox 事件主题
		ResultsTopic string   `yaml:"results_topic" json:"results_topic"` // 开奖推送主题（inbox）
		GroupID      string   `yaml:"group_id" json:"group_id"`
	} `yaml:"kafka" json:"kafka"`

	Observability struct {
		EnableProm bool   `yaml:"enable_prom" json:"enable_prom"`
		PromAddr   string `yaml:"prom_addr" json:"prom_addr"`
	} `yaml:"observability" json:"observability"`

	Auth struct {
		JWT struct {
			Secret         string `yaml:"secret" json:"secret"`
			AccessTokenTTL int    `yaml:"access_token_ttl" json:"access_token_ttl"` // 秒
			Issuer         string `yaml:"issuer" json:"issuer"`
		} `yaml:"jwt" json:"jwt"`
		Admin struct {
			Enabled bool   `yaml:"enabled" json:"enabled"`
			Token   string `yaml:"token" json:"token"`
		} `yaml:"admin" json:"admin"`
	} `yaml:"auth" json:"auth"`

	Webhook struct {
		Providers      []WebhookProvider `yaml:"providers" json:"providers"`
		RetentionHours int               `yaml:"retention_hours" json:"retention_hours"` // 0 表示不清理
	} `yaml:"webhook" json:"webhook"`

	Betting struct {
		MinBet                   string           `yaml:"min_bet" json:"min_bet"`
		MaxBet                   string           `yaml:"max_bet" json:"max_bet"`
		IdempotencyRetentionHour int              `yaml:"idempotency_retention_hours" json:"idempotency_retention_hours"`
		Odds                     map[string]int64 `yaml:"odds" json:"odds"` // 覆盖默认赔率表
	} `yaml:"betting" json:"betting"`

	Settlement struct {
		PageSize int `yaml:"page_size" json:"page_size"` // 扫描 open 注单的分页大小
	} `yaml:"settlement" json:"settlement"`

	RateLimit struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		ByIP    struct {
			RequestsPerWindow int `yaml:"requests_per_window" json:"requests_per_window"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_ip" json:"by_ip"`
		ByUser struct {
			RequestsPerWindow int `yaml:"requests_per_window" json:"requests_per_window"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_user" json:"by_user"`
	} `yaml:"rate_limit" json:"rate_limit"`

	// 动态配置：功能开关与业务阈值
	FeatureFlags map[string]bool  `yaml:"feature_flags" json:"feature_flags"`
	Thresholds   map[string]int64 `yaml:"thresholds" json:"thresholds"`
}

// WebhookProvider 支付渠道回调签名配置
type WebhookProvider struct {
	Name   string `yaml:"name" json:"name"`
	Secret string `yaml:"secret" json:"secret"`
}

// WebhookSecret 返回渠道签名密钥，未配置时返回空串
func (c *Config) WebhookSecret(provider string) string {
	if c == nil {
		return ""
	}
	for _, p := range c.Webhook.Providers {
		if strings.EqualFold(p.Name, provider) {
			return p.Secret
		}
	}
	return ""
}

// TxTimeout 单个事务的超时时间
func (c *Config) TxTimeout() time.Duration {
	if c == nil || c.Database.TxTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Database.TxTimeoutMS) * time.Millisecond
}

// Location 业务时区
func (c *Config) Location() *time.Location {
	name := "America/Sao_Paulo"
	if c != nil && strings.TrimSpace(c.Server.Timezone) != "" {
		name = strings.TrimSpace(c.Server.Timezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load 按 Nacos → Etcd → 本地文件 的顺序加载配置
// 支持以下环境变量：
//   - NACOS_SERVER_ADDR / NACOS_DATA_ID / NACOS_NAMESPACE / NACOS_GROUP
//   - ETCD_ENDPOINTS / ETCD_CONFIG_KEY
//   - CONFIG_FILE: 本地配置文件（兜底，默认 config/dev.yaml）
func Load(ctx context.Context) (*Config, error) {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) != "" {
		cfg, err := loadFromNacos()
		if err == nil {
			fmt.Printf("[Config] loaded from nacos: dataId=%s\n", os.Getenv("NACOS_DATA_ID"))
			return cfg, nil
		}
		fmt.Printf("[Config] nacos load failed, falling back: error=%v\n", err)
	}

	if strings.TrimSpace(os.Getenv("ETCD_ENDPOINTS")) != "" {
		cfg, err := loadFromEtcd(ctx)
		if err == nil {
			fmt.Printf("[Config] loaded from etcd: key=%s\n", os.Getenv("ETCD_CONFIG_KEY"))
			return cfg, nil
		}
		fmt.Printf("[Config] etcd load failed, falling back: error=%v\n", err)
	}

	configFile := getEnvOrDefault("CONFIG_FILE", "config/dev.yaml")
	cfg, err := loadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config (%s): %w", configFile, err)
	}
	fmt.Printf("[Config] loaded from file: %s\n", configFile)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// decode 按扩展名解析，未知扩展名先试 YAML 再试 JSON
func decode(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if err2 := json.Unmarshal(data, &cfg); err2 != nil {
				return nil, fmt.Errorf("parse config (yaml_err=%v, json_err=%v)", err, err2)
			}
		}
	}
	return &cfg, nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	ext := filepath.Ext(filePath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	return decode(data, ext)
}

func loadFromEtcd(ctx context.Context) (*Config, error) {
	endpoints := strings.Split(os.Getenv("ETCD_ENDPOINTS"), ",")
	for i := range endpoints {
		endpoints[i] = strings.TrimSpace(endpoints[i])
	}
	if len(endpoints) == 0 || endpoints[0] == "" {
		return nil, errors.New("empty ETCD_ENDPOINTS")
	}
	key := strings.TrimSpace(os.Getenv("ETCD_CONFIG_KEY"))
	if key == "" {
		return nil, errors.New("ETCD_CONFIG_KEY not set")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect failed: %w", err)
	}
	defer cli.Close()

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(ctx2, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key not found: %s", key)
	}
	return decode(resp.Kvs[0].Value, filepath.Ext(key))
}

type nacosTarget struct {
	dataID string
	group  string
}

// newNacosClient 根据环境变量创建 Nacos 配置客户端
func newNacosClient() (config_client.IConfigClient, nacosTarget, error) {
	var target nacosTarget
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return nil, target, errors.New("NACOS_SERVER_ADDR not set")
	}
	target.dataID = strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if target.dataID == "" {
		return nil, target, errors.New("NACOS_DATA_ID not set")
	}
	target.group = getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")

	timeoutMS := 5000
	if t, err := strconv.Atoi(strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS"))); err == nil && t > 0 {
		timeoutMS = t
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok {
			return nil, target, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, target, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", portStr)
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{IpAddr: host, Port: port})
	}
	if len(serverConfigs) == 0 {
		return nil, target, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         getEnvOrDefault("NACOS_NAMESPACE", "public"),
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if u, p := strings.TrimSpace(os.Getenv("NACOS_USERNAME")), strings.TrimSpace(os.Getenv("NACOS_PASSWORD")); u != "" && p != "" {
		clientConfig.Username = u
		clientConfig.Password = p
	}

	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, target, fmt.Errorf("create nacos config client: %w", err)
	}
	return client, target, nil
}

func loadFromNacos() (*Config, error) {
	client, target, err := newNacosClient()
	if err != nil {
		return nil, err
	}
	content, err := client.GetConfig(vo.ConfigParam{DataId: target.dataID, Group: target.group})
	if err != nil {
		return nil, fmt.Errorf("get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", target.dataID, target.group)
	}
	return decode([]byte(content), filepath.Ext(target.dataID))
}
