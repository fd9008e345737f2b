package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Conf 当前进程加载的配置，Load 成功后赋值
var Conf RoomServerConfiguration

type BaseConfig struct {
	ID         string `mapstructure:"id"`
	ServerType string `mapstructure:"serverType"`
	MetricPort int    `mapstructure:"metricPort"`
}

// RoomServerConfiguration 对战房间节点的配置
type RoomServerConfiguration struct {
	BaseConfig   `mapstructure:",squash"`
	DatabaseConf `mapstructure:"database"`
	JwtConf      `mapstructure:"jwt"`
	EtcdConf     `mapstructure:"etcd"`
	LogConf      `mapstructure:"log"`
	NatsConfig   `mapstructure:"nats"`
	RoomConf     `mapstructure:"room"`
	ServerConf   `mapstructure:"server"`
	LimiterConf  `mapstructure:"limiter"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type EtcdConf struct {
	Addrs       []string       `mapstructure:"addrs"`
	RWTimeout   int            `mapstructure:"rwTimeout"`
	DialTimeout int            `mapstructure:"dialTimeout"`
	Register    RegisterServer `mapstructure:"register"`
}

type RegisterServer struct {
	Addr    string `mapstructure:"addr"`
	Domain  string `mapstructure:"domain"`
	Version string `mapstructure:"version"`
	Weight  int    `mapstructure:"weight"`
	Ttl     int    `mapstructure:"ttl"`
}

type JwtConf struct {
	Secret        string `mapstructure:"secret"`
	Expire        int    `mapstructure:"expire"`
	AllowTestPath bool   `mapstructure:"allowTestPath"`
	// 验证过的 token 在本地缓存的秒数，0 表示不缓存
	CacheSeconds int `mapstructure:"cacheSeconds"`
}

// DatabaseConf Driver 取值 mongo / postgres / memory，决定快照存储
type DatabaseConf struct {
	Driver       string       `mapstructure:"driver"`
	MongoConf    MongoConf    `mapstructure:"mongo"`
	RedisConf    RedisConf    `mapstructure:"redis"`
	PostgresConf PostgresConf `mapstructure:"postgres"`
}

type MongoConf struct {
	Url         string `mapstructure:"url"`
	Db          string `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MinPoolSize int    `mapstructure:"minPoolSize"`
	MaxPoolSize int    `mapstructure:"maxPoolSize"`
}

type RedisConf struct {
	Addr         string   `mapstructure:"addr"`
	ClusterAddrs []string `mapstructure:"clusterAddrs"`
	Password     string   `mapstructure:"password"`
	PoolSize     int      `mapstructure:"poolSize"`
	MinIdleConns int      `mapstructure:"minIdleConns"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
}

type PostgresConf struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"maxConns"`
	MinConns        int    `mapstructure:"minConns"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"` // 秒
}

type NatsConfig struct {
	URL string `json:"url" mapstructure:"url"`
	// 对局事件的 subject 前缀
	SubjectPrefix string `json:"subjectPrefix" mapstructure:"subjectPrefix"`
}

// RoomConf 房间运行参数
type RoomConf struct {
	GraceSeconds          int  `mapstructure:"graceSeconds"`
	SettleDelayMillis     int  `mapstructure:"settleDelayMillis"`
	IdleCheckpointSeconds int  `mapstructure:"idleCheckpointSeconds"`
	CheckpointTimeout     int  `mapstructure:"checkpointTimeout"` // 秒
	LivenessTTLSeconds    int  `mapstructure:"livenessTTLSeconds"`
	EventQueueSize        int  `mapstructure:"eventQueueSize"`
	MapWidth              int  `mapstructure:"mapWidth"`
	MapHeight             int  `mapstructure:"mapHeight"`
	MaxPlayers            int  `mapstructure:"maxPlayers"`
	RestoreOnBoot         bool `mapstructure:"restoreOnBoot"`
}

type ServerConf struct {
	HttpAddr        string `mapstructure:"httpAddr"`
	GrpcAddr        string `mapstructure:"grpcAddr"`
	Mode            string `mapstructure:"mode"` // gin 模式
	MaxConnections  int    `mapstructure:"maxConnections"`
	WriteBufferSize int    `mapstructure:"writeBufferSize"` // 每个连接写队列长度
}

// LimiterConf 令牌桶参数，per-IP 建连与 per-连接 消息
type LimiterConf struct {
	ConnectRate   float64 `mapstructure:"connectRate"`
	ConnectBurst  int     `mapstructure:"connectBurst"`
	MessageRate   float64 `mapstructure:"messageRate"`
	MessageBurst  int     `mapstructure:"messageBurst"`
	IdleEvictSecs int     `mapstructure:"idleEvictSecs"`
}

func (c RoomConf) GraceWindow() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c RoomConf) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMillis) * time.Millisecond
}

func (c RoomConf) IdleCheckpoint() time.Duration {
	return time.Duration(c.IdleCheckpointSeconds) * time.Second
}

func (c RoomConf) CheckpointTimeoutDuration() time.Duration {
	return time.Duration(c.CheckpointTimeout) * time.Second
}

func (c RoomConf) LivenessTTL() time.Duration {
	return time.Duration(c.LivenessTTLSeconds) * time.Second
}

// Default 默认配置，单元测试和本地 memory 模式使用
func Default() RoomServerConfiguration {
	return RoomServerConfiguration{
		BaseConfig: BaseConfig{ID: "room-local", ServerType: "room", MetricPort: 5854},
		DatabaseConf: DatabaseConf{
			Driver: "memory",
		},
		JwtConf: JwtConf{Expire: 7200, CacheSeconds: 60},
		EtcdConf: EtcdConf{
			DialTimeout: 3,
			Register:    RegisterServer{Domain: "room", Version: "v1", Weight: 10, Ttl: 10},
		},
		LogConf:    LogConf{Level: "info"},
		NatsConfig: NatsConfig{SubjectPrefix: "tbs.match"},
		RoomConf: RoomConf{
			GraceSeconds:          30,
			SettleDelayMillis:     500,
			IdleCheckpointSeconds: 30,
			CheckpointTimeout:     5,
			LivenessTTLSeconds:    3600,
			EventQueueSize:        256,
			MapWidth:              20,
			MapHeight:             20,
			MaxPlayers:            4,
			RestoreOnBoot:         true,
		},
		ServerConf: ServerConf{
			HttpAddr:        ":8080",
			GrpcAddr:        ":9090",
			Mode:            "release",
			MaxConnections:  10000,
			WriteBufferSize: 256,
		},
		LimiterConf: LimiterConf{
			ConnectRate:   5,
			ConnectBurst:  10,
			MessageRate:   20,
			MessageBurst:  40,
			IdleEvictSecs: 600,
		},
	}
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load 读取配置文件，环境变量可以覆盖同名字段（room.graceSeconds -> ROOM_GRACESECONDS）
// NODE_ID 环境变量优先于文件里的 id
func Load(configFile string) (*viper.Viper, error) {
	v := newViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if nodeID := os.Getenv("NODE_ID"); nodeID != "" {
		cfg.ID = nodeID
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("node id is required (config id or NODE_ID)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Conf = cfg
	return v, nil
}

// Validate 检查会导致房间无法运行的配置
func (c *RoomServerConfiguration) Validate() error {
	switch c.Driver {
	case "mongo", "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver: %q", c.Driver)
	}
	if c.GraceSeconds <= 0 {
		return fmt.Errorf("room.graceSeconds must be positive")
	}
	if c.MaxPlayers < 2 || c.MaxPlayers > 8 {
		return fmt.Errorf("room.maxPlayers must be within [2, 8]")
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("room.eventQueueSize must be positive")
	}
	return nil
}
