package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(topic string, payload interface{}) error
	Topic(parts ...string) string
	Close()
}

// pahoClient 便于测试替换的 paho 客户端子集
type pahoClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Client 基于 paho 的 Publisher 实现
type Client struct {
	client  pahoClient
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient 连接 Broker，连接失败返回错误
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "timetable-engine"
	}
	// 多副本部署时避免 client id 冲突
	clientID = clientID + "-" + uuid.NewString()[:8]

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT 连接断开", zap.Error(err))
	})

	c := paho.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT 连接失败: %w", token.Error())
	}

	logger.Info("MQTT 连接成功", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	return newClient(c, cfg.TopicPrefix, cfg.QoS, logger), nil
}

func newClient(c pahoClient, prefix string, qos byte, logger *zap.Logger) *Client {
	return &Client{client: c, prefix: prefix, qos: qos, timeout: 5 * time.Second, logger: logger}
}

// Topic 拼接带前缀的主题
func (c *Client) Topic(parts ...string) string {
	return joinTopic(c.prefix, parts)
}

// Publish 序列化为 JSON 并等待 Broker 确认
func (c *Client) Publish(topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	token := c.client.Publish(topic, c.qos, false, body)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("发布到 %s 超时", topic)
	}
	return token.Error()
}

// Close 断开连接
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// NopPublisher MQTT 关闭时使用，丢弃所有事件
type NopPublisher struct {
	Prefix string
}

func (NopPublisher) Publish(string, interface{}) error { return nil }

func (p NopPublisher) Topic(parts ...string) string { return joinTopic(p.Prefix, parts) }

func (NopPublisher) Close() {}

func joinTopic(prefix string, parts []string) string {
	topic := prefix
	for _, p := range parts {
		if topic == "" {
			topic = p
			continue
		}
		topic += "/" + p
	}
	return topic
}
