package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/model"
	coremon "github.com/kilianp07/solaris/core/monitoring"
	"github.com/kilianp07/solaris/infra/logger"
)

// DefaultTopicPrefix is the root of every topic published by the simulator.
const DefaultTopicPrefix = "solaris"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// QoS per message kind: step, panel, status, maintenance.
	QoS         map[string]byte `json:"qos"`
	TopicPrefix string          `json:"topic_prefix"`
	// Panels publishes one state message per panel and step.
	Panels     bool        `json:"panels"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	LWTQoS     byte        `json:"lwt_qos"`
	LWTRetain  bool        `json:"lwt_retain"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher streams farm samples and panel events to an MQTT broker. It
// implements metrics.MetricsSink and the status and maintenance recorders.
type Publisher struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	panels     bool
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPublisher connects to the MQTT broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "solaris-" + uuid.NewString()[:8]
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_publisher")
	p := &Publisher{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		panels:     cfg.Panels,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

type stepMessage struct {
	FarmID           string    `json:"farm_id"`
	Step             int       `json:"step"`
	Timestamp        time.Time `json:"timestamp"`
	TotalIdealW      float64   `json:"total_ideal_w"`
	TotalActualW     float64   `json:"total_actual_w"`
	PerformanceRatio float64   `json:"performance_ratio"`
	Operational      int       `json:"operational"`
	Degraded         int       `json:"degraded"`
	Failed           int       `json:"failed"`
}

type panelMessage struct {
	model.PanelSample
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

type statusMessage struct {
	From model.PanelStatus `json:"from"`
	To   model.PanelStatus `json:"to"`
	At   time.Time         `json:"at"`
}

type maintenanceMessage struct {
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// RecordStep publishes the farm totals to <prefix>/<farm>/step and, when
// enabled, every panel sample to <prefix>/<farm>/panel/<id>/state.
func (p *Publisher) RecordStep(s model.FarmSample) error {
	msg := stepMessage{
		FarmID:           s.FarmID,
		Step:             s.Step,
		Timestamp:        s.Timestamp,
		TotalIdealW:      s.TotalIdealW,
		TotalActualW:     s.TotalActualW,
		PerformanceRatio: s.PerformanceRatio(),
		Operational:      s.Operational,
		Degraded:         s.Degraded,
		Failed:           s.Failed,
	}
	if err := p.publish(p.topic(s.FarmID, "step"), "step", false, msg); err != nil {
		return err
	}
	if !p.panels {
		return nil
	}
	for _, ps := range s.Panels {
		m := panelMessage{PanelSample: ps, Step: s.Step, Timestamp: s.Timestamp}
		if err := p.publish(p.topic(s.FarmID, "panel", ps.PanelID, "state"), "panel", false, m); err != nil {
			return err
		}
	}
	return nil
}

// RecordStatusChange publishes a retained status message for the panel.
func (p *Publisher) RecordStatusChange(ev coremetrics.StatusChangeEvent) error {
	return p.publish(p.topic(ev.FarmID, "panel", ev.PanelID, "status"), "status", true,
		statusMessage{From: ev.From, To: ev.To, At: ev.Time})
}

// RecordMaintenance publishes a maintenance action.
func (p *Publisher) RecordMaintenance(ev coremetrics.MaintenanceEvent) error {
	return p.publish(p.topic(ev.FarmID, "panel", ev.PanelID, "maintenance"), "maintenance", false,
		maintenanceMessage{Action: ev.Action, At: ev.Time})
}

func (p *Publisher) topic(parts ...string) string {
	return p.prefix + "/" + strings.Join(parts, "/")
}

func (p *Publisher) publish(topic, kind string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	qos := byte(0)
	if q, ok := p.qos[kind]; ok {
		qos = q
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

// Close implements io.Closer.
func (p *Publisher) Close() error {
	p.Disconnect()
	return nil
}
