package kafkalib

import (
	"cmp"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	saslaws "github.com/twmb/franz-go/pkg/sasl/aws"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/artie-labs/medallion/lib/config"
	"github.com/artie-labs/medallion/lib/settings"
)

const DefaultTimeout = 10 * time.Second

type Mechanism string

const (
	NoAuth      Mechanism = ""
	Plain       Mechanism = "PLAIN"
	ScramSha256 Mechanism = "SCRAM-SHA-256"
	ScramSha512 Mechanism = "SCRAM-SHA-512"
	AwsMskIam   Mechanism = "AWS_MSK_IAM"
)

// Connection describes how to reach the brokers of a kafka source.
type Connection struct {
	mechanism Mechanism
	tls       bool
	username  string
	password  string
	timeout   time.Duration
}

// NewConnection reads `kafka.security.protocol`, `kafka.sasl.mechanism`, `kafka.sasl.username` and
// `kafka.sasl.password` from the source options. Unset options fall back to the engine configuration.
func NewConnection(spec settings.SourceSpec, cfg config.Kafka) (Connection, error) {
	conn := Connection{
		username: cmp.Or(spec.Option("kafka.sasl.username"), cfg.Username),
		password: cmp.Or(spec.Option("kafka.sasl.password"), cfg.Password),
		tls:      !cfg.DisableTLS,
		timeout:  cmp.Or(time.Duration(cfg.TimeoutSeconds)*time.Second, DefaultTimeout),
	}

	switch protocol := strings.ToUpper(spec.Option("kafka.security.protocol")); protocol {
	case "":
	case "PLAINTEXT", "SASL_PLAINTEXT":
		conn.tls = false
	case "SSL", "SASL_SSL":
		conn.tls = true
	default:
		return Connection{}, fmt.Errorf("unsupported kafka.security.protocol %q", protocol)
	}

	mechanism := Mechanism(strings.ToUpper(strings.ReplaceAll(spec.Option("kafka.sasl.mechanism"), "-", "_")))
	switch mechanism {
	case "":
		conn.mechanism = defaultMechanism(cfg, conn.username, conn.password)
	case "PLAIN":
		conn.mechanism = Plain
	case "SCRAM_SHA_256":
		conn.mechanism = ScramSha256
	case "SCRAM_SHA_512":
		conn.mechanism = ScramSha512
	case AwsMskIam:
		conn.mechanism = AwsMskIam
	default:
		return Connection{}, fmt.Errorf("unsupported kafka.sasl.mechanism %q", spec.Option("kafka.sasl.mechanism"))
	}

	if (conn.mechanism == Plain || conn.mechanism == ScramSha256 || conn.mechanism == ScramSha512) && conn.username == "" {
		return Connection{}, fmt.Errorf("kafka.sasl.mechanism %s requires a username", conn.mechanism)
	}

	return conn, nil
}

func defaultMechanism(cfg config.Kafka, username, password string) Mechanism {
	switch {
	case cfg.EnableAWSMSKIAM:
		return AwsMskIam
	case username == "$ConnectionString":
		// Azure Event Hubs
		return Plain
	case username != "" && password != "":
		return ScramSha512
	default:
		return NoAuth
	}
}

func (c Connection) Mechanism() Mechanism {
	return c.mechanism
}

func (c Connection) tlsDialer() kgo.Opt {
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: c.timeout}, Config: &tls.Config{}}
	return kgo.Dialer(dialer.DialContext)
}

// ClientOptions returns the franz-go options to reach [brokers].
func (c Connection) ClientOptions(ctx context.Context, brokers []string, awsOptFns ...func(options *awsCfg.LoadOptions) error) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DialTimeout(c.timeout),
	}

	var mechanism sasl.Mechanism
	switch c.mechanism {
	case NoAuth:
	case Plain:
		mechanism = plain.Auth{User: c.username, Pass: c.password}.AsMechanism()
	case ScramSha256:
		mechanism = scram.Auth{User: c.username, Pass: c.password}.AsSha256Mechanism()
	case ScramSha512:
		mechanism = scram.Auth{User: c.username, Pass: c.password}.AsSha512Mechanism()
	case AwsMskIam:
		_awsCfg, err := awsCfg.LoadDefaultConfig(ctx, awsOptFns...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws configuration: %w", err)
		}

		mechanism = saslaws.ManagedStreamingIAM(func(ctx context.Context) (saslaws.Auth, error) {
			creds, err := _awsCfg.Credentials.Retrieve(ctx)
			if err != nil {
				return saslaws.Auth{}, err
			}

			return saslaws.Auth{AccessKey: creds.AccessKeyID, SecretKey: creds.SecretAccessKey, SessionToken: creds.SessionToken}, nil
		})
		// MSK always enables TLS for IAM.
		return append(opts, kgo.SASL(mechanism), c.tlsDialer()), nil
	default:
		return nil, fmt.Errorf("unsupported kafka mechanism: %s", c.mechanism)
	}

	if mechanism != nil {
		opts = append(opts, kgo.SASL(mechanism))
	}

	if c.tls {
		opts = append(opts, c.tlsDialer())
	}

	return opts, nil
}
