package config

import (
	"cmp"
	"fmt"
	"net/url"
	"strings"
)

type SQLite struct {
	// Path is the main database file. Use ":memory:" for a throwaway engine.
	Path string `yaml:"path"`
}

func (s SQLite) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	return nil
}

func (s SQLite) DSN() string {
	if s.Path == ":memory:" {
		return s.Path
	}

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", s.Path)
}

type Postgres struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	DisableSSL bool   `yaml:"disableSSL"`
}

func (p Postgres) Validate() error {
	if p.Host == "" || p.Database == "" || p.Username == "" {
		return fmt.Errorf("one of postgres settings is empty (host, database, username)")
	}

	return nil
}

func (p Postgres) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", p.Username, p.Password, p.Host, cmp.Or(p.Port, 5432), p.Database)
	if p.DisableSSL {
		dsn = fmt.Sprintf("%s?sslmode=disable", dsn)
	}

	return dsn
}

type Databricks struct {
	Host                string `yaml:"host"`
	HttpPath            string `yaml:"httpPath"`
	Port                int    `yaml:"port"`
	Catalog             string `yaml:"catalog"`
	PersonalAccessToken string `yaml:"personalAccessToken"`
}

func (d Databricks) Validate() error {
	if d.Host == "" || d.HttpPath == "" || d.PersonalAccessToken == "" {
		return fmt.Errorf("one of databricks settings is empty (host, httpPath, personalAccessToken)")
	}

	return nil
}

func (d Databricks) DSN() string {
	query := url.Values{}
	if d.Catalog != "" {
		query.Add("catalog", d.Catalog)
	}

	u := &url.URL{
		Path:     d.HttpPath,
		User:     url.UserPassword("token", d.PersonalAccessToken),
		Host:     fmt.Sprintf("%s:%d", d.Host, cmp.Or(d.Port, 443)),
		RawQuery: query.Encode(),
	}

	return strings.TrimPrefix(u.String(), "//")
}

// S3Settings configures access to `s3a://` source paths and checkpoint locations.
type S3Settings struct {
	Region             string `yaml:"region"`
	AwsAccessKeyID     string `yaml:"awsAccessKeyID"`
	AwsSecretAccessKey string `yaml:"awsSecretAccessKey"`
	AwsSessionToken    string `yaml:"awsSessionToken"`
	// Endpoint overrides the S3 endpoint, for S3 compatible stores such as MinIO.
	Endpoint string `yaml:"endpoint"`
}

// Kafka holds connection defaults for kafka sources. Pipeline source options take precedence.
type Kafka struct {
	BootstrapServer string `yaml:"bootstrapServer"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	EnableAWSMSKIAM bool   `yaml:"enableAWSMKSIAM"`
	DisableTLS      bool   `yaml:"disableTLS"`
	// TimeoutSeconds bounds broker dials, defaults to 10 seconds.
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

func (k Kafka) BootstrapServers() []string {
	var servers []string
	for _, server := range strings.Split(k.BootstrapServer, ",") {
		if server = strings.TrimSpace(server); server != "" {
			servers = append(servers, server)
		}
	}
	return servers
}

func (k Kafka) String() string {
	// Don't log credentials.
	return fmt.Sprintf("bootstrapServer=%s, user_set=%v, pass_set=%v", k.BootstrapServer, k.Username != "", k.Password != "")
}
