// Package sharedpubs looks up the publications two researchers co-authored.
package sharedpubs

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// DefaultSecretID holds the publication database credentials.
const DefaultSecretID = "expertiseDashboard/credentials/dbCredentials"

const defaultPort = 5432

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Credentials is the database secret.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	DBName   string `json:"dbname"`
	Port     int    `json:"port,omitempty"`
}

// DSN renders the credentials as a postgres connection URL.
func (c Credentials) DSN() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// LoadCredentials reads and decodes the credentials secret.
func LoadCredentials(ctx context.Context, client SecretsManagerAPI, secretID string) (Credentials, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("secretsmanager: GetSecretValue %s failed: %w", secretID, err)
	}
	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return Credentials{}, fmt.Errorf("secretsmanager: secret %s has no string value", secretID)
	}

	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("secretsmanager: decoding secret %s: %w", secretID, err)
	}
	if c.Host == "" || c.Username == "" || c.DBName == "" {
		return Credentials{}, fmt.Errorf("secretsmanager: secret %s is missing host, username or dbname", secretID)
	}
	return c, nil
}
