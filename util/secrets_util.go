package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/logger"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// SecretsManagerAPI is the subset of the AWS Secrets Manager client used to read secrets.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// GetSecretFromSecretsManager retrieves the value of secretName.
// It returns the secret string and an error if any.
func GetSecretFromSecretsManager(ctx context.Context, secretsClient SecretsManagerAPI, secretName string) (string, error) {
	if secretName == "" {
		return "", errors.New("secret name is empty")
	}

	out, err := secretsClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret value: %w", err)
	}
	log.Debug("successfully fetched secret from secrets manager")

	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	default:
		log.WithField("secretName", secretName).Error("secret content is empty")
		return "", fmt.Errorf("secret content is empty")
	}
}

// NewSecretsManagerClient creates a Secrets Manager client from the default
// credential chain of the Lambda execution role.
func NewSecretsManagerClient(ctx context.Context) (SecretsManagerAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.WithField("error", err).Error("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// licenseKeyFromSecret accepts either the bare key or a JSON document holding it under LicenseKey.
func licenseKeyFromSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("license key secret is empty")
	}
	if !strings.HasPrefix(secret, "{") {
		return secret, nil
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(secret), &doc); err != nil {
		return "", fmt.Errorf("failed to parse secret content: %w", err)
	}
	key, ok := doc[common.LicenseKey].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("secret does not contain %s", common.LicenseKey)
	}
	return key, nil
}

// GetLicenseKey returns the license key from the environment variable or AWS Secrets Manager.
// It returns the New Relic Ingest License key and an error if any.
func GetLicenseKey() (key string, err error) {
	return GetLicenseKeyWithContext(context.Background())
}

// GetLicenseKeyWithContext returns the license key from the environment variable or AWS Secrets Manager with context.
func GetLicenseKeyWithContext(ctx context.Context) (key string, err error) {
	if os.Getenv(common.EnvLicenseKey) != "" {
		log.Debug("fetching license key from environment variable")
		return os.Getenv(common.EnvLicenseKey), nil
	}

	secretName := os.Getenv(common.NewRelicLicenseKeySecretName)
	if secretName == "" {
		return "", fmt.Errorf("%w: neither %s nor %s is set", common.ErrConfiguration, common.EnvLicenseKey, common.NewRelicLicenseKeySecretName)
	}

	log.Debug("fetching license key from secrets manager")
	secretsClient, err := NewSecretsManagerClient(ctx)
	if err != nil {
		return "", err
	}
	return GetLicenseKeyFromSecret(ctx, secretsClient, secretName)
}

// GetLicenseKeyFromSecret reads secretName through secretsClient and extracts the license key.
func GetLicenseKeyFromSecret(ctx context.Context, secretsClient SecretsManagerAPI, secretName string) (string, error) {
	secretValue, err := GetSecretFromSecretsManager(ctx, secretsClient, secretName)
	if err != nil {
		return "", err
	}
	return licenseKeyFromSecret(secretValue)
}
