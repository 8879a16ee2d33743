// Package secrets reads named credential bundles from AWS Secrets Manager or,
// for local development, from environment variables.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/bilgisen/tweetdesk/internal/apperr"
)

// Bundle is a decoded secret: field name to value
type Bundle map[string]string

// Store resolves a secret id into a Bundle
type Store interface {
	Get(ctx context.Context, id string) (Bundle, error)
}

// Sanitize strips whitespace, zero-width characters, byte order marks and
// surrounding quotes that sneak into secrets entered by hand.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		return r
	}, s)
	for {
		trimmed := strings.TrimFunc(s, unicode.IsSpace)
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// Lookup returns the sanitized value of the first key present. An exact key
// wins; otherwise names are compared case-insensitively with '-' and '_'
// ignored, in sorted key order.
func (b Bundle) Lookup(keys ...string) string {
	norm := func(k string) string {
		k = strings.ToLower(k)
		return strings.NewReplacer("_", "", "-", "").Replace(k)
	}
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, want := range keys {
		if v := Sanitize(b[want]); v != "" {
			return v
		}
		for _, k := range names {
			if norm(k) == norm(want) {
				if v := Sanitize(b[k]); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// Decode parses a secret payload. JSON objects become bundles, with non-string values
// stringified. Anything else is stored under the "value" key.
func Decode(raw string) (Bundle, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if trimmed == "" {
		return nil, errors.New("secret is empty")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Bundle{"value": raw}, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("secret is not valid JSON: %w", err)
	}
	b := make(Bundle, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			b[k] = val
		case nil:
		default:
			b[k] = fmt.Sprint(val)
		}
	}
	return b, nil
}

// secretsAPI is the slice of the Secrets Manager client this package needs
type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads secrets from AWS Secrets Manager
type AWSStore struct {
	api secretsAPI
}

func NewAWSStore(cfg aws.Config) *AWSStore {
	return &AWSStore{api: secretsmanager.NewFromConfig(cfg)}
}

func (s *AWSStore) Get(ctx context.Context, id string) (Bundle, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return nil, apperr.Configuration("secrets.get", fmt.Errorf("fetch secret %s: %w", id, err))
	}
	if out.SecretString == nil {
		return nil, apperr.Configuration("secrets.get", fmt.Errorf("secret %s has no string value", id))
	}
	b, err := Decode(*out.SecretString)
	if err != nil {
		return nil, apperr.Configuration("secrets.get", fmt.Errorf("secret %s: %w", id, err))
	}
	return b, nil
}

// EnvStore maps a secret id onto the environment variable of the same name,
// upper-cased with '-' and '.' turned into '_'.
type EnvStore struct {
	lookup func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// EnvName is the variable EnvStore reads for a secret id
func EnvName(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(id))
}

func (s *EnvStore) Get(ctx context.Context, id string) (Bundle, error) {
	raw, ok := s.lookup(EnvName(id))
	if !ok {
		return nil, apperr.Configuration("secrets.get", fmt.Errorf("environment variable %s is not set", EnvName(id)))
	}
	b, err := Decode(raw)
	if err != nil {
		return nil, apperr.Configuration("secrets.get", fmt.Errorf("%s: %w", EnvName(id), err))
	}
	return b, nil
}
