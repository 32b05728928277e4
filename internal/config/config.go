package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/nidhogg/cerebro-cortex/internal/cortex"
	"github.com/nidhogg/cerebro-cortex/internal/embedding"
	"github.com/nidhogg/cerebro-cortex/internal/vectorstore"
)

// Config is the top-level configuration structure.
type Config struct {
	Log       LogConfig        `json:"log" yaml:"log"`
	Database  DatabaseConfig   `json:"database" yaml:"database"`
	Embedding embedding.Config `json:"embedding" yaml:"embedding"`
	Engine    cortex.Config    `json:"engine" yaml:"engine"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console or json
}

type DatabaseConfig struct {
	Postgres PostgresConfig           `json:"postgres" yaml:"postgres"`
	Neo4j    Neo4jConfig              `json:"neo4j" yaml:"neo4j"`
	Redis    RedisConfig              `json:"redis" yaml:"redis"`
	Qdrant   vectorstore.QdrantConfig `json:"qdrant" yaml:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

// Default returns the configuration used when no file is given. Every
// backend is off, so the engine runs in memory.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Database: DatabaseConfig{
			Neo4j:  Neo4jConfig{User: "neo4j"},
			Qdrant: vectorstore.QdrantConfig{Port: 6334, Collection: "cerebro_memories"},
		},
		Embedding: embedding.Config{
			Model:        "text-embedding-3-small",
			Dimension:    1536,
			TimeoutMS:    5000,
			CacheTTLSecs: 7 * 24 * 3600,
			MaxRetries:   2,
		},
		Engine: cortex.DefaultConfig(),
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON or YAML config file, substitutes environment variable
// references and merges the result over Default. An empty path returns
// Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnv(data)
	var file Config
	if err := parse(path, data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config %s: %w", path, err)
	}

	var explicit weightOverrides
	if err := parse(path, data, &explicit); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	explicit.Engine.Weights.apply(&cfg.Engine.Weights)
	return &cfg, nil
}

// weightOverrides captures fusion weights a file sets, including 0, which
// mergo would otherwise skip.
type weightOverrides struct {
	Engine struct {
		Weights explicitWeights `json:"weights" yaml:"weights"`
	} `json:"engine" yaml:"engine"`
}

type explicitWeights struct {
	Vector         *float64 `json:"vector" yaml:"vector"`
	Activation     *float64 `json:"activation" yaml:"activation"`
	Retrievability *float64 `json:"retrievability" yaml:"retrievability"`
	Salience       *float64 `json:"salience" yaml:"salience"`
	BaseLevel      *float64 `json:"base_level" yaml:"base_level"`
}

func (e explicitWeights) apply(w *cortex.Weights) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&w.Vector, e.Vector)
	set(&w.Activation, e.Activation)
	set(&w.Retrievability, e.Retrievability)
	set(&w.Salience, e.Salience)
	set(&w.BaseLevel, e.BaseLevel)
}

func parse(path string, data []byte, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, out)
	default:
		return json.Unmarshal(data, out)
	}
}

// expandEnv substitutes ${VAR} and ${VAR:default} with environment values.
func expandEnv(data []byte) []byte {
	return envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envVarRe.FindSubmatch(match)
		if v := os.Getenv(string(parts[1])); v != "" {
			return []byte(v)
		}
		return parts[2]
	})
}
