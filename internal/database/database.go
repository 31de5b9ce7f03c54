package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"ecommerce_back_end/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// --- Configuration ScyllaDB ---
type ScyllaKeyspaceConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	SSLEnabled  bool
	CACertPath  string
	Timeout     time.Duration
	NumConns    int
	Consistency gocql.Consistency
}

// ScyllaManager garde une session par keyspace (un rôle par keyspace).
type ScyllaManager struct {
	sessions map[string]*gocql.Session // keyspace → session
	configs  map[string]ScyllaKeyspaceConfig
	mu       sync.Mutex

	productsKeyspace string
	usersKeyspace    string
	ordersKeyspace   string
}

// NewScyllaManager ouvre une session pour chaque keyspace configuré.
// Les tables sont créées via scripts/scylladb_init.cql.
func NewScyllaManager(cfg *config.Config) (*ScyllaManager, error) {
	sm := &ScyllaManager{
		sessions:         make(map[string]*gocql.Session),
		configs:          loadScyllaConfigs(cfg),
		productsKeyspace: cfg.ScyllaProductsKeyspace,
		usersKeyspace:    cfg.ScyllaUsersKeyspace,
		ordersKeyspace:   cfg.ScyllaOrdersKeyspace,
	}
	for keyspace := range sm.configs {
		if _, err := sm.GetSession(keyspace); err != nil {
			sm.Close()
			return nil, fmt.Errorf("échec initialisation keyspace %s: %w", keyspace, err)
		}
	}
	return sm, nil
}

func loadScyllaConfigs(cfg *config.Config) map[string]ScyllaKeyspaceConfig {
	configs := make(map[string]ScyllaKeyspaceConfig)
	base := ScyllaKeyspaceConfig{
		Hosts:       cfg.ScyllaHostList(),
		SSLEnabled:  cfg.ScyllaSSLEnabled,
		CACertPath:  cfg.ScyllaSSLCAPath,
		Timeout:     5 * time.Second,
		NumConns:    20,
		Consistency: gocql.LocalQuorum,
	}

	keyspaces := []struct{ keyspace, role, password string }{
		{cfg.ScyllaProductsKeyspace, cfg.ScyllaProductsRole, cfg.ScyllaProductsPassword},
		{cfg.ScyllaUsersKeyspace, cfg.ScyllaUsersRole, cfg.ScyllaUsersPassword},
		{cfg.ScyllaOrdersKeyspace, cfg.ScyllaOrdersRole, cfg.ScyllaOrdersPassword},
	}
	for _, ks := range keyspaces {
		if ks.keyspace == "" {
			continue
		}
		c := base
		c.Keyspace = ks.keyspace
		c.Username = ks.role
		c.Password = ks.password
		configs[ks.keyspace] = c
	}
	return configs
}

func createScyllaCluster(config ScyllaKeyspaceConfig) (*gocql.ClusterConfig, error) {
	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Keyspace
	cluster.Consistency = config.Consistency
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = config.Timeout
	cluster.NumConns = config.NumConns
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = 1 * time.Second

	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	if config.SSLEnabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if config.CACertPath != "" {
			caCert, err := os.ReadFile(config.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("impossible de lire le certificat CA: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("impossible de parser le certificat CA")
			}
			tlsConfig.RootCAs = pool
		}
		cluster.SslOpts = &gocql.SslOptions{Config: tlsConfig, EnableHostVerification: true}
	}

	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster, nil
}

// GetSession retourne la session d'un keyspace, recréée si elle ne répond plus.
func (sm *ScyllaManager) GetSession(keyspace string) (*gocql.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	config, exists := sm.configs[keyspace]
	if !exists {
		return nil, fmt.Errorf("keyspace '%s' non configuré", keyspace)
	}

	if session, exists := sm.sessions[keyspace]; exists {
		if err := session.Query("SELECT now() FROM system.local").Exec(); err == nil {
			return session, nil
		}
		session.Close()
		delete(sm.sessions, keyspace)
	}

	cluster, err := createScyllaCluster(config)
	if err != nil {
		return nil, fmt.Errorf("configuration cluster pour %s: %w", keyspace, err)
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("création session pour %s: %w", keyspace, err)
	}

	sm.sessions[keyspace] = session
	log.Info().Str("keyspace", keyspace).Str("role", config.Username).Msg("✅ Nouvelle session ScyllaDB")
	return session, nil
}

func (sm *ScyllaManager) ProductsSession() (*gocql.Session, error) {
	return sm.GetSession(sm.productsKeyspace)
}

func (sm *ScyllaManager) UsersSession() (*gocql.Session, error) {
	return sm.GetSession(sm.usersKeyspace)
}

func (sm *ScyllaManager) OrdersSession() (*gocql.Session, error) {
	return sm.GetSession(sm.ordersKeyspace)
}

// Close ferme toutes les sessions ScyllaDB.
func (sm *ScyllaManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for keyspace, session := range sm.sessions {
		session.Close()
		log.Info().Str("keyspace", keyspace).Msg("🔌 Session ScyllaDB fermée")
	}
	sm.sessions = make(map[string]*gocql.Session)
}

// =============================================
// REDIS
// =============================================

// ConnectRedis renvoie nil sans erreur quand REDIS_HOST est vide.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisHost == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connexion Redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisHost).Msg("✅ Connecté à Redis")
	return client, nil
}

// =============================================
// ELASTICSEARCH
// =============================================

func ConnectElastic(cfg *config.Config) (*elasticsearch.Client, error) {
	if cfg.ElasticURL == "" {
		return nil, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("création client Elasticsearch: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connexion Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("connexion Elasticsearch: %s", res.Status())
	}

	log.Info().Str("url", cfg.ElasticURL).Msg("✅ Connecté à Elasticsearch")
	return client, nil
}

// =============================================
// MINIO
// =============================================

func ConnectMinIO(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	if cfg.MinioEndpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connexion MinIO: %w", err)
	}
	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("connexion MinIO: %w", err)
	}
	log.Info().Str("endpoint", cfg.MinioEndpoint).Msg("✅ Connecté à MinIO")
	return client, nil
}
