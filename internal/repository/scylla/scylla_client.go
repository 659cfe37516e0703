package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/util"
)

// ScyllaClient owns the cluster session shared by the repositories.
//
// Expected schema:
//
//	CREATE TABLE users_by_phone (
//	    phone_number text PRIMARY KEY,
//	    user_bucket int, user_id text, first_name text, last_name text,
//	    password_hash text, is_active boolean,
//	    created_at timestamp, updated_at timestamp, last_login_at timestamp);
//
//	CREATE TABLE users_by_id (
//	    user_id text PRIMARY KEY,
//	    user_bucket int, phone_number text, first_name text, last_name text,
//	    password_hash text, is_active boolean,
//	    created_at timestamp, updated_at timestamp, last_login_at timestamp);
//
//	CREATE TABLE auth_tokens (
//	    token_key text PRIMARY KEY, user_id text, created_at timestamp);
//
//	CREATE TABLE tokens_by_user (
//	    user_id text PRIMARY KEY, token_key text, created_at timestamp);
type ScyllaClient struct {
	Session *gocql.Session
	config  *config.ScyllaConfig
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Scylla session: %w", err)
	}

	util.Info("Scylla client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}, nil
}

func (c *ScyllaClient) HealthCheck() error {
	var release string
	if err := c.Session.Query("SELECT release_version FROM system.local").Scan(&release); err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}

func (c *ScyllaClient) Close() {
	if c.Session != nil {
		c.Session.Close()
		util.Info("Scylla session closed")
	}
}
