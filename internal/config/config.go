package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type Store struct {
	Backend   string // "postgres" or "redis"
	DB        DB
	RedisAddr string        // e.g. redis:6379
	RedisTTL  time.Duration // retention for completed records, 0 = keep forever
}

type QueueAuth struct {
	SigningKey string        // HS256 key for the queue admin API service token
	Issuer     string        // token issuer claim
	Audience   string        // token audience claim
	TokenTTL   time.Duration // token lifetime
}

type Queue struct {
	BaseURL          string // queue admin API base, e.g. http://fake-queue:8091
	ProjectID        string
	Location         string
	QueueName        string
	MaxRetries       int    // delivery retry budget before abandon
	TaskNameHeader   string // header carrying the queue-assigned task name
	RetryCountHeader string // header carrying the delivery retry count
	Auth             QueueAuth
}

type Retry struct {
	MaxAttempts int           // attempts per outbound call
	Delay       time.Duration // fixed inter-attempt delay
}

type Audit struct {
	NsqdTCPAddr string // e.g. nsqd:4150
	Topic       string // NSQ topic for deletion-audit events
	Publish     bool   // whether to publish audit events to NSQ
}

type Forward struct {
	URL             string        // downstream URL the work unit posts to
	Secret          string        // HMAC secret for request signing
	SignatureHeader string        // HTTP header for the payload signature
	TimestampHeader string        // HTTP header for the signing timestamp
	Timeout         time.Duration // per-request HTTP timeout
}

type FakeQueue struct {
	FailFirstN      int           // number of delete calls to fail initially
	NotFoundTasks   string        // comma-separated task names that 404
	Port            string        // server listen port
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	IdleTimeout     time.Duration // HTTP idle timeout
}

type Config struct {
	AppName   string
	HTTPPort  string // :8080
	Store     Store
	Queue     Queue
	Retry     Retry
	Audit     Audit
	Forward   Forward
	FakeQueue FakeQueue
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:  getenv("APP_NAME", "taskgate"),
		HTTPPort: getenv("HTTP_PORT", ":8080"),
		Store: Store{
			Backend: getenv("STORE_BACKEND", "postgres"),
			DB: DB{
				User: getenv("DB_USER", "postgres"),
				Pass: getenv("DB_PASS", "postgres"),
				Host: getenv("DB_HOST", "postgres"),
				Port: getenv("DB_PORT", "5432"),
				Name: getenv("DB_NAME", "taskgate"),
			},
			RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
			RedisTTL:  getenvDuration("REDIS_RECORD_TTL", 0),
		},
		Queue: Queue{
			BaseURL:          getenv("QUEUE_BASE_URL", "http://fake-queue:8091"),
			ProjectID:        getenv("QUEUE_PROJECT_ID", "local-project"),
			Location:         getenv("QUEUE_LOCATION", "europe-west1"),
			QueueName:        getenv("QUEUE_NAME", "invoice-webhooks"),
			MaxRetries:       getenvInt("QUEUE_MAX_RETRIES", 5),
			TaskNameHeader:   getenv("QUEUE_TASK_NAME_HEADER", "X-TaskQueue-TaskName"),
			RetryCountHeader: getenv("QUEUE_RETRY_COUNT_HEADER", "X-TaskQueue-TaskRetryCount"),
			Auth: QueueAuth{
				SigningKey: getenv("QUEUE_AUTH_SIGNING_KEY", ""),
				Issuer:     getenv("QUEUE_AUTH_ISSUER", "taskgate"),
				Audience:   getenv("QUEUE_AUTH_AUDIENCE", "task-queue-admin"),
				TokenTTL:   getenvDuration("QUEUE_AUTH_TOKEN_TTL", 5*time.Minute),
			},
		},
		Retry: Retry{
			MaxAttempts: getenvInt("RETRY_MAX_ATTEMPTS", 3),
			Delay:       getenvDuration("RETRY_DELAY", 2*time.Second),
		},
		Audit: Audit{
			NsqdTCPAddr: getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			Topic:       getenv("AUDIT_TOPIC", "task_deletions"),
			Publish:     getenvBool("PUBLISH_AUDIT_TOPIC", false),
		},
		Forward: Forward{
			URL:             getenv("FORWARD_URL", ""),
			Secret:          getenv("FORWARD_SECRET", ""),
			SignatureHeader: getenv("FORWARD_SIGNATURE_HEADER", "X-Taskgate-Signature"),
			TimestampHeader: getenv("FORWARD_TIMESTAMP_HEADER", "X-Taskgate-Timestamp"),
			Timeout:         getenvDuration("FORWARD_TIMEOUT", 15*time.Second),
		},
		FakeQueue: FakeQueue{
			FailFirstN:    getenvInt("FAIL_FIRST_N", 0),
			NotFoundTasks: getenv("NOT_FOUND_TASKS", ""),
			Port:          getenv("FAKE_QUEUE_PORT", ":8091"),
			ReadTimeout:   getenvDuration("FAKE_QUEUE_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getenvDuration("FAKE_QUEUE_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getenvDuration("FAKE_QUEUE_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Store.DB.User, c.Store.DB.Pass, c.Store.DB.Host, c.Store.DB.Port, c.Store.DB.Name)
}
