package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/index"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// Rebuilder queues an index rebuild. Trigger returns false when one is
// already pending.
type Rebuilder interface {
	Trigger() bool
}

// Ledger exposes the ingestion ledger state shown on /api/status.
type Ledger interface {
	CountIngested(ctx context.Context) (int64, error)
	LastRun(ctx context.Context) (domain.IngestRun, bool, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	AllowedCIDRS []string        // IPs allowed to hit POST /reload
	TrustProxy   bool            // true if running behind a trusted reverse proxy (e.g., cloudflared)
	ContentDir   string          // directory holding the bookmark files
	Snapshot     *index.Snapshot // entries of the last rebuild
	Rebuilder    Rebuilder       // manual rebuild trigger
	Ledger       Ledger          // nil when redis is disabled
	RedisClient  *redis.Client   // nil when redis is disabled
}
