package deps

import (
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/listing"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
	"github.com/MrSnakeDoc/aimarket/internal/version"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Build        version.Info
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to reach the admin routes
	AllowedCIDRS []string         // IPs allowed to moderate listings and read metrics
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins  []string         // origins allowed by the CORS middleware ("*" by default)

	Listings *listing.Service // listing API over the record store
	Metrics  *metrics.Metrics // nil disables counting

	SubmitBurst       int // server-side POST /aiapps token bucket size per IP
	SubmitRefillPerHr int // tokens regained per IP and hour
	MaxBodyBytes      int64
	RequestTimeout    time.Duration
}
