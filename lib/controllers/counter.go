package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gantry "gantry/lib"
)

const countersSchema = `
CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
);
INSERT INTO counters (name, value) VALUES ('global', 0)
ON CONFLICT (name) DO NOTHING;
`

// streamInterval is how often open SSE connections poll for a new value.
const streamInterval = time.Second

// CounterController exposes a shared demo counter: read, atomic increment
// and a server-sent-event stream of value changes.
type CounterController struct {
	db  gantry.Database
	log gantry.Logger
}

// NewCounterController creates the counters table and mounts the counter
// routes on the engine.
func NewCounterController(e gantry.Engine) (*CounterController, error) {
	c := &CounterController{db: e.Database(), log: gantry.Log()}

	if db, ok := c.db.Handle(); ok {
		if _, err := db.ExecContext(context.Background(), countersSchema); err != nil {
			return nil, gantry.Coerce(err, gantry.KindDatabase)
		}
	} else {
		c.log.Warn("Database unreachable, counter starts degraded")
	}

	e.Attach(http.MethodGet, "/counter", c.GetHandler)
	e.Attach(http.MethodPost, "/counter/increment", c.IncrementHandler)
	e.Attach(http.MethodGet, "/counter/stream", c.StreamHandler)
	return c, nil
}

// value reads the current counter.
func (cc *CounterController) value(ctx context.Context) (int64, error) {
	db, ok := cc.db.Handle()
	if !ok {
		return 0, gantry.NewError(gantry.KindServiceUnavailable)
	}
	var v int64
	if err := db.GetContext(ctx, &v, "SELECT value FROM counters WHERE name = 'global'"); err != nil {
		return 0, gantry.Coerce(err, gantry.KindDatabase)
	}
	return v, nil
}

// increment bumps the counter atomically and returns the new value. The
// single UPDATE keeps concurrent increments serialized by the database, so
// no two callers ever observe the same new value.
func (cc *CounterController) increment(ctx context.Context) (int64, error) {
	db, ok := cc.db.Handle()
	if !ok {
		return 0, gantry.NewError(gantry.KindServiceUnavailable)
	}
	var v int64
	err := db.GetContext(ctx, &v,
		"UPDATE counters SET value = value + 1 WHERE name = 'global' RETURNING value")
	if err != nil {
		return 0, gantry.Coerce(err, gantry.KindDatabase)
	}
	return v, nil
}

// GetHandler returns the current counter value.
func (cc *CounterController) GetHandler(ctx *gin.Context) {
	v, err := cc.value(ctx.Request.Context())
	if err != nil {
		e := gantry.Coerce(err, gantry.KindDatabase)
		ctx.JSON(e.Status, e.Envelope())
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"value": v})
}

// IncrementHandler bumps the counter and returns the new value.
func (cc *CounterController) IncrementHandler(ctx *gin.Context) {
	v, err := cc.increment(ctx.Request.Context())
	if err != nil {
		e := gantry.Coerce(err, gantry.KindDatabase)
		ctx.JSON(e.Status, e.Envelope())
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"value": v})
}

// StreamHandler pushes counter values over server-sent events. The first
// event carries the current value; afterwards an event is sent whenever the
// polled value changes. The stream ends when the client disconnects.
func (cc *CounterController) StreamHandler(ctx *gin.Context) {
	last := int64(-1)
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	ctx.Stream(func(w io.Writer) bool {
		v, err := cc.value(ctx.Request.Context())
		if err != nil {
			cc.log.Warn("Counter stream read failed", zap.Error(err))
			return false
		}
		if v != last {
			last = v
			ctx.SSEvent("counter", gin.H{"value": v})
		}
		select {
		case <-ctx.Request.Context().Done():
			return false
		case <-ticker.C:
			return true
		}
	})
}
