package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
)

// LivenessChecker reports whether a background loop ticked recently.
type LivenessChecker interface {
	Alive() bool
}

// Health reports the process and its background loops. A stalled loop flips
// the status to degraded but still answers 200: the process is alive and the
// orchestrator should not restart it for a slow sweep.
func Health(db *sql.DB, loops map[string]LivenessChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "down", "error": "database unreachable"})
		}
		status := "ok"
		detail := make(map[string]bool, len(loops))
		for name, l := range loops {
			alive := l == nil || l.Alive()
			detail[name] = alive
			if !alive {
				status = "degraded"
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": status, "loops": detail})
	}
}
