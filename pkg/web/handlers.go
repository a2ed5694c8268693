package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/walteh/drsholding/pkg/state"
)

func (s *Server) handleHealth(c *gin.Context) {
	if s.probe != nil && !s.probe.Alive(s.now()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stale heartbeat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.probe != nil && !s.probe.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleRecords(c *gin.Context) {
	pqid := c.Param("pqid")

	q := state.Query{ExternalID: pqid}
	if status := c.Query("status"); status != "" {
		q.Status = state.Status(status)
	}

	records, err := s.store.Query(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records for " + pqid})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pqid":    pqid,
		"count":   len(records),
		"records": records,
	})
}
