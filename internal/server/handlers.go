package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/query"
	"github.com/samber/lo"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clusters": len(s.svc.Clusters())})
}

func (s *Server) handleListClusters(c *gin.Context) {
	mode, ok := s.mode(c)
	if !ok {
		return
	}

	statuses := s.svc.AllSnapshots(c.Request.Context(), mode)
	unhealthy := lo.CountBy(statuses, func(st query.Status) bool {
		return st.Health != query.HealthOK
	})

	detail := ""
	if unhealthy > 0 {
		detail = "some clusters are not fully up to date"
	}
	c.JSON(http.StatusOK, Response{Count: len(statuses), Results: statuses, Detail: detail})
}

func (s *Server) handleGetCluster(c *gin.Context) {
	mode, ok := s.mode(c)
	if !ok {
		return
	}

	st, err := s.svc.Snapshot(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Count: 1, Results: st, Detail: st.Message})
}

// handleData waits for fresh data, the way the browser dashboard expects.
func (s *Server) handleData(c *gin.Context) {
	id := c.Param("id")
	st, err := s.svc.Snapshot(c.Request.Context(), id, query.ModeWait)
	if err != nil {
		c.JSON(http.StatusNotFound, DataResponse{Status: "error", Host: id, Message: errors.Summary(err)})
		return
	}

	resp := DataResponse{
		Status:  "success",
		Host:    st.Host,
		Health:  string(st.Health),
		Message: st.Message,
	}
	if st.Snapshot.HasData() {
		resp.Nodes = st.Snapshot.Nodes
		resp.Jobs = st.Snapshot.Jobs
	} else {
		resp.Status = "error"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) mode(c *gin.Context) (query.Mode, bool) {
	mode, err := query.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Detail: errors.Summary(err)})
		return "", false
	}
	return mode, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.IsCode(err, errors.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, Response{Detail: errors.Summary(err)})
}
