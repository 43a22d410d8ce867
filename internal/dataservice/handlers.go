package dataservice

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gnemet/propertygrid"
)

type handlers struct {
	service  propertygrid.DataService
	registry *propertygrid.Registry
	pinger   Pinger
}

// FieldInfo describes one filterable field to API consumers.
type FieldInfo struct {
	Key        string                   `json:"key"`
	APIKey     string                   `json:"apiKey"`
	Label      string                   `json:"label"`
	Control    propertygrid.ControlType `json:"control"`
	Searchable bool                     `json:"searchable,omitempty"`
	MinLength  int                      `json:"minLength,omitempty"`
	MultiLimit int                      `json:"multiLimit,omitempty"`
	Options    []propertygrid.LOVItem   `json:"options,omitempty"`
}

// TableInfo describes one table to API consumers.
type TableInfo struct {
	Name        string                  `json:"name"`
	Title       string                  `json:"title,omitempty"`
	Operation   string                  `json:"operation"`
	Searchable  []string                `json:"searchable"`
	DefaultSort *propertygrid.SortState `json:"defaultSort,omitempty"`
	Fields      []FieldInfo             `json:"fields"`
}

// DescribeTable builds the API description of schema.
func DescribeTable(schema *propertygrid.TableSchema) TableInfo {
	info := TableInfo{
		Name:        schema.Name,
		Title:       schema.Title,
		Operation:   schema.Operation,
		Searchable:  schema.SearchableFields(),
		DefaultSort: schema.DefaultSort,
	}
	for _, fc := range schema.Fields() {
		info.Fields = append(info.Fields, FieldInfo{
			Key:        fc.Key,
			APIKey:     fc.APIKey,
			Label:      fc.Label,
			Control:    fc.Control,
			Searchable: schema.IsSearchable(fc.Key),
			MinLength:  fc.MinLength,
			MultiLimit: fc.MultiLimit,
			Options:    fc.Options,
		})
	}
	return info
}

func (h *handlers) health(c *gin.Context) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) tables(c *gin.Context) {
	out := []TableInfo{}
	for _, name := range h.registry.Tables() {
		schema, err := h.registry.Table(name)
		if err != nil {
			continue
		}
		out = append(out, DescribeTable(schema))
	}
	c.JSON(http.StatusOK, gin.H{"tables": out})
}

func (h *handlers) table(c *gin.Context) {
	schema, err := h.registry.Table(c.Param("table"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DescribeTable(schema))
}

func (h *handlers) grid(c *gin.Context) {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	resp, err := h.service.Execute(c.Request.Context(), c.Param("operation"), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps grid errors onto HTTP statuses. Anything unclassified is
// a 500 whose details stay in the log.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": "internal error"}

	var ge *propertygrid.GridError
	switch {
	case errors.As(err, &ge):
		switch ge.Kind {
		case propertygrid.KindNotFound:
			status = http.StatusNotFound
		case propertygrid.KindValidation, propertygrid.KindDecode:
			status = http.StatusBadRequest
		}
		if status != http.StatusInternalServerError {
			body = gin.H{"error": ge.Message, "code": ge.Code}
			if ge.Field != "" {
				body["field"] = ge.Field
			}
		}
	case propertygrid.IsValidationError(err):
		status = http.StatusBadRequest
		body = gin.H{"error": err.Error(), "code": propertygrid.ErrCodeValidationFailed}
	}

	if status == http.StatusInternalServerError {
		zap.S().Errorw("Grid request failed", "request_id", GetRequestID(c), "path", c.Request.URL.Path, "error", err)
	} else {
		zap.S().Debugw("Grid request rejected", "request_id", GetRequestID(c), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
