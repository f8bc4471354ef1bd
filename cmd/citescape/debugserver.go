// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/citescape-io/citescape/services/graphstream/coordinator"
	"github.com/citescape-io/citescape/services/graphstream/events"
)

var debugServerAddr string

func init() {
	debugServerCmd.Flags().StringVar(&debugServerAddr, "addr", ":7777", "address the debug server listens on")
	debugServerCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:8080", "base URL of the graph backend")
	debugServerCmd.Flags().StringVar(&strategyName, "strategy", "standard", "loading strategy: standard or tree-first")
	rootCmd.AddCommand(debugServerCmd)
}

var debugServerCmd = &cobra.Command{
	Use:   "debug-server",
	Short: "Run the engine and expose its stats over HTTP, Prometheus, and a live WebSocket feed",
	RunE:  runDebugServer,
}

func runDebugServer(cmd *cobra.Command, args []string) error {
	if err := cfgLoadOrDefault(); err != nil {
		return err
	}
	cfg := *cfgCurrent()

	log := newLogger()
	defer log.Close()

	eng, err := buildEngine(cfg, backendURL, strategyName, log)
	if err != nil {
		return err
	}
	if err := eng.coord.Initialize(cmd.Context()); err != nil {
		return err
	}
	defer eng.coord.Destroy()

	hub := newEventHub(eng.bus)

	router := gin.Default()
	router.Use(otelgin.Middleware("citescape-debug-server"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.coord.GetStats())
	})
	router.GET("/ws", func(c *gin.Context) { hub.serveWS(c.Writer, c.Request) })

	log.Info("debug server listening", "addr", debugServerAddr)
	return router.Run(debugServerAddr)
}

// eventHub fans coordinator events out to every connected WebSocket
// client as JSON frames of {kind, payload}. Each connection's id keys
// the hub's client map and is not sent in the frames.
type eventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func newEventHub(bus *events.Bus) *eventHub {
	h := &eventHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[string]*websocket.Conn),
	}
	kinds := []events.Kind{
		events.LoadingStarted, events.LoadingCompleted, events.LoadingFailed,
		events.NodesAdded, events.NodesRemoved, events.EdgesAdded, events.EdgesRemoved,
		events.StatsUpdated, events.SearchHighlighted, events.SearchCleared, events.SearchFailed,
		events.Error,
	}
	for _, k := range kinds {
		bus.On(k, h.broadcast)
	}
	return h
}

type wireEvent struct {
	Kind    events.Kind `json:"kind"`
	Payload any         `json:"payload,omitempty"`
}

func (h *eventHub) broadcast(ev events.Event) {
	payload := ev.Payload
	if p, ok := payload.(events.ErrorPayload); ok {
		payload = map[string]string{"context": p.Context, "error": p.Err.Error()}
	}
	if s, ok := payload.(coordinator.Stats); ok {
		payload = s
	}
	data, err := json.Marshal(wireEvent{Kind: ev.Kind, Payload: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, id)
		}
	}
}

func (h *eventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()

	// Drain and discard inbound frames until the client disconnects;
	// this connection is read-only from the caller's perspective.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
