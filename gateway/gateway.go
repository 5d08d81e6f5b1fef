// Package gateway exposes the HTTP surface: the IP-allowlisted webhook
// endpoint and a liveness probe.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// WebhookResult is the verdict the strategy core hands back for one
// webhook body, carrying enough detail to render the three JSON response
// shapes the wire format promises: success/signal, ignored, error.
type WebhookResult struct {
	Status string // "success" | "ignored" | "error"
	Symbol string
	Action string
	Detail string
}

// Handler processes one raw webhook body, already authorized against the
// IP allowlist.
type Handler func(body string) WebhookResult

// HealthFunc reports whether the process is considered healthy, folded
// into the /health response (e.g. the price stream's staleness check).
type HealthFunc func() (bool, string)

// Gateway owns the HTTP listener.
type Gateway struct {
	allowedIPs map[string]bool
	handle     Handler
	health     HealthFunc
	srv        *http.Server
}

// New builds a Gateway bound to addr (e.g. ":80"). allowedIPs gates the
// webhook endpoint only; /health is unauthenticated, matching the
// original's app.py.
func New(addr string, allowedIPs map[string]bool, handle Handler, health HealthFunc) *Gateway {
	g := &Gateway{allowedIPs: allowedIPs, handle: handle, health: health}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/webhook", g.handleWebhook)

	g.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return g
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (g *Gateway) ListenAndServe() error {
	log.Printf("✅ GATEWAY: listening on %s", g.srv.Addr)
	err := g.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (g *Gateway) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ GATEWAY: shutdown error: %v", err)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok, detail := true, "ok"
	if g.health != nil {
		ok, detail = g.health()
	}

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": statusString(ok),
		"detail": detail,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func statusString(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := clientIP(r)
	if len(g.allowedIPs) > 0 && !g.allowedIPs[ip] {
		log.Printf("❌ GATEWAY: rejected webhook from disallowed ip %s", ip)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error",
			"detail": "empty webhook body",
		})
		return
	}

	result := g.handle(body)

	switch result.Status {
	case "success":
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"signal": map[string]string{
				"symbol": result.Symbol,
				"action": result.Action,
			},
		})
	case "ignored":
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ignored",
			"detail": result.Detail,
		})
	default:
		log.Printf("❌ GATEWAY: webhook handler error: %s", result.Detail)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error",
			"detail": result.Detail,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// clientIP resolves the caller's address: X-Forwarded-For's first hop,
// then X-Real-IP, then the raw socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
